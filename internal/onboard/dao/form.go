// DAO (Data Access Object) для работы с определениями анкет поставщиков.  Предоставляет методы для создания, чтения, обновления и публикации определений, а также связанных с ними справочников (юридические формы, географии) и требований к документам.  Включает логику санитации и преобразования данных для взаимодействия с базой данных и DTO (Data Transfer Objects).
package dao

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dto"
	policy "github.com/aisa-it/onboard/onboard.go/internal/onboard/redactor-policy"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Entity struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Key  string `json:"key" gorm:"uniqueIndex;not null" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (Entity) TableName() string { return "entities" }

func (e *Entity) ToLightDTO() *dto.EntityLight {
	if e == nil {
		return nil
	}
	return &dto.EntityLight{
		ID:   e.ID.String(),
		Key:  e.Key,
		Name: e.Name,
	}
}

// UpsertEntity создает или обновляет запись справочника юридических форм по ключу.
func UpsertEntity(db *gorm.DB, entity *Entity) error {
	if entity.ID.IsNil() {
		entity.ID = GenUUID()
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(entity).Error; err != nil {
		return err
	}
	// Existing row keeps its id on conflict
	return db.Where("key = ?", entity.Key).First(entity).Error
}

type Geography struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Code string `json:"code" gorm:"uniqueIndex;not null" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (Geography) TableName() string { return "geographies" }

func (g *Geography) ToLightDTO() *dto.GeographyLight {
	if g == nil {
		return nil
	}
	return &dto.GeographyLight{
		ID:   g.ID.String(),
		Code: g.Code,
		Name: g.Name,
	}
}

// UpsertGeography создает или обновляет запись справочника регионов по коду.
func UpsertGeography(db *gorm.DB, geography *Geography) error {
	if geography.ID.IsNil() {
		geography.ID = GenUUID()
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(geography).Error; err != nil {
		return err
	}
	return db.Where("code = ?", geography.Code).First(geography).Error
}

type FormDefinition struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CreatedById uuid.UUID     `json:"created_by" gorm:"type:uuid;index"`
	UpdatedById uuid.NullUUID `json:"-" gorm:"type:uuid" extensions:"x-nullable"`

	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`

	// Version растет при каждой публикации изменений; опубликованная версия неизменна
	Version   int  `json:"version" gorm:"default:1"`
	Published bool `json:"published" gorm:"index"`

	EndDate *types.TargetDate `json:"end_date" gorm:"index" extensions:"x-nullable"`

	EntityId    uuid.NullUUID `json:"entity_id" gorm:"type:uuid;index" extensions:"x-nullable"`
	Entity      *Entity       `json:"entity_detail" gorm:"foreignKey:EntityId" extensions:"x-nullable"`
	GeographyId uuid.NullUUID `json:"geography_id" gorm:"type:uuid;index" extensions:"x-nullable"`
	Geography   *Geography    `json:"geography_detail" gorm:"foreignKey:GeographyId" extensions:"x-nullable"`

	Sections types.SectionsSlice `json:"sections" gorm:"type:jsonb"`

	DocumentRequirements []DocumentRequirement `json:"document_requirements" gorm:"foreignKey:FormDefinitionId"`

	Active bool     `json:"active" gorm:"-"`
	URL    *url.URL `json:"-" gorm:"-" extensions:"x-nullable"`
}

func (f FormDefinition) GetId() string {
	return f.ID.String()
}

func (f FormDefinition) GetString() string {
	return f.Slug
}

func (FormDefinition) TableName() string { return "form_definitions" }

// AfterFind - Выполняет дополнительные действия после поиска определения анкеты в базе данных.  Проверяет активно ли определение на основе даты окончания и устанавливает URL для его отображения.
//
// Параметры:
//   - tx: объект базы данных GORM для выполнения запросов.
//
// Возвращает:
//   - error:  Возвращает ошибку, если произошла ошибка при выполнении каких-либо операций.
func (form *FormDefinition) AfterFind(tx *gorm.DB) error {
	if form.EndDate == nil {
		form.Active = form.Published
	} else {
		form.Active = form.Published && form.EndDate.Time.After(time.Now().Truncate(24*time.Hour).UTC().Add(-time.Millisecond))
	}
	form.SetUrl()
	return nil
}

func (form *FormDefinition) SetUrl() {
	if Config == nil || Config.WebURL == nil {
		return
	}
	u, _ := url.Parse(fmt.Sprintf("/onboarding/%s/", form.Slug))
	form.URL = Config.WebURL.ResolveReference(u)
}

// BeforeSave - Преобразует значения полей определения, чтобы предотвратить XSS-атаки и корректно отображать данные.  Применяет санитацию к заголовкам анкеты, секций и полей.
//
// Парамметры:
//   - tx: объект базы данных GORM для выполнения запросов.
//
// Возвращает:
//   - error: Возвращает ошибку, если произошла ошибка при преобразовании данных.
func (form *FormDefinition) BeforeSave(tx *gorm.DB) error {
	form.Title = policy.StripTagsPolicy.Sanitize(form.Title)
	form.Description = policy.UgcPolicy.Sanitize(form.Description)
	for i, section := range form.Sections {
		form.Sections[i].Label = policy.StripTagsPolicy.Sanitize(section.Label)
		for j, field := range section.Fields {
			form.Sections[i].Fields[j].Label = policy.StripTagsPolicy.Sanitize(field.Label)
		}
	}
	return nil
}

// BeforeDelete Удаляет связанные записи (требования к документам, черновики) перед удалением определения. Это необходимо для обеспечения целостности данных.
//
// Параметры:
//   - tx: объект базы данных GORM для выполнения запросов.
//
// Возвращает:
//   - error: Возвращает ошибку, если при выполнении каких-либо операций произошла ошибка.
func (form *FormDefinition) BeforeDelete(tx *gorm.DB) error {
	if err := tx.Unscoped().Where("form_definition_id = ?", form.ID).Delete(&DocumentRequirement{}).Error; err != nil {
		return err
	}

	// Remove draft submissions; submitted ones keep history
	var drafts []Submission
	if err := tx.Where("form_definition_id = ? AND status = ?", form.ID, types.StatusDraft).Find(&drafts).Error; err != nil {
		return err
	}
	for _, draft := range drafts {
		if err := tx.Delete(&draft).Error; err != nil {
			return err
		}
	}
	return nil
}

// ToLightDTO преобразует FormDefinition в FormDefinitionLight для упрощенной передачи данных. Используется для создания более легкой версии определения для отображения в списках.
func (f *FormDefinition) ToLightDTO() *dto.FormDefinitionLight {
	if f == nil {
		return nil
	}
	f.SetUrl()
	ff := &dto.FormDefinitionLight{
		ID:          f.ID.String(),
		Slug:        f.Slug,
		Title:       f.Title,
		Description: f.Description,
		Version:     f.Version,
		Published:   f.Published,
		EndDate:     f.EndDate,
		Active:      f.Active,
		Url:         types.JsonURL{Url: f.URL},
	}

	if f.EntityId.Valid {
		entityIdStr := f.EntityId.UUID.String()
		ff.EntityId = &entityIdStr
	}
	if f.GeographyId.Valid {
		geographyIdStr := f.GeographyId.UUID.String()
		ff.GeographyId = &geographyIdStr
	}

	return ff
}

// ToDTO преобразует FormDefinition в dto.FormDefinition для удобной передачи данных в интерфейс.
func (f *FormDefinition) ToDTO() *dto.FormDefinition {
	if f == nil {
		return nil
	}

	res := &dto.FormDefinition{
		FormDefinitionLight: *f.ToLightDTO(),
		Sections:            f.Sections,
		Entity:              f.Entity.ToLightDTO(),
		Geography:           f.Geography.ToLightDTO(),
	}
	for i := range f.DocumentRequirements {
		res.DocumentRequirements = append(res.DocumentRequirements, f.DocumentRequirements[i].ToDTO())
	}
	return res
}

type DocumentRequirement struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	FormDefinitionId uuid.UUID       `json:"form_definition_id" gorm:"type:uuid;uniqueIndex:idx_doc_req_key,priority:1"`
	FormDefinition   *FormDefinition `json:"-" gorm:"foreignKey:FormDefinitionId" extensions:"x-nullable"`

	Key          string         `json:"key" gorm:"uniqueIndex:idx_doc_req_key,priority:2" validate:"required"`
	Label        string         `json:"label" validate:"required"`
	Required     bool           `json:"required"`
	MaxSizeBytes int64          `json:"max_size_bytes"`
	MimeTypes    pq.StringArray `json:"mime_types" gorm:"type:text[]"`
}

func (DocumentRequirement) TableName() string { return "document_requirements" }

func (d *DocumentRequirement) BeforeSave(tx *gorm.DB) error {
	d.Label = policy.StripTagsPolicy.Sanitize(d.Label)
	return nil
}

func (d *DocumentRequirement) ToDTO() *dto.DocumentRequirement {
	if d == nil {
		return nil
	}
	return &dto.DocumentRequirement{
		ID:           d.ID.String(),
		Key:          d.Key,
		Label:        d.Label,
		Required:     d.Required,
		MaxSizeBytes: d.MaxSizeBytes,
		MimeTypes:    d.MimeTypes,
		UpdatedAt:    d.UpdatedAt,
	}
}

// UpsertDocumentRequirement создает или обновляет требование к документу по паре (определение, ключ).
func UpsertDocumentRequirement(db *gorm.DB, req *DocumentRequirement) error {
	if req.ID.IsNil() {
		req.ID = GenUUID()
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "form_definition_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"label", "required", "max_size_bytes", "mime_types", "updated_at",
		}),
	}).Create(req).Error
}

// CloseExpiredFormDefinitions снимает с публикации определения, чья дата
// окончания прошла. Граница дня совпадает с расчетом Active в AfterFind.
func CloseExpiredFormDefinitions(db *gorm.DB) (int, error) {
	res := db.Model(&FormDefinition{}).
		Where("published = true").
		Where("end_date IS NOT NULL AND end_date < ?", time.Now().Truncate(24*time.Hour).UTC()).
		Update("published", false)
	return int(res.RowsAffected), res.Error
}
