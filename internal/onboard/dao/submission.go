// DAO (Data Access Object) для работы с заявками поставщиков.  Предоставляет методы версионного обновления заявок с оптимистичной блокировкой, работы с замечаниями проверки, вложениями и журналом аудита.
package dao

import (
	"fmt"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dto"
	policy "github.com/aisa-it/onboard/onboard.go/internal/onboard/redactor-policy"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Submission struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CreatedById    uuid.UUID `json:"created_by_id" gorm:"type:uuid;index"`
	OrganizationId uuid.UUID `json:"organization_id" gorm:"type:uuid;index:idx_submission_org_form"`

	FormDefinitionId      uuid.UUID       `json:"form_definition_id" gorm:"type:uuid;index:idx_submission_org_form"`
	FormDefinition        *FormDefinition `json:"form_definition" gorm:"foreignKey:FormDefinitionId" extensions:"x-nullable"`
	FormDefinitionVersion int             `json:"form_definition_version"`

	Status types.SubmissionStatus `json:"status" gorm:"index;default:draft"`

	// Version - счетчик оптимистичной блокировки; растет на единицу при каждой успешной записи
	Version int `json:"version" gorm:"not null;default:1"`

	CurrentStep    int            `json:"current_step"`
	Data           types.FormData `json:"data" gorm:"type:jsonb"`
	TouchedKeys    pq.StringArray `json:"touched_keys" gorm:"type:text[]"`
	CompletedSteps pq.Int64Array  `json:"completed_steps" gorm:"type:integer[]"`

	SubmittedAt *time.Time `json:"submitted_at" extensions:"x-nullable"`

	Comments    []ReviewComment `json:"-" gorm:"foreignKey:SubmissionId"`
	Attachments []Attachment    `json:"-" gorm:"foreignKey:SubmissionId"`
}

func (s Submission) GetId() string {
	return s.ID.String()
}

func (Submission) TableName() string { return "submissions" }

// BeforeDelete Удаляет связанные записи (замечания, вложения, аудит) перед удалением заявки.
func (s *Submission) BeforeDelete(tx *gorm.DB) error {
	if err := tx.Unscoped().Where("submission_id = ?", s.ID).Delete(&ReviewComment{}).Error; err != nil {
		return err
	}

	var attachments []Attachment
	if err := tx.Where("submission_id = ?", s.ID).Find(&attachments).Error; err != nil {
		return err
	}
	for _, attachment := range attachments {
		if err := tx.Delete(&attachment).Error; err != nil {
			return err
		}
	}

	return tx.Unscoped().Where("target_id = ?", s.ID).Delete(&AuditRecord{}).Error
}

func (s *Submission) ToLightDTO() *dto.SubmissionLight {
	if s == nil {
		return nil
	}
	return &dto.SubmissionLight{
		ID:               s.ID.String(),
		FormDefinitionId: s.FormDefinitionId.String(),
		OrganizationId:   s.OrganizationId.String(),
		Status:           s.Status,
		Version:          s.Version,
		CurrentStep:      s.CurrentStep,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		SubmittedAt:      s.SubmittedAt,
	}
}

func (s *Submission) ToDTO() *dto.Submission {
	if s == nil {
		return nil
	}
	completed := make([]int, len(s.CompletedSteps))
	for i, step := range s.CompletedSteps {
		completed[i] = int(step)
	}
	res := &dto.Submission{
		SubmissionLight: *s.ToLightDTO(),
		Data:            s.Data,
		TouchedKeys:     s.TouchedKeys,
		CompletedSteps:  completed,
		FormDefinition:  s.FormDefinition.ToLightDTO(),
	}
	for i := range s.Comments {
		res.Comments = append(res.Comments, s.Comments[i].ToDTO())
	}
	for i := range s.Attachments {
		res.Attachments = append(res.Attachments, s.Attachments[i].ToDTO())
	}
	return res
}

// VersionConflictError возвращается при несовпадении ожидаемой и актуальной версии заявки.
type VersionConflictError struct {
	SubmissionId    uuid.UUID
	CurrentVersion  int
	ExpectedVersion int
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("submission %s version conflict: expected %d, current %d",
		e.SubmissionId, e.ExpectedVersion, e.CurrentVersion)
}

// UpdateSubmissionVersioned выполняет версионную запись заявки одним условным UPDATE.
// Запись применяется только если актуальная версия совпадает с ожидаемой; версия при этом увеличивается на единицу.
//
// Возвращает:
//   - *Submission: обновленная заявка после успешной записи.
//   - error: VersionConflictError при устаревшей версии, gorm.ErrRecordNotFound если заявки нет.
func UpdateSubmissionVersioned(db *gorm.DB, id uuid.UUID, expectedVersion int, values map[string]interface{}) (*Submission, error) {
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now()

	res := db.Model(&Submission{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		var current Submission
		if err := db.Where("id = ?", id).First(&current).Error; err != nil {
			return nil, err
		}
		return nil, VersionConflictError{
			SubmissionId:    id,
			CurrentVersion:  current.Version,
			ExpectedVersion: expectedVersion,
		}
	}

	var updated Submission
	if err := db.Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// HasActiveSubmission проверяет существование активной заявки организации по определению анкеты.
// Активными считаются статусы из ActiveStatuses, включая черновики; excludeId исключает саму заявку из проверки.
func HasActiveSubmission(db *gorm.DB, organizationId uuid.UUID, formDefinitionId uuid.UUID, excludeId uuid.UUID) (bool, error) {
	var count int64
	query := db.Model(&Submission{}).
		Where("organization_id = ?", organizationId).
		Where("form_definition_id = ?", formDefinitionId).
		Where("status in (?)", types.ActiveStatuses)
	if !excludeId.IsNil() {
		query = query.Where("id <> ?", excludeId)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type ReviewComment struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SubmissionId uuid.UUID   `json:"submission_id" gorm:"type:uuid;index"`
	Submission   *Submission `json:"-" gorm:"foreignKey:SubmissionId" extensions:"x-nullable"`

	AuthorId uuid.UUID `json:"author_id" gorm:"type:uuid;index"`

	Body string `json:"body" validate:"required"`

	// FieldKeys - ключи полей, открытые поставщику для исправления, пока замечание не снято
	FieldKeys       pq.StringArray `json:"field_keys" gorm:"type:text[]"`
	SupplierVisible bool           `json:"supplier_visible"`
	Resolved        bool           `json:"resolved" gorm:"index"`
}

func (ReviewComment) TableName() string { return "review_comments" }

func (c *ReviewComment) BeforeSave(tx *gorm.DB) error {
	c.Body = policy.UgcPolicy.Sanitize(c.Body)
	return nil
}

func (c *ReviewComment) ToDTO() *dto.ReviewComment {
	if c == nil {
		return nil
	}
	return &dto.ReviewComment{
		ID:              c.ID.String(),
		SubmissionId:    c.SubmissionId.String(),
		AuthorId:        c.AuthorId.String(),
		Body:            c.Body,
		FieldKeys:       c.FieldKeys,
		SupplierVisible: c.SupplierVisible,
		Resolved:        c.Resolved,
		CreatedAt:       c.CreatedAt,
	}
}

// OpenSupplierFieldKeys собирает множество ключей полей из открытых видимых поставщику замечаний заявки.
func OpenSupplierFieldKeys(db *gorm.DB, submissionId uuid.UUID) (map[string]struct{}, error) {
	var comments []ReviewComment
	if err := db.
		Where("submission_id = ?", submissionId).
		Where("resolved = false AND supplier_visible = true").
		Find(&comments).Error; err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})
	for _, comment := range comments {
		for _, key := range comment.FieldKeys {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

type Attachment struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SubmissionId uuid.UUID   `json:"submission_id" gorm:"type:uuid;index"`
	Submission   *Submission `json:"-" gorm:"foreignKey:SubmissionId" extensions:"x-nullable"`

	CreatedById     uuid.UUID `json:"created_by_id" gorm:"type:uuid"`
	DocumentTypeKey string    `json:"document_type_key" gorm:"index"`

	AssetId     uuid.UUID `json:"asset_id" gorm:"type:uuid"`
	Name        string    `json:"name"`
	FileSize    int64     `json:"size"`
	ContentType string    `json:"content_type"`
}

func (Attachment) TableName() string { return "attachments" }

// AfterDelete Удаляет файл из хранилища после удаления записи вложения.
func (a *Attachment) AfterDelete(tx *gorm.DB) error {
	if FileStorage == nil || a.AssetId.IsNil() {
		return nil
	}
	return FileStorage.Delete(a.AssetId)
}

func (a *Attachment) ToDTO() *dto.Attachment {
	if a == nil {
		return nil
	}
	return &dto.Attachment{
		Id:              a.ID.String(),
		DocumentTypeKey: a.DocumentTypeKey,
		CreatedAt:       a.CreatedAt,
		Asset: &dto.FileAsset{
			Id:          a.AssetId.String(),
			Name:        a.Name,
			FileSize:    a.FileSize,
			ContentType: a.ContentType,
		},
	}
}

// AuditRecord - запись журнала аудита; TargetId указывает на заявку или определение анкеты.
type AuditRecord struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TargetId uuid.UUID `json:"target_id" gorm:"type:uuid;index"`
	ActorId  uuid.UUID `json:"actor_id" gorm:"type:uuid"`

	Action   string  `json:"action" gorm:"index"`
	OldValue *string `json:"old_value" extensions:"x-nullable"`
	NewValue *string `json:"new_value" extensions:"x-nullable"`
}

func (AuditRecord) TableName() string { return "audit_records" }

func (r *AuditRecord) ToDTO() *dto.AuditRecord {
	if r == nil {
		return nil
	}
	return &dto.AuditRecord{
		Id:        r.ID.String(),
		TargetId:  r.TargetId.String(),
		ActorId:   r.ActorId.String(),
		Action:    r.Action,
		OldValue:  r.OldValue,
		NewValue:  r.NewValue,
		CreatedAt: r.CreatedAt,
	}
}
