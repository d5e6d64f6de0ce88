// Бизнес-логика определений анкет: создание, изменение, версионирование и публикация.  Опубликованное определение неизменно; правка опубликованной версии порождает новую черновую версию.
package business

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// checkSections проверяет конфигурацию секций при административной правке.
// В отличие от компилятора схемы, административный ввод не деградирует
// пополево, а отклоняется целиком с указанием поля.
func checkSections(sections types.SectionsSlice) error {
	seen := make(map[string]struct{})
	for _, section := range sections {
		if section.Key == "" {
			return apierrors.ErrFormCheckFields.WithFormattedMessage("section key is empty")
		}
		for _, field := range section.Fields {
			if field.Key == "" {
				return apierrors.ErrFormCheckFields.WithFormattedMessage("field key is empty")
			}
			if !field.Type.Valid() {
				return apierrors.ErrFormCheckFields.WithFormattedMessage(field.Key)
			}
			if _, ok := seen[field.Key]; ok {
				return apierrors.ErrFormCheckFields.WithFormattedMessage(field.Key)
			}
			seen[field.Key] = struct{}{}

			if field.Validate != nil && field.Validate.Pattern != "" {
				if _, err := regexp.Compile(field.Validate.Pattern); err != nil {
					return apierrors.ErrFormCheckFields.WithFormattedMessage(field.Key)
				}
			}
			if (field.Type == types.FieldSelect || field.Type == types.FieldMultiselect) && len(field.Options) == 0 {
				return apierrors.ErrFormCheckFields.WithFormattedMessage(field.Key)
			}
		}
	}
	return nil
}

func (b *Business) checkReferences(form *dao.FormDefinition) error {
	if form.EntityId.Valid {
		var count int64
		if err := b.db.Model(&dao.Entity{}).Where("id = ?", form.EntityId.UUID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apierrors.ErrEntityNotFound
		}
	}
	if form.GeographyId.Valid {
		var count int64
		if err := b.db.Model(&dao.Geography{}).Where("id = ?", form.GeographyId.UUID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apierrors.ErrGeographyNotFound
		}
	}
	return nil
}

// CreateFormDefinition создает новое черновое определение анкеты.
func (b *Business) CreateFormDefinition(form *dao.FormDefinition, actorId uuid.UUID) error {
	if form.EndDate != nil && !form.EndDate.Time.After(time.Now().Truncate(24*time.Hour).UTC().Add(-time.Millisecond)) {
		return apierrors.ErrFormEndDate
	}
	if err := checkSections(form.Sections); err != nil {
		return err
	}
	if err := b.checkReferences(form); err != nil {
		return err
	}

	form.ID = dao.GenUUID()
	form.CreatedById = actorId
	form.Version = 1
	form.Published = false
	form.Slug = dao.GenSlug()

	// Retry on the unlikely slug collision
	for i := 0; i < 5; i++ {
		err := b.db.Omit("Entity", "Geography", "DocumentRequirements").Create(form).Error
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			form.Slug = dao.GenSlug()
			continue
		}
		return err
	}
	return apierrors.ErrGeneric
}

// UpdateFormDefinition изменяет определение анкеты.
// Черновое определение меняется на месте; опубликованное неизменно -
// правка порождает новую черновую версию с новым слагом.
func (b *Business) UpdateFormDefinition(id uuid.UUID, actorId uuid.UUID, changes *dao.FormDefinition) (*dao.FormDefinition, error) {
	var form dao.FormDefinition
	if err := b.db.Where("id = ?", id).First(&form).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrFormDefinitionNotFound
		}
		return nil, err
	}

	if err := checkSections(changes.Sections); err != nil {
		return nil, err
	}

	if !form.Published {
		form.Title = changes.Title
		form.Description = changes.Description
		form.Sections = changes.Sections
		form.EndDate = changes.EndDate
		form.UpdatedById = uuid.NullUUID{UUID: actorId, Valid: true}
		if err := b.db.Omit("Entity", "Geography", "DocumentRequirements").Save(&form).Error; err != nil {
			return nil, err
		}
		return &form, nil
	}

	next := form
	next.ID = dao.GenUUID()
	next.Version = form.Version + 1
	next.Published = false
	next.Slug = dao.GenSlug()
	next.CreatedById = actorId
	next.UpdatedById = uuid.NullUUID{}
	next.Title = changes.Title
	next.Description = changes.Description
	next.Sections = changes.Sections
	next.EndDate = changes.EndDate
	next.CreatedAt = time.Time{}
	next.UpdatedAt = time.Time{}

	if err := b.db.Omit("Entity", "Geography", "DocumentRequirements").Create(&next).Error; err != nil {
		return nil, err
	}
	return &next, nil
}

// PublishFormDefinition публикует черновое определение, делая его доступным поставщикам.
// Для пары субъект/регион не может существовать двух опубликованных
// определений одной версии.
func (b *Business) PublishFormDefinition(id uuid.UUID, actorId uuid.UUID) (*dao.FormDefinition, error) {
	var form dao.FormDefinition
	if err := b.db.Where("id = ?", id).First(&form).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrFormDefinitionNotFound
		}
		return nil, err
	}
	if form.Published {
		return nil, apierrors.ErrFormDefinitionPublished
	}
	if err := checkSections(form.Sections); err != nil {
		return nil, err
	}

	query := b.db.Model(&dao.FormDefinition{}).
		Where("version = ? AND published = true AND id <> ?", form.Version, form.ID)
	if form.EntityId.Valid {
		query = query.Where("entity_id = ?", form.EntityId.UUID)
	} else {
		query = query.Where("entity_id IS NULL")
	}
	if form.GeographyId.Valid {
		query = query.Where("geography_id = ?", form.GeographyId.UUID)
	} else {
		query = query.Where("geography_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apierrors.ErrFormDefinitionConflict
	}

	if err := b.db.Model(&form).Update("published", true).Error; err != nil {
		return nil, err
	}
	form.Published = true

	b.tracker.DefinitionPublished(form.ID, actorId, strconv.Itoa(form.Version))
	return &form, nil
}
