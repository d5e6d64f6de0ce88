// DAO (Data Access Object) для работы с черновиками заявок.  Черновик - это заявка в статусе draft; автосохранение поддерживает как версионную запись, так и режим last-write-wins, когда клиент не передал ожидаемую версию.
package dao

import (
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dto"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DraftUpdate - изменяемая автосохранением часть черновика.
type DraftUpdate struct {
	Data           types.FormData
	CurrentStep    int
	TouchedKeys    []string
	CompletedSteps []int
}

func (u DraftUpdate) toValues() map[string]interface{} {
	completed := make(pq.Int64Array, len(u.CompletedSteps))
	for i, step := range u.CompletedSteps {
		completed[i] = int64(step)
	}
	return map[string]interface{}{
		"data":            u.Data,
		"current_step":    u.CurrentStep,
		"touched_keys":    pq.StringArray(u.TouchedKeys),
		"completed_steps": completed,
	}
}

// CreateDraft создает новый черновик заявки по определению анкеты.
func CreateDraft(db *gorm.DB, form *FormDefinition, organizationId uuid.UUID, createdById uuid.UUID) (*Submission, error) {
	draft := Submission{
		ID:                    GenUUID(),
		CreatedById:           createdById,
		OrganizationId:        organizationId,
		FormDefinitionId:      form.ID,
		FormDefinitionVersion: form.Version,
		Status:                types.StatusDraft,
		Version:               1,
		Data:                  types.FormData{},
		TouchedKeys:           pq.StringArray{},
		CompletedSteps:        pq.Int64Array{},
	}
	if err := db.Omit("FormDefinition").Create(&draft).Error; err != nil {
		return nil, err
	}
	draft.FormDefinition = form
	return &draft, nil
}

// SaveDraft сохраняет состояние черновика.
// При expectedVersion > 0 выполняется версионная запись; при нуле - last-write-wins для автосохранения.
func SaveDraft(db *gorm.DB, id uuid.UUID, expectedVersion int, update DraftUpdate) (*Submission, error) {
	values := update.toValues()

	if expectedVersion > 0 {
		return UpdateSubmissionVersioned(db, id, expectedVersion, values)
	}

	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now()
	if err := db.Model(&Submission{}).Where("id = ?", id).Updates(values).Error; err != nil {
		return nil, err
	}

	var updated Submission
	if err := db.Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// LoadDraft загружает черновик организации вместе с определением анкеты.
func LoadDraft(db *gorm.DB, id uuid.UUID, organizationId uuid.UUID) (*Submission, error) {
	var draft Submission
	if err := db.
		Preload("FormDefinition").
		Preload("FormDefinition.DocumentRequirements").
		Where("id = ?", id).
		Where("organization_id = ?", organizationId).
		Where("status = ?", types.StatusDraft).
		First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// DeleteDraft удаляет черновик вместе со связанными вложениями.
func DeleteDraft(db *gorm.DB, id uuid.UUID, organizationId uuid.UUID) error {
	draft, err := LoadDraft(db, id, organizationId)
	if err != nil {
		return err
	}
	return db.Delete(draft).Error
}

// ListDraftSummaries возвращает облегченный список черновиков организации, новые первыми.
func ListDraftSummaries(db *gorm.DB, organizationId uuid.UUID) ([]dto.DraftSummary, error) {
	var drafts []Submission
	if err := db.
		Preload("FormDefinition").
		Where("organization_id = ?", organizationId).
		Where("status = ?", types.StatusDraft).
		Order("updated_at DESC").
		Find(&drafts).Error; err != nil {
		return nil, err
	}

	summaries := make([]dto.DraftSummary, 0, len(drafts))
	for _, draft := range drafts {
		summary := dto.DraftSummary{
			ID:               draft.ID.String(),
			FormDefinitionId: draft.FormDefinitionId.String(),
			CurrentStep:      draft.CurrentStep,
			Version:          draft.Version,
			UpdatedAt:        draft.UpdatedAt,
		}
		if draft.FormDefinition != nil {
			summary.Title = draft.FormDefinition.Title
			if draft.FormDefinition.EndDate != nil {
				summary.EndDate = &draft.FormDefinition.EndDate.Time
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// PurgeStaleDrafts удаляет черновики, не обновлявшиеся дольше retention.
func PurgeStaleDrafts(db *gorm.DB, retention time.Duration) (int, error) {
	var stale []Submission
	if err := db.
		Where("status = ?", types.StatusDraft).
		Where("updated_at < ?", time.Now().Add(-retention)).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	for _, draft := range stale {
		if err := db.Delete(&draft).Error; err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
