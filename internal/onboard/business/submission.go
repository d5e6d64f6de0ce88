// Бизнес-логика жизненного цикла заявки: отправка на проверку с полной валидацией, переходы статусов и редактирование в статусе pending_supplier по списку открытых замечаний.  Все записи идут через версионный протокол DAO; проверка допустимости перехода выполняется до версионной записи.
package business

import (
	"context"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	formengine "github.com/aisa-it/onboard/onboard.go/internal/onboard/form-engine"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

func (b *Business) loadSubmission(id uuid.UUID, organizationId uuid.UUID) (*dao.Submission, error) {
	var submission dao.Submission
	query := b.db.
		Preload("FormDefinition").
		Preload("FormDefinition.DocumentRequirements").
		Where("id = ?", id)
	if !organizationId.IsNil() {
		query = query.Where("organization_id = ?", organizationId)
	}
	if err := query.First(&submission).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// CompileSchema собирает схему валидации определения с проверкой файлов в хранилище.
func CompileSchema(form *dao.FormDefinition) *formengine.Schema {
	schema := formengine.Compile(formengine.NewDefinition(form.Sections))
	if dao.FileStorage != nil {
		schema.FileExists = func(fileId string) bool {
			id, err := uuid.FromString(fileId)
			if err != nil {
				return false
			}
			exist, err := dao.FileStorage.Exist(id)
			return err == nil && exist
		}
	}
	return schema
}

// Submit отправляет заявку на проверку.
// Порядок проверок фиксирован: допустимость перехода, активность формы,
// полная валидация данных, инвариант единственной активной заявки - и только
// затем версионная запись статуса.
func (b *Business) Submit(ctx context.Context, id uuid.UUID, organizationId uuid.UUID, actorId uuid.UUID, expectedVersion int) (*dao.Submission, *formengine.FormResult, error) {
	submission, err := b.loadSubmission(id, organizationId)
	if err != nil {
		return nil, nil, err
	}

	if !submission.Status.CanTransitionTo(types.StatusSubmitted) {
		return nil, nil, apierrors.ErrSubmissionBadTransition.WithFormattedMessage(string(submission.Status), string(types.StatusSubmitted))
	}

	form := submission.FormDefinition
	if form == nil || !form.Active {
		return nil, nil, apierrors.ErrFormDefinitionInactive
	}

	schema := CompileSchema(form)
	result, err := schema.ValidateAll(ctx, submission.Data)
	if err != nil {
		return nil, nil, err
	}
	if !result.OK {
		return nil, &result, apierrors.ErrSubmissionValidation
	}

	active, err := dao.HasActiveSubmission(b.db, submission.OrganizationId, submission.FormDefinitionId, submission.ID)
	if err != nil {
		return nil, nil, err
	}
	if active {
		return nil, nil, apierrors.ErrSubmissionActiveExists
	}

	now := time.Now()
	updated, err := dao.UpdateSubmissionVersioned(b.db, submission.ID, expectedVersion, map[string]interface{}{
		"status":       types.StatusSubmitted,
		"submitted_at": now,
	})
	if err != nil {
		return nil, nil, err
	}
	updated.FormDefinition = form

	b.tracker.StatusChanged(updated.ID, actorId, string(submission.Status), string(updated.Status))
	if b.emailService != nil {
		b.emailService.SubmissionSubmitted(updated)
	}

	return updated, nil, nil
}

// Transition переводит заявку в новый статус проверки.
// Таблица переходов проверяется до версионной записи; недопустимый переход
// никогда не доходит до записи.
func (b *Business) Transition(ctx context.Context, id uuid.UUID, actorId uuid.UUID, newStatus types.SubmissionStatus, expectedVersion int) (*dao.Submission, error) {
	if !newStatus.Valid() {
		return nil, apierrors.ErrSubmissionBadRequest
	}

	submission, err := b.loadSubmission(id, uuid.Nil)
	if err != nil {
		return nil, err
	}

	if !submission.Status.CanTransitionTo(newStatus) {
		return nil, apierrors.ErrSubmissionBadTransition.WithFormattedMessage(string(submission.Status), string(newStatus))
	}

	updated, err := dao.UpdateSubmissionVersioned(b.db, submission.ID, expectedVersion, map[string]interface{}{
		"status": newStatus,
	})
	if err != nil {
		return nil, err
	}
	updated.FormDefinition = submission.FormDefinition

	b.tracker.StatusChanged(updated.ID, actorId, string(submission.Status), string(updated.Status))
	if b.emailService != nil {
		b.emailService.SubmissionStatusChanged(updated, string(submission.Status), string(updated.Status))
	}

	return updated, nil
}

// SaveEdits сохраняет изменения данных заявки.
// Черновик редактируется свободно; в статусе pending_supplier разрешены
// только поля из открытых видимых поставщику замечаний - проверка
// выполняется до версионной записи.
func (b *Business) SaveEdits(ctx context.Context, id uuid.UUID, organizationId uuid.UUID, expectedVersion int, data types.FormData, currentStep int) (*dao.Submission, error) {
	submission, err := b.loadSubmission(id, organizationId)
	if err != nil {
		return nil, err
	}

	if !submission.Status.Editable() {
		return nil, apierrors.ErrDraftNotEditable
	}

	if submission.Status == types.StatusPendingSupplier {
		allowed, err := dao.OpenSupplierFieldKeys(b.db, submission.ID)
		if err != nil {
			return nil, err
		}
		for key := range changedKeys(submission.Data, data) {
			if _, ok := allowed[key]; !ok {
				return nil, apierrors.ErrDraftFieldsLocked.WithFormattedMessage(key)
			}
		}
	}

	updated, err := dao.UpdateSubmissionVersioned(b.db, submission.ID, expectedVersion, map[string]interface{}{
		"data":         data,
		"current_step": currentStep,
	})
	if err != nil {
		return nil, err
	}
	updated.FormDefinition = submission.FormDefinition
	return updated, nil
}

// changedKeys возвращает ключи, значения которых отличаются между снимками данных.
func changedKeys(prev types.FormData, next types.FormData) map[string]struct{} {
	changed := make(map[string]struct{})
	for key, value := range next {
		if !formengine.ValuesEqual(prev[key], value) {
			changed[key] = struct{}{}
		}
	}
	for key := range prev {
		if _, ok := next[key]; !ok {
			changed[key] = struct{}{}
		}
	}
	return changed
}

// ResolveComments снимает замечания проверки, когда поставщик вернул заявку на проверку.
func (b *Business) ResolveComments(submissionId uuid.UUID, commentIds []uuid.UUID) error {
	query := b.db.Model(&dao.ReviewComment{}).Where("submission_id = ?", submissionId)
	if len(commentIds) > 0 {
		query = query.Where("id in (?)", commentIds)
	}
	return query.Update("resolved", true).Error
}
