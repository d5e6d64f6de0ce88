// Обработчики HTTP для черновиков заявок.  Черновик принадлежит организации поставщика; автосохранение поддерживает версионную запись и режим last-write-wins, когда клиент не передал ожидаемую версию.
//
// Основные возможности:
//   - Создание и сохранение черновика по определению анкеты.
//   - Список черновиков организации, новые первыми.
//   - Загрузка черновика для возобновления заполнения.
//   - Удаление черновика вместе с вложениями.
package onboard

import (
	"errors"
	"net/http"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	formengine "github.com/aisa-it/onboard/onboard.go/internal/onboard/form-engine"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func (s *Services) AddDraftServices(g *echo.Group) {
	formGroup := g.Group("forms/:formDefinitionId", s.FormDefinitionMiddleware)
	formGroup.POST("/drafts/", s.saveDraft)
	formGroup.GET("/drafts/", s.getDraftList)

	g.GET("drafts/:submissionId/", s.getDraft)
	g.DELETE("drafts/:submissionId/", s.deleteDraft)
}

type reqSaveDraft struct {
	DraftId         *string        `json:"draft_id"`
	ExpectedVersion int            `json:"expected_version"`
	Data            types.FormData `json:"data"`
	CurrentStep     int            `json:"current_step"`
	TouchedKeys     []string       `json:"touched_keys"`
	CompletedSteps  []int          `json:"completed_steps"`
}

// saveDraft godoc
// @id saveDraft
// @Summary черновики: сохранить черновик
// @Description Сохраняет черновик заявки. Без draft_id создается новый черновик; с expected_version выполняется версионная запись, без нее действует last-write-wins.
// @Tags Drafts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Param draft body reqSaveDraft true "Состояние черновика"
// @Success 200 {object} dto.Submission "Сохраненный черновик"
// @Failure 400 {object} apierrors.DefinedError "Некорректный запрос"
// @Failure 404 {object} apierrors.DefinedError "Определение или черновик не найдены"
// @Failure 409 {object} versionConflictResponse "Конфликт версии"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/drafts/ [post]
func (s *Services) saveDraft(c echo.Context) error {
	formContext := c.(FormDefinitionContext)

	var req reqSaveDraft
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftBadRequest)
	}

	if !formContext.Form.Active {
		return EErrorDefined(c, apierrors.ErrFormDefinitionInactive)
	}

	var draftId uuid.UUID
	if req.DraftId == nil {
		draft, err := dao.CreateDraft(s.db, &formContext.Form, formContext.OrganizationId, formContext.UserId)
		if err != nil {
			return EError(c, err)
		}
		s.tracker.SubmissionCreated(draft.ID, formContext.UserId)
		draftId = draft.ID
	} else {
		id, err := uuid.FromString(*req.DraftId)
		if err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidID)
		}
		// Scope to the caller's organization before writing
		if _, err := dao.LoadDraft(s.db, id, formContext.OrganizationId); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrDraftNotFound)
			}
			return EError(c, err)
		}
		draftId = id
	}

	state := formengine.NewInitialFormState(req.Data, req.CurrentStep)
	if len(req.TouchedKeys) > 0 || len(req.CompletedSteps) > 0 {
		state = formengine.HydrateFormState(formengine.FormStateSnapshot{
			Data:           req.Data,
			CurrentStep:    req.CurrentStep,
			TouchedKeys:    req.TouchedKeys,
			CompletedSteps: req.CompletedSteps,
		})
	}
	snapshot := state.Snapshot()

	draft, err := dao.SaveDraft(s.db, draftId, req.ExpectedVersion, dao.DraftUpdate{
		Data:           req.Data,
		CurrentStep:    snapshot.CurrentStep,
		TouchedKeys:    snapshot.TouchedKeys,
		CompletedSteps: snapshot.CompletedSteps,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorDefined(c, apierrors.ErrDraftNotFound)
		}
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, draft.ToDTO())
}

// getDraftList godoc
// @id getDraftList
// @Summary черновики: список черновиков
// @Description Возвращает черновики организации по определению анкеты, новые первыми.
// @Tags Drafts
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Success 200 {array} dto.DraftSummary "Список черновиков"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/drafts/ [get]
func (s *Services) getDraftList(c echo.Context) error {
	formContext := c.(FormDefinitionContext)

	summaries, err := dao.ListDraftSummaries(
		s.db.Where("form_definition_id = ?", formContext.Form.ID),
		formContext.OrganizationId,
	)
	if err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, summaries)
}

// getDraft godoc
// @id getDraft
// @Summary черновики: загрузить черновик
// @Description Загружает черновик организации вместе с определением анкеты для возобновления заполнения.
// @Tags Drafts
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID черновика"
// @Success 200 {object} dto.Submission "Черновик"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/drafts/{submissionId}/ [get]
func (s *Services) getDraft(c echo.Context) error {
	id, err := uuid.FromString(c.Param("submissionId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}

	draft, err := dao.LoadDraft(s.db, id, c.(AuthContext).OrganizationId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorDefined(c, apierrors.ErrDraftNotFound)
		}
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, draft.ToDTO())
}

// deleteDraft godoc
// @id deleteDraft
// @Summary черновики: удалить черновик
// @Description Удаляет черновик организации вместе с загруженными вложениями.
// @Tags Drafts
// @Security ApiKeyAuth
// @Param submissionId path string true "ID черновика"
// @Success 204 "Черновик удален"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/drafts/{submissionId}/ [delete]
func (s *Services) deleteDraft(c echo.Context) error {
	id, err := uuid.FromString(c.Param("submissionId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}

	if err := dao.DeleteDraft(s.db, id, c.(AuthContext).OrganizationId); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorDefined(c, apierrors.ErrDraftNotFound)
		}
		return EError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
