// Обработчики HTTP жизненного цикла заявки поставщика.  Отправка на проверку с полной валидацией, статусные переходы процесса рассмотрения, замечания проверки, редактирование в статусе pending_supplier, вложения и журнал аудита.
//
// Основные возможности:
//   - Отправка заявки с версионным контролем и ответом 409 при конфликте версий.
//   - Переходы статусов по таблице допустимых переходов.
//   - Замечания проверки с видимостью для поставщика и снятием при возврате.
//   - Загрузка и выдача подтверждающих документов через файловое хранилище.
//   - Журнал аудита заявки для проверяющих.
package onboard

import (
	"errors"
	"net/http"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dto"
	filestorage "github.com/aisa-it/onboard/onboard.go/internal/onboard/file-storage"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/utils"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Верхняя граница размера вложения, если требование к документу не задает свою.
const maxAttachmentSize = 50 << 20

type SubmissionContext struct {
	AuthContext
	Submission dao.Submission
}

// SubmissionMiddleware загружает заявку; поставщик видит только заявки своей организации.
func (s *Services) SubmissionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		submissionId, err := uuid.FromString(c.Param("submissionId"))
		if err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidID)
		}

		authContext := c.(AuthContext)

		query := s.db.
			Preload("FormDefinition").
			Preload("FormDefinition.DocumentRequirements").
			Where("id = ?", submissionId)
		if authContext.Role == types.RoleSupplier {
			query = query.Where("organization_id = ?", authContext.OrganizationId)
		}

		var submission dao.Submission
		if err := query.First(&submission).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return EErrorDefined(c, apierrors.ErrSubmissionNotFound)
			}
			return EError(c, err)
		}

		return next(SubmissionContext{authContext, submission})
	}
}

func (s *Services) AddSubmissionServices(g *echo.Group) {
	g.GET("submissions/", s.getSubmissionList)

	submissionGroup := g.Group("submissions/:submissionId", s.SubmissionMiddleware)
	submissionGroup.GET("/", s.getSubmission)
	submissionGroup.PATCH("/", s.updateSubmissionData)
	submissionGroup.POST("/submit/", s.submitSubmission)
	submissionGroup.POST("/transition/", s.transitionSubmission, ReviewerPermissionMiddleware)

	submissionGroup.GET("/comments/", s.getReviewComments)
	submissionGroup.POST("/comments/", s.createReviewComment, ReviewerPermissionMiddleware)
	submissionGroup.POST("/comments/resolve/", s.resolveReviewComments)

	submissionGroup.POST("/attachments/", s.createAttachment)
	submissionGroup.GET("/attachments/:attachmentId/", s.getAttachment)
	submissionGroup.DELETE("/attachments/:attachmentId/", s.deleteAttachment)

	submissionGroup.GET("/audit/", s.getSubmissionAudit, ReviewerPermissionMiddleware)
}

// getSubmissionList godoc
// @id getSubmissionList
// @Summary заявки: список заявок
// @Description Возвращает постраничный список заявок. Поставщикам видны заявки своей организации, проверяющим все.
// @Tags Submissions
// @Produce json
// @Security ApiKeyAuth
// @Param offset query int false "Смещение" default(0)
// @Param limit query int false "Количество" default(25)
// @Param status query string false "Фильтр по статусу"
// @Success 200 {object} dao.PaginationResponse{result=[]dto.SubmissionLight} "Список заявок"
// @Failure 400 {object} apierrors.DefinedError "Некорректный запрос"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/ [get]
func (s *Services) getSubmissionList(c echo.Context) error {
	authContext := c.(AuthContext)

	offset := 0
	limit := 25
	var status string
	if err := echo.QueryParamsBinder(c).
		Int("offset", &offset).
		Int("limit", &limit).
		String("status", &status).
		BindError(); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}
	if limit > 100 {
		return EErrorDefined(c, apierrors.ErrLimitTooHigh)
	}

	query := s.db.Order("updated_at DESC")
	if authContext.Role == types.RoleSupplier {
		query = query.Where("organization_id = ?", authContext.OrganizationId)
	}
	if status != "" {
		if !types.SubmissionStatus(status).Valid() {
			return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
		}
		query = query.Where("status = ?", status)
	}

	var submissions []dao.Submission
	res, err := dao.PaginationRequest(offset, limit, query, &submissions)
	if err != nil {
		return EError(c, err)
	}

	res.Result = utils.SliceToSlice(&submissions, func(sub *dao.Submission) dto.SubmissionLight { return *sub.ToLightDTO() })
	return c.JSON(http.StatusOK, res)
}

// getSubmission godoc
// @id getSubmission
// @Summary заявки: заявка
// @Description Возвращает заявку с данными, замечаниями и вложениями. Поставщику видны только замечания с supplier_visible.
// @Tags Submissions
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Success 200 {object} dto.Submission "Заявка"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/ [get]
func (s *Services) getSubmission(c echo.Context) error {
	submissionContext := c.(SubmissionContext)
	submission := submissionContext.Submission

	commentsQuery := s.db.Where("submission_id = ?", submission.ID).Order("created_at")
	if submissionContext.Role == types.RoleSupplier {
		commentsQuery = commentsQuery.Where("supplier_visible = true")
	}
	if err := commentsQuery.Find(&submission.Comments).Error; err != nil {
		return EError(c, err)
	}

	if err := s.db.Where("submission_id = ?", submission.ID).Order("created_at").Find(&submission.Attachments).Error; err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, submission.ToDTO())
}

type reqSubmit struct {
	ExpectedVersion int `json:"expected_version" validate:"required,min=1"`
}

// submitSubmission godoc
// @id submitSubmission
// @Summary заявки: отправить на проверку
// @Description Отправляет заявку на проверку после полной валидации данных. При расхождении версии возвращает 409 с текущей и ожидаемой версиями.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param request body reqSubmit true "Ожидаемая версия заявки"
// @Success 200 {object} dto.Submission "Отправленная заявка"
// @Failure 400 {object} formengine.FormResult "Данные заявки не прошли валидацию"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 409 {object} versionConflictResponse "Конфликт версии или недопустимый переход"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/submit/ [post]
func (s *Services) submitSubmission(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	var req reqSubmit
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}

	submission, result, err := s.business.Submit(
		c.Request().Context(),
		submissionContext.Submission.ID,
		submissionContext.OrganizationId,
		submissionContext.UserId,
		req.ExpectedVersion,
	)
	if err != nil {
		if result != nil {
			defined := apierrors.ErrSubmissionValidation
			return c.JSON(defined.StatusCode, map[string]interface{}{
				"code":       defined.Code,
				"error":      defined.Err,
				"ru_error":   defined.RuErr,
				"validation": result,
			})
		}
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, submission.ToDTO())
}

type reqTransition struct {
	Status          string `json:"status" validate:"required"`
	ExpectedVersion int    `json:"expected_version" validate:"required,min=1"`
}

// transitionSubmission godoc
// @id transitionSubmission
// @Summary заявки: переход статуса
// @Description Переводит заявку в новый статус процесса рассмотрения по таблице допустимых переходов.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param request body reqTransition true "Новый статус и ожидаемая версия"
// @Success 200 {object} dto.Submission "Заявка в новом статусе"
// @Failure 400 {object} apierrors.DefinedError "Неизвестный статус"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 409 {object} versionConflictResponse "Конфликт версии или недопустимый переход"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/transition/ [post]
func (s *Services) transitionSubmission(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	var req reqTransition
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}

	submission, err := s.business.Transition(
		c.Request().Context(),
		submissionContext.Submission.ID,
		submissionContext.UserId,
		types.SubmissionStatus(req.Status),
		req.ExpectedVersion,
	)
	if err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, submission.ToDTO())
}

type reqSubmissionData struct {
	ExpectedVersion int            `json:"expected_version" validate:"required,min=1"`
	Data            types.FormData `json:"data"`
	CurrentStep     int            `json:"current_step"`
}

// updateSubmissionData godoc
// @id updateSubmissionData
// @Summary заявки: изменить данные
// @Description Сохраняет данные заявки. В статусе pending_supplier разрешены только поля из открытых видимых поставщику замечаний.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param request body reqSubmissionData true "Данные и ожидаемая версия"
// @Success 200 {object} dto.Submission "Обновленная заявка"
// @Failure 403 {object} apierrors.DefinedError "Поле недоступно для изменения"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 409 {object} versionConflictResponse "Конфликт версии или нередактируемый статус"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/ [patch]
func (s *Services) updateSubmissionData(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	var req reqSubmissionData
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}

	submission, err := s.business.SaveEdits(
		c.Request().Context(),
		submissionContext.Submission.ID,
		submissionContext.OrganizationId,
		req.ExpectedVersion,
		req.Data,
		req.CurrentStep,
	)
	if err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, submission.ToDTO())
}

// getReviewComments godoc
// @id getReviewComments
// @Summary заявки: замечания проверки
// @Description Возвращает замечания проверки заявки. Поставщику видны только замечания с supplier_visible.
// @Tags Submissions
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Success 200 {array} dto.ReviewComment "Замечания"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/comments/ [get]
func (s *Services) getReviewComments(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	query := s.db.Where("submission_id = ?", submissionContext.Submission.ID).Order("created_at")
	if submissionContext.Role == types.RoleSupplier {
		query = query.Where("supplier_visible = true")
	}

	var comments []dao.ReviewComment
	if err := query.Find(&comments).Error; err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, utils.SliceToSlice(&comments, func(comment *dao.ReviewComment) dto.ReviewComment { return *comment.ToDTO() }))
}

type reqReviewComment struct {
	Body            string   `json:"body"`
	FieldKeys       []string `json:"field_keys"`
	SupplierVisible bool     `json:"supplier_visible"`
}

// createReviewComment godoc
// @id createReviewComment
// @Summary заявки: создать замечание
// @Description Создает замечание проверки. Замечания с supplier_visible открывают перечисленные поля для правки поставщиком в статусе pending_supplier.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param comment body reqReviewComment true "Замечание"
// @Success 201 {object} dto.ReviewComment "Созданное замечание"
// @Failure 400 {object} apierrors.DefinedError "Пустое замечание"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/comments/ [post]
func (s *Services) createReviewComment(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	var req reqReviewComment
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}
	if req.Body == "" {
		return EErrorDefined(c, apierrors.ErrReviewCommentEmpty)
	}

	comment := dao.ReviewComment{
		ID:              dao.GenUUID(),
		SubmissionId:    submissionContext.Submission.ID,
		AuthorId:        submissionContext.UserId,
		Body:            req.Body,
		FieldKeys:       pq.StringArray(req.FieldKeys),
		SupplierVisible: req.SupplierVisible,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusCreated, comment.ToDTO())
}

type reqResolveComments struct {
	CommentIds []string `json:"comment_ids"`
}

// resolveReviewComments godoc
// @id resolveReviewComments
// @Summary заявки: снять замечания
// @Description Снимает замечания проверки. Пустой список снимает все замечания заявки.
// @Tags Submissions
// @Accept json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param request body reqResolveComments true "Идентификаторы замечаний"
// @Success 204 "Замечания сняты"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/comments/resolve/ [post]
func (s *Services) resolveReviewComments(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	var req reqResolveComments
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}

	commentIds := make([]uuid.UUID, 0, len(req.CommentIds))
	for _, raw := range req.CommentIds {
		id, err := uuid.FromString(raw)
		if err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidID)
		}
		commentIds = append(commentIds, id)
	}

	if err := s.business.ResolveComments(submissionContext.Submission.ID, commentIds); err != nil {
		return EError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// createAttachment godoc
// @id createAttachment
// @Summary заявки: загрузить вложение
// @Description Загружает подтверждающий документ к заявке. Размер и тип проверяются по требованию к документу, если оно задано.
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param file formData file true "Файл"
// @Param document_type_key formData string true "Ключ требования к документу"
// @Success 201 {object} dto.Attachment "Созданное вложение"
// @Failure 400 {object} apierrors.DefinedError "Некорректный запрос"
// @Failure 409 {object} apierrors.DefinedError "Заявка недоступна для редактирования"
// @Failure 413 {object} apierrors.DefinedError "Файл слишком большой"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/attachments/ [post]
func (s *Services) createAttachment(c echo.Context) error {
	submissionContext := c.(SubmissionContext)
	submission := submissionContext.Submission

	if !submission.Status.Editable() {
		return EErrorDefined(c, apierrors.ErrDraftNotEditable)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}
	documentTypeKey := c.FormValue("document_type_key")
	if documentTypeKey == "" {
		return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
	}

	contentType := fileHeader.Header.Get("Content-Type")

	sizeLimit := int64(maxAttachmentSize)
	if submission.FormDefinition != nil {
		for _, requirement := range submission.FormDefinition.DocumentRequirements {
			if requirement.Key != documentTypeKey {
				continue
			}
			if requirement.MaxSizeBytes > 0 {
				sizeLimit = requirement.MaxSizeBytes
			}
			if len(requirement.MimeTypes) > 0 && !utils.CheckInSlice([]string(requirement.MimeTypes), contentType) {
				return EErrorDefined(c, apierrors.ErrSubmissionBadRequest)
			}
		}
	}
	if fileHeader.Size > sizeLimit {
		return EErrorDefined(c, apierrors.ErrFileTooLarge)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return EError(c, err)
	}
	defer src.Close()

	assetId := dao.GenUUID()
	if err := s.storage.SaveReader(src, fileHeader.Size, assetId, contentType, &filestorage.Metadata{
		OrganizationId:   submission.OrganizationId.String(),
		SubmissionId:     submission.ID.String(),
		FormDefinitionId: submission.FormDefinitionId.String(),
		DocumentTypeKey:  documentTypeKey,
	}); err != nil {
		return EError(c, err)
	}

	attachment := dao.Attachment{
		ID:              dao.GenUUID(),
		SubmissionId:    submission.ID,
		CreatedById:     submissionContext.UserId,
		DocumentTypeKey: documentTypeKey,
		AssetId:         assetId,
		Name:            fileHeader.Filename,
		FileSize:        fileHeader.Size,
		ContentType:     contentType,
	}
	if err := s.db.Create(&attachment).Error; err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusCreated, attachment.ToDTO())
}

// getAttachment godoc
// @id getAttachment
// @Summary заявки: скачать вложение
// @Description Отдает содержимое вложения заявки из файлового хранилища.
// @Tags Submissions
// @Produce octet-stream
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param attachmentId path string true "ID вложения"
// @Success 200 {file} binary "Содержимое файла"
// @Failure 404 {object} apierrors.DefinedError "Вложение не найдено"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/attachments/{attachmentId}/ [get]
func (s *Services) getAttachment(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	attachment, err := s.loadAttachment(submissionContext, c.Param("attachmentId"))
	if err != nil {
		return EError(c, err)
	}

	reader, err := s.storage.LoadReader(attachment.AssetId)
	if err != nil {
		return EErrorDefined(c, apierrors.ErrAttachmentNotFound)
	}
	defer reader.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+attachment.Name+"\"")
	return c.Stream(http.StatusOK, attachment.ContentType, reader)
}

// deleteAttachment godoc
// @id deleteAttachment
// @Summary заявки: удалить вложение
// @Description Удаляет вложение редактируемой заявки вместе с файлом в хранилище.
// @Tags Submissions
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Param attachmentId path string true "ID вложения"
// @Success 204 "Вложение удалено"
// @Failure 404 {object} apierrors.DefinedError "Вложение не найдено"
// @Failure 409 {object} apierrors.DefinedError "Заявка недоступна для редактирования"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/attachments/{attachmentId}/ [delete]
func (s *Services) deleteAttachment(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	if !submissionContext.Submission.Status.Editable() {
		return EErrorDefined(c, apierrors.ErrDraftNotEditable)
	}

	attachment, err := s.loadAttachment(submissionContext, c.Param("attachmentId"))
	if err != nil {
		return EError(c, err)
	}

	if err := s.db.Delete(attachment).Error; err != nil {
		return EError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Services) loadAttachment(submissionContext SubmissionContext, rawId string) (*dao.Attachment, error) {
	attachmentId, err := uuid.FromString(rawId)
	if err != nil {
		return nil, apierrors.ErrInvalidID
	}

	var attachment dao.Attachment
	if err := s.db.
		Where("id = ?", attachmentId).
		Where("submission_id = ?", submissionContext.Submission.ID).
		First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &attachment, nil
}

// getSubmissionAudit godoc
// @id getSubmissionAudit
// @Summary заявки: журнал аудита
// @Description Возвращает записи журнала аудита заявки, новые первыми.
// @Tags Submissions
// @Produce json
// @Security ApiKeyAuth
// @Param submissionId path string true "ID заявки"
// @Success 200 {array} dto.AuditRecord "Журнал аудита"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Заявка не найдена"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/submissions/{submissionId}/audit/ [get]
func (s *Services) getSubmissionAudit(c echo.Context) error {
	submissionContext := c.(SubmissionContext)

	var records []dao.AuditRecord
	if err := s.db.
		Where("target_id = ?", submissionContext.Submission.ID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, utils.SliceToSlice(&records, func(r *dao.AuditRecord) dto.AuditRecord { return *r.ToDTO() }))
}
