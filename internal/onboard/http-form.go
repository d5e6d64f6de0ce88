// Обработчики HTTP для определений анкет и справочников.  Предоставляет операции создания, редактирования и публикации определений, upsert требований к документам, справочники юридических форм и географий, а также выдачу скомпилированной схемы анкеты и серверную валидацию шага мастера.
//
// Основные возможности:
//   - CRUD определений анкет с версионированием опубликованных версий.
//   - Публикация определения с проверкой конфликта версии.
//   - Upsert требований к документам по паре (определение, ключ).
//   - Справочники: юридические формы и географии.
//   - Выдача скомпилированной схемы и валидация шага по данным клиента.
package onboard

import (
	"net/http"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/business"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dto"
	formengine "github.com/aisa-it/onboard/onboard.go/internal/onboard/form-engine"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/utils"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type FormDefinitionContext struct {
	AuthContext
	Form dao.FormDefinition
}

func (s *Services) FormDefinitionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		formId, err := uuid.FromString(c.Param("formDefinitionId"))
		if err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidID)
		}

		var form dao.FormDefinition
		if err := s.db.
			Preload("Entity").
			Preload("Geography").
			Preload("DocumentRequirements").
			Where("id = ?", formId).
			First(&form).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return EErrorDefined(c, apierrors.ErrFormDefinitionNotFound)
			}
			return EError(c, err)
		}

		return next(FormDefinitionContext{c.(AuthContext), form})
	}
}

func (s *Services) AddFormDefinitionServices(g *echo.Group) {
	g.GET("forms/", s.getFormDefinitionList)
	g.POST("forms/", s.createFormDefinition, AdminPermissionMiddleware)

	g.GET("entities/", s.getEntityList)
	g.POST("entities/", s.upsertEntity, AdminPermissionMiddleware)
	g.GET("geographies/", s.getGeographyList)
	g.POST("geographies/", s.upsertGeography, AdminPermissionMiddleware)

	formGroup := g.Group("forms/:formDefinitionId", s.FormDefinitionMiddleware)
	formGroup.GET("/", s.getFormDefinition)
	formGroup.PATCH("/", s.updateFormDefinition, AdminPermissionMiddleware)
	formGroup.POST("/publish/", s.publishFormDefinition, AdminPermissionMiddleware)
	formGroup.POST("/requirements/", s.upsertDocumentRequirement, AdminPermissionMiddleware)

	formGroup.GET("/schema/", s.getFormSchema)
	formGroup.POST("/validate-step/", s.validateFormStep)
}

type reqFormDefinition struct {
	Title       string              `json:"title" validate:"required,formTitle"`
	Description string              `json:"description"`
	EndDate     *types.TargetDate   `json:"end_date"`
	EntityId    *string             `json:"entity_id"`
	GeographyId *string             `json:"geography_id"`
	Sections    types.SectionsSlice `json:"sections"`
}

func (req *reqFormDefinition) toDao() (*dao.FormDefinition, error) {
	form := dao.FormDefinition{
		Title:       req.Title,
		Description: req.Description,
		EndDate:     req.EndDate,
		Sections:    req.Sections,
	}
	if req.EntityId != nil {
		id, err := uuid.FromString(*req.EntityId)
		if err != nil {
			return nil, err
		}
		form.EntityId = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.GeographyId != nil {
		id, err := uuid.FromString(*req.GeographyId)
		if err != nil {
			return nil, err
		}
		form.GeographyId = uuid.NullUUID{UUID: id, Valid: true}
	}
	return &form, nil
}

// getFormDefinitionList godoc
// @id getFormDefinitionList
// @Summary анкеты: список определений
// @Description Возвращает постраничный список определений анкет. Поставщикам видны только активные опубликованные версии.
// @Tags FormDefinitions
// @Produce json
// @Security ApiKeyAuth
// @Param offset query int false "Смещение" default(0)
// @Param limit query int false "Количество" default(25)
// @Success 200 {object} dao.PaginationResponse{result=[]dto.FormDefinitionLight} "Список определений"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/ [get]
func (s *Services) getFormDefinitionList(c echo.Context) error {
	offset := 0
	limit := 25
	if err := echo.QueryParamsBinder(c).
		Int("offset", &offset).
		Int("limit", &limit).
		BindError(); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}
	if limit > 100 {
		return EErrorDefined(c, apierrors.ErrLimitTooHigh)
	}

	query := s.db.Order("created_at DESC")
	if c.(AuthContext).Role == types.RoleSupplier {
		query = query.Where("published = true")
	}

	var forms []dao.FormDefinition
	res, err := dao.PaginationRequest(offset, limit, query, &forms)
	if err != nil {
		return EError(c, err)
	}

	res.Result = utils.SliceToSlice(&forms, func(f *dao.FormDefinition) dto.FormDefinitionLight { return *f.ToLightDTO() })
	return c.JSON(http.StatusOK, res)
}

// getFormDefinition godoc
// @id getFormDefinition
// @Summary анкеты: определение анкеты
// @Description Возвращает определение анкеты с секциями и требованиями к документам.
// @Tags FormDefinitions
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Success 200 {object} dto.FormDefinition "Определение анкеты"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/ [get]
func (s *Services) getFormDefinition(c echo.Context) error {
	form := c.(FormDefinitionContext).Form
	return c.JSON(http.StatusOK, form.ToDTO())
}

// createFormDefinition godoc
// @id createFormDefinition
// @Summary анкеты: создать определение
// @Description Создает черновое определение анкеты. Секции проверяются на корректность ключей, типов и правил.
// @Tags FormDefinitions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param form body reqFormDefinition true "Определение анкеты"
// @Success 201 {object} dto.FormDefinition "Созданное определение"
// @Failure 400 {object} apierrors.DefinedError "Некорректное определение"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/ [post]
func (s *Services) createFormDefinition(c echo.Context) error {
	var req reqFormDefinition
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionValidate)
	}

	form, err := req.toDao()
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}

	if err := s.business.CreateFormDefinition(form, c.(AuthContext).UserId); err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusCreated, form.ToDTO())
}

// updateFormDefinition godoc
// @id updateFormDefinition
// @Summary анкеты: изменить определение
// @Description Изменяет определение анкеты. Черновое определение меняется на месте, опубликованное порождает новую неопубликованную версию.
// @Tags FormDefinitions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Param form body reqFormDefinition true "Изменения определения"
// @Success 200 {object} dto.FormDefinition "Актуальное определение"
// @Failure 400 {object} apierrors.DefinedError "Некорректное определение"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/ [patch]
func (s *Services) updateFormDefinition(c echo.Context) error {
	formContext := c.(FormDefinitionContext)

	var req reqFormDefinition
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionValidate)
	}

	changes, err := req.toDao()
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}

	form, err := s.business.UpdateFormDefinition(formContext.Form.ID, formContext.UserId, changes)
	if err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, form.ToDTO())
}

// publishFormDefinition godoc
// @id publishFormDefinition
// @Summary анкеты: опубликовать определение
// @Description Публикует определение анкеты. Опубликованная версия становится неизменной.
// @Tags FormDefinitions
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Success 200 {object} dto.FormDefinition "Опубликованное определение"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Failure 409 {object} apierrors.DefinedError "Определение уже опубликовано или конфликт версии"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/publish/ [post]
func (s *Services) publishFormDefinition(c echo.Context) error {
	formContext := c.(FormDefinitionContext)

	form, err := s.business.PublishFormDefinition(formContext.Form.ID, formContext.UserId)
	if err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, form.ToDTO())
}

type reqDocumentRequirement struct {
	Key          string   `json:"key" validate:"required,fieldKey"`
	Label        string   `json:"label" validate:"required"`
	Required     bool     `json:"required"`
	MaxSizeBytes int64    `json:"max_size_bytes"`
	MimeTypes    []string `json:"mime_types"`
}

// upsertDocumentRequirement godoc
// @id upsertDocumentRequirement
// @Summary анкеты: требование к документу
// @Description Создает или обновляет требование к документу по паре (определение, ключ).
// @Tags FormDefinitions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Param requirement body reqDocumentRequirement true "Требование к документу"
// @Success 200 {object} dto.DocumentRequirement "Актуальное требование"
// @Failure 400 {object} apierrors.DefinedError "Некорректный запрос"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/requirements/ [post]
func (s *Services) upsertDocumentRequirement(c echo.Context) error {
	formContext := c.(FormDefinitionContext)

	var req reqDocumentRequirement
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionValidate)
	}

	requirement := dao.DocumentRequirement{
		FormDefinitionId: formContext.Form.ID,
		Key:              req.Key,
		Label:            req.Label,
		Required:         req.Required,
		MaxSizeBytes:     req.MaxSizeBytes,
		MimeTypes:        req.MimeTypes,
	}
	if err := dao.UpsertDocumentRequirement(s.db, &requirement); err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, requirement.ToDTO())
}

// getFormSchema godoc
// @id getFormSchema
// @Summary анкеты: схема анкеты
// @Description Возвращает скомпилированный дескриптор анкеты: секции в порядке шагов с полями после отбрасывания некорректных.
// @Tags FormDefinitions
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Success 200 {object} map[string]interface{} "Схема анкеты"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Router /api/onboarding/forms/{formDefinitionId}/schema/ [get]
func (s *Services) getFormSchema(c echo.Context) error {
	form := c.(FormDefinitionContext).Form

	def := formengine.NewDefinition(form.Sections)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"form_definition_id": form.ID.String(),
		"version":            form.Version,
		"step_count":         def.StepCount(),
		"sections":           def.Sections,
		"field_keys":         def.FieldKeys(),
	})
}

type reqValidateStep struct {
	Step int            `json:"step"`
	Data types.FormData `json:"data"`
}

// validateFormStep godoc
// @id validateFormStep
// @Summary анкеты: валидация шага
// @Description Проверяет данные одного шага мастера по скомпилированной схеме с учетом видимости полей.
// @Tags FormDefinitions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param formDefinitionId path string true "ID определения анкеты"
// @Param request body reqValidateStep true "Номер шага и данные анкеты"
// @Success 200 {object} formengine.StepResult "Результат валидации шага"
// @Failure 400 {object} apierrors.DefinedError "Неверный номер шага"
// @Failure 404 {object} apierrors.DefinedError "Определение не найдено"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/forms/{formDefinitionId}/validate-step/ [post]
func (s *Services) validateFormStep(c echo.Context) error {
	form := c.(FormDefinitionContext).Form

	var req reqValidateStep
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}

	schema := business.CompileSchema(&form)
	result, err := schema.ValidateStep(c.Request().Context(), req.Step, req.Data)
	if err != nil {
		if _, ok := schema.Definition.Step(req.Step); !ok {
			return EErrorDefined(c, apierrors.ErrInvalidStepIndex)
		}
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

type reqEntity struct {
	Key  string `json:"key" validate:"required,fieldKey"`
	Name string `json:"name" validate:"required"`
}

// getEntityList godoc
// @id getEntityList
// @Summary справочники: юридические формы
// @Description Возвращает справочник юридических форм поставщиков.
// @Tags Dictionaries
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} dto.EntityLight "Справочник"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/entities/ [get]
func (s *Services) getEntityList(c echo.Context) error {
	var entities []dao.Entity
	if err := s.db.Order("key").Find(&entities).Error; err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, utils.SliceToSlice(&entities, func(e *dao.Entity) dto.EntityLight { return *e.ToLightDTO() }))
}

// upsertEntity godoc
// @id upsertEntity
// @Summary справочники: юридическая форма
// @Description Создает или обновляет запись справочника юридических форм по ключу.
// @Tags Dictionaries
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param entity body reqEntity true "Запись справочника"
// @Success 200 {object} dto.EntityLight "Актуальная запись"
// @Failure 400 {object} apierrors.DefinedError "Некорректный запрос"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/entities/ [post]
func (s *Services) upsertEntity(c echo.Context) error {
	var req reqEntity
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionValidate)
	}

	entity := dao.Entity{ID: dao.GenUUID(), Key: req.Key, Name: req.Name}
	if err := dao.UpsertEntity(s.db, &entity); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, entity.ToLightDTO())
}

type reqGeography struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// getGeographyList godoc
// @id getGeographyList
// @Summary справочники: географии
// @Description Возвращает справочник регионов присутствия.
// @Tags Dictionaries
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} dto.GeographyLight "Справочник"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/geographies/ [get]
func (s *Services) getGeographyList(c echo.Context) error {
	var geographies []dao.Geography
	if err := s.db.Order("code").Find(&geographies).Error; err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, utils.SliceToSlice(&geographies, func(g *dao.Geography) dto.GeographyLight { return *g.ToLightDTO() }))
}

// upsertGeography godoc
// @id upsertGeography
// @Summary справочники: география
// @Description Создает или обновляет запись справочника регионов по коду.
// @Tags Dictionaries
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param geography body reqGeography true "Запись справочника"
// @Success 200 {object} dto.GeographyLight "Актуальная запись"
// @Failure 400 {object} apierrors.DefinedError "Некорректный запрос"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/onboarding/geographies/ [post]
func (s *Services) upsertGeography(c echo.Context) error {
	var req reqGeography
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionBadRequest)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormDefinitionValidate)
	}

	geography := dao.Geography{ID: dao.GenUUID(), Code: req.Code, Name: req.Name}
	if err := dao.UpsertGeography(s.db, &geography); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, geography.ToLightDTO())
}
