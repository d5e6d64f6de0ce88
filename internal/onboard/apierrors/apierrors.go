// Пакет содержит определения ошибок, используемых в приложении onboard для обработки
// различных ситуаций, возникающих при работе с базой данных, внешними сервисами и
// пользовательским интерфейсом. Каждая ошибка имеет код, статус HTTP и описание, что
// позволяет удобно обрабатывать исключения и предоставлять информативные сообщения
// пользователю.
//
// Основные возможности:
//   - Определение типов ошибок, связанных с авторизацией, определениями форм,
//     черновиками, заявками и вложениями.
//   - Предоставление кодов ошибок, соответствующих кодам HTTP статусов.
//   - Функция для форматирования сообщений об ошибках с использованием аргументов.
package apierrors

import (
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	RuErr      string `json:"ru_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

var (
	// 1*** - auth errors
	ErrAccessTokenRequired = DefinedError{Code: 1001, StatusCode: http.StatusUnauthorized, Err: "access token is required", RuErr: "Требуется токен доступа"}
	ErrTokenInvalid        = DefinedError{Code: 1002, StatusCode: http.StatusUnauthorized, Err: "invalid token", RuErr: "Неверный токен"}
	ErrTokenExpired        = DefinedError{Code: 1003, StatusCode: http.StatusUnauthorized, Err: "token expired", RuErr: "Срок действия токена истек"}
	ErrNotEnoughRights     = DefinedError{Code: 1004, StatusCode: http.StatusForbidden, Err: "not enough rights", RuErr: "У вас недостаточно прав для выполнения этого действия"}
	ErrOrganizationScope   = DefinedError{Code: 1005, StatusCode: http.StatusForbidden, Err: "organization scope mismatch", RuErr: "Действие недоступно для вашей организации"}

	// 2*** - form definition errors
	ErrFormDefinitionNotFound   = DefinedError{Code: 2001, StatusCode: http.StatusNotFound, Err: "form definition not found", RuErr: "Определение формы не найдено"}
	ErrFormDefinitionBadRequest = DefinedError{Code: 2002, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrFormDefinitionValidate   = DefinedError{Code: 2003, StatusCode: http.StatusBadRequest, Err: "validation error", RuErr: "Введены некорректные данные"}
	ErrFormDefinitionPublished  = DefinedError{Code: 2004, StatusCode: http.StatusConflict, Err: "published form definition is immutable", RuErr: "Опубликованная версия формы не может быть изменена"}
	ErrFormDefinitionConflict   = DefinedError{Code: 2005, StatusCode: http.StatusConflict, Err: "form definition version already exists", RuErr: "Версия формы для этой пары субъект/регион уже существует"}
	ErrFormCheckFields          = DefinedError{Code: 2006, StatusCode: http.StatusBadRequest, Err: "fields request error: '%s'", RuErr: "При создании формы задано некорректное поле"}
	ErrFormDefinitionInactive   = DefinedError{Code: 2007, StatusCode: http.StatusBadRequest, Err: "form definition is closed", RuErr: "Форма закрыта"}
	ErrEntityNotFound           = DefinedError{Code: 2008, StatusCode: http.StatusNotFound, Err: "entity not found", RuErr: "Субъект не найден"}
	ErrGeographyNotFound        = DefinedError{Code: 2009, StatusCode: http.StatusNotFound, Err: "geography not found", RuErr: "Регион не найден"}
	ErrFormEndDate              = DefinedError{Code: 2010, StatusCode: http.StatusBadRequest, Err: "the form cannot be created with a closed date", RuErr: "Форма не может быть создана с завершенной датой"}

	// 3*** - draft errors
	ErrDraftNotFound     = DefinedError{Code: 3001, StatusCode: http.StatusNotFound, Err: "draft not found", RuErr: "Черновик не найден"}
	ErrDraftBadRequest   = DefinedError{Code: 3002, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrDraftNotEditable  = DefinedError{Code: 3003, StatusCode: http.StatusConflict, Err: "submission is not editable in its current status", RuErr: "Заявка в текущем статусе недоступна для редактирования"}
	ErrDraftFieldsLocked = DefinedError{Code: 3004, StatusCode: http.StatusForbidden, Err: "field '%s' is not open for supplier changes", RuErr: "Поле '%s' недоступно для изменения поставщиком"}

	// 4*** - submission errors
	ErrSubmissionNotFound        = DefinedError{Code: 4001, StatusCode: http.StatusNotFound, Err: "submission not found", RuErr: "Заявка не найдена"}
	ErrSubmissionBadRequest      = DefinedError{Code: 4002, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrSubmissionBadTransition   = DefinedError{Code: 4003, StatusCode: http.StatusConflict, Err: "transition from '%s' to '%s' is not allowed", RuErr: "Переход заявки из статуса '%s' в '%s' недопустим"}
	ErrSubmissionVersionConflict = DefinedError{Code: 4004, StatusCode: http.StatusConflict, Err: "submission was modified by someone else", RuErr: "Заявка была изменена другим пользователем. Обновите страницу и повторите попытку"}
	ErrSubmissionActiveExists    = DefinedError{Code: 4005, StatusCode: http.StatusConflict, Err: "active submission already exists for this form", RuErr: "По данной форме уже есть активная заявка вашей организации"}
	ErrSubmissionValidation      = DefinedError{Code: 4006, StatusCode: http.StatusBadRequest, Err: "submission data is not valid", RuErr: "Данные заявки заполнены некорректно"}
	ErrReviewCommentNotFound     = DefinedError{Code: 4007, StatusCode: http.StatusNotFound, Err: "review comment not found", RuErr: "Комментарий проверки не найден"}
	ErrReviewCommentEmpty        = DefinedError{Code: 4008, StatusCode: http.StatusBadRequest, Err: "comment is empty", RuErr: "Попытка отправить пустой комментарий"}

	// 5*** - validation and other errors
	ErrGeneric          = DefinedError{Code: 5000, StatusCode: http.StatusBadRequest, Err: "Something went wrong. Please try again later or contact the support team.", RuErr: "Что-то пошло не так. Повторите попытку позже или обратитесь в службу поддержки"}
	ErrLimitTooHigh     = DefinedError{Code: 5001, StatusCode: http.StatusBadRequest, Err: "limit must be less than 100", RuErr: "Запрашиваемый список должен состоять не более чем из 100 элементов"}
	ErrEntityToLarge    = DefinedError{Code: 5002, StatusCode: http.StatusRequestEntityTooLarge, Err: "size exceeds the allowed limit", RuErr: "Размер файла превышает допустимый"}
	ErrFileTooLarge     = DefinedError{Code: 5003, StatusCode: http.StatusRequestEntityTooLarge, Err: "uploaded file exceeds the 50MB size limit", RuErr: "Загруженный файл превышает допустимый размер 50 МБ"}
	ErrInvalidID        = DefinedError{Code: 5004, StatusCode: http.StatusBadRequest, Err: "invalid ID", RuErr: "Указан неверный ID"}
	ErrInvalidStepIndex = DefinedError{Code: 5005, StatusCode: http.StatusBadRequest, Err: "invalid step index", RuErr: "Указан неверный номер шага"}

	// 6*** - attachment errors
	ErrAttachmentNotFound = DefinedError{Code: 6001, StatusCode: http.StatusNotFound, Err: "file not found by the provided UUID", RuErr: "Файл по указанному UUID не найден"}
	ErrAttachmentInUse    = DefinedError{Code: 6002, StatusCode: http.StatusConflict, Err: "cannot delete file: it is linked to a submission", RuErr: "Невозможно удалить файл — он привязан к заявке"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		e.RuErr = fmt.Sprintf(e.RuErr, args...)
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.RuErr = strings.Replace(e.RuErr, "%s", "", -1)
	}
	return e
}
