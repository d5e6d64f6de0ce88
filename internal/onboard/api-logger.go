// Обработка и логирование ошибок API.  Переводит внутренние ошибки в ответы
// HTTP с кодами из таксономии apierrors, пишет диагностику через slog с
// указанием места вызова и идентификатора пользователя.
//
// Основные возможности:
//   - Перевод определенных ошибок (DefinedError) в JSON-ответы с en/ru текстом.
//   - Перевод конфликта версий заявки в 409 с текущей и ожидаемой версиями.
//   - Логирование непредвиденных ошибок с файлом и строкой вызова.
package onboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Code       int    `json:"code,omitempty"`
	Error      string `json:"error"`
	RuError    string `json:"ru_error,omitempty"`
	StatusCode int    `json:"status_code"`
}

type versionConflictResponse struct {
	errorResponse
	CurrentVersion  int `json:"current_version"`
	ExpectedVersion int `json:"expected_version"`
}

// EError переводит произвольную ошибку в ответ API. Определенные ошибки и
// конфликты версий отдаются со своим статусом, остальное логируется и
// превращается в 500.
func EError(c echo.Context, err error) error {
	var definedError apierrors.DefinedError
	if errors.As(err, &definedError) {
		return EErrorDefined(c, definedError)
	}

	var conflict dao.VersionConflictError
	if errors.As(err, &conflict) {
		defined := apierrors.ErrSubmissionVersionConflict
		return c.JSON(defined.StatusCode, versionConflictResponse{
			errorResponse: errorResponse{
				Code:       defined.Code,
				Error:      defined.Err,
				RuError:    defined.RuErr,
				StatusCode: defined.StatusCode,
			},
			CurrentVersion:  conflict.CurrentVersion,
			ExpectedVersion: conflict.ExpectedVersion,
		})
	}

	slog.Error("Endpoint internal error",
		getCallerFile(),
		"url", c.Request().URL,
		userAttr(c),
		"err", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Error:      "internal error",
		RuError:    "Внутренняя ошибка сервера",
		StatusCode: http.StatusInternalServerError,
	})
}

// EErrorDefined отвечает определенной ошибкой taxonomy apierrors.
// Неизвестный статус приводится к 400.
func EErrorDefined(c echo.Context, definedError apierrors.DefinedError) error {
	status := definedError.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
	}
	return c.JSON(status, errorResponse{
		Code:       definedError.Code,
		Error:      definedError.Err,
		RuError:    definedError.RuErr,
		StatusCode: status,
	})
}

// EErrorMsgStatus отвечает произвольным сообщением с заданным статусом.
func EErrorMsgStatus(c echo.Context, message any, status int) error {
	var msg string
	switch m := message.(type) {
	case nil:
		msg = http.StatusText(status)
	case string:
		msg = m
	case error:
		msg = m.Error()
	default:
		msg = fmt.Sprint(m)
	}
	return c.JSON(status, errorResponse{
		Error:      msg,
		StatusCode: status,
	})
}

// EErrorMsg отвечает произвольным сообщением со статусом 400.
func EErrorMsg(c echo.Context, message any) error {
	return EErrorMsgStatus(c, message, http.StatusBadRequest)
}

func userAttr(c echo.Context) slog.Attr {
	if authContext, ok := c.(AuthContext); ok {
		return slog.String("user_id", authContext.UserId.String())
	}
	return slog.Attr{}
}

// getCallerFile Возвращает имя файла и номер строки вызывающего кода.
func getCallerFile() slog.Attr {
	_, path, no, ok := runtime.Caller(2)
	if !ok {
		return slog.Attr{}
	}
	_, file := filepath.Split(path)
	return slog.String("caller", fmt.Sprintf("%s:%d", file, no))
}
