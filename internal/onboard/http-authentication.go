// Аутентификация и авторизация запросов API.  Токены доступа выпускает
// внешний сервис идентификации; здесь проверяется подпись JWT и из клеймов
// извлекаются идентификатор пользователя, организация и роль.
//
// Основные возможности:
//   - Проверка подписи и срока действия JWT (HMAC).
//   - Извлечение user_id, organization_id и role в типизированный контекст.
//   - Middleware проверки роли для административных и проверяющих операций.
package onboard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type AuthContext struct {
	echo.Context
	UserId         uuid.UUID
	OrganizationId uuid.UUID
	Role           types.Role
}

type AuthConfig struct {
	Secret  []byte
	Skipper middleware.Skipper
}

func AuthMiddleware(config AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == "OPTIONS" {
				return c.NoContent(http.StatusOK)
			}

			if config.Skipper != nil && config.Skipper(c) {
				return next(c)
			}

			schema, tokenString, ok := strings.Cut(c.Request().Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(strings.TrimSpace(schema), "Bearer") {
				return EErrorDefined(c, apierrors.ErrAccessTokenRequired)
			}

			keyFunc := func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return config.Secret, nil
			}

			token, err := jwt.Parse(strings.TrimSpace(tokenString), keyFunc)
			if err != nil || !token.Valid {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			userId, err := claimUUID(claims, "user_id")
			if err != nil {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}
			organizationId, err := claimUUID(claims, "organization_id")
			if err != nil {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			role, _ := claims["role"].(string)
			if !types.Role(role).Valid() {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			return next(AuthContext{c, userId, organizationId, types.Role(role)})
		}
	}
}

func claimUUID(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	raw, _ := claims[key].(string)
	return uuid.FromString(raw)
}

// ReviewerPermissionMiddleware пропускает проверяющих и администраторов.
func ReviewerPermissionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role := c.(AuthContext).Role
		if role != types.RoleReviewer && role != types.RoleAdmin {
			return EErrorDefined(c, apierrors.ErrNotEnoughRights)
		}
		return next(c)
	}
}

// AdminPermissionMiddleware пропускает только администраторов закупок.
func AdminPermissionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.(AuthContext).Role != types.RoleAdmin {
			return EErrorDefined(c, apierrors.ErrNotEnoughRights)
		}
		return next(c)
	}
}
