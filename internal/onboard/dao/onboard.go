// DAO (Data Access Object) - предоставляет интерфейс для взаимодействия с базой данных.  Содержит функции для работы с сущностями онбординга поставщиков: определениями анкет, заявками, черновиками, замечаниями проверки и вложениями.  Обеспечивает абстракцию от конкретной реализации базы данных и упрощает доступ к данным приложения.
//
// Основные возможности:
//   - Работа с определениями анкет (создание, публикация, версионирование).
//   - Работа с заявками поставщиков (создание, версионное обновление, переходы статусов).
//   - Работа с черновиками (сохранение, загрузка, список, удаление).
//   - Доступ к файлам вложений (сохранение, удаление, получение).
//   - Генерация UUID и слагов.
//   - Пагинация списочных запросов.
package dao

import (
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	filestorage "github.com/aisa-it/onboard/onboard.go/internal/onboard/file-storage"
	"github.com/gofrs/uuid"
	"github.com/sethvargo/go-password/password"
	"gorm.io/gorm"
)

// GenUUID генерирует уникальный идентификатор в формате UUID. Не принимает параметров и возвращает UUID.
//
// Возвращает:
//   - uuid.UUID: UUID, представляющий собой уникальный идентификатор.
func GenUUID() uuid.UUID {
	u2, _ := uuid.NewV4()
	return u2
}

// GenSlug генерирует короткий случайный слаг для публичных ссылок на анкеты.
func GenSlug() string {
	return password.MustGenerate(6, 3, 0, false, true)
}

var Config *config.Config
var FileStorage filestorage.FileStorage

type PaginationResponse struct {
	Count  int64 `json:"count"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Result any   `json:"result"`
}

func PaginationRequest(offset int, limit int, query *gorm.DB, target any) (res PaginationResponse, err error) {
	// Count query
	if err := query.Session(&gorm.Session{}).Model(target).Count(&res.Count).Error; err != nil {
		return res, err
	}

	// Data query
	if err := query.Offset(offset).Limit(limit).Find(target).Error; err != nil {
		return res, err
	}

	res.Result = target
	res.Limit = limit
	res.Offset = offset

	return res, nil
}
