// Пакет business содержит бизнес-логику онбординга поставщиков поверх DAO: отправку заявок на проверку, переходы статусов через версионный протокол, редактирование по списку открытых замечаний и публикацию определений анкет.
package business

import (
	tracker "github.com/aisa-it/onboard/onboard.go/internal/onboard/audit-tracker"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/notifications"
	"gorm.io/gorm"
)

type Business struct {
	db *gorm.DB

	tracker      *tracker.AuditTracker
	emailService *notifications.EmailService
}

func NewBL(db *gorm.DB, tracker *tracker.AuditTracker, emailService *notifications.EmailService) *Business {
	return &Business{
		db:           db,
		tracker:      tracker,
		emailService: emailService,
	}
}
