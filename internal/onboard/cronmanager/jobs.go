// Периодические задачи сервиса: очистка устаревших черновиков и закрытие анкет с истекшей датой окончания.
package cronmanager

import (
	"log/slog"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"gorm.io/gorm"
)

// DefaultRegistry собирает стандартный набор задач сервиса.
func DefaultRegistry(db *gorm.DB, cfg *config.Config) JobRegistry {
	return JobRegistry{
		"purge_stale_drafts": {
			Schedule: "0 3 * * *",
			Func:     purgeStaleDrafts(db, cfg),
		},
		"close_expired_forms": {
			Schedule: "10 0 * * *",
			Func:     closeExpiredForms(db),
		},
	}
}

func closeExpiredForms(db *gorm.DB) CronJobFunc {
	return func() {
		closed, err := dao.CloseExpiredFormDefinitions(db)
		if err != nil {
			slog.Error("Close expired forms", "err", err)
			return
		}
		if closed > 0 {
			slog.Info("Closed expired forms", "count", closed)
		}
	}
}

func purgeStaleDrafts(db *gorm.DB, cfg *config.Config) CronJobFunc {
	return func() {
		retention := time.Duration(cfg.DraftRetentionDays) * 24 * time.Hour
		purged, err := dao.PurgeStaleDrafts(db, retention)
		if err != nil {
			slog.Error("Purge stale drafts", "err", err)
			return
		}
		if purged > 0 {
			slog.Info("Purged stale drafts", "count", purged)
		}
	}
}
