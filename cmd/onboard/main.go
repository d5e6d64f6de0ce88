// Основной пакет сервиса онбординга поставщиков. Отвечает за чтение конфигурации, инициализацию базы данных, миграцию моделей и запуск HTTP-сервера.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/gormlogger"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var version string = "DEV"

var models = []any{
	&dao.Entity{},
	&dao.Geography{},
	&dao.FormDefinition{},
	&dao.DocumentRequirement{},
	&dao.Submission{},
	&dao.ReviewComment{},
	&dao.Attachment{},
	&dao.AuditRecord{},
}

// Пример запуска: go run main.go --noMigration --trace
func main() {
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	cfg := config.ReadConfig()
	dao.Config = cfg

	if *trace {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	slog.Info("Onboard start.")

	db, err := gorm.Open(utils.NewPostgresUUIDDialector(postgres.Config{
		DSN:                  cfg.DatabaseDSN,
		PreferSimpleProtocol: false, // disables implicit prepared statement usage
	}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.NewGormLogger(slog.Default(), time.Second*4, *paramQueries),
	})
	if err != nil {
		slog.Error("Fail init DB connection", "err", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Fail set settings to conn pool", "err", err)
		os.Exit(1)
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(time.Minute * 15)

	if !*noMigration {
		slog.Info("Migrate models", "count", len(models))
		if err := db.AutoMigrate(models...); err != nil {
			slog.Error("Migration error", "err", err)
			os.Exit(1)
		}
	}

	onboard.Server(db, cfg, version)
}
