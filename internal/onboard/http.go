// Пакет onboard предоставляет HTTP API сервиса онбординга поставщиков. Он включает в себя управление определениями анкет, черновиками заявок, жизненным циклом заявок и замечаниями проверки, а также загрузку подтверждающих документов.
//
// Основные возможности:
//   - Административные операции с определениями анкет и справочниками.
//   - Сохранение и возобновление черновиков заявок.
//   - Серверная валидация шагов мастера и всей анкеты.
//   - Процесс рассмотрения заявок с замечаниями и статусными переходами.
//   - Загрузка вложений в файловое хранилище.
package onboard

// @title Supplier Onboarding API
// @version 1.0
// @description API сервиса онбординга поставщиков: динамические анкеты, черновики, заявки.
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @BasePath /
// @query.collection.format multi
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tracker "github.com/aisa-it/onboard/onboard.go/internal/onboard/audit-tracker"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/business"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/cronmanager"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	filestorage "github.com/aisa-it/onboard/onboard.go/internal/onboard/file-storage"
	formengine "github.com/aisa-it/onboard/onboard.go/internal/onboard/form-engine"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/notifications"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"gorm.io/gorm"
)

type Services struct {
	db           *gorm.DB
	tracker      *tracker.AuditTracker
	storage      filestorage.FileStorage
	emailService *notifications.EmailService

	business *business.Business
}

var cfg *config.Config
var appVersion string

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "Onboard")
		return next(c)
	}
}

func Server(db *gorm.DB, c *config.Config, version string) {
	cfg = c
	appVersion = version

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	var storage filestorage.FileStorage
	var err error
	if cfg.AWSEndpoint != "" {
		storage, err = filestorage.NewMinioStorage(cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, false, cfg.AWSBucketName)
	} else {
		storage, err = filestorage.NewLocalStorage("attachments")
	}
	if err != nil {
		slog.Error("Fail init file storage", "err", err)
		os.Exit(1)
	}

	dao.FileStorage = storage

	if cfg.ExternalValidatorURL != "" {
		for _, name := range strings.Split(cfg.ExternalValidators, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			formengine.DefaultRegistry.Register(name, formengine.NewRemoteValidator(cfg.ExternalValidatorURL, name))
			slog.Info("Registered remote validator", "name", name)
		}
	}

	tr := tracker.NewAuditTracker(db)
	es := notifications.NewEmailService(cfg)
	bl := business.NewBL(db, tr, es)

	jobRegistry := cronmanager.DefaultRegistry(db, cfg)

	cronManager := cronmanager.NewCronManager(jobRegistry)
	if err := cronManager.LoadJobs(); err != nil {
		slog.Error("Failed to load cron jobs", "err", err)
		os.Exit(1)
	}

	s := &Services{
		db:           db,
		tracker:      tr,
		storage:      storage,
		emailService: es,
		business:     bl,
	}

	cronManager.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
		cronManager.Stop()
		es.Stop()
		tr.Close()
		os.Exit(0)
	}()

	// Global middlewares
	e.Use(ServerHeader)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "5M",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/onboarding/submissions/:submissionId/attachments/"
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     9,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "swagger")
		},
	}))
	e.Use(echoprometheus.NewMiddleware("onboard"))
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "swagger")
		},
	}))

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")

	authGroup := apiGroup.Group("onboarding/",
		AuthMiddleware(AuthConfig{
			Secret: []byte(cfg.SecretKey),
		}),
	)

	s.AddFormDefinitionServices(authGroup)
	s.AddDraftServices(authGroup)
	s.AddSubmissionServices(authGroup)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version": version,
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if cfg.SwaggerEnable {
		apiGroup.GET("swagger/*", echoSwagger.WrapHandler)
	}

	// Prometheus metrics
	go func() {
		bootTimeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onboard",
			Name:      "boot_time",
			Help:      "Server startup time",
		})
		bootTimeGauge.Set(float64(time.Now().UnixMilli()))

		if err := prometheus.Register(bootTimeGauge); err != nil {
			slog.Error("Register boot time gauge", "err", err)
			os.Exit(1)
		}

		metrics := echo.New()
		metrics.HideBanner = true
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":2112"); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server fail", "err", err)
		}
	}()

	if err := e.Start(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil {
		slog.Error("Server fail", "err", err)
	}
}
