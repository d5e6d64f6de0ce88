// Управление конфигурацией приложения из переменных окружения.
// Содержит структуру Config для хранения параметров и функцию ReadConfig для их
// загрузки из переменных окружения.
//
// Основные возможности:
//   - Загрузка конфигурации из переменных окружения с использованием тегов struct.
//   - Валидация обязательных переменных.
//   - Преобразование типов данных из переменных окружения (string, int, bool).
//   - Маскировка секретных значений в логах.
//   - Предоставление значений по умолчанию для некоторых параметров.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
)

type Config struct {
	SecretKey string `env:"SECRET_KEY"`

	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`

	DatabaseDSN string `env:"DATABASE_URL"`

	EmailDisabled bool   `env:"EMAIL_DISABLED"`
	EmailHost     string `env:"EMAIL_HOST"`
	EmailUser     string `env:"EMAIL_HOST_USER"`
	EmailPassword string `env:"EMAIL_HOST_PASSWORD"`
	EmailPort     int    `env:"EMAIL_PORT"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailWorkers  int    `env:"EMAIL_WORKERS"`
	// Почтовый ящик команды закупок для уведомлений о новых заявках
	EmailReviewInbox string `env:"EMAIL_REVIEW_INBOX"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	// Черновики старше этого количества дней удаляются периодической задачей.
	DraftRetentionDays int `env:"DRAFT_RETENTION_DAYS"`

	ExternalValidatorURL string `env:"EXTERNAL_VALIDATOR_URL"`
	// Имена проверок через запятую, делегируемых внешнему сервису валидации.
	ExternalValidators string `env:"EXTERNAL_VALIDATORS"`

	SwaggerEnable bool `env:"SWAGGER"`

	ServerPort int `env:"SERVER_PORT"`
}

// ReadConfig загружает конфигурацию приложения из переменных окружения и выполняет
// валидацию. Если WEB_URL не задан или некорректен, приложение завершает работу
// с ошибкой. Значения по умолчанию подставляются для EmailWorkers и
// DraftRetentionDays.
func ReadConfig() *Config {
	config := &Config{}

	envConfig("env", config)

	// Check required envs
	if config.WebURLRaw == "" {
		slog.Error("WEB_URL is required")
		os.Exit(1)
	} else {
		var err error
		config.WebURL, err = url.Parse(config.WebURLRaw)
		if err != nil {
			slog.Error("WEB_URL incorrect", "err", err)
			os.Exit(1)
		}
	}

	if config.EmailWorkers <= 0 {
		config.EmailWorkers = 5
	}

	if config.DraftRetentionDays <= 0 {
		config.DraftRetentionDays = 90
	}

	if config.ServerPort <= 0 {
		config.ServerPort = 8080
	}

	return config
}

// Присваивает полям в переданной структуре значения переменных. Название переменной
// для каждого поля лежит в теге этого поля.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if !Exist(fEnvTag) {
			continue
		}

		logValue := GetEnv(fEnvTag)
		if logValue == "" {
			continue
		}

		// Secure passwords in log
		if strings.Contains(strings.ToLower(fName), "pass") || strings.Contains(strings.ToLower(fName), "secret") || strings.Contains(strings.ToLower(fName), "token") {
			pass := strings.Split(GetEnv(fEnvTag), "")
			logValue = pass[0]
			for i := 1; i < len(pass)-1; i++ {
				logValue += "*"
			}
			logValue += pass[len(pass)-1]
		}
		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", logValue),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(GetEnv(fEnvTag))
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}
