// Кастомный PostgreSQL диалектор для GORM, который использует нативный тип uuid
// вместо bytea для uuid.UUID полей.
package utils

import (
	"reflect"

	"github.com/gofrs/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/migrator"
	"gorm.io/gorm/schema"
)

// PostgresUUIDDialector оборачивает стандартный postgres.Dialector и переопределяет
// DataTypeOf для UUID типов.
type PostgresUUIDDialector struct {
	*postgres.Dialector
}

// NewPostgresUUIDDialector создает новый диалектор с поддержкой нативного uuid типа PostgreSQL.
func NewPostgresUUIDDialector(config postgres.Config) gorm.Dialector {
	return &PostgresUUIDDialector{
		Dialector: postgres.New(config).(*postgres.Dialector),
	}
}

// Migrator возвращает кастомный migrator с правильной обработкой UUID типов.
func (d *PostgresUUIDDialector) Migrator(db *gorm.DB) gorm.Migrator {
	return &PostgresUUIDMigrator{
		Migrator: postgres.Migrator{
			Migrator: migrator.Migrator{
				Config: migrator.Config{
					DB:                          db,
					Dialector:                   d,
					CreateIndexAfterCreateTable: true,
				},
			},
		},
	}
}

// PostgresUUIDMigrator кастомный migrator который правильно обрабатывает UUID типы.
type PostgresUUIDMigrator struct {
	postgres.Migrator
}

// DataTypeOf переопределяет метод для возврата правильного типа данных для UUID полей.
func (m *PostgresUUIDMigrator) DataTypeOf(field *schema.Field) string {
	fieldType := field.FieldType
	if fieldType.Kind() == reflect.Pointer {
		fieldType = fieldType.Elem()
	}

	// Если это uuid.UUID или uuid.NullUUID - используем нативный uuid тип PostgreSQL
	if fieldType == reflect.TypeOf(uuid.UUID{}) || fieldType == reflect.TypeOf(uuid.NullUUID{}) {
		return "uuid"
	}

	return m.Migrator.DataTypeOf(field)
}
