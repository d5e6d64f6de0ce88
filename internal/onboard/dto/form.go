// Содержит структуры данных (DTO) для представления справочников и определений анкет поставщиков.  Используется для сериализации/десериализации данных и передачи между слоями приложения.
//
// Основные возможности:
//   - Представление определения анкеты, включая секции, дату окончания и состояние публикации.
//   - Представление справочников юридических форм и географий.
//   - Представление требований к документам анкеты.
package dto

import (
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
)

type EntityLight struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type GeographyLight struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type FormDefinitionLight struct {
	ID          string            `json:"id"`
	Slug        string            `json:"slug"`
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description"`
	Version     int               `json:"version"`
	Published   bool              `json:"published"`
	EndDate     *types.TargetDate `json:"end_date" extensions:"x-nullable" swaggertype:"string"`
	Active      bool              `json:"active"`
	EntityId    *string           `json:"entity_id,omitempty" extensions:"x-nullable"`
	GeographyId *string           `json:"geography_id,omitempty" extensions:"x-nullable"`
	Url         types.JsonURL     `json:"url,omitempty"`
}

type FormDefinition struct {
	FormDefinitionLight
	Sections             types.SectionsSlice    `json:"sections"`
	Entity               *EntityLight           `json:"entity_detail,omitempty" extensions:"x-nullable"`
	Geography            *GeographyLight        `json:"geography_detail,omitempty" extensions:"x-nullable"`
	DocumentRequirements []*DocumentRequirement `json:"document_requirements,omitempty"`
}

type DocumentRequirement struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Required     bool      `json:"required"`
	MaxSizeBytes int64     `json:"max_size_bytes"`
	MimeTypes    []string  `json:"mime_types"`
	UpdatedAt    time.Time `json:"updated_at"`
}
