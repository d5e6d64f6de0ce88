// Пакет formengine реализует движок динамических анкет: компиляцию определения в типизированные дескрипторы полей, разрешение условной видимости по графу зависимостей, структурную и внешнюю валидацию шагов мастера и состояние заполнения.
//
// Основные возможности:
//   - Построение упорядоченного дескриптора анкеты из секций определения (стабильная сортировка, отбрасывание некорректных полей).
//   - Вычисление видимости полей и секций с мемоизацией и защитой от циклов.
//   - Компиляция схемы валидации с адресуемыми валидаторами отдельных полей.
//   - Валидация шага или всей анкеты с учетом видимости и внешних валидаторов.
//   - Снимки состояния мастера (затронутые поля, пройденные шаги) с детерминированной сериализацией.
package formengine

import (
	"log/slog"
	"sort"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
)

// FieldRef - поле вместе с позицией его секции в порядке шагов мастера.
type FieldRef struct {
	Field        types.FormField
	SectionIndex int
	SectionKey   string
}

// Definition - скомпилированный дескриптор анкеты: секции в порядке шагов,
// поля адресуемы по ключу. Дескриптор неизменен после построения.
type Definition struct {
	Sections []types.FormSection

	fields map[string]*FieldRef
	order  []string
}

// NewDefinition строит дескриптор из секций определения анкеты.
// Секции и поля упорядочиваются стабильной сортировкой по order; поля с
// пустым ключом, неизвестным типом или повторяющимся ключом отбрасываются
// с диагностикой, не прерывая построение.
func NewDefinition(sections types.SectionsSlice) *Definition {
	def := Definition{
		Sections: make([]types.FormSection, len(sections)),
		fields:   make(map[string]*FieldRef),
	}
	copy(def.Sections, sections)

	sort.SliceStable(def.Sections, func(i, j int) bool {
		return def.Sections[i].Order < def.Sections[j].Order
	})

	for si := range def.Sections {
		section := &def.Sections[si]

		fields := make([]types.FormField, len(section.Fields))
		copy(fields, section.Fields)
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].Order < fields[j].Order
		})

		kept := fields[:0]
		for _, field := range fields {
			if field.Key == "" {
				slog.Warn("Skip form field without key", "section", section.Key)
				continue
			}
			if !field.Type.Valid() {
				slog.Warn("Skip form field with unknown type", "key", field.Key, "type", field.Type)
				continue
			}
			if _, ok := def.fields[field.Key]; ok {
				// First declaration wins
				slog.Warn("Skip duplicated form field key", "key", field.Key, "section", section.Key)
				continue
			}
			kept = append(kept, field)
			def.fields[field.Key] = &FieldRef{
				Field:        field,
				SectionIndex: si,
				SectionKey:   section.Key,
			}
			def.order = append(def.order, field.Key)
		}
		section.Fields = kept
	}

	return &def
}

// Field возвращает дескриптор поля по ключу.
func (d *Definition) Field(key string) (*FieldRef, bool) {
	ref, ok := d.fields[key]
	return ref, ok
}

// FieldKeys возвращает ключи всех полей в порядке секций.
func (d *Definition) FieldKeys() []string {
	return d.order
}

// StepCount возвращает число шагов мастера.
func (d *Definition) StepCount() int {
	return len(d.Sections)
}

// Step возвращает секцию шага stepIndex.
func (d *Definition) Step(stepIndex int) (*types.FormSection, bool) {
	if stepIndex < 0 || stepIndex >= len(d.Sections) {
		return nil, false
	}
	return &d.Sections[stepIndex], true
}
