// Компиляция определения анкеты в схему валидации.  Каждое поле получает собственный адресуемый валидатор, собранный из базовой проверки типа и слоя ограничений (границы чисел, длины строк, регулярные выражения, принадлежность вариантам).  Некорректная конфигурация отдельного поля пропускается с диагностикой и не ломает остальную схему.
package formengine

import (
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{4,19}$`)

// DocumentRef - структурная форма значения поля-вложения в данных анкеты.
type DocumentRef struct {
	FileId          string  `json:"fileId"`
	FileName        string  `json:"fileName"`
	MimeType        string  `json:"mimeType,omitempty"`
	FileSize        float64 `json:"fileSize,omitempty"`
	DocumentTypeKey string  `json:"documentTypeKey,omitempty"`
	UploadedAt      string  `json:"uploadedAt,omitempty"`
}

// FieldValidator - структурный валидатор одного поля.
type FieldValidator struct {
	Field types.FormField

	pattern *regexp.Regexp
	options map[string]struct{}
}

// Schema - скомпилированная схема валидации анкеты.
// FileExists - коллаборатор файлового хранилища; nil отключает проверку существования файла.
type Schema struct {
	Definition *Definition

	validators map[string]*FieldValidator

	FileExists func(fileId string) bool
	External   *Registry
}

// Compile собирает схему валидации по дескриптору анкеты.
// Компиляция не завершается ошибкой из-за одного некорректного поля:
// несобираемый regex пропускается с диагностикой.
func Compile(def *Definition) *Schema {
	schema := Schema{
		Definition: def,
		validators: make(map[string]*FieldValidator, len(def.order)),
		External:   DefaultRegistry,
	}

	for _, key := range def.order {
		ref, _ := def.Field(key)
		validator := FieldValidator{Field: ref.Field}

		if rule := ref.Field.Validate; rule != nil && rule.Pattern != "" {
			pattern, err := regexp.Compile(rule.Pattern)
			if err != nil {
				slog.Warn("Skip malformed field pattern", "key", key, "pattern", rule.Pattern, "err", err)
			} else {
				validator.pattern = pattern
			}
		}

		if len(ref.Field.Options) > 0 {
			validator.options = make(map[string]struct{}, len(ref.Field.Options))
			for _, option := range ref.Field.Options {
				validator.options[option] = struct{}{}
			}
		}

		schema.validators[key] = &validator
	}

	return &schema
}

// FieldValidator возвращает адресуемый валидатор поля по ключу.
func (s *Schema) FieldValidator(key string) (*FieldValidator, bool) {
	v, ok := s.validators[key]
	return v, ok
}

// Validate выполняет структурную проверку значения поля.
// Возвращает текст ошибки или пустую строку, если значение корректно.
// fileExists может быть nil.
func (v *FieldValidator) Validate(value interface{}, fileExists func(string) bool) string {
	if isEmptyValue(value) {
		if v.Field.Required {
			return v.message("field is required")
		}
		return ""
	}

	switch v.Field.Type {
	case types.FieldInput, types.FieldTextarea:
		return v.validateText(value)
	case types.FieldNumeric:
		return v.validateNumber(value)
	case types.FieldSelect:
		return v.validateOption(value)
	case types.FieldMultiselect:
		return v.validateMultiselect(value)
	case types.FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return v.message("expected a boolean value")
		}
	case types.FieldDate:
		return v.validateDate(value)
	case types.FieldEmail:
		str, ok := value.(string)
		if !ok {
			return v.message("expected a string value")
		}
		if _, err := mail.ParseAddress(str); err != nil {
			return v.message("invalid email address")
		}
	case types.FieldPhone:
		str, ok := value.(string)
		if !ok {
			return v.message("expected a string value")
		}
		if !phoneRegex.MatchString(str) {
			return v.message("invalid phone number")
		}
	case types.FieldAttachment:
		return v.validateDocument(value, fileExists)
	}
	return ""
}

func (v *FieldValidator) message(fallback string) string {
	if v.Field.Validate != nil && v.Field.Validate.CustomMessage != "" {
		return v.Field.Validate.CustomMessage
	}
	return fallback
}

func (v *FieldValidator) validateText(value interface{}) string {
	str, ok := value.(string)
	if !ok {
		return v.message("expected a string value")
	}

	if rule := v.Field.Validate; rule != nil {
		if rule.MinLength != nil && len([]rune(str)) < *rule.MinLength {
			return v.message(fmt.Sprintf("must be at least %d characters", *rule.MinLength))
		}
		if rule.MaxLength != nil && len([]rune(str)) > *rule.MaxLength {
			return v.message(fmt.Sprintf("must be at most %d characters", *rule.MaxLength))
		}
	}
	if v.pattern != nil && !v.pattern.MatchString(str) {
		return v.message("value does not match the required format")
	}
	return ""
}

func (v *FieldValidator) validateNumber(value interface{}) string {
	num, ok := toNumber(value)
	if !ok {
		return v.message("expected a numeric value")
	}
	if rule := v.Field.Validate; rule != nil {
		if rule.Min != nil && num < *rule.Min {
			return v.message(fmt.Sprintf("must be at least %v", *rule.Min))
		}
		if rule.Max != nil && num > *rule.Max {
			return v.message(fmt.Sprintf("must be at most %v", *rule.Max))
		}
	}
	return ""
}

func (v *FieldValidator) validateOption(value interface{}) string {
	str, ok := value.(string)
	if !ok {
		return v.message("expected a string value")
	}
	if v.options != nil {
		if _, ok := v.options[str]; !ok {
			return v.message(fmt.Sprintf("'%s' is not one of the allowed options", str))
		}
	}
	return ""
}

func (v *FieldValidator) validateMultiselect(value interface{}) string {
	var items []string
	switch raw := value.(type) {
	case []string:
		items = raw
	case []interface{}:
		for _, item := range raw {
			str, ok := item.(string)
			if !ok {
				return v.message("expected a list of strings")
			}
			items = append(items, str)
		}
	default:
		return v.message("expected a list of strings")
	}

	if v.options != nil {
		for _, item := range items {
			if _, ok := v.options[item]; !ok {
				return v.message(fmt.Sprintf("'%s' is not one of the allowed options", item))
			}
		}
	}
	return ""
}

func (v *FieldValidator) validateDate(value interface{}) string {
	str, ok := value.(string)
	if !ok {
		return v.message("expected a date string")
	}
	if _, err := time.Parse("2006-01-02", str); err != nil {
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			return v.message("invalid date")
		}
	}
	return ""
}

func (v *FieldValidator) validateDocument(value interface{}, fileExists func(string) bool) string {
	ref, ok := value.(map[string]interface{})
	if !ok {
		return v.message("expected a document reference")
	}

	fileId, ok := ref["fileId"].(string)
	if !ok || fileId == "" {
		return v.message("document reference is missing fileId")
	}
	fileName, ok := ref["fileName"].(string)
	if !ok || fileName == "" {
		return v.message("document reference is missing fileName")
	}
	if mimeType, present := ref["mimeType"]; present {
		if _, ok := mimeType.(string); !ok {
			return v.message("document mimeType must be a string")
		}
	}
	if fileSize, present := ref["fileSize"]; present {
		if _, ok := toNumber(fileSize); !ok {
			return v.message("document fileSize must be a number")
		}
	}
	if uploadedAt, present := ref["uploadedAt"]; present {
		str, ok := uploadedAt.(string)
		if !ok {
			return v.message("document uploadedAt must be a date string")
		}
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			return v.message("document uploadedAt must be a date string")
		}
	}

	if fileExists != nil && !fileExists(fileId) {
		return v.message("referenced file does not exist")
	}
	return ""
}
