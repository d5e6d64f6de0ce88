// Содержит определения типов данных анкеты поставщика, хранящихся в jsonb-колонках.
// Включает типы секций и полей формы, правила видимости, правила валидации и данные
// заполненной анкеты. Предоставляет методы для сериализации и десериализации в
// различных форматах и для различных целей.
//
// Основные возможности:
//   - Описание секций и полей формы (ключ, тип, порядок, ограничения).
//   - Условная видимость полей и секций (режим all/any, набор правил).
//   - Хранение данных анкеты как непрозрачного JSON-объекта.
//   - Работа с датами закрытия формы.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FieldType закрытый набор поддерживаемых типов полей формы.
type FieldType string

const (
	FieldInput       FieldType = "input"
	FieldTextarea    FieldType = "textarea"
	FieldNumeric     FieldType = "numeric"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
	FieldCheckbox    FieldType = "checkbox"
	FieldDate        FieldType = "date"
	FieldAttachment  FieldType = "attachment"
	FieldEmail       FieldType = "email"
	FieldPhone       FieldType = "phone"
)

var fieldTypes = map[FieldType]bool{
	FieldInput:       true,
	FieldTextarea:    true,
	FieldNumeric:     true,
	FieldSelect:      true,
	FieldMultiselect: true,
	FieldCheckbox:    true,
	FieldDate:        true,
	FieldAttachment:  true,
	FieldEmail:       true,
	FieldPhone:       true,
}

func (t FieldType) Valid() bool {
	return fieldTypes[t]
}

// VisibilityCondition условие в правиле видимости.
type VisibilityCondition string

const (
	CondEquals      VisibilityCondition = "equals"
	CondNotEquals   VisibilityCondition = "not_equals"
	CondContains    VisibilityCondition = "contains"
	CondGreaterThan VisibilityCondition = "greater_than"
	CondLessThan    VisibilityCondition = "less_than"
	CondIsEmpty     VisibilityCondition = "is_empty"
	CondIsNotEmpty  VisibilityCondition = "is_not_empty"
)

// VisibilityRule тройка (ключ поля, условие, значение для сравнения).
type VisibilityRule struct {
	DependsOn string              `json:"depends_on"`
	Condition VisibilityCondition `json:"condition"`
	Value     interface{}         `json:"value,omitempty"`
}

const (
	MatchAll = "all"
	MatchAny = "any"
)

// VisibilityConfig режим объединения и упорядоченный список правил.
type VisibilityConfig struct {
	Match string           `json:"match"`
	Rules []VisibilityRule `json:"rules"`
}

// UnmarshalJSON принимает либо объект {match, rules}, либо голый массив правил,
// который трактуется как match:"all".
func (vc *VisibilityConfig) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var rules []VisibilityRule
		if err := json.Unmarshal(data, &rules); err != nil {
			return err
		}
		vc.Match = MatchAll
		vc.Rules = rules
		return nil
	}

	type alias VisibilityConfig
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Match == "" {
		raw.Match = MatchAll
	}
	if raw.Match != MatchAll && raw.Match != MatchAny {
		return fmt.Errorf("unknown visibility match mode: %s", raw.Match)
	}
	*vc = VisibilityConfig(raw)
	return nil
}

// DependsOnKeys возвращает множество ключей полей, от которых зависит конфигурация.
func (vc *VisibilityConfig) DependsOnKeys() []string {
	if vc == nil {
		return nil
	}
	seen := make(map[string]bool, len(vc.Rules))
	var keys []string
	for _, rule := range vc.Rules {
		if rule.DependsOn == "" || seen[rule.DependsOn] {
			continue
		}
		seen[rule.DependsOn] = true
		keys = append(keys, rule.DependsOn)
	}
	return keys
}

// ValidationRule набор ограничений поля. Форма соответствует проводному контракту
// поля validation: {min, max, minLength, maxLength, pattern, customMessage}.
type ValidationRule struct {
	Min           *float64 `json:"min,omitempty" extensions:"x-nullable"`
	Max           *float64 `json:"max,omitempty" extensions:"x-nullable"`
	MinLength     *int     `json:"minLength,omitempty" extensions:"x-nullable"`
	MaxLength     *int     `json:"maxLength,omitempty" extensions:"x-nullable"`
	Pattern       string   `json:"pattern,omitempty"`
	CustomMessage string   `json:"customMessage,omitempty"`
}

// FormField одно поле формы. Key уникален в рамках определения формы и
// используется как ключ в данных анкеты.
type FormField struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Order    int       `json:"order"`

	Options []string `json:"options,omitempty"`

	Validate   *ValidationRule   `json:"validate,omitempty" extensions:"x-nullable"`
	Visibility *VisibilityConfig `json:"visibility,omitempty" extensions:"x-nullable"`

	ExternalValidator string                 `json:"external_validator,omitempty"`
	ExternalParams    map[string]interface{} `json:"external_params,omitempty"`

	DocumentTypeKey string `json:"document_type_key,omitempty"`
}

// FormSection шаг мастера: упорядоченная группа полей с собственной видимостью.
type FormSection struct {
	Key        string            `json:"key"`
	Label      string            `json:"label"`
	Order      int               `json:"order"`
	Visibility *VisibilityConfig `json:"visibility,omitempty" extensions:"x-nullable"`
	Fields     []FormField       `json:"fields"`
}

// SectionsSlice type
type SectionsSlice []FormSection

func (s SectionsSlice) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SectionsSlice) Scan(value interface{}) error {
	if value == nil {
		*s = SectionsSlice{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, s)
}

// FormData данные анкеты: ключи полей -> значения.
type FormData map[string]interface{}

func (d FormData) Value() (driver.Value, error) {
	if d == nil {
		d = FormData{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *FormData) Scan(value interface{}) error {
	if value == nil {
		*d = FormData{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	return json.Unmarshal(bytes, d)
}

// TargetDate дата закрытия формы (день, без времени).
type TargetDate struct {
	Time time.Time
}

func (d *TargetDate) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str != "" && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	if strings.Contains(str, "T") {
		str = strings.Split(str, "T")[0]
	}
	t, err := time.Parse("2006-01-02", str)
	if err != nil {
		return err
	}
	*d = TargetDate{t}
	return nil
}

func (d *TargetDate) MarshalJSON() ([]byte, error) {
	return []byte(d.Time.Format("\"2006-01-02\"")), nil
}

func (d *TargetDate) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return d.Time, nil
}

func (d *TargetDate) Scan(value interface{}) error {
	t, ok := value.(time.Time)
	if !ok {
		return fmt.Errorf("error unmarshal time: %v", value)
	}
	*d = TargetDate{t}
	return nil
}

func (d TargetDate) String() string {
	return d.Time.String()
}

type JsonURL struct {
	Url *url.URL
}

func (u *JsonURL) MarshalJSON() ([]byte, error) {
	if u == nil || u.Url == nil {
		return []byte("null"), nil
	}
	return []byte("\"" + u.Url.String() + "\""), nil
}
