// Вычисление условной видимости полей и секций анкеты.  Правила видимости образуют граф зависимостей между полями; разрешение выполняется мемоизированным обходом в глубину с явным множеством "в обработке" для защиты от циклов.
package formengine

import (
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
)

// EvaluateRule вычисляет одно правило видимости над данными анкеты.
// Функция тотальна: на любом несоответствии типов возвращает false, никогда не паникует.
func EvaluateRule(rule types.VisibilityRule, data types.FormData) bool {
	value := data[rule.DependsOn]

	switch rule.Condition {
	case types.CondEquals:
		return reflect.DeepEqual(value, rule.Value)
	case types.CondNotEquals:
		return !reflect.DeepEqual(value, rule.Value)
	case types.CondContains:
		switch v := value.(type) {
		case string:
			needle, ok := rule.Value.(string)
			if !ok {
				return false
			}
			return strings.Contains(strings.ToLower(v), strings.ToLower(needle))
		case []interface{}:
			// Array membership stays case-sensitive
			for _, item := range v {
				if reflect.DeepEqual(item, rule.Value) {
					return true
				}
			}
			return false
		}
		return false
	case types.CondGreaterThan:
		left, leftOk := toNumber(value)
		right, rightOk := toNumber(rule.Value)
		return leftOk && rightOk && left > right
	case types.CondLessThan:
		left, leftOk := toNumber(value)
		right, rightOk := toNumber(rule.Value)
		return leftOk && rightOk && left < right
	case types.CondIsEmpty:
		return isEmptyValue(value)
	case types.CondIsNotEmpty:
		return !isEmptyValue(value)
	}
	return false
}

// ValuesEqual сравнивает два значения данных анкеты структурно, как equals в правилах видимости.
func ValuesEqual(a interface{}, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []interface{}:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func evaluateConfig(cfg *types.VisibilityConfig, data types.FormData) bool {
	if cfg == nil || len(cfg.Rules) == 0 {
		return true
	}
	for _, rule := range cfg.Rules {
		matched := EvaluateRule(rule, data)
		if cfg.Match == types.MatchAny && matched {
			return true
		}
		if cfg.Match != types.MatchAny && !matched {
			return false
		}
	}
	return cfg.Match != types.MatchAny
}

// Resolver вычисляет видимость полей и секций для одного снимка данных анкеты.
// Результаты мемоизируются; повторный вход в поле, находящееся в обработке,
// трактуется как невидимая зависимость (разрыв цикла) с одной диагностикой на проход.
type Resolver struct {
	def  *Definition
	data types.FormData

	memo        map[string]bool
	visiting    map[string]struct{}
	cycleLogged bool
}

func NewResolver(def *Definition, data types.FormData) *Resolver {
	return &Resolver{
		def:      def,
		data:     data,
		memo:     make(map[string]bool),
		visiting: make(map[string]struct{}),
	}
}

// FieldVisible возвращает видимость поля по ключу.
// Поле без конфигурации видимости всегда видимо; поле невидимо, если
// невидимо любое поле, от которого оно зависит.
func (r *Resolver) FieldVisible(key string) bool {
	if visible, ok := r.memo[key]; ok {
		return visible
	}

	if _, ok := r.visiting[key]; ok {
		if !r.cycleLogged {
			slog.Warn("Visibility dependency cycle, treating field as hidden", "key", key)
			r.cycleLogged = true
		}
		return false
	}

	ref, ok := r.def.Field(key)
	if !ok {
		// Unknown keys do not constrain anything
		return true
	}
	cfg := ref.Field.Visibility
	if cfg == nil || len(cfg.Rules) == 0 {
		r.memo[key] = true
		return true
	}

	r.visiting[key] = struct{}{}
	visible := evaluateConfig(cfg, r.data)
	for _, dep := range cfg.DependsOnKeys() {
		if !r.FieldVisible(dep) {
			visible = false
		}
	}
	delete(r.visiting, key)

	r.memo[key] = visible
	return visible
}

// SectionVisible возвращает видимость секции шага stepIndex.
// Секции зависят только от полей, не от других секций.
func (r *Resolver) SectionVisible(stepIndex int) bool {
	section, ok := r.def.Step(stepIndex)
	if !ok {
		return false
	}
	cfg := section.Visibility
	if cfg == nil || len(cfg.Rules) == 0 {
		return true
	}

	visible := evaluateConfig(cfg, r.data)
	for _, dep := range cfg.DependsOnKeys() {
		if !r.FieldVisible(dep) {
			visible = false
		}
	}
	return visible
}

// ResolveFields возвращает карту видимости всех полей определения.
func (r *Resolver) ResolveFields() map[string]bool {
	res := make(map[string]bool, len(r.def.order))
	for _, key := range r.def.order {
		res[key] = r.FieldVisible(key)
	}
	return res
}

// ResolveSections возвращает карту видимости секций по их ключам.
func (r *Resolver) ResolveSections() map[string]bool {
	res := make(map[string]bool, len(r.def.Sections))
	for i, section := range r.def.Sections {
		res[section.Key] = r.SectionVisible(i)
	}
	return res
}
