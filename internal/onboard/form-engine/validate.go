// Валидация шага и всей анкеты по скомпилированной схеме с учетом карты видимости.  Скрытые поля не проверяются независимо от содержимого; внешние валидаторы запускаются после успешной структурной проверки с ограниченным параллелизмом.
package formengine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// externalValidatorLimit ограничивает число одновременных внешних проверок за один вызов.
const externalValidatorLimit = 4

// StepResult - результат валидации одного шага мастера.
type StepResult struct {
	OK              bool              `json:"ok"`
	Step            int               `json:"step"`
	FieldErrors     map[string]string `json:"field_errors,omitempty"`
	FirstErrorField string            `json:"first_error_field,omitempty"`
}

// FormResult - результат валидации всей анкеты. Вердикт OK основан на полной
// схеме; Steps дублирует ошибки пошагово для навигации мастера.
type FormResult struct {
	OK          bool              `json:"ok"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Steps       []StepResult      `json:"steps"`
}

type externalCheck struct {
	key    string
	fn     ExternalValidatorFunc
	value  interface{}
	params map[string]interface{}
}

// validateKeys проверяет поля keys (в порядке секций), считая их видимыми.
// Возвращает ошибки полей; внешние проверки выполняются только для полей,
// прошедших структурный слой.
func (s *Schema) validateKeys(ctx context.Context, keys []string, data map[string]interface{}) (map[string]string, error) {
	fieldErrors := make(map[string]string)
	var checks []externalCheck

	for _, key := range keys {
		validator, ok := s.validators[key]
		if !ok {
			continue
		}
		if msg := validator.Validate(data[key], s.FileExists); msg != "" {
			fieldErrors[key] = msg
			continue
		}

		name := validator.Field.ExternalValidator
		if name == "" || isEmptyValue(data[key]) {
			continue
		}
		registry := s.External
		if registry == nil {
			registry = DefaultRegistry
		}
		fn, ok := registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown external validator '%s' for field '%s'", name, key)
		}
		checks = append(checks, externalCheck{
			key:    key,
			fn:     fn,
			value:  data[key],
			params: validator.Field.ExternalParams,
		})
	}

	if len(checks) > 0 {
		var mu sync.Mutex
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(externalValidatorLimit)

		for _, check := range checks {
			check := check
			group.Go(func() error {
				if err := check.fn(groupCtx, check.value, check.params); err != nil {
					mu.Lock()
					fieldErrors[check.key] = err.Error()
					mu.Unlock()
				}
				return groupCtx.Err()
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	return fieldErrors, nil
}

func firstError(keys []string, fieldErrors map[string]string) string {
	for _, key := range keys {
		if _, ok := fieldErrors[key]; ok {
			return key
		}
	}
	return ""
}

// ValidateStep проверяет видимые поля шага stepIndex.
// Шаг, скрытый целиком (секция невидима или все поля скрыты), всегда валиден.
func (s *Schema) ValidateStep(ctx context.Context, stepIndex int, data map[string]interface{}) (StepResult, error) {
	section, ok := s.Definition.Step(stepIndex)
	if !ok {
		return StepResult{}, fmt.Errorf("step index %d out of range", stepIndex)
	}

	res := StepResult{OK: true, Step: stepIndex}

	resolver := NewResolver(s.Definition, data)
	if !resolver.SectionVisible(stepIndex) {
		return res, nil
	}

	var keys []string
	for _, field := range section.Fields {
		if resolver.FieldVisible(field.Key) {
			keys = append(keys, field.Key)
		}
	}

	fieldErrors, err := s.validateKeys(ctx, keys, data)
	if err != nil {
		return StepResult{}, err
	}
	if len(fieldErrors) > 0 {
		res.OK = false
		res.FieldErrors = fieldErrors
		res.FirstErrorField = firstError(keys, fieldErrors)
	}
	return res, nil
}

// ValidateAll проверяет все видимые поля анкеты.
// Авторитетный вердикт - проверка по полной схеме; пошаговые результаты
// считаются из тех же ошибок для навигации.
func (s *Schema) ValidateAll(ctx context.Context, data map[string]interface{}) (FormResult, error) {
	resolver := NewResolver(s.Definition, data)

	var keys []string
	visibleSteps := make([]bool, s.Definition.StepCount())
	for i := range s.Definition.Sections {
		visibleSteps[i] = resolver.SectionVisible(i)
		if !visibleSteps[i] {
			continue
		}
		for _, field := range s.Definition.Sections[i].Fields {
			if resolver.FieldVisible(field.Key) {
				keys = append(keys, field.Key)
			}
		}
	}

	fieldErrors, err := s.validateKeys(ctx, keys, data)
	if err != nil {
		return FormResult{}, err
	}

	res := FormResult{
		OK:    len(fieldErrors) == 0,
		Steps: make([]StepResult, s.Definition.StepCount()),
	}
	if !res.OK {
		res.FieldErrors = fieldErrors
	}

	for i := range s.Definition.Sections {
		step := StepResult{OK: true, Step: i}
		if visibleSteps[i] {
			var stepKeys []string
			for _, field := range s.Definition.Sections[i].Fields {
				if _, failed := fieldErrors[field.Key]; failed {
					stepKeys = append(stepKeys, field.Key)
				}
			}
			if len(stepKeys) > 0 {
				step.OK = false
				step.FieldErrors = make(map[string]string, len(stepKeys))
				for _, key := range stepKeys {
					step.FieldErrors[key] = fieldErrors[key]
				}
				step.FirstErrorField = stepKeys[0]
			}
		}
		res.Steps[i] = step
	}

	return res, nil
}
