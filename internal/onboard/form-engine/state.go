// Состояние мастера заполнения анкеты: данные, текущий шаг, затронутые поля и пройденные шаги.  В памяти множества, на проводе детерминированные отсортированные массивы; сериализация и гидратация взаимно обратны.
package formengine

import (
	"sort"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/utils"
)

type FormState struct {
	Data        types.FormData
	CurrentStep int

	TouchedKeys    map[string]struct{}
	CompletedSteps map[int]struct{}
}

// FormStateSnapshot - сериализуемый снимок состояния мастера.
type FormStateSnapshot struct {
	Data           types.FormData `json:"data"`
	CurrentStep    int            `json:"current_step"`
	TouchedKeys    []string       `json:"touched_keys"`
	CompletedSteps []int          `json:"completed_steps"`
}

// NewInitialFormState создает состояние возобновления черновика:
// все шаги до currentStep считаются пройденными.
func NewInitialFormState(data types.FormData, currentStep int) *FormState {
	if data == nil {
		data = types.FormData{}
	}
	state := FormState{
		Data:           data,
		CurrentStep:    currentStep,
		TouchedKeys:    make(map[string]struct{}),
		CompletedSteps: make(map[int]struct{}),
	}
	for step := 0; step < currentStep; step++ {
		state.CompletedSteps[step] = struct{}{}
	}
	return &state
}

// HydrateFormState восстанавливает состояние из снимка.
func HydrateFormState(snapshot FormStateSnapshot) *FormState {
	data := snapshot.Data
	if data == nil {
		data = types.FormData{}
	}
	return &FormState{
		Data:           data,
		CurrentStep:    snapshot.CurrentStep,
		TouchedKeys:    utils.SliceToSet(snapshot.TouchedKeys),
		CompletedSteps: utils.SliceToSet(snapshot.CompletedSteps),
	}
}

// Snapshot возвращает сериализуемый снимок; множества отдаются отсортированными массивами.
func (s *FormState) Snapshot() FormStateSnapshot {
	touched := utils.SetToSlice(s.TouchedKeys)
	sort.Strings(touched)

	completed := utils.SetToSlice(s.CompletedSteps)
	sort.Ints(completed)

	if touched == nil {
		touched = []string{}
	}
	if completed == nil {
		completed = []int{}
	}

	return FormStateSnapshot{
		Data:           s.Data,
		CurrentStep:    s.CurrentStep,
		TouchedKeys:    touched,
		CompletedSteps: completed,
	}
}

// Touch помечает поле как затронутое пользователем.
func (s *FormState) Touch(key string) {
	s.TouchedKeys[key] = struct{}{}
}

// CompleteStep помечает шаг пройденным и передвигает текущий шаг вперед.
func (s *FormState) CompleteStep(step int) {
	s.CompletedSteps[step] = struct{}{}
	if step >= s.CurrentStep {
		s.CurrentStep = step + 1
	}
}
