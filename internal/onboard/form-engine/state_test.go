package formengine

import (
	"encoding/json"
	"testing"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitialFormState(t *testing.T) {
	state := NewInitialFormState(types.FormData{"legal_name": "Acme LLC"}, 2)

	assert.Equal(t, 2, state.CurrentStep)
	assert.Contains(t, state.CompletedSteps, 0)
	assert.Contains(t, state.CompletedSteps, 1)
	assert.NotContains(t, state.CompletedSteps, 2)
	assert.Empty(t, state.TouchedKeys)

	snapshot := state.Snapshot()
	assert.Equal(t, []int{0, 1}, snapshot.CompletedSteps)
}

func TestFormStateRoundTrip(t *testing.T) {
	original := FormStateSnapshot{
		Data:           types.FormData{"legal_name": "Acme LLC", "employees": float64(12)},
		CurrentStep:    3,
		TouchedKeys:    []string{"employees", "legal_name"},
		CompletedSteps: []int{0, 1, 2},
	}

	restored := HydrateFormState(original).Snapshot()
	assert.Equal(t, original, restored)

	// Stable through JSON as well
	raw, err := json.Marshal(restored)
	require.NoError(t, err)
	var decoded FormStateSnapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestFormStateMutations(t *testing.T) {
	state := NewInitialFormState(nil, 0)

	state.Touch("legal_name")
	state.Touch("employees")
	state.Touch("legal_name")

	state.CompleteStep(0)
	assert.Equal(t, 1, state.CurrentStep)
	state.CompleteStep(1)
	assert.Equal(t, 2, state.CurrentStep)

	// Revisiting an earlier step must not move the cursor back
	state.CompleteStep(0)
	assert.Equal(t, 2, state.CurrentStep)

	snapshot := state.Snapshot()
	assert.Equal(t, []string{"employees", "legal_name"}, snapshot.TouchedKeys)
	assert.Equal(t, []int{0, 1}, snapshot.CompletedSteps)
	assert.NotNil(t, snapshot.Data)
}
