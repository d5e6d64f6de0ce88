package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibilityConfigUnmarshal(t *testing.T) {
	t.Run("object form", func(t *testing.T) {
		var vc VisibilityConfig
		err := json.Unmarshal([]byte(`{"match":"any","rules":[{"depends_on":"country","condition":"equals","value":"IN"}]}`), &vc)
		require.NoError(t, err)
		assert.Equal(t, MatchAny, vc.Match)
		require.Len(t, vc.Rules, 1)
		assert.Equal(t, "country", vc.Rules[0].DependsOn)
		assert.Equal(t, CondEquals, vc.Rules[0].Condition)
	})

	t.Run("bare array shorthand means match all", func(t *testing.T) {
		var vc VisibilityConfig
		err := json.Unmarshal([]byte(`[{"depends_on":"has_gst","condition":"equals","value":true}]`), &vc)
		require.NoError(t, err)
		assert.Equal(t, MatchAll, vc.Match)
		assert.Len(t, vc.Rules, 1)
	})

	t.Run("missing match defaults to all", func(t *testing.T) {
		var vc VisibilityConfig
		err := json.Unmarshal([]byte(`{"rules":[]}`), &vc)
		require.NoError(t, err)
		assert.Equal(t, MatchAll, vc.Match)
	})

	t.Run("unknown match mode rejected", func(t *testing.T) {
		var vc VisibilityConfig
		err := json.Unmarshal([]byte(`{"match":"none","rules":[]}`), &vc)
		assert.Error(t, err)
	})
}

func TestVisibilityConfigDependsOnKeys(t *testing.T) {
	vc := &VisibilityConfig{
		Match: MatchAll,
		Rules: []VisibilityRule{
			{DependsOn: "a", Condition: CondIsNotEmpty},
			{DependsOn: "b", Condition: CondEquals, Value: "x"},
			{DependsOn: "a", Condition: CondNotEquals, Value: "y"},
		},
	}
	assert.Equal(t, []string{"a", "b"}, vc.DependsOnKeys())

	var nilConfig *VisibilityConfig
	assert.Nil(t, nilConfig.DependsOnKeys())
}

func TestSectionsSliceScan(t *testing.T) {
	raw := `[{"key":"company","label":"Company","order":1,"fields":[{"key":"name","label":"Name","type":"input","required":true,"order":1}]}]`

	var sections SectionsSlice
	require.NoError(t, sections.Scan([]byte(raw)))
	require.Len(t, sections, 1)
	assert.Equal(t, "company", sections[0].Key)
	require.Len(t, sections[0].Fields, 1)
	assert.Equal(t, FieldInput, sections[0].Fields[0].Type)

	var fromNil SectionsSlice
	require.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)
}

func TestFormDataRoundtrip(t *testing.T) {
	data := FormData{"name": "ACME", "employees": float64(10)}
	v, err := data.Value()
	require.NoError(t, err)

	var back FormData
	require.NoError(t, back.Scan(v))
	assert.Equal(t, data, back)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusDraft.CanTransitionTo(StatusSubmitted))
	assert.True(t, StatusSubmitted.CanTransitionTo(StatusInReview))
	assert.True(t, StatusInReview.CanTransitionTo(StatusPendingSupplier))
	assert.True(t, StatusInReview.CanTransitionTo(StatusApproved))
	assert.True(t, StatusInReview.CanTransitionTo(StatusRejected))
	assert.True(t, StatusPendingSupplier.CanTransitionTo(StatusInReview))

	assert.False(t, StatusDraft.CanTransitionTo(StatusApproved))
	assert.False(t, StatusApproved.CanTransitionTo(StatusSubmitted))
	assert.False(t, StatusRejected.CanTransitionTo(StatusInReview))

	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusInReview.Terminal())

	assert.True(t, StatusDraft.Editable())
	assert.True(t, StatusPendingSupplier.Editable())
	assert.False(t, StatusSubmitted.Editable())
}
