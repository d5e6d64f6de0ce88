package formengine

import (
	"testing"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateRule(t *testing.T) {
	data := types.FormData{
		"country":   "India",
		"employees": float64(250),
		"tags":      []interface{}{"Prepaid", "Net 30"},
		"empty":     "",
		"list":      []interface{}{},
	}

	t.Run("equals", func(t *testing.T) {
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondEquals, Value: "India"}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondEquals, Value: "india"}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "employees", Condition: types.CondEquals, Value: "250"}, data))
	})

	t.Run("not_equals", func(t *testing.T) {
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondNotEquals, Value: "Germany"}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondNotEquals, Value: "India"}, data))
	})

	t.Run("contains on strings is case-insensitive", func(t *testing.T) {
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondContains, Value: "IND"}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondContains, Value: "pakistan"}, data))
	})

	t.Run("contains on arrays is case-sensitive membership", func(t *testing.T) {
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "tags", Condition: types.CondContains, Value: "Net 30"}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "tags", Condition: types.CondContains, Value: "net 30"}, data))
	})

	t.Run("numeric comparisons fail-safe", func(t *testing.T) {
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "employees", Condition: types.CondGreaterThan, Value: float64(100)}, data))
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "employees", Condition: types.CondLessThan, Value: float64(1000)}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: types.CondGreaterThan, Value: float64(1)}, data))
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "missing", Condition: types.CondLessThan, Value: float64(1)}, data))
	})

	t.Run("is_empty and is_not_empty are negations", func(t *testing.T) {
		for _, key := range []string{"country", "employees", "tags", "empty", "list", "missing"} {
			empty := EvaluateRule(types.VisibilityRule{DependsOn: key, Condition: types.CondIsEmpty}, data)
			notEmpty := EvaluateRule(types.VisibilityRule{DependsOn: key, Condition: types.CondIsNotEmpty}, data)
			assert.NotEqual(t, empty, notEmpty, "key %s", key)
		}
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "empty", Condition: types.CondIsEmpty}, data))
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "list", Condition: types.CondIsEmpty}, data))
		assert.True(t, EvaluateRule(types.VisibilityRule{DependsOn: "missing", Condition: types.CondIsEmpty}, data))
	})

	t.Run("unknown condition is false", func(t *testing.T) {
		assert.False(t, EvaluateRule(types.VisibilityRule{DependsOn: "country", Condition: "matches"}, data))
	})
}

func visibilityOn(key string, condition types.VisibilityCondition, value interface{}) *types.VisibilityConfig {
	return &types.VisibilityConfig{
		Match: types.MatchAll,
		Rules: []types.VisibilityRule{{DependsOn: key, Condition: condition, Value: value}},
	}
}

func TestResolverChains(t *testing.T) {
	def := NewDefinition(types.SectionsSlice{
		{
			Key: "main",
			Fields: []types.FormField{
				{Key: "has_gst", Type: types.FieldCheckbox},
				{Key: "gst_number", Type: types.FieldInput, Visibility: visibilityOn("has_gst", types.CondEquals, true)},
				{Key: "gst_state", Type: types.FieldInput, Visibility: visibilityOn("gst_number", types.CondIsNotEmpty, nil)},
				{Key: "plain", Type: types.FieldInput},
			},
		},
	})

	t.Run("no visibility config is always visible", func(t *testing.T) {
		resolver := NewResolver(def, types.FormData{})
		assert.True(t, resolver.FieldVisible("plain"))
		assert.True(t, resolver.FieldVisible("has_gst"))
	})

	t.Run("hidden dependency hides dependents", func(t *testing.T) {
		// gst_number filled but has_gst unchecked: gst_number is hidden,
		// so gst_state must be hidden even though its own rule matches
		resolver := NewResolver(def, types.FormData{"has_gst": false, "gst_number": "22AAAAA0000A1Z5"})
		visible := resolver.ResolveFields()
		assert.False(t, visible["gst_number"])
		assert.False(t, visible["gst_state"])
	})

	t.Run("whole chain visible", func(t *testing.T) {
		resolver := NewResolver(def, types.FormData{"has_gst": true, "gst_number": "22AAAAA0000A1Z5"})
		visible := resolver.ResolveFields()
		assert.True(t, visible["gst_number"])
		assert.True(t, visible["gst_state"])
	})
}

func TestResolverCycle(t *testing.T) {
	def := NewDefinition(types.SectionsSlice{
		{
			Key: "main",
			Fields: []types.FormField{
				{Key: "a", Type: types.FieldInput, Visibility: visibilityOn("b", types.CondIsNotEmpty, nil)},
				{Key: "b", Type: types.FieldInput, Visibility: visibilityOn("a", types.CondIsNotEmpty, nil)},
			},
		},
	})

	resolver := NewResolver(def, types.FormData{"a": "x", "b": "y"})
	visible := resolver.ResolveFields()
	assert.False(t, visible["a"])
	assert.False(t, visible["b"])
}

func TestResolverMatchModes(t *testing.T) {
	anyConfig := &types.VisibilityConfig{
		Match: types.MatchAny,
		Rules: []types.VisibilityRule{
			{DependsOn: "country", Condition: types.CondEquals, Value: "India"},
			{DependsOn: "country", Condition: types.CondEquals, Value: "Germany"},
		},
	}
	allConfig := &types.VisibilityConfig{
		Match: types.MatchAll,
		Rules: []types.VisibilityRule{
			{DependsOn: "country", Condition: types.CondEquals, Value: "India"},
			{DependsOn: "employees", Condition: types.CondGreaterThan, Value: float64(10)},
		},
	}
	def := NewDefinition(types.SectionsSlice{
		{
			Key: "main",
			Fields: []types.FormField{
				{Key: "country", Type: types.FieldInput},
				{Key: "employees", Type: types.FieldNumeric},
				{Key: "any_field", Type: types.FieldInput, Visibility: anyConfig},
				{Key: "all_field", Type: types.FieldInput, Visibility: allConfig},
			},
		},
	})

	resolver := NewResolver(def, types.FormData{"country": "Germany", "employees": float64(5)})
	visible := resolver.ResolveFields()
	assert.True(t, visible["any_field"])
	assert.False(t, visible["all_field"])

	resolver = NewResolver(def, types.FormData{"country": "India", "employees": float64(50)})
	visible = resolver.ResolveFields()
	assert.True(t, visible["any_field"])
	assert.True(t, visible["all_field"])
}

func TestSectionVisibility(t *testing.T) {
	def := NewDefinition(types.SectionsSlice{
		{
			Key:   "company",
			Order: 0,
			Fields: []types.FormField{
				{Key: "has_bank", Type: types.FieldCheckbox},
			},
		},
		{
			Key:        "bank",
			Order:      1,
			Visibility: visibilityOn("has_bank", types.CondEquals, true),
			Fields: []types.FormField{
				{Key: "iban", Type: types.FieldInput},
			},
		},
	})

	resolver := NewResolver(def, types.FormData{"has_bank": false})
	sections := resolver.ResolveSections()
	require.Len(t, sections, 2)
	assert.True(t, sections["company"])
	assert.False(t, sections["bank"])

	resolver = NewResolver(def, types.FormData{"has_bank": true})
	assert.True(t, resolver.SectionVisible(1))
}
