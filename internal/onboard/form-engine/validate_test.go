package formengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gstSchema() *Schema {
	return Compile(NewDefinition(types.SectionsSlice{
		{
			Key:   "tax",
			Label: "Tax details",
			Fields: []types.FormField{
				{
					Key:      "gst_number",
					Type:     types.FieldInput,
					Required: true,
					Validate: &types.ValidationRule{Pattern: "^[0-9A-Z]{15}$"},
				},
				{
					Key:               "mock_check",
					Type:              types.FieldInput,
					Required:          true,
					ExternalValidator: "MOCK_NAME_CHECK",
				},
			},
		},
	}))
}

func TestValidateStepEndToEnd(t *testing.T) {
	schema := gstSchema()
	ctx := context.Background()

	t.Run("valid data passes", func(t *testing.T) {
		res, err := schema.ValidateStep(ctx, 0, types.FormData{
			"gst_number": "22AAAAA0000A1Z5",
			"mock_check": "Valid Anything",
		})
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Empty(t, res.FieldErrors)
	})

	t.Run("structural failure reports gst_number", func(t *testing.T) {
		res, err := schema.ValidateStep(ctx, 0, types.FormData{
			"gst_number": "bad",
			"mock_check": "Valid Anything",
		})
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Contains(t, res.FieldErrors, "gst_number")
		assert.NotContains(t, res.FieldErrors, "mock_check")
		assert.Equal(t, "gst_number", res.FirstErrorField)
	})

	t.Run("external failure reports mock_check", func(t *testing.T) {
		res, err := schema.ValidateStep(ctx, 0, types.FormData{
			"gst_number": "22AAAAA0000A1Z5",
			"mock_check": "Nope",
		})
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Contains(t, res.FieldErrors, "mock_check")
		assert.NotContains(t, res.FieldErrors, "gst_number")
		assert.Equal(t, "mock_check", res.FirstErrorField)
	})

	t.Run("step index out of range", func(t *testing.T) {
		_, err := schema.ValidateStep(ctx, 5, types.FormData{})
		assert.Error(t, err)
	})
}

func TestValidateStepHiddenFields(t *testing.T) {
	schema := Compile(NewDefinition(types.SectionsSlice{
		{
			Key:   "toggles",
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
				{Key: "iban", Type: types.FieldInput, Required: true},
				{Key: "swift", Type: types.FieldInput, Required: true},
			},
		},
	}))

	// Hidden step is valid no matter what garbage it holds
	res, err := schema.ValidateStep(context.Background(), 1, types.FormData{
		"has_bank": false,
		"iban":     float64(12),
	})
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = schema.ValidateStep(context.Background(), 1, types.FormData{"has_bank": true})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "iban", res.FirstErrorField)
	assert.Len(t, res.FieldErrors, 2)
}

func TestValidateAll(t *testing.T) {
	schema := Compile(NewDefinition(types.SectionsSlice{
		{
			Key:   "company",
			Order: 0,
			Fields: []types.FormField{
				{Key: "legal_name", Type: types.FieldInput, Required: true},
			},
		},
		{
			Key:   "tax",
			Order: 1,
			Fields: []types.FormField{
				{Key: "gst_number", Type: types.FieldInput, Required: true,
					Validate: &types.ValidationRule{Pattern: "^[0-9A-Z]{15}$"}},
			},
		},
	}))

	res, err := schema.ValidateAll(context.Background(), types.FormData{
		"legal_name": "Acme LLC",
		"gst_number": "bad",
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Steps, 2)
	assert.True(t, res.Steps[0].OK)
	assert.False(t, res.Steps[1].OK)
	assert.Equal(t, "gst_number", res.Steps[1].FirstErrorField)

	res, err = schema.ValidateAll(context.Background(), types.FormData{
		"legal_name": "Acme LLC",
		"gst_number": "22AAAAA0000A1Z5",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.FieldErrors)
}

func TestExternalValidatorsRunAfterStructuralPass(t *testing.T) {
	var calls atomic.Int32
	registry := NewRegistry()
	registry.Register("COUNTING_CHECK", func(ctx context.Context, value interface{}, params map[string]interface{}) error {
		calls.Add(1)
		return fmt.Errorf("always fails")
	})

	schema := Compile(NewDefinition(types.SectionsSlice{
		{
			Key: "main",
			Fields: []types.FormField{
				{
					Key:               "checked",
					Type:              types.FieldInput,
					Required:          true,
					Validate:          &types.ValidationRule{MinLength: func() *int { v := 5; return &v }()},
					ExternalValidator: "COUNTING_CHECK",
				},
			},
		},
	}))
	schema.External = registry

	// Structural failure short-circuits the external check
	res, err := schema.ValidateStep(context.Background(), 0, types.FormData{"checked": "ab"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, int32(0), calls.Load())

	res, err = schema.ValidateStep(context.Background(), 0, types.FormData{"checked": "abcdef"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "always fails", res.FieldErrors["checked"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnknownExternalValidator(t *testing.T) {
	schema := Compile(NewDefinition(types.SectionsSlice{
		{
			Key: "main",
			Fields: []types.FormField{
				{Key: "checked", Type: types.FieldInput, ExternalValidator: "NO_SUCH_CHECK"},
			},
		},
	}))

	_, err := schema.ValidateStep(context.Background(), 0, types.FormData{"checked": "value"})
	assert.Error(t, err)
}
