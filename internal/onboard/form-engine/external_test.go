package formengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validate", r.URL.Path)

		var req remoteValidationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "COUNTERPARTY_CHECK", req.Name)

		resp := remoteValidationResponse{OK: req.Value == "good"}
		if !resp.OK {
			resp.Message = "counterparty is blacklisted"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	fn := NewRemoteValidator(srv.URL, "COUNTERPARTY_CHECK")
	ctx := context.Background()

	assert.NoError(t, fn(ctx, "good", nil))

	err := fn(ctx, "bad", nil)
	require.Error(t, err)
	assert.Equal(t, "counterparty is blacklisted", err.Error())
}

func TestRemoteValidatorThroughSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteValidationResponse{OK: false, Message: "rejected upstream"})
	}))
	defer srv.Close()

	registry := NewRegistry()
	registry.Register("COUNTERPARTY_CHECK", NewRemoteValidator(srv.URL, "COUNTERPARTY_CHECK"))

	schema := Compile(NewDefinition(types.SectionsSlice{
		{Key: "main", Fields: []types.FormField{
			{Key: "inn", Type: types.FieldInput, ExternalValidator: "COUNTERPARTY_CHECK"},
		}},
	}))
	schema.External = registry

	result, err := schema.ValidateAll(context.Background(), types.FormData{"inn": "7707083893"})
	require.NoError(t, err)
	require.False(t, result.OK)
	assert.Equal(t, "rejected upstream", result.FieldErrors["inn"])
}
