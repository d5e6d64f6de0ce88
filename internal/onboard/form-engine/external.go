// Реестр внешних валидаторов - именованных асинхронных проверок значения поля за пределами структурной схемы (например, проверка контрагента во внешнем сервисе).
package formengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
)

// ExternalValidatorFunc проверяет значение поля; непустая ошибка становится
// ошибкой поля, неотличимой по форме от структурной.
type ExternalValidatorFunc func(ctx context.Context, value interface{}, params map[string]interface{}) error

// Registry - потокобезопасный реестр внешних валидаторов по имени.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]ExternalValidatorFunc
}

func NewRegistry() *Registry {
	r := Registry{validators: make(map[string]ExternalValidatorFunc)}
	r.Register("MOCK_NAME_CHECK", mockNameCheck)
	return &r
}

// DefaultRegistry используется схемами, собранными через Compile.
var DefaultRegistry = NewRegistry()

func (r *Registry) Register(name string, fn ExternalValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

func (r *Registry) Get(name string) (ExternalValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// mockNameCheck принимает только строки, начинающиеся с "Valid".
func mockNameCheck(ctx context.Context, value interface{}, params map[string]interface{}) error {
	str, ok := value.(string)
	if !ok || !strings.HasPrefix(str, "Valid") {
		return fmt.Errorf("name verification failed")
	}
	return nil
}

type remoteValidationRequest struct {
	Name   string                 `json:"name"`
	Value  interface{}            `json:"value"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type remoteValidationResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// NewRemoteValidator создает валидатор, делегирующий проверку внешнему HTTP сервису.
// Транспортные сбои повторяются с backoff; отказ самой проверки (4xx) не повторяется.
func NewRemoteValidator(baseURL string, name string) ExternalValidatorFunc {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3

	return func(ctx context.Context, value interface{}, params map[string]interface{}) error {
		body, err := json.Marshal(remoteValidationRequest{
			Name:   name,
			Value:  value,
			Params: params,
		})
		if err != nil {
			return err
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/validate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var result remoteValidationResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("external validator '%s': unexpected response", name)
		}
		if !result.OK {
			if result.Message != "" {
				return fmt.Errorf("%s", result.Message)
			}
			return fmt.Errorf("external validation '%s' failed", name)
		}
		return nil
	}
}
