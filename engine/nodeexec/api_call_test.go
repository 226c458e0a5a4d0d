package nodeexec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

func runAPICall(t *testing.T, wctx *engine.WalkContext, config *flow.APICallConfig) *engine.NodeOutcome {
	t.Helper()
	executor := NewAPICallExecutor(engine.NewInterpolator())
	node := &flow.Node{ID: "n-api", Type: flow.NodeAPICall, Config: config}
	outcome, err := executor.Execute(context.Background(), wctx, node)
	require.NoError(t, err)
	return outcome
}

func TestAPICall_SuccessWithResponseMapping(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order":{"id":"ord_9","total":42.5},"items":[{"sku":"A"}]}`))
	}))
	defer server.Close()

	wctx := newUtilityContext(map[string]any{
		"token": "secreto",
		"phone": "51999888777",
	})

	outcome := runAPICall(t, wctx, &flow.APICallConfig{
		Method:  "POST",
		URL:     server.URL + "/orders",
		Headers: map[string]string{"Authorization": "Bearer {{token}}"},
		Body:    `{"customer":"{{phone}}"}`,
		ResponseMapping: map[string]string{
			"order_id":    "order.id",
			"order_total": "order.total",
			"first_sku":   "items.0.sku",
			"missing":     "order.discount",
		},
	})

	assert.Equal(t, APIHandleSuccess, outcome.Handle)
	assert.Equal(t, "Bearer secreto", gotAuth)
	assert.Equal(t, map[string]any{"customer": "51999888777"}, gotBody)

	exec := wctx.Execution
	orderID, _ := exec.GetVariable("order_id")
	assert.Equal(t, "ord_9", orderID)
	total, _ := exec.GetVariable("order_total")
	assert.Equal(t, 42.5, total)
	sku, _ := exec.GetVariable("first_sku")
	assert.Equal(t, "A", sku)
	missing, ok := exec.GetVariable("missing")
	assert.True(t, ok)
	assert.Nil(t, missing)

	status, _ := exec.GetVariable("api_status")
	assert.Equal(t, http.StatusOK, status)
}

func TestAPICall_NoMappingStoresWholeResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"city":"Lima"}}`))
	}))
	defer server.Close()

	wctx := newUtilityContext(nil)
	outcome := runAPICall(t, wctx, &flow.APICallConfig{Method: "GET", URL: server.URL})

	assert.Equal(t, APIHandleSuccess, outcome.Handle)

	response, ok := wctx.Execution.GetVariable("api_response")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"user": map[string]any{"city": "Lima"}}, response)
}

func TestAPICall_Non2xxIsHardFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer server.Close()

	executor := NewAPICallExecutor(engine.NewInterpolator())
	wctx := newUtilityContext(nil)
	node := &flow.Node{ID: "n-api", Type: flow.NodeAPICall, Config: &flow.APICallConfig{Method: "GET", URL: server.URL}}

	_, err := executor.Execute(context.Background(), wctx, node)
	require.Error(t, err)

	// El error y el status quedan en variables para la traza
	apiErr, _ := wctx.Execution.GetVariable("api_error")
	assert.Contains(t, apiErr, "upstream down")
	status, _ := wctx.Execution.GetVariable("api_status")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestAPICall_NetworkFailureIsHardFailure(t *testing.T) {
	// Servidor cerrado: la conexión se rechaza
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	executor := NewAPICallExecutor(engine.NewInterpolator())
	wctx := newUtilityContext(nil)
	node := &flow.Node{ID: "n-api", Type: flow.NodeAPICall, Config: &flow.APICallConfig{Method: "GET", URL: server.URL}}

	_, err := executor.Execute(context.Background(), wctx, node)
	require.Error(t, err)

	_, ok := wctx.Execution.GetVariable("api_error")
	assert.True(t, ok)
}
