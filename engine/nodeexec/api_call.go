package nodeexec

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// APICallExecutor ejecuta llamadas HTTP salientes. URL, headers y body
// se interpolan contra las variables; el responseMapping extrae valores
// del JSON de respuesta por path y los guarda como variables. Timeout,
// falla de red o status fuera de 2xx rompen la ejecución.
type APICallExecutor struct {
	httpClient   *http.Client
	interpolator engine.Interpolator
}

var _ engine.NodeExecutor = (*APICallExecutor)(nil)

// APIHandleSuccess handle saliente de un apiCall que respondió 2xx
const APIHandleSuccess = "success"

func NewAPICallExecutor(interpolator engine.Interpolator) *APICallExecutor {
	return &APICallExecutor{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		interpolator: interpolator,
	}
}

func (e *APICallExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeAPICall
}

func (e *APICallExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.APICallConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	vars := wctx.Execution.Variables

	url, err := e.interpolator.Interpolate(config.URL, vars)
	if err != nil {
		return nil, engine.ErrExpressionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	headers, err := e.interpolator.InterpolateMap(config.Headers, vars)
	if err != nil {
		return nil, engine.ErrExpressionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	var bodyReader io.Reader
	if config.Body != "" {
		body, err := e.interpolator.Interpolate(config.Body, vars)
		if err != nil {
			return nil, engine.ErrExpressionFailed().
				WithDetail("node_id", node.ID).
				WithDetail("error", err.Error())
		}
		bodyReader = strings.NewReader(body)
	}

	log.Printf("🌐 API call: %s %s", config.GetMethod(), url)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(config.GetTimeoutMs())*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, config.GetMethod(), url, bodyReader)
	if err != nil {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ API call failed: %v", err)
		wctx.Execution.SetVariable("api_error", err.Error())
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		wctx.Execution.SetVariable("api_error", err.Error())
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	wctx.Execution.SetVariable("api_status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("❌ API call returned %d", resp.StatusCode)
		wctx.Execution.SetVariable("api_error", string(bodyBytes))
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("status", resp.StatusCode)
	}

	e.applyResponseMapping(wctx.Execution, config.ResponseMapping, bodyBytes)

	log.Printf("✅ API call succeeded: %d", resp.StatusCode)
	return engine.ContinueWith(APIHandleSuccess), nil
}

// applyResponseMapping extrae paths del JSON de respuesta hacia
// variables de la ejecución. Un path que no existe deja nil.
func (e *APICallExecutor) applyResponseMapping(exec *engine.Execution, mapping map[string]string, body []byte) {
	if len(mapping) == 0 {
		// Sin mapping, la respuesta completa queda disponible
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			exec.SetVariable("api_response", parsed)
		} else {
			exec.SetVariable("api_response", string(body))
		}
		return
	}

	for variable, path := range mapping {
		result := gjson.GetBytes(body, path)
		if !result.Exists() {
			exec.SetVariable(variable, nil)
			continue
		}
		exec.SetVariable(variable, result.Value())
	}
}
