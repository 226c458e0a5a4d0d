package nodeexec

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// CustomerDataExecutor expone datos del cliente y del mensaje como
// variables de la ejecución.
type CustomerDataExecutor struct{}

var _ engine.NodeExecutor = (*CustomerDataExecutor)(nil)

func NewCustomerDataExecutor() *CustomerDataExecutor {
	return &CustomerDataExecutor{}
}

func (e *CustomerDataExecutor) SupportsType(nodeType flow.NodeType) bool {
	switch nodeType {
	case flow.NodeGetCustomerPhone, flow.NodeGetCustomerName,
		flow.NodeGetCustomerCountry, flow.NodeGetMessageTimestamp:
		return true
	}
	return false
}

func (e *CustomerDataExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.CustomerDataConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	exec := wctx.Execution

	switch node.Type {
	case flow.NodeGetCustomerPhone:
		exec.SetVariable(config.VariableName, exec.CustomerID.String())

	case flow.NodeGetCustomerName:
		name := ""
		if wctx.Message != nil {
			name = wctx.Message.ProfileName
		}
		exec.SetVariable(config.VariableName, name)

	case flow.NodeGetCustomerCountry:
		exec.SetVariable(config.VariableName, countryFromPhone(exec.CustomerID.String(), wctx.DefaultCountryCode))

	case flow.NodeGetMessageTimestamp:
		ts := time.Now()
		if wctx.Message != nil && !wctx.Message.Timestamp.IsZero() {
			ts = wctx.Message.Timestamp
		}
		exec.SetVariable(config.VariableName, ts.UTC().Format(time.RFC3339))
	}

	return engine.Continue(), nil
}

// Los wa_id vienen sin "+", con el código de país al frente.
// Prefijos más largos primero para no confundir 52 con 521.
var dialCodes = []struct {
	prefix  string
	country string
}{
	{"521", "MX"},
	{"54", "AR"},
	{"55", "BR"},
	{"56", "CL"},
	{"57", "CO"},
	{"51", "PE"},
	{"52", "MX"},
	{"58", "VE"},
	{"593", "EC"},
	{"591", "BO"},
	{"598", "UY"},
	{"595", "PY"},
	{"506", "CR"},
	{"507", "PA"},
	{"502", "GT"},
	{"503", "SV"},
	{"504", "HN"},
	{"505", "NI"},
	{"34", "ES"},
	{"44", "GB"},
	{"49", "DE"},
	{"33", "FR"},
	{"39", "IT"},
	{"1", "US"},
}

// countryFromPhone deriva el país del prefijo del wa_id; si ningún
// prefijo calza usa el país por defecto del canal.
func countryFromPhone(phone, fallback string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")

	best := ""
	bestLen := 0
	for _, dc := range dialCodes {
		if strings.HasPrefix(phone, dc.prefix) && len(dc.prefix) > bestLen {
			best = dc.country
			bestLen = len(dc.prefix)
		}
	}
	if best != "" {
		return best
	}
	return fallback
}
