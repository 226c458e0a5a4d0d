package nodeexec

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// DelayExecutor pausa el walk. Delays cortos duermen en el request;
// los largos suspenden la ejecución y el scheduler la retoma.
type DelayExecutor struct {
	syncThreshold time.Duration
}

var _ engine.NodeExecutor = (*DelayExecutor)(nil)

func NewDelayExecutor(syncThreshold time.Duration) *DelayExecutor {
	return &DelayExecutor{syncThreshold: syncThreshold}
}

func (e *DelayExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeDelay
}

func (e *DelayExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.DelayConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	delay := time.Duration(config.DelaySeconds) * time.Second

	if delay > e.syncThreshold {
		log.Printf("⏰ Delay %v exceeds sync threshold, scheduling continuation", delay)
		return &engine.NodeOutcome{DelayFor: &delay}, nil
	}

	log.Printf("⏸️  Sync delay %v", delay)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	return engine.Continue(), nil
}
