package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/loyalty"
)

// StampCardExecutor envía la tarjeta de sellos vigente del cliente.
// Con imagen si el programa tiene una configurada, como texto si no.
type StampCardExecutor struct {
	cards        loyalty.CardProvider
	gateway      engine.MessageGateway
	interpolator engine.Interpolator
}

var _ engine.NodeExecutor = (*StampCardExecutor)(nil)

func NewStampCardExecutor(cards loyalty.CardProvider, gateway engine.MessageGateway, interpolator engine.Interpolator) *StampCardExecutor {
	return &StampCardExecutor{
		cards:        cards,
		gateway:      gateway,
		interpolator: interpolator,
	}
}

func (e *StampCardExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeSendStampCard
}

func (e *StampCardExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.SendStampCardConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	exec := wctx.Execution

	card, err := e.cards.GetCard(ctx, exec.ChannelID, exec.CustomerID)
	if err != nil {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	text := card.Render()
	if config.Message != "" {
		header, err := e.interpolator.Interpolate(config.Message, exec.Variables)
		if err != nil {
			return nil, err
		}
		text = header + "\n\n" + text
	}

	outbound := engine.OutboundMessage{Kind: engine.OutboundText, Text: text}
	if card.ImageURL != "" {
		outbound = engine.OutboundMessage{
			Kind:    engine.OutboundImage,
			URL:     card.ImageURL,
			Caption: text,
		}
	}

	if _, err := e.gateway.Send(ctx, exec.ChannelID, exec.CustomerID, outbound); err != nil {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	log.Printf("🎟️  Sent stamp card to %s (%d/%d)", exec.CustomerID.String(), card.Stamps, card.Required)
	return engine.Continue(), nil
}
