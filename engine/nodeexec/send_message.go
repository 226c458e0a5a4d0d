package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// SendExecutor ejecuta todos los nodos send*: interpola la config
// contra las variables y entrega el mensaje por el gateway del canal.
type SendExecutor struct {
	gateway      engine.MessageGateway
	interpolator engine.Interpolator
}

var _ engine.NodeExecutor = (*SendExecutor)(nil)

func NewSendExecutor(gateway engine.MessageGateway, interpolator engine.Interpolator) *SendExecutor {
	return &SendExecutor{
		gateway:      gateway,
		interpolator: interpolator,
	}
}

func (e *SendExecutor) SupportsType(nodeType flow.NodeType) bool {
	switch nodeType {
	case flow.NodeSendText, flow.NodeSendImage, flow.NodeSendVideo,
		flow.NodeSendAudio, flow.NodeSendDocument, flow.NodeSendSticker,
		flow.NodeSendLocation, flow.NodeSendContact,
		flow.NodeSendButtons, flow.NodeSendList:
		return true
	}
	return false
}

func (e *SendExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	outbound, err := e.buildOutbound(node, wctx.Execution.Variables)
	if err != nil {
		return nil, err
	}

	msgID, err := e.gateway.Send(ctx, wctx.Execution.ChannelID, wctx.Execution.CustomerID, *outbound)
	if err != nil {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("error", err.Error())
	}

	// Los sends interactivos guardan el wamid: la respuesta del cliente
	// llega referenciando ese mensaje y la traza lo necesita.
	if !msgID.IsEmpty() && (node.Type == flow.NodeSendButtons || node.Type == flow.NodeSendList) {
		wctx.Execution.SetVariable("last_message_id", msgID.String())
	}

	log.Printf("📤 Sent %s to %s (wamid=%s)", node.Type, wctx.Execution.CustomerID.String(), msgID.String())
	return engine.Continue(), nil
}

func (e *SendExecutor) buildOutbound(node *flow.Node, vars map[string]any) (*engine.OutboundMessage, error) {
	switch config := node.Config.(type) {
	case *flow.SendTextConfig:
		text, err := e.interpolator.Interpolate(config.Text, vars)
		if err != nil {
			return nil, err
		}
		return &engine.OutboundMessage{Kind: engine.OutboundText, Text: text}, nil

	case *flow.SendMediaConfig:
		url, err := e.interpolator.Interpolate(config.URL, vars)
		if err != nil {
			return nil, err
		}
		caption, err := e.interpolator.Interpolate(config.Caption, vars)
		if err != nil {
			return nil, err
		}
		return &engine.OutboundMessage{
			Kind:     mediaKind(node.Type),
			URL:      url,
			Caption:  caption,
			Filename: config.Filename,
		}, nil

	case *flow.SendLocationConfig:
		name, err := e.interpolator.Interpolate(config.Name, vars)
		if err != nil {
			return nil, err
		}
		address, err := e.interpolator.Interpolate(config.Address, vars)
		if err != nil {
			return nil, err
		}
		return &engine.OutboundMessage{
			Kind:      engine.OutboundLocation,
			Latitude:  config.Latitude,
			Longitude: config.Longitude,
			Name:      name,
			Address:   address,
		}, nil

	case *flow.SendContactConfig:
		name, err := e.interpolator.Interpolate(config.Name, vars)
		if err != nil {
			return nil, err
		}
		phone, err := e.interpolator.Interpolate(config.PhoneNumber, vars)
		if err != nil {
			return nil, err
		}
		return &engine.OutboundMessage{
			Kind:         engine.OutboundContact,
			ContactName:  name,
			ContactPhone: phone,
		}, nil

	case *flow.SendButtonsConfig:
		body, err := e.interpolator.Interpolate(config.Body, vars)
		if err != nil {
			return nil, err
		}
		buttons := make([]flow.ButtonOption, len(config.Buttons))
		for i, b := range config.Buttons {
			title, err := e.interpolator.Interpolate(b.Title, vars)
			if err != nil {
				return nil, err
			}
			buttons[i] = flow.ButtonOption{ID: b.ID, Title: title}
		}
		return &engine.OutboundMessage{
			Kind:    engine.OutboundButtons,
			Header:  config.Header,
			Body:    body,
			Footer:  config.Footer,
			Buttons: buttons,
		}, nil

	case *flow.SendListConfig:
		body, err := e.interpolator.Interpolate(config.Body, vars)
		if err != nil {
			return nil, err
		}
		return &engine.OutboundMessage{
			Kind:       engine.OutboundList,
			Header:     config.Header,
			Body:       body,
			Footer:     config.Footer,
			ButtonText: config.ButtonText,
			Sections:   config.Sections,
		}, nil
	}

	return nil, engine.ErrNodeExecutionFailed().
		WithDetail("node_id", node.ID).
		WithDetail("reason", "unexpected config type")
}

func mediaKind(nodeType flow.NodeType) engine.OutboundKind {
	switch nodeType {
	case flow.NodeSendImage:
		return engine.OutboundImage
	case flow.NodeSendVideo:
		return engine.OutboundVideo
	case flow.NodeSendAudio:
		return engine.OutboundAudio
	case flow.NodeSendDocument:
		return engine.OutboundDocument
	default:
		return engine.OutboundSticker
	}
}
