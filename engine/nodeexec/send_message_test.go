package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

type recordingGateway struct {
	sent []engine.OutboundMessage
}

var _ engine.MessageGateway = (*recordingGateway)(nil)

func (g *recordingGateway) Send(_ context.Context, _ kernel.ChannelID, _ kernel.CustomerID, msg engine.OutboundMessage) (kernel.MessageID, error) {
	g.sent = append(g.sent, msg)
	return kernel.NewMessageID("wamid.out.1"), nil
}

func (g *recordingGateway) MarkAsRead(_ context.Context, _ kernel.ChannelID, _ kernel.MessageID) error {
	return nil
}

func runSend(t *testing.T, gateway *recordingGateway, wctx *engine.WalkContext, node *flow.Node) {
	t.Helper()
	executor := NewSendExecutor(gateway, engine.NewInterpolator())
	_, err := executor.Execute(context.Background(), wctx, node)
	require.NoError(t, err)
}

func TestSendButtons_RecordsOutboundMessageID(t *testing.T) {
	gateway := &recordingGateway{}
	wctx := newUtilityContext(nil)

	runSend(t, gateway, wctx, &flow.Node{
		ID:   "n-btn",
		Type: flow.NodeSendButtons,
		Config: &flow.SendButtonsConfig{
			Body: "¿Confirmas tu pedido?",
			Buttons: []flow.ButtonOption{
				{ID: "btn_yes", Title: "Sí"},
				{ID: "btn_no", Title: "No"},
			},
		},
	})

	require.Len(t, gateway.sent, 1)
	msgID, ok := wctx.Execution.GetVariable("last_message_id")
	require.True(t, ok)
	assert.Equal(t, "wamid.out.1", msgID)
}

func TestSendList_RecordsOutboundMessageID(t *testing.T) {
	gateway := &recordingGateway{}
	wctx := newUtilityContext(nil)

	runSend(t, gateway, wctx, &flow.Node{
		ID:   "n-list",
		Type: flow.NodeSendList,
		Config: &flow.SendListConfig{
			Body:       "Elige una opción",
			ButtonText: "Ver menú",
			Sections: []flow.ListSection{
				{Title: "Bebidas", Rows: []flow.ListRow{{ID: "row_cafe", Title: "Café"}}},
			},
		},
	})

	require.Len(t, gateway.sent, 1)
	msgID, ok := wctx.Execution.GetVariable("last_message_id")
	require.True(t, ok)
	assert.Equal(t, "wamid.out.1", msgID)
}

func TestSendText_DoesNotRecordMessageID(t *testing.T) {
	gateway := &recordingGateway{}
	wctx := newUtilityContext(nil)

	runSend(t, gateway, wctx, &flow.Node{
		ID:     "n-text",
		Type:   flow.NodeSendText,
		Config: &flow.SendTextConfig{Text: "hola"},
	})

	require.Len(t, gateway.sent, 1)
	_, ok := wctx.Execution.GetVariable("last_message_id")
	assert.False(t, ok)
}
