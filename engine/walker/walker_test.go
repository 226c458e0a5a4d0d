package walker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/engine/nodeexec"
	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeGateway struct {
	sent    []engine.OutboundMessage
	sendErr error
}

var _ engine.MessageGateway = (*fakeGateway)(nil)

func (g *fakeGateway) Send(_ context.Context, _ kernel.ChannelID, _ kernel.CustomerID, msg engine.OutboundMessage) (kernel.MessageID, error) {
	if g.sendErr != nil {
		return kernel.MessageID(""), g.sendErr
	}
	g.sent = append(g.sent, msg)
	return kernel.NewMessageID("wamid.test"), nil
}

func (g *fakeGateway) MarkAsRead(_ context.Context, _ kernel.ChannelID, _ kernel.MessageID) error {
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func newTestWalker(gateway engine.MessageGateway, maxSteps int) *Walker {
	interpolator := engine.NewInterpolator()
	return NewWalker(
		nil, // sin traza en tests
		gateway,
		maxSteps,
		nodeexec.NewSendExecutor(gateway, interpolator),
		nodeexec.NewWaitExecutor(),
		nodeexec.NewConditionExecutor(),
		nodeexec.NewSetVariableExecutor(interpolator),
		nodeexec.NewLoopExecutor(),
		nodeexec.NewAPICallExecutor(interpolator),
		nodeexec.NewEndExecutor(),
	)
}

func newTestFlow(nodes []flow.Node, edges []flow.Edge) *flow.Flow {
	return &flow.Flow{
		ID:          kernel.NewFlowID("flow_test"),
		OrgID:       kernel.NewOrgID("org_1"),
		ChannelID:   kernel.NewChannelID("111222333"),
		Name:        "test flow",
		Trigger:     flow.Trigger{Type: flow.TriggerKeyword, Value: "HELP"},
		IsActive:    true,
		IsPublished: true,
		Nodes:       nodes,
		Edges:       edges,
	}
}

func triggerNode(id string) flow.Node {
	return flow.Node{
		ID:     id,
		Type:   flow.NodeTrigger,
		Config: &flow.TriggerConfig{Trigger: flow.Trigger{Type: flow.TriggerKeyword, Value: "HELP"}},
	}
}

func endNode(id string) flow.Node {
	return flow.Node{ID: id, Type: flow.NodeEnd, Config: &flow.EndConfig{}}
}

func newWalkContext(f *flow.Flow) *engine.WalkContext {
	exec := engine.NewExecution(f, kernel.NewCustomerID("51999888777"))
	return &engine.WalkContext{Flow: f, Execution: exec}
}

// ============================================================================
// Walk
// ============================================================================

func TestWalk_SendTextThenEnd(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "Hola {{name}}"}},
			endNode("n3"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)

	wctx := newWalkContext(f)
	wctx.Execution.SetVariable("name", "Ana")

	err := w.Walk(context.Background(), wctx)
	require.NoError(t, err)

	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, engine.OutboundText, gateway.sent[0].Kind)
	assert.Equal(t, "Hola Ana", gateway.sent[0].Text)
}

func TestWalk_DeadEndCompletesExecution(t *testing.T) {
	// Sin arista saliente tras el send el camino termina con éxito
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "chau"}},
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
		},
	)

	w := newTestWalker(&fakeGateway{}, 100)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))
	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
}

func TestWalk_SuspendsOnWaitForReply(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeWaitForReply, Config: &flow.WaitForReplyConfig{
				ExpectedType: flow.ExpectText,
				VariableName: "favorite_color",
			}},
			endNode("n3"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
		},
	)

	w := newTestWalker(&fakeGateway{}, 100)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))

	exec := wctx.Execution
	assert.Equal(t, engine.ExecutionStatusWaiting, exec.Status)
	require.NotNil(t, exec.Wait)
	assert.Equal(t, "n2", exec.Wait.NodeID)
	assert.Equal(t, "favorite_color", exec.Wait.VariableName)
	assert.True(t, exec.IsWaitingReply())
}

func TestWalk_ConditionRoutesByHandle(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeCondition, Config: &flow.ConditionConfig{
				Conditions: []flow.ConditionRule{
					{Variable: "age", Operator: flow.OpGt, Value: "18", OutputHandle: "adult"},
				},
				DefaultHandle: "minor",
			}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "bienvenido"}},
			{ID: "n4", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "lo siento"}},
			endNode("n5"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourceHandle: "adult", TargetNodeID: "n3"},
			{SourceNodeID: "n2", SourceHandle: "minor", TargetNodeID: "n4"},
			{SourceNodeID: "n3", TargetNodeID: "n5"},
			{SourceNodeID: "n4", TargetNodeID: "n5"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)

	wctx := newWalkContext(f)
	wctx.Execution.SetVariable("age", float64(25))

	require.NoError(t, w.Walk(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "bienvenido", gateway.sent[0].Text)
}

func TestWalk_LoopCountRunsBodyNTimes(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeLoop, Config: &flow.LoopConfig{
				Mode:          flow.LoopCount,
				MaxIterations: 3,
			}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "ping"}},
			endNode("n4"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourceHandle: "loop", TargetNodeID: "n3"},
			{SourceNodeID: "n3", TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourceHandle: "done", TargetNodeID: "n4"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
	assert.Len(t, gateway.sent, 3)
	// Al salir el contador queda limpio para una próxima pasada
	assert.Equal(t, 0, wctx.Execution.LoopCounter("n2"))
}

func TestWalk_StepBudgetExceeded(t *testing.T) {
	// Ciclo sin salida: setVariable que vuelve sobre sí mismo
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeSetVariable, Config: &flow.SetVariableConfig{
				Assignments: []flow.VariableAssignment{
					{Name: "x", Source: flow.AssignStatic, Value: "1"},
				},
			}},
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n2"},
		},
	)

	w := newTestWalker(&fakeGateway{}, 10)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusFailed, wctx.Execution.Status)
	assert.Equal(t, "step budget exceeded", wctx.Execution.FailureReason)
}

func TestWalk_GatewayErrorFailsExecution(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "hola"}},
			endNode("n3"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
		},
	)

	w := newTestWalker(&fakeGateway{sendErr: assert.AnError}, 100)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))
	assert.Equal(t, engine.ExecutionStatusFailed, wctx.Execution.Status)
}

func TestWalk_APICallFailureFailsExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeAPICall, Config: &flow.APICallConfig{Method: "GET", URL: server.URL}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "listo"}},
			endNode("n4"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
			{SourceNodeID: "n3", TargetNodeID: "n4"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusFailed, wctx.Execution.Status)
	assert.Empty(t, gateway.sent)
}

func TestWalk_APICallSuccessFollowsDefaultEdge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	// La salida "success" no tiene arista propia: cae a la default
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeAPICall, Config: &flow.APICallConfig{Method: "GET", URL: server.URL}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "listo"}},
			endNode("n4"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
			{SourceNodeID: "n3", TargetNodeID: "n4"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)
	wctx := newWalkContext(f)

	require.NoError(t, w.Walk(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "listo", gateway.sent[0].Text)
}

// ============================================================================
// ResumeWithReply
// ============================================================================

func waitFlow(expected flow.ExpectedInput, retryMessage string) *flow.Flow {
	return newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeWaitForReply, Config: &flow.WaitForReplyConfig{
				ExpectedType: expected,
				VariableName: "answer",
				RetryMessage: retryMessage,
			}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "gracias, {{answer}}"}},
			endNode("n4"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
			{SourceNodeID: "n3", TargetNodeID: "n4"},
		},
	)
}

func reply(text, replyID string) *engine.IncomingMessage {
	return &engine.IncomingMessage{
		ID:        kernel.NewMessageID("wamid.reply"),
		ChannelID: kernel.NewChannelID("111222333"),
		From:      kernel.NewCustomerID("51999888777"),
		Type:      "text",
		Text:      text,
		ReplyID:   replyID,
		Timestamp: time.Now(),
	}
}

func TestResumeWithReply_StoresVariableAndContinues(t *testing.T) {
	f := waitFlow(flow.ExpectText, "")
	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)

	wctx := newWalkContext(f)
	require.NoError(t, w.Walk(context.Background(), wctx))
	require.True(t, wctx.Execution.IsWaitingReply())

	wctx.Message = reply("blue", "")
	require.NoError(t, w.ResumeWithReply(context.Background(), wctx))

	exec := wctx.Execution
	assert.Equal(t, engine.ExecutionStatusCompleted, exec.Status)

	value, ok := exec.GetVariable("answer")
	require.True(t, ok)
	assert.Equal(t, "blue", value)

	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "gracias, blue", gateway.sent[0].Text)
}

func TestResumeWithReply_NumberParsed(t *testing.T) {
	f := waitFlow(flow.ExpectNumber, "")
	w := newTestWalker(&fakeGateway{}, 100)

	wctx := newWalkContext(f)
	require.NoError(t, w.Walk(context.Background(), wctx))

	wctx.Message = reply("  42 ", "")
	require.NoError(t, w.ResumeWithReply(context.Background(), wctx))

	value, ok := wctx.Execution.GetVariable("answer")
	require.True(t, ok)
	assert.Equal(t, float64(42), value)
}

func TestResumeWithReply_InvalidNumberRetriesThenFails(t *testing.T) {
	f := waitFlow(flow.ExpectNumber, "Por favor envía un número")
	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)

	wctx := newWalkContext(f)
	require.NoError(t, w.Walk(context.Background(), wctx))

	// Dos rechazos: se reenvía el prompt y la espera sigue viva
	for i := 0; i < 2; i++ {
		wctx.Message = reply("no soy un número", "")
		require.NoError(t, w.ResumeWithReply(context.Background(), wctx))
		assert.True(t, wctx.Execution.IsWaitingReply())
		assert.Equal(t, i+1, wctx.Execution.Wait.Retries)
	}
	require.Len(t, gateway.sent, 2)
	assert.Equal(t, "Por favor envía un número", gateway.sent[0].Text)

	// Al tercer rechazo la ejecución falla y libera al cliente
	wctx.Message = reply("tampoco", "")
	require.NoError(t, w.ResumeWithReply(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusFailed, wctx.Execution.Status)
	assert.Equal(t, "too many invalid replies", wctx.Execution.FailureReason)
	assert.Len(t, gateway.sent, 2)
}

func TestResumeWithReply_ExpiredWaitFails(t *testing.T) {
	f := waitFlow(flow.ExpectText, "")
	w := newTestWalker(&fakeGateway{}, 100)

	wctx := newWalkContext(f)
	require.NoError(t, w.Walk(context.Background(), wctx))

	expired := time.Now().Add(-time.Minute)
	wctx.Execution.Wait.ExpiresAt = &expired

	wctx.Message = reply("llego tarde", "")
	require.NoError(t, w.ResumeWithReply(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusFailed, wctx.Execution.Status)
	assert.Equal(t, "wait timeout", wctx.Execution.FailureReason)
}

func TestResumeWithReply_NotWaitingIsError(t *testing.T) {
	f := waitFlow(flow.ExpectText, "")
	w := newTestWalker(&fakeGateway{}, 100)

	wctx := newWalkContext(f)
	wctx.Message = reply("hola", "")

	err := w.ResumeWithReply(context.Background(), wctx)
	require.Error(t, err)
}

func TestResumeWithReply_ButtonRoutesByReplyID(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeWaitForReply, Config: &flow.WaitForReplyConfig{
				ExpectedType: flow.ExpectButton,
				VariableName: "choice",
			}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "confirmado"}},
			{ID: "n4", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "opción desconocida"}},
			endNode("n5"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourceHandle: "btn_yes", TargetNodeID: "n3"},
			{SourceNodeID: "n2", TargetNodeID: "n4"}, // default para botones sin arista propia
			{SourceNodeID: "n3", TargetNodeID: "n5"},
			{SourceNodeID: "n4", TargetNodeID: "n5"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)

	wctx := newWalkContext(f)
	require.NoError(t, w.Walk(context.Background(), wctx))

	wctx.Message = reply("Sí", "btn_yes")
	require.NoError(t, w.ResumeWithReply(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "confirmado", gateway.sent[0].Text)

	value, _ := wctx.Execution.GetVariable("choice")
	assert.Equal(t, "btn_yes", value)
}

func TestResumeWithReply_ButtonFallsBackToDefaultEdge(t *testing.T) {
	f := newTestFlow(
		[]flow.Node{
			triggerNode("n1"),
			{ID: "n2", Type: flow.NodeWaitForReply, Config: &flow.WaitForReplyConfig{
				ExpectedType: flow.ExpectButton,
				VariableName: "choice",
			}},
			{ID: "n3", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "por defecto"}},
			endNode("n4"),
		},
		[]flow.Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
			{SourceNodeID: "n3", TargetNodeID: "n4"},
		},
	)

	gateway := &fakeGateway{}
	w := newTestWalker(gateway, 100)

	wctx := newWalkContext(f)
	require.NoError(t, w.Walk(context.Background(), wctx))

	wctx.Message = reply("Otra cosa", "btn_unknown")
	require.NoError(t, w.ResumeWithReply(context.Background(), wctx))

	assert.Equal(t, engine.ExecutionStatusCompleted, wctx.Execution.Status)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "por defecto", gateway.sent[0].Text)
}
