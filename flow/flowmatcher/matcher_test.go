package flowmatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// fakeFlowRepo retorna flujos en el orden ya resuelto por la base
type fakeFlowRepo struct {
	flows []*flow.Flow
	err   error
}

var _ flow.FlowRepository = (*fakeFlowRepo)(nil)

func (r *fakeFlowRepo) Save(ctx context.Context, f flow.Flow) error { return nil }
func (r *fakeFlowRepo) FindByID(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	return nil, flow.ErrFlowNotFound()
}
func (r *fakeFlowRepo) Delete(ctx context.Context, id kernel.FlowID, orgID kernel.OrgID) error {
	return nil
}
func (r *fakeFlowRepo) ExistsByName(ctx context.Context, name string, orgID kernel.OrgID) (bool, error) {
	return false, nil
}
func (r *fakeFlowRepo) FindByOrg(ctx context.Context, orgID kernel.OrgID) ([]*flow.Flow, error) {
	return nil, nil
}
func (r *fakeFlowRepo) FindRunnableByChannel(ctx context.Context, channelID kernel.ChannelID) ([]*flow.Flow, error) {
	return r.flows, r.err
}
func (r *fakeFlowRepo) List(ctx context.Context, req flow.FlowListRequest) (flow.FlowListResponse, error) {
	return flow.FlowListResponse{}, nil
}
func (r *fakeFlowRepo) BulkUpdateStatus(ctx context.Context, ids []kernel.FlowID, orgID kernel.OrgID, isActive bool) error {
	return nil
}

func runnableFlow(name string, priority int, trigger flow.Trigger) *flow.Flow {
	return &flow.Flow{
		ID:          kernel.NewFlowID("flow_" + name),
		ChannelID:   kernel.ChannelID("ch_1"),
		Name:        name,
		Trigger:     trigger,
		Priority:    priority,
		IsActive:    true,
		IsPublished: true,
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTrigger},
			{ID: "s", Type: flow.NodeSendText, Config: &flow.SendTextConfig{Text: "hola"}},
		},
		Edges:     []flow.Edge{{SourceNodeID: "t", TargetNodeID: "s"}},
		UpdatedAt: time.Now(),
	}
}

func TestMatch_KeywordWinsOverCatchAll(t *testing.T) {
	// El repo retorna en orden de prioridad: keyword primero
	repo := &fakeFlowRepo{flows: []*flow.Flow{
		runnableFlow("help-flow", 10, flow.Trigger{Type: flow.TriggerKeyword, Value: "help"}),
		runnableFlow("catch-all", 0, flow.Trigger{Type: flow.TriggerAnyMessage}),
	}}
	matcher := NewMatcher(repo)

	matched, err := matcher.Match(context.Background(), kernel.ChannelID("ch_1"), "HELP")
	require.NoError(t, err)
	assert.Equal(t, "help-flow", matched.Name)

	matched, err = matcher.Match(context.Background(), kernel.ChannelID("ch_1"), "anything else")
	require.NoError(t, err)
	assert.Equal(t, "catch-all", matched.Name)
}

func TestMatch_NoMatch(t *testing.T) {
	repo := &fakeFlowRepo{flows: []*flow.Flow{
		runnableFlow("help-flow", 10, flow.Trigger{Type: flow.TriggerKeyword, Value: "help"}),
	}}
	matcher := NewMatcher(repo)

	_, err := matcher.Match(context.Background(), kernel.ChannelID("ch_1"), "hola")
	require.Error(t, err)
}

func TestMatch_SkipsNotRunnable(t *testing.T) {
	inactive := runnableFlow("paused", 20, flow.Trigger{Type: flow.TriggerKeyword, Value: "help"})
	inactive.IsActive = false

	repo := &fakeFlowRepo{flows: []*flow.Flow{
		inactive,
		runnableFlow("active", 5, flow.Trigger{Type: flow.TriggerKeyword, Value: "help"}),
	}}
	matcher := NewMatcher(repo)

	matched, err := matcher.Match(context.Background(), kernel.ChannelID("ch_1"), "help")
	require.NoError(t, err)
	assert.Equal(t, "active", matched.Name)
}
