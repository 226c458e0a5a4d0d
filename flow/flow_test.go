package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerMatches_Keyword(t *testing.T) {
	trigger := Trigger{Type: TriggerKeyword, Value: "HELP"}

	assert.True(t, trigger.Matches("HELP"))
	assert.True(t, trigger.Matches("help"))
	assert.True(t, trigger.Matches("  help  "))
	assert.True(t, trigger.Matches("help me please"))

	// Nunca substring en medio del texto
	assert.False(t, trigger.Matches("i need help"))
	assert.False(t, trigger.Matches("helpful"))
	assert.False(t, trigger.Matches(""))
}

func TestTriggerMatches_CaseSensitive(t *testing.T) {
	trigger := Trigger{Type: TriggerKeyword, Value: "HELP", CaseSensitive: true}

	assert.True(t, trigger.Matches("HELP"))
	assert.True(t, trigger.Matches("HELP me"))
	assert.False(t, trigger.Matches("help"))
	assert.False(t, trigger.Matches("Help"))
}

func TestTriggerMatches_AnyMessage(t *testing.T) {
	trigger := Trigger{Type: TriggerAnyMessage}

	assert.True(t, trigger.Matches("hola"))
	assert.True(t, trigger.Matches(""))
}

func TestTriggerMatches_EmptyKeyword(t *testing.T) {
	trigger := Trigger{Type: TriggerKeyword, Value: "   "}

	assert.False(t, trigger.Matches("anything"))
	assert.False(t, trigger.Matches(""))
}

func newTestFlow() Flow {
	return Flow{
		Name: "greeting",
		Nodes: []Node{
			{ID: "n1", Type: NodeTrigger, Config: &TriggerConfig{Trigger{Type: TriggerKeyword, Value: "hi"}}},
			{ID: "n2", Type: NodeSendText, Config: &SendTextConfig{Text: "Hello!"}},
			{ID: "n3", Type: NodeEnd, Config: &EndConfig{}},
		},
		Edges: []Edge{
			{SourceNodeID: "n1", TargetNodeID: "n2"},
			{SourceNodeID: "n2", TargetNodeID: "n3"},
		},
	}
}

func TestFlowValidate_OK(t *testing.T) {
	f := newTestFlow()
	require.NoError(t, f.Validate())
}

func TestFlowValidate_NoTrigger(t *testing.T) {
	f := newTestFlow()
	f.Nodes = f.Nodes[1:]
	f.Edges = f.Edges[1:]

	err := f.Validate()
	require.Error(t, err)
}

func TestFlowValidate_DuplicateNodeID(t *testing.T) {
	f := newTestFlow()
	f.Nodes = append(f.Nodes, Node{ID: "n2", Type: NodeSendText, Config: &SendTextConfig{Text: "again"}})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlowValidate_EdgeToMissingNode(t *testing.T) {
	f := newTestFlow()
	f.Edges = append(f.Edges, Edge{SourceNodeID: "n3", TargetNodeID: "ghost"})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlowValidate_AmbiguousFanOut(t *testing.T) {
	f := newTestFlow()
	// Dos aristas con el mismo (source, handle) se rechazan al publicar
	f.Edges = append(f.Edges, Edge{SourceNodeID: "n2", TargetNodeID: "n3"})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlowValidate_DistinctHandlesAllowed(t *testing.T) {
	f := newTestFlow()
	f.Nodes[1] = Node{ID: "n2", Type: NodeCondition, Config: &ConditionConfig{
		Conditions: []ConditionRule{
			{Variable: "age", Operator: OpGt, Value: "18", OutputHandle: "adult"},
		},
		DefaultHandle: "minor",
	}}
	f.Edges = []Edge{
		{SourceNodeID: "n1", TargetNodeID: "n2"},
		{SourceNodeID: "n2", SourceHandle: "adult", TargetNodeID: "n3"},
		{SourceNodeID: "n2", SourceHandle: "minor", TargetNodeID: "n3"},
	}

	require.NoError(t, f.Validate())
}

func TestEntryNodeID(t *testing.T) {
	f := newTestFlow()
	assert.Equal(t, "n2", f.EntryNodeID())
}

func TestOutgoingEdge(t *testing.T) {
	f := newTestFlow()

	edge := f.OutgoingEdge("n2", "")
	require.NotNil(t, edge)
	assert.Equal(t, "n3", edge.TargetNodeID)

	assert.Nil(t, f.OutgoingEdge("n3", ""))
	assert.Nil(t, f.OutgoingEdge("n2", "true"))
}

func TestNodeUnmarshalJSON(t *testing.T) {
	raw := `{
		"id": "n5",
		"type": "sendButtons",
		"config": {
			"body": "Pick one",
			"buttons": [
				{"id": "yes", "title": "Yes"},
				{"id": "no", "title": "No"}
			]
		}
	}`

	var node Node
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.Equal(t, "n5", node.ID)
	assert.Equal(t, NodeSendButtons, node.Type)

	config, ok := node.Config.(*SendButtonsConfig)
	require.True(t, ok)
	assert.Equal(t, "Pick one", config.Body)
	require.Len(t, config.Buttons, 2)
	assert.Equal(t, "yes", config.Buttons[0].ID)
}

func TestNodeUnmarshalJSON_UnknownType(t *testing.T) {
	raw := `{"id": "n1", "type": "teleport", "config": {}}`

	var node Node
	err := json.Unmarshal([]byte(raw), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestNodeUnmarshalJSON_MediaKeepsType(t *testing.T) {
	raw := `{"id": "n1", "type": "sendImage", "config": {"url": "https://cdn.example.com/a.png"}}`

	var node Node
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	config, ok := node.Config.(*SendMediaConfig)
	require.True(t, ok)
	assert.Equal(t, NodeSendImage, config.GetType())
}

func TestConditionConfigValidate(t *testing.T) {
	config := &ConditionConfig{
		Conditions: []ConditionRule{
			{Variable: "reply", Operator: OpEquals, Value: "yes", OutputHandle: "yes"},
		},
		DefaultHandle: "other",
	}
	require.NoError(t, config.Validate())

	config.Conditions[0].Operator = "between"
	require.Error(t, config.Validate())

	config.Conditions[0].Operator = OpEquals
	config.DefaultHandle = ""
	require.Error(t, config.Validate())
}

func TestLoopConfigValidate(t *testing.T) {
	config := &LoopConfig{Mode: LoopCount, MaxIterations: 3}
	require.NoError(t, config.Validate())

	config.MaxIterations = 0
	require.Error(t, config.Validate())

	whileConfig := &LoopConfig{Mode: LoopWhile, MaxIterations: 10}
	require.Error(t, whileConfig.Validate())

	whileConfig.Condition = &ConditionRule{Variable: "count", Operator: OpLt, Value: "5", OutputHandle: "loop"}
	require.NoError(t, whileConfig.Validate())
}
