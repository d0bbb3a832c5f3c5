package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_Clone_IsIndependent(t *testing.T) {
	label := "on success"
	original := &Graph{
		Nodes: []*Node{
			{
				ID:       "n1",
				Type:     NodeTypeWebhook,
				Name:     "Call",
				Settings: map[string]any{"headers": map[string]any{"x": "1"}, "retries": []any{1, 2}},
			},
		},
		Edges: []*Edge{
			{SourceNodeID: "n1", TargetNodeID: "n1", Label: &label},
		},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.Nodes[0].Name = "Renamed"
	clone.Nodes[0].Settings["headers"].(map[string]any)["x"] = "2"
	clone.Nodes[0].Settings["retries"].([]any)[0] = 9
	*clone.Edges[0].Label = "changed"

	assert.Equal(t, "Call", original.Nodes[0].Name)
	assert.Equal(t, "1", original.Nodes[0].Settings["headers"].(map[string]any)["x"])
	assert.Equal(t, 1, original.Nodes[0].Settings["retries"].([]any)[0])
	assert.Equal(t, "on success", *original.Edges[0].Label)
}

func TestGraph_Clone_Nil(t *testing.T) {
	var graph *Graph

	clone := graph.Clone()
	assert.Empty(t, clone.Nodes)
	assert.Empty(t, clone.Edges)
}

func TestGraph_NodeIDs(t *testing.T) {
	graph := &Graph{Nodes: []*Node{{ID: "a"}, {ID: "b"}}}

	ids := graph.NodeIDs()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "b")
}
