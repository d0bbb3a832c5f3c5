package models

// Graph is a complete node and edge set, either live or captured in a version.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Clone returns an independent deep copy of the graph, including settings payloads.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return &Graph{Nodes: []*Node{}, Edges: []*Edge{}}
	}

	clone := &Graph{
		Nodes: make([]*Node, 0, len(g.Nodes)),
		Edges: make([]*Edge, 0, len(g.Edges)),
	}

	for _, node := range g.Nodes {
		if node == nil {
			clone.Nodes = append(clone.Nodes, nil)

			continue
		}

		copied := *node
		copied.Settings = cloneMap(node.Settings)
		clone.Nodes = append(clone.Nodes, &copied)
	}

	for _, edge := range g.Edges {
		if edge == nil {
			clone.Edges = append(clone.Edges, nil)

			continue
		}

		copied := *edge
		copied.Settings = cloneMap(edge.Settings)

		if edge.Label != nil {
			label := *edge.Label
			copied.Label = &label
		}

		clone.Edges = append(clone.Edges, &copied)
	}

	return clone
}

// NodeIDs returns the set of node ids present in the graph.
func (g *Graph) NodeIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		if node != nil {
			ids[node.ID] = struct{}{}
		}
	}

	return ids
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch typed := v.(type) {
		case map[string]any:
			dst[k] = cloneMap(typed)
		case []any:
			dst[k] = cloneSlice(typed)
		default:
			dst[k] = v
		}
	}

	return dst
}

func cloneSlice(src []any) []any {
	dst := make([]any, len(src))
	for i, v := range src {
		switch typed := v.(type) {
		case map[string]any:
			dst[i] = cloneMap(typed)
		case []any:
			dst[i] = cloneSlice(typed)
		default:
			dst[i] = v
		}
	}

	return dst
}

// CloneSettings deep-copies an opaque settings or data payload.
func CloneSettings(src map[string]any) map[string]any {
	return cloneMap(src)
}
