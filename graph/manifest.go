package graph

import "gopkg.in/yaml.v3"

// YAML renders the manifest for external introspection tooling (§4.5
// GraphStart.manifest).
func (m Manifest) YAML() (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func buildManifest[S any](g *CompiledGraph[S]) Manifest {
	nodes := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}

	simple := make(map[string]string, len(g.simpleEdges))
	for from, e := range g.simpleEdges {
		simple[from] = e.to
	}
	parallel := make(map[string][]string, len(g.parallelEdges))
	for from, e := range g.parallelEdges {
		parallel[from] = e.targets
	}
	conditional := make(map[string][]string, len(g.conditionalEdges))
	for from, e := range g.conditionalEdges {
		targets := make([]string, 0, len(e.routes))
		for _, to := range e.routes {
			targets = append(targets, to)
		}
		conditional[from] = targets
	}

	return Manifest{
		Nodes:            nodes,
		SimpleEdges:      simple,
		ParallelEdges:    parallel,
		ConditionalEdges: conditional,
		EntryPoint:       g.entryPoint,
		Settings: ManifestSettings{
			GraphTimeout:          g.settings.GraphTimeout.String(),
			NodeTimeout:           g.settings.NodeTimeout.String(),
			RecursionLimit:        g.settings.RecursionLimit,
			MaxStateSize:          g.settings.MaxStateSize,
			MaxParallelTasks:      g.settings.MaxParallelTasks,
			StreamChannelCapacity: g.settings.StreamChannelCapacity,
			InterruptBefore:       g.settings.InterruptBefore,
			InterruptAfter:        g.settings.InterruptAfter,
			MetricsEnabled:        g.settings.MetricsEnabled,
		},
	}
}
