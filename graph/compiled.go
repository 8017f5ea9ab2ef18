package graph

// CompiledGraph is the immutable, validated result of Builder.Compile. It
// holds everything an Engine needs to execute a run: the node table, the
// three edge tables keyed by source node, the entry point, and the
// settings the graph was compiled with.
type CompiledGraph[S any] struct {
	nodes            map[string]registeredNode[S]
	nodeOrder        []string
	simpleEdges      map[string]simpleEdge
	parallelEdges    map[string]parallelEdge
	conditionalEdges map[string]conditionalEdge[S]
	entryPoint       string
	settings         Settings[S]
	mergeFn          MergeFunc[S]
}

// Manifest returns a static description of the graph for introspection
// (§4.5 GraphStart.manifest).
func (g *CompiledGraph[S]) Manifest() Manifest {
	return buildManifest(g)
}

// EntryPoint returns the node execution starts at.
func (g *CompiledGraph[S]) EntryPoint() string {
	return g.entryPoint
}

// Settings returns the settings this graph was compiled with.
func (g *CompiledGraph[S]) Settings() Settings[S] {
	return g.settings
}

// NewEngine wraps the graph in an Engine ready to Invoke, Resume, or
// Stream.
func (g *CompiledGraph[S]) NewEngine() *Engine[S] {
	return newEngine(g)
}
