package graph

import "fmt"

// resolveEdges determines the next node(s) to run after fromNode, probing
// conditional, parallel, and simple edges in strict priority order (§4.3).
// Conditional edges win even when a simple or parallel edge coexists on the
// same source; if nothing matches, the route falls through to the shared
// END sentinel.
func resolveEdges[S any](g *CompiledGraph[S], fromNode string, state S) (Route, error) {
	if ce, ok := g.conditionalEdges[fromNode]; ok {
		tag := ce.classifier(state)
		to, ok := ce.routes[tag]
		if !ok {
			return Route{}, &EngineError{
				Message: fmt.Sprintf("conditional classifier returned tag %q with no route", tag),
				Code:    "INVALID_EDGE",
				NodeID:  fromNode,
				Cause:   ErrInvalidEdge,
			}
		}
		alternatives := make([]RouteAlternative, 0, len(ce.routes)-1)
		for altTag, altTo := range ce.routes {
			if altTag == tag {
				continue
			}
			alternatives = append(alternatives, RouteAlternative{
				To:           altTo,
				Reason:       fmt.Sprintf("condition returned %q, not %q", tag, altTag),
				WasEvaluated: false,
			})
		}
		return Route{
			Type:             EdgeConditional,
			To:               to,
			EvaluationResult: tag,
			Alternatives:     alternatives,
		}, nil
	}

	if pe, ok := g.parallelEdges[fromNode]; ok {
		return Route{Type: EdgeParallel, Targets: pe.targets}, nil
	}

	if se, ok := g.simpleEdges[fromNode]; ok {
		return Route{Type: EdgeSimple, To: se.to}, nil
	}

	return Route{Type: EdgeSimple, To: endSentinel}, nil
}
