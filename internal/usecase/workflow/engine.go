package workflow

import (
	"context"
	"fmt"

	"agentic-rag/internal/domain"
)

// NodeFunc is one workflow node: a pure function of the current turn
// state that returns the next turn state. Nodes are expected to copy
// (via domain.TurnState.Clone) rather than mutate their input in place.
type NodeFunc func(ctx context.Context, state domain.TurnState) (domain.TurnState, error)

// ConditionalEdge picks the next node name given the state a node just
// produced.
type ConditionalEdge func(state domain.TurnState) string

// End is the reserved next-node name that stops the graph.
const End = ""

// Graph is a minimal state-machine runner: named nodes, each wired to
// either a fixed next node or a conditional edge chosen at runtime.
// State accumulates monotonically — each node receives the accumulator
// produced by the previous node and returns the next accumulator in
// full, so a node that doesn't touch a field simply carries its prior
// value forward.
type Graph struct {
	nodes      map[string]NodeFunc
	staticEdge map[string]string
	condEdge   map[string]ConditionalEdge
	start      string
	maxSteps   int
}

func NewGraph(start string) *Graph {
	return &Graph{
		nodes:      make(map[string]NodeFunc),
		staticEdge: make(map[string]string),
		condEdge:   make(map[string]ConditionalEdge),
		start:      start,
		maxSteps:   64,
	}
}

func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

func (g *Graph) AddEdge(from, to string) *Graph {
	g.staticEdge[from] = to
	return g
}

func (g *Graph) AddConditionalEdge(from string, fn ConditionalEdge) *Graph {
	g.condEdge[from] = fn
	return g
}

// Run executes the graph starting at g.start until a node routes to
// End, or until maxSteps is exceeded (a cycle-guard, not a retry bound —
// retry bounds belong to the node logic itself, e.g. the Rewriter).
func (g *Graph) Run(ctx context.Context, initial domain.TurnState) (domain.TurnState, error) {
	state := initial
	current := g.start

	for step := 0; ; step++ {
		if step >= g.maxSteps {
			return state, fmt.Errorf("workflow exceeded max steps (%d) starting at %q", g.maxSteps, g.start)
		}
		if current == End {
			return state, nil
		}

		node, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("workflow: unknown node %q", current)
		}

		next, err := node(ctx, state)
		if err != nil {
			return state, fmt.Errorf("workflow: node %q: %w", current, err)
		}
		state = next

		if cond, ok := g.condEdge[current]; ok {
			current = cond(state)
			continue
		}
		if to, ok := g.staticEdge[current]; ok {
			current = to
			continue
		}
		return state, nil
	}
}
