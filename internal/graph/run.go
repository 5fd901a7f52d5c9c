package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/internal/node"
)

// Recorder receives one event per node execution. The audit log
// implements it; a nil Recorder disables recording.
type Recorder interface {
	RecordNodeRun(runID, graphName, nodeID, nodeType string, d time.Duration, runErr error)
}

// Result holds the outcome of one graph run.
type Result struct {
	RunID    string
	Duration time.Duration

	// Outputs maps node id to that node's outputs. On failure it holds
	// the outputs of every node that completed before the failing one.
	Outputs map[string]node.Outputs
}

// Run executes the graph once, in topological order. Each node's inputs
// are its declared params overlaid with upstream outputs wired by edges,
// with schema defaults applied last. The first node failure aborts the
// run; completed outputs stay in the returned Result.
func (g *Graph) Run(ctx context.Context, reg *node.Registry, rec Recorder) (*Result, error) {
	result := &Result{
		RunID:   uuid.NewString(),
		Outputs: make(map[string]node.Outputs, len(g.Nodes)),
	}

	specs := make(map[string]NodeSpec, len(g.Nodes))
	for _, spec := range g.Nodes {
		specs[spec.ID] = spec
	}

	slog.Info("graph run started", "run", result.RunID, "graph", g.Name, "nodes", len(g.Nodes))
	runStart := time.Now()

	for _, id := range g.order {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(runStart)
			return result, fmt.Errorf("run %s canceled before node %q: %w", result.RunID, id, err)
		}

		spec := specs[id]
		n, ok := reg.Get(spec.Type)
		if !ok {
			// Registry changed since Load. Treat as a node failure.
			result.Duration = time.Since(runStart)
			return result, fmt.Errorf("run %s: node %q: type %q no longer registered", result.RunID, id, spec.Type)
		}

		inputs := make(node.Inputs, len(spec.Params))
		for k, v := range spec.Params {
			inputs[k] = v
		}
		for _, e := range g.Edges {
			if e.To.Node != id {
				continue
			}
			upstream, done := result.Outputs[e.From.Node]
			if !done {
				continue
			}
			if v, ok := upstream[e.From.Port]; ok {
				inputs[e.To.Port] = v
			}
		}
		inputs = n.Schema().ApplyDefaults(inputs)

		start := time.Now()
		out, err := n.Execute(ctx, inputs)
		elapsed := time.Since(start)

		reg.RecordRun(spec.Type, elapsed, err != nil)
		if rec != nil {
			rec.RecordNodeRun(result.RunID, g.Name, id, spec.Type, elapsed, err)
		}

		if err != nil {
			slog.Error("node failed", "run", result.RunID, "node", id, "type", spec.Type, "error", err)
			result.Duration = time.Since(runStart)
			return result, fmt.Errorf("node %q (%s): %w", id, spec.Type, err)
		}

		slog.Debug("node completed", "run", result.RunID, "node", id, "type", spec.Type,
			"duration_us", elapsed.Microseconds())
		result.Outputs[id] = out
	}

	result.Duration = time.Since(runStart)
	slog.Info("graph run finished", "run", result.RunID, "graph", g.Name,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// Order returns the computed execution order. Empty before Load.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
