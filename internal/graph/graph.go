// Package graph loads and executes node graph documents.
//
// A graph is a YAML document declaring node instances and the edges that
// wire one node's output port to another node's input port:
//
//	name: chat-and-pick
//	nodes:
//	  - id: ask
//	    type: msg_append
//	    params: {role: user, content: "What time is it?"}
//	  - id: complete
//	    type: chat_complete
//	    params: {model: gpt-4o-mini}
//	edges:
//	  - {from: ask.messages_json_out, to: complete.messages_json}
//
// Load validates the document against the node registry (known types,
// declared ports, no duplicate ids, no cycles) so a graph that loads is
// a graph that can run.
package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nodeflow/nodeflow/internal/node"
)

// Graph is a validated node graph, ready to run.
type Graph struct {
	Name  string     `yaml:"name"`
	Nodes []NodeSpec `yaml:"nodes"`
	Edges []Edge     `yaml:"edges"`

	// order is the topological execution order, computed during Load.
	order []string
}

// NodeSpec declares one node instance in the graph.
type NodeSpec struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// Edge wires an upstream output port to a downstream input port.
type Edge struct {
	From PortRef `yaml:"from"`
	To   PortRef `yaml:"to"`
}

// PortRef addresses a port as "nodeID.port". Ports may themselves
// contain no dots, so the first dot splits the reference.
type PortRef struct {
	Node string
	Port string
}

// UnmarshalYAML parses the "nodeID.port" form.
func (p *PortRef) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	nodeID, port, ok := strings.Cut(raw, ".")
	if !ok || nodeID == "" || port == "" {
		return fmt.Errorf("port reference %q: want \"node.port\"", raw)
	}

	p.Node = nodeID
	p.Port = port
	return nil
}

// String renders the reference back to its document form.
func (p PortRef) String() string {
	return p.Node + "." + p.Port
}

// Load reads a graph document and validates it against the registry.
func Load(path string, reg *node.Registry) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph %s: %w", path, err)
	}

	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing graph %s: %w", path, err)
	}

	if g.Name == "" {
		base := filepath.Base(path)
		g.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := g.validate(reg); err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", path, err)
	}

	return &g, nil
}

// validate checks the document against the registry and computes the
// execution order. First error wins.
func (g *Graph) validate(reg *node.Registry) error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}

	specs := make(map[string]NodeSpec, len(g.Nodes))
	for _, spec := range g.Nodes {
		if spec.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if _, dup := specs[spec.ID]; dup {
			return fmt.Errorf("duplicate node id %q", spec.ID)
		}

		n, ok := reg.Get(spec.Type)
		if !ok {
			return fmt.Errorf("node %q: unknown type %q", spec.ID, spec.Type)
		}

		// Params must name declared input ports.
		schema := n.Schema()
		for name := range spec.Params {
			if _, ok := schema.InputPort(name); !ok {
				return fmt.Errorf("node %q: type %q has no input %q", spec.ID, spec.Type, name)
			}
		}

		specs[spec.ID] = spec
	}

	for _, e := range g.Edges {
		from, ok := specs[e.From.Node]
		if !ok {
			return fmt.Errorf("edge %s -> %s: unknown node %q", e.From, e.To, e.From.Node)
		}
		to, ok := specs[e.To.Node]
		if !ok {
			return fmt.Errorf("edge %s -> %s: unknown node %q", e.From, e.To, e.To.Node)
		}

		fromNode, _ := reg.Get(from.Type)
		if _, ok := fromNode.Schema().OutputPort(e.From.Port); !ok {
			return fmt.Errorf("edge %s -> %s: %q has no output %q", e.From, e.To, from.Type, e.From.Port)
		}
		toNode, _ := reg.Get(to.Type)
		if _, ok := toNode.Schema().InputPort(e.To.Port); !ok {
			return fmt.Errorf("edge %s -> %s: %q has no input %q", e.From, e.To, to.Type, e.To.Port)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order

	return nil
}

// topoSort computes an execution order via Kahn's algorithm, keeping
// declaration order among ready nodes so runs are deterministic.
func (g *Graph) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	downstream := make(map[string][]string)

	for _, spec := range g.Nodes {
		indegree[spec.ID] = 0
	}
	for _, e := range g.Edges {
		indegree[e.To.Node]++
		downstream[e.From.Node] = append(downstream[e.From.Node], e.To.Node)
	}

	var order []string
	for len(order) < len(g.Nodes) {
		progressed := false
		for _, spec := range g.Nodes {
			if indegree[spec.ID] != 0 {
				continue
			}
			order = append(order, spec.ID)
			indegree[spec.ID] = -1 // visited
			for _, next := range downstream[spec.ID] {
				indegree[next]--
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("graph contains a cycle")
		}
	}

	return order, nil
}

// SetParam overrides one node parameter (used by `nodeflow run --set`).
// The reference uses the same "nodeID.param" form as edges.
func (g *Graph) SetParam(ref, value string) error {
	nodeID, param, ok := strings.Cut(ref, ".")
	if !ok || nodeID == "" || param == "" {
		return fmt.Errorf("parameter reference %q: want \"node.param\"", ref)
	}

	for i := range g.Nodes {
		if g.Nodes[i].ID != nodeID {
			continue
		}
		if g.Nodes[i].Params == nil {
			g.Nodes[i].Params = make(map[string]any)
		}
		g.Nodes[i].Params[param] = value
		return nil
	}
	return fmt.Errorf("parameter reference %q: no node %q in graph", ref, nodeID)
}
