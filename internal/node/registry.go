package node

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Stats holds cumulative run counters for one node type.
type Stats struct {
	Runs     uint64    `yaml:"runs" json:"runs"`
	Failures uint64    `yaml:"failures" json:"failures"`
	TotalUs  int64     `yaml:"total_us" json:"total_us"`
	LastRun  time.Time `yaml:"last_run" json:"last_run"`
}

// Registry is the set of registered node types plus per-type run stats.
// Thread-safe — the graph runner records runs concurrently while the
// dashboard and CLI read.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Node
	stats map[string]*Stats
	path  string // Path to nodes.yaml for stats persistence ("" disables).
}

// statsFile is the YAML envelope for nodes.yaml.
type statsFile struct {
	Nodes map[string]*Stats `yaml:"nodes"`
}

// NewRegistry creates a registry. If path is non-empty, previously saved
// run stats are loaded from it; a missing file is not an error.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		nodes: make(map[string]Node),
		stats: make(map[string]*Stats),
		path:  path,
	}

	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("reading node stats %s: %w", path, err)
	}
	if len(data) == 0 {
		return r, nil
	}

	var file statsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing node stats %s: %w", path, err)
	}
	if file.Nodes != nil {
		r.stats = file.Nodes
	}

	return r, nil
}

// Register adds a node type. Registering a duplicate ID is an error —
// node IDs are the graph document's vocabulary and must be unambiguous.
func (r *Registry) Register(n Node) error {
	id := n.Schema().ID
	if id == "" {
		return fmt.Errorf("node schema has empty ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[id]; exists {
		return fmt.Errorf("node %q already registered", id)
	}
	r.nodes[id] = n
	if r.stats[id] == nil {
		r.stats[id] = &Stats{}
	}
	return nil
}

// Get returns the node registered under the given ID.
func (r *Registry) Get(id string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

// List returns the schemas of all registered nodes, sorted by ID.
func (r *Registry) List() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(r.nodes))
	for _, n := range r.nodes {
		schemas = append(schemas, n.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].ID < schemas[j].ID })
	return schemas
}

// RecordRun updates the stats for a node type after one execution.
func (r *Registry) RecordRun(id string, d time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats[id]
	if s == nil {
		s = &Stats{}
		r.stats[id] = s
	}
	s.Runs++
	if failed {
		s.Failures++
	}
	s.TotalUs += d.Microseconds()
	s.LastRun = time.Now().UTC()
}

// StatsFor returns a copy of the stats for a node type.
func (r *Registry) StatsFor(id string) Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s := r.stats[id]; s != nil {
		return *s
	}
	return Stats{}
}

// Save persists run stats to nodes.yaml. No-op when the registry was
// created without a path.
func (r *Registry) Save() error {
	if r.path == "" {
		return nil
	}

	r.mu.RLock()
	file := statsFile{Nodes: make(map[string]*Stats, len(r.stats))}
	for id, s := range r.stats {
		copied := *s
		file.Nodes[id] = &copied
	}
	r.mu.RUnlock()

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshaling node stats: %w", err)
	}

	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("writing node stats %s: %w", r.path, err)
	}

	slog.Debug("node stats saved", "path", r.path, "nodes", len(file.Nodes))
	return nil
}
