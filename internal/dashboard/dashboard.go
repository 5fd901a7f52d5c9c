// Package dashboard serves the NodeFlow web UI and REST API.
//
// The dashboard is mounted on its own port, separate from graph runs:
//
//   - Web UI:     GET /                — Single-page HTML dashboard
//   - WebSocket:  GET /ws              — Live run feed
//   - REST API:   GET /api/status      — Host status
//     GET /api/nodes       — Registered node types with schemas and stats
//     GET /api/audit       — Recent run log entries
//
// The web UI is a minimal embedded HTML page (no build step, no
// framework): node types on one side, the live run feed on the other.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nodeflow/nodeflow/internal/audit"
	"github.com/nodeflow/nodeflow/internal/node"
)

// Options holds the dependencies injected into the dashboard.
type Options struct {
	RunLog   *audit.Log
	Registry *node.Registry
	Version  string
}

// Dashboard serves the web UI and REST API.
// Implements http.Handler for the dashboard UI route.
type Dashboard struct {
	runLog   *audit.Log
	registry *node.Registry
	version  string
	wsHub    *wsHub
}

// New creates a new Dashboard with the given dependencies.
func New(opts Options) *Dashboard {
	d := &Dashboard{
		runLog:   opts.RunLog,
		registry: opts.Registry,
		version:  opts.Version,
		wsHub:    newWSHub(),
	}

	// Start the WebSocket broadcast hub.
	go d.wsHub.run()

	return d
}

// Handler returns the full route mux: UI, API, and WebSocket.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleIndex)
	mux.HandleFunc("/ws", d.handleWebSocket)
	mux.HandleFunc("/api/status", d.handleAPIStatus)
	mux.HandleFunc("/api/nodes", d.handleAPINodes)
	mux.HandleFunc("/api/audit", d.handleAPIAudit)
	return mux
}

// BroadcastEntry sends a run log entry to all connected WebSocket
// clients. Called after each node execution. Non-blocking — if no
// clients are connected, the entry is dropped.
func (d *Dashboard) BroadcastEntry(e audit.Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal broadcast entry", "error", err)
		return
	}
	d.wsHub.broadcast(data)
}

// handleIndex serves the embedded HTML dashboard.
func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dashboardHTML))
}

// --- REST API Handlers ---

// handleAPIStatus returns host status information.
// GET /api/status
func (d *Dashboard) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"version": d.version,
		"nodes":   len(d.registry.List()),
	})
}

// nodeJSON is the wire shape for one node type in /api/nodes.
type nodeJSON struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	Inputs      []portJSON `json:"inputs"`
	Outputs     []portJSON `json:"outputs"`
	Stats       node.Stats `json:"stats"`
}

type portJSON struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Default  any      `json:"default,omitempty"`
	Optional bool     `json:"optional,omitempty"`
	Options  []string `json:"options,omitempty"`
	Tooltip  string   `json:"tooltip,omitempty"`
}

// handleAPINodes returns all registered node types with their schemas
// and run stats.
// GET /api/nodes
func (d *Dashboard) handleAPINodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	schemas := d.registry.List()
	out := make([]nodeJSON, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, nodeJSON{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Category:    s.Category,
			Description: s.Description,
			Inputs:      portsJSON(s.Inputs),
			Outputs:     portsJSON(s.Outputs),
			Stats:       d.registry.StatsFor(s.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func portsJSON(ports []node.Port) []portJSON {
	out := make([]portJSON, 0, len(ports))
	for _, p := range ports {
		out = append(out, portJSON{
			Name:     p.Name,
			Type:     string(p.Type),
			Default:  p.Default,
			Optional: p.Optional,
			Options:  p.Options,
			Tooltip:  p.Tooltip,
		})
	}
	return out
}

// handleAPIAudit returns recent run log entries.
// GET /api/audit?limit=50&run=<id>&status=error
func (d *Dashboard) handleAPIAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	params := audit.QueryParams{
		Run:    r.URL.Query().Get("run"),
		Graph:  r.URL.Query().Get("graph"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	}

	entries, err := d.runLog.Query(params)
	if err != nil {
		slog.Error("run log query failed", "error", err)
		http.Error(w, "run log query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// dashboardHTML is the embedded single-page UI: registered node types
// with per-type run stats on the left, the live run feed on the right.
// Refreshes via periodic fetch + WebSocket.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>NodeFlow</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
         background: #0f1117; color: #e1e4e8; padding: 24px; }
  h1 { font-size: 24px; margin-bottom: 8px; }
  .subtitle { color: #8b949e; margin-bottom: 24px; }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
  .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 16px; }
  .card h2 { font-size: 14px; color: #8b949e; text-transform: uppercase; margin-bottom: 12px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; color: #8b949e; padding: 6px 8px; border-bottom: 1px solid #30363d; }
  td { padding: 6px 8px; border-bottom: 1px solid #21262d; }
  .status-ok { color: #3fb950; }
  .status-error { color: #f85149; font-weight: bold; }
  .status-info { color: #58a6ff; }
  #run-feed { max-height: 420px; overflow-y: auto; font-family: monospace; font-size: 12px; }
  .feed-entry { padding: 4px 0; border-bottom: 1px solid #21262d; }
</style>
</head>
<body>
<h1>NodeFlow</h1>
<p class="subtitle">Node graph host for chat pipelines</p>

<div class="grid">
  <div class="card">
    <h2>Node Types</h2>
    <table>
      <thead><tr><th>Node</th><th>Category</th><th>Runs</th><th>Failures</th><th>Avg &micro;s</th></tr></thead>
      <tbody id="nodes-tbody"><tr><td colspan="5">Loading...</td></tr></tbody>
    </table>
  </div>
  <div class="card">
    <h2>Run Feed</h2>
    <div id="run-feed"><div class="feed-entry">Connecting...</div></div>
  </div>
</div>

<script>
function esc(s) {
  if (s == null) return '';
  return String(s).replace(/&/g,'&amp;').replace(/</g,'&lt;').replace(/>/g,'&gt;').replace(/"/g,'&quot;').replace(/'/g,'&#39;');
}

async function refresh() {
  try {
    const [nodesRes, auditRes] = await Promise.all([
      fetch('/api/nodes'), fetch('/api/audit?limit=30')
    ]);
    renderNodes(await nodesRes.json());
    renderFeed(await auditRes.json());
  } catch(e) { console.error('refresh failed:', e); }
}

function renderNodes(nodes) {
  const tbody = document.getElementById('nodes-tbody');
  if (!nodes || nodes.length === 0) { tbody.innerHTML = '<tr><td colspan="5">No nodes registered</td></tr>'; return; }
  tbody.innerHTML = nodes.map(n => {
    const s = n.stats || {};
    const avg = s.runs ? Math.round(s.total_us / s.runs) : 0;
    return '<tr><td>' + esc(n.display_name) + '</td><td>' + esc(n.category) +
      '</td><td>' + (s.runs||0) + '</td><td>' + (s.failures||0) + '</td><td>' + avg + '</td></tr>';
  }).join('');
}

function entryHTML(e) {
  const cls = e.status === 'error' ? 'status-error' : e.status === 'ok' ? 'status-ok' : 'status-info';
  let line = '[' + esc(e.ts) + '] ' + esc(e.graph||'-') + '/' + esc(e.node||'-');
  if (e.node_type) line += ' (' + esc(e.node_type) + ')';
  line += ' <span class="' + cls + '">' + esc(e.status) + '</span>';
  if (e.duration_us) line += ' ' + e.duration_us + '&micro;s';
  if (e.error) line += ' ' + esc(e.error);
  return line;
}

function renderFeed(entries) {
  const feed = document.getElementById('run-feed');
  if (!entries || entries.length === 0) { feed.innerHTML = '<div class="feed-entry">No runs yet</div>'; return; }
  feed.innerHTML = entries.map(e => '<div class="feed-entry">' + entryHTML(e) + '</div>').join('');
}

// WebSocket for live updates.
function connectWS() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  ws.onmessage = function(e) {
    try {
      const entry = JSON.parse(e.data);
      const feed = document.getElementById('run-feed');
      const div = document.createElement('div');
      div.className = 'feed-entry';
      div.innerHTML = entryHTML(entry);
      feed.insertBefore(div, feed.firstChild);
      while (feed.children.length > 100) feed.removeChild(feed.lastChild);
    } catch(err) { console.error('ws parse error:', err); }
  };
  ws.onclose = function() { setTimeout(connectWS, 3000); };
  ws.onerror = function() { ws.close(); };
}

refresh();
setInterval(refresh, 5000);
connectWS();
</script>
</body>
</html>`
