// Package main is the CLI entry point for NodeFlow — a node graph host
// for LLM chat pipelines.
//
// A graph is a YAML document wiring plugin nodes together: chat
// completion, message building, env lookup, expression evaluation, JSON
// extraction, video sizing. The runner executes the graph in dependency
// order, records every node run in a hash-chained run log, and serves a
// live dashboard.
//
// CLI commands (cobra):
//
//	nodeflow run <graph.yaml>  - Run a graph once
//	nodeflow nodes             - List/describe registered node types
//	nodeflow env               - Inspect the values visible to env_var nodes
//	nodeflow audit             - Query/verify the run log
//	nodeflow config            - View/init host configuration
//	nodeflow serve             - Serve the dashboard
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeflow/nodeflow/internal/audit"
	"github.com/nodeflow/nodeflow/internal/chat"
	"github.com/nodeflow/nodeflow/internal/config"
	"github.com/nodeflow/nodeflow/internal/dashboard"
	"github.com/nodeflow/nodeflow/internal/envfile"
	"github.com/nodeflow/nodeflow/internal/graph"
	"github.com/nodeflow/nodeflow/internal/node"
	"github.com/nodeflow/nodeflow/internal/nodes"
)

// Build-time variables injected via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-08-25"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// defaultConfigDir returns the path to ~/.nodeflow/ where all runtime
// state lives: config.yaml, nodes.yaml, .env, and the audit/ directory.
func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined.
		return ".nodeflow"
	}
	return filepath.Join(home, ".nodeflow")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ============================================================================
// Root command
// ============================================================================

// configDir is the global flag for the NodeFlow config/state directory.
// Defaults to ~/.nodeflow/ but can be overridden for testing or custom
// setups.
var configDir string

var rootCmd = &cobra.Command{
	Use:   "nodeflow",
	Short: "NodeFlow — Node graph host for chat pipelines",
	Long: `NodeFlow runs YAML-defined node graphs: chat completion calls,
message list building, environment lookups, expression evaluation, and
JSON extraction, wired together through typed ports. Every node run is
recorded in a hash-chained run log.

Run 'nodeflow run pipeline.yaml' to execute a graph, or 'nodeflow serve'
to start the dashboard.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

func init() {
	// --config-dir: Override the default ~/.nodeflow/ directory.
	// Persistent so all subcommands inherit it.
	rootCmd.PersistentFlags().StringVar(
		&configDir,
		"config-dir",
		defaultConfigDir(),
		"Path to NodeFlow config and state directory",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// ============================================================================
// Shared runtime wiring
// ============================================================================

// runtimeDeps bundles everything a graph run or the dashboard needs.
type runtimeDeps struct {
	cfg      *config.Config
	registry *node.Registry
	resolver *envfile.Resolver
	runLog   *audit.Log // nil when audit is disabled.
}

// buildRuntime loads the config and wires the registry, env resolver,
// and run log. Every command that executes or inspects nodes goes
// through here so they all agree on state paths.
func buildRuntime(withAudit bool) (*runtimeDeps, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory %s: %w", configDir, err)
	}

	cfg, err := config.Load(filepath.Join(configDir, "config.yaml"), configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	registry, err := node.NewRegistry(filepath.Join(configDir, "nodes.yaml"))
	if err != nil {
		return nil, fmt.Errorf("initializing node registry: %w", err)
	}

	resolver, err := envfile.NewResolver(cfg.Env.File, cfg.Env.ExposeKeys)
	if err != nil {
		return nil, fmt.Errorf("initializing env resolver: %w", err)
	}

	deps := nodes.Deps{
		Chat:           chat.NewClient(),
		Env:            resolver,
		APIBase:        cfg.Defaults.APIBase,
		Model:          cfg.Defaults.Model,
		TimeoutSeconds: cfg.Defaults.TimeoutSeconds,
	}
	if err := nodes.RegisterBuiltins(registry, deps); err != nil {
		return nil, fmt.Errorf("registering builtin nodes: %w", err)
	}

	rt := &runtimeDeps{cfg: cfg, registry: registry, resolver: resolver}

	if withAudit && cfg.Audit.Enabled {
		runLog, err := audit.New(cfg.Audit.Dir)
		if err != nil {
			return nil, fmt.Errorf("initializing run log: %w", err)
		}
		rt.runLog = runLog
	}

	return rt, nil
}

func (rt *runtimeDeps) close() {
	if rt.runLog != nil {
		rt.runLog.Close()
	}
}

// ============================================================================
// nodeflow run — Execute a graph
// ============================================================================

// runSetParams holds --set overrides in "node.param=value" form.
var runSetParams []string

// runQuiet suppresses per-node output printing.
var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run <graph.yaml>",
	Short: "Run a node graph once",
	Long: `Load a graph document, validate it against the registered node types,
and execute it in dependency order. Node outputs are printed when the
run completes.

Parameters can be overridden from the command line:

  nodeflow run pipeline.yaml --set ask.content="What time is it?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(args[0])
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runSetParams, "set", nil, "Override a node parameter (node.param=value, repeatable)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Only print errors and the run ID")
}

func runGraph(path string) error {
	rt, err := buildRuntime(true)
	if err != nil {
		return err
	}
	defer rt.close()

	g, err := graph.Load(path, rt.registry)
	if err != nil {
		return err
	}

	for _, override := range runSetParams {
		ref, value, ok := strings.Cut(override, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want node.param=value", override)
		}
		if err := g.SetParam(ref, value); err != nil {
			return err
		}
	}

	// Ctrl+C cancels the run between nodes; an in-flight chat request
	// is cancelled through its context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rec graph.Recorder
	if rt.runLog != nil {
		rec = rt.runLog
	}

	result, runErr := g.Run(ctx, rt.registry, rec)

	// Persist per-type run stats regardless of outcome.
	if saveErr := rt.registry.Save(); saveErr != nil {
		fmt.Fprintf(os.Stderr, "[nodeflow] Warning: failed to save node stats: %v\n", saveErr)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "[nodeflow] Run %s failed: %v\n", result.RunID, runErr)
		return runErr
	}

	if runQuiet {
		fmt.Println(result.RunID)
		return nil
	}

	fmt.Printf("[nodeflow] Run %s completed in %s\n", result.RunID, result.Duration.Round(time.Millisecond))
	for _, id := range g.Order() {
		out, ok := result.Outputs[id]
		if !ok {
			continue
		}
		fmt.Printf("\n=== %s ===\n", id)
		names := make([]string, 0, len(out))
		for name := range out {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s: %v\n", name, out[name])
		}
	}
	return nil
}

// ============================================================================
// nodeflow nodes — List and describe node types
// ============================================================================

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List and describe registered node types",
}

func init() {
	nodesCmd.AddCommand(nodesListCmd)
	nodesCmd.AddCommand(nodesDescribeCmd)
}

var nodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all node types with run stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(false)
		if err != nil {
			return err
		}

		schemas := rt.registry.List()
		fmt.Printf("%-15s %-22s %-16s %-8s %-8s\n", "ID", "NAME", "CATEGORY", "RUNS", "FAILURES")
		fmt.Printf("%-15s %-22s %-16s %-8s %-8s\n", "--", "----", "--------", "----", "--------")
		for _, s := range schemas {
			stats := rt.registry.StatsFor(s.ID)
			fmt.Printf("%-15s %-22s %-16s %-8d %-8d\n",
				s.ID, s.DisplayName, s.Category, stats.Runs, stats.Failures)
		}
		return nil
	},
}

var nodesDescribeCmd = &cobra.Command{
	Use:   "describe <node-id>",
	Short: "Show a node type's ports and defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(false)
		if err != nil {
			return err
		}

		n, ok := rt.registry.Get(args[0])
		if !ok {
			return fmt.Errorf("node type %q not found (try 'nodeflow nodes list')", args[0])
		}

		s := n.Schema()
		fmt.Printf("%s — %s\n", s.ID, s.DisplayName)
		fmt.Printf("Category: %s\n", s.Category)
		if s.Description != "" {
			fmt.Printf("%s\n", s.Description)
		}

		fmt.Println("\nInputs:")
		for _, p := range s.Inputs {
			printPort(p)
		}
		fmt.Println("\nOutputs:")
		for _, p := range s.Outputs {
			printPort(p)
		}
		return nil
	},
}

func printPort(p node.Port) {
	line := fmt.Sprintf("  %-20s %s", p.Name, p.Type)
	if p.Default != nil {
		line += fmt.Sprintf("  (default: %v)", p.Default)
	}
	if p.Optional {
		line += "  [optional]"
	}
	if len(p.Options) > 0 {
		line += fmt.Sprintf("  one of %v", p.Options)
	}
	fmt.Println(line)
	if p.Tooltip != "" {
		fmt.Printf("  %20s %s\n", "", p.Tooltip)
	}
}

// ============================================================================
// nodeflow env — Inspect values visible to env_var nodes
// ============================================================================

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect the values visible to env_var nodes",
	Long: `The env_var node reads from two sources: the dotenv file configured in
config.yaml, and process environment keys matching the expose_keys glob
patterns. These commands show exactly what a graph would see.`,
}

func init() {
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envGetCmd)
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys visible to env_var nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(false)
		if err != nil {
			return err
		}

		keys := rt.resolver.Keys()
		if len(keys) == 0 {
			fmt.Println("No keys visible. Add entries to the env file or widen expose_keys in config.yaml.")
			return nil
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var envGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a key the way an env_var node would",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(false)
		if err != nil {
			return err
		}

		value, err := rt.resolver.Resolve(args[0], "", false, true)
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

// ============================================================================
// nodeflow audit — Query and verify the run log
// ============================================================================

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and verify the run log",
	Long: `The run log records every node execution: graph, node, status, duration,
and error. Entries are hash-chained: each entry's hash depends on the
previous entry, making tampering detectable.`,
}

// auditFollowMode enables real-time following of new entries (-f flag).
var auditFollowMode bool

// auditTailLimit controls how many recent entries to show.
var auditTailLimit int

func init() {
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditExportCmd)
}

// openRunLog opens the run log at the configured directory, regardless
// of the audit.enabled toggle, so past entries stay inspectable.
func openRunLog() (*audit.Log, error) {
	cfg, err := config.Load(filepath.Join(configDir, "config.yaml"), configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	runLog, err := audit.New(cfg.Audit.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	return runLog, nil
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent run log entries",
	Long:  `Show the most recent run log entries. Use -f to follow in real-time (like tail -f).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runLog, err := openRunLog()
		if err != nil {
			return err
		}
		defer runLog.Close()

		entries, err := runLog.Tail(auditTailLimit)
		if err != nil {
			return fmt.Errorf("reading run log: %w", err)
		}

		for _, entry := range entries {
			printRunEntry(entry)
		}

		if auditFollowMode {
			return runLog.Follow(context.Background(), printRunEntry)
		}
		return nil
	},
}

func init() {
	auditTailCmd.Flags().BoolVarP(&auditFollowMode, "follow", "f", false, "Follow new entries in real-time")
	auditTailCmd.Flags().IntVarP(&auditTailLimit, "limit", "n", 20, "Number of recent entries to show")
}

// Run log query filter flags.
var (
	auditQueryRun    string
	auditQueryGraph  string
	auditQueryStatus string
	auditQuerySince  string
	auditQueryLimit  int
)

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query run log entries with filters",
	Long: `Query the run log with filters. Supports filtering by run ID, graph
name, status (ok/error/info), and time range.

Examples:
  nodeflow audit query --graph pipeline --status error --since 1h
  nodeflow audit query --run 3f2a... --limit 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runLog, err := openRunLog()
		if err != nil {
			return err
		}
		defer runLog.Close()

		entries, err := runLog.Query(audit.QueryParams{
			Run:    auditQueryRun,
			Graph:  auditQueryGraph,
			Status: auditQueryStatus,
			Since:  auditQuerySince,
			Limit:  auditQueryLimit,
		})
		if err != nil {
			return fmt.Errorf("run log query failed: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No matching run log entries found.")
			return nil
		}

		for _, entry := range entries {
			printRunEntry(entry)
		}
		fmt.Printf("\n%d entries found.\n", len(entries))
		return nil
	},
}

func init() {
	auditQueryCmd.Flags().StringVar(&auditQueryRun, "run", "", "Filter by run ID")
	auditQueryCmd.Flags().StringVar(&auditQueryGraph, "graph", "", "Filter by graph name")
	auditQueryCmd.Flags().StringVar(&auditQueryStatus, "status", "", "Filter by status (ok/error/info)")
	auditQueryCmd.Flags().StringVar(&auditQuerySince, "since", "", "Show entries since duration (e.g., 1h, 30m, 24h)")
	auditQueryCmd.Flags().IntVar(&auditQueryLimit, "limit", 50, "Maximum number of entries to return")
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hash chain integrity",
	Long: `Verify the integrity of the run log hash chain. Each entry's hash is
computed as SHA-256(prev_hash | seq | timestamp | run | node | status).
If any entry has been tampered with, the chain breaks and this command
reports where the inconsistency was detected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runLog, err := openRunLog()
		if err != nil {
			return err
		}
		defer runLog.Close()

		result, err := runLog.VerifyChain()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		if result.Valid {
			fmt.Printf("[nodeflow] Hash chain VALID (%d entries verified)\n", result.EntriesChecked)
		} else {
			fmt.Printf("[nodeflow] Hash chain BROKEN at entry #%d\n", result.BrokenAt)
			fmt.Printf("  Expected hash: %s\n", result.ExpectedHash)
			fmt.Printf("  Actual hash:   %s\n", result.ActualHash)
			return fmt.Errorf("run log integrity violation detected")
		}
		return nil
	},
}

// auditExportFormat controls the export output format (csv, json, jsonl).
var auditExportFormat string

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the run log",
	Long: `Export the full run log to stdout in the specified format.
Supported formats: csv, json, jsonl.

Example:
  nodeflow audit export --format csv > runs.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runLog, err := openRunLog()
		if err != nil {
			return err
		}
		defer runLog.Close()

		return runLog.Export(os.Stdout, auditExportFormat)
	},
}

func init() {
	auditExportCmd.Flags().StringVar(&auditExportFormat, "format", "jsonl", "Export format: csv, json, jsonl")
}

// printRunEntry formats and prints a single run log entry to stdout.
func printRunEntry(e audit.Entry) {
	status := e.Status
	// Uppercase errors for terminal visibility.
	if status == "error" {
		status = "ERROR"
	}
	if e.Type == "node_run" {
		fmt.Printf("[%s] graph=%-12s node=%-12s type=%-12s status=%-6s %dus\n",
			e.Timestamp, e.Graph, e.Node, e.NodeType, status, e.DurationUs)
		if e.Error != "" {
			fmt.Printf("    error: %s\n", e.Error)
		}
	} else {
		fmt.Printf("[%s] event=%-12s status=%s\n", e.Timestamp, e.Node, status)
	}
}

// ============================================================================
// nodeflow config — Configuration management
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit host configuration",
	Long: `Manage the NodeFlow host configuration. The config file lives at
~/.nodeflow/config.yaml and defines the dashboard bind address, chat
defaults, env file location, and run log settings.`,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(configDir, "config.yaml")
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("No config file found at %s\n", configPath)
				fmt.Println("Run 'nodeflow config init' to create one with defaults.")
				return nil
			}
			return fmt.Errorf("reading config: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		configPath := filepath.Join(configDir, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config already exists at %s\n", configPath)
			fmt.Println("Use 'nodeflow config edit' to modify it.")
			return nil
		}

		if err := config.WriteDefault(configPath, configDir); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
		return nil
	},
}

// configEditCmd opens the config file in the user's preferred editor.
// Uses $EDITOR or $VISUAL env vars, falling back to platform defaults.
var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config in editor",
	Long:  `Open the NodeFlow config file in your default editor ($EDITOR or $VISUAL).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(configDir, "config.yaml")

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = os.Getenv("VISUAL")
		}
		if editor == "" {
			if runtime.GOOS == "windows" {
				editor = "notepad"
			} else {
				editor = "vi"
			}
		}

		// Ensure the config file exists (create default if not).
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := config.WriteDefault(configPath, configDir); err != nil {
				return fmt.Errorf("creating default config: %w", err)
			}
		}

		// exec.Command resolves the editor through PATH, which
		// os.StartProcess does not.
		fmt.Printf("[nodeflow] Opening %s in %s...\n", configPath, editor)
		editorCmd := exec.Command(editor, configPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		return editorCmd.Run()
	},
}

// ============================================================================
// nodeflow serve — Dashboard server
// ============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard and REST API",
	Long: `Start the NodeFlow dashboard server. The dashboard shows registered
node types with run stats and a live run feed, backed by:

  - Web UI:    http://127.0.0.1:3600/
  - REST API:  /api/status, /api/nodes, /api/audit
  - WebSocket: /ws (live run feed)

The bind address comes from ~/.nodeflow/config.yaml (default:
127.0.0.1:3600, loopback only).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	rt, err := buildRuntime(true)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.runLog == nil {
		return fmt.Errorf("audit is disabled in config.yaml; the dashboard needs the run log")
	}

	rt.runLog.RecordLifecycle("serve_start", map[string]any{
		"version": version,
		"commit":  commit,
		"host":    rt.cfg.Server.Host,
		"port":    rt.cfg.Server.Port,
	})

	dash := dashboard.New(dashboard.Options{
		RunLog:   rt.runLog,
		Registry: rt.registry,
		Version:  version,
	})

	// Push new run log entries to connected dashboard clients. Graph
	// runs happen in separate CLI processes and land in the shared log
	// directory; Follow picks them up and the hub fans them out.
	followCtx, cancelFollow := context.WithCancel(context.Background())
	defer cancelFollow()
	go rt.runLog.Follow(followCtx, dash.BroadcastEntry)

	// Hot-reload: watch config.yaml and the env file for changes.
	watcher, err := config.NewWatcher(configDir, rt.cfg.Env.File, config.WatchTargets{
		OnConfigChange: func() {
			fmt.Println("[nodeflow] config.yaml changed; restart serve to apply")
		},
	})
	if err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}
	defer watcher.Close()

	addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           dash.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("[nodeflow] Dashboard at http://%s\n", addr)
		fmt.Println("[nodeflow] Press Ctrl+C to stop")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Println("\n[nodeflow] Shutting down...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "[nodeflow] Shutdown error: %v\n", shutdownErr)
	}

	rt.runLog.RecordLifecycle("serve_stop", nil)
	fmt.Println("[nodeflow] Stopped")
	return nil
}
