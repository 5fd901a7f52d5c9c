package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
)

// sqliteIndex provides fast queries over the run log using SQLite.
// The JSONL files are the source of truth; the SQLite index is a
// queryable projection that can be rebuilt from the JSONL files.
//
// The index is stored at ~/.nodeflow/audit/index.db.
type sqliteIndex struct {
	db *sql.DB
}

// openIndex opens (or creates) the SQLite index database.
// Creates the entries table and indexes if they don't exist.
func openIndex(path string) (*sqliteIndex, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite index %s: %w", path, err)
	}

	// WAL mode allows concurrent read/write (runner writes, CLI reads).
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			seq         INTEGER PRIMARY KEY,
			ts          TEXT NOT NULL,
			run         TEXT NOT NULL DEFAULT '',
			graph       TEXT NOT NULL DEFAULT '',
			type        TEXT NOT NULL DEFAULT '',
			node        TEXT NOT NULL DEFAULT '',
			node_type   TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT '',
			duration_us INTEGER NOT NULL DEFAULT 0,
			details     TEXT NOT NULL DEFAULT '',
			hash        TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run ON entries(run);
		CREATE INDEX IF NOT EXISTS idx_graph ON entries(graph);
		CREATE INDEX IF NOT EXISTS idx_status ON entries(status);
		CREATE INDEX IF NOT EXISTS idx_ts ON entries(ts);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}

	return &sqliteIndex{db: db}, nil
}

// insert adds an entry to the SQLite index. Errors are logged but don't
// affect the primary JSONL run log.
func (idx *sqliteIndex) insert(e *Entry) {
	detailsJSON, _ := json.Marshal(e.Details)

	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO entries (seq, ts, run, graph, type, node, node_type, status, error, duration_us, details, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Seq, e.Timestamp, e.Run, e.Graph, e.Type, e.Node,
		e.NodeType, e.Status, e.Error, e.DurationUs, string(detailsJSON), e.Hash,
	)
	if err != nil {
		slog.Error("sqlite index insert failed", "seq", e.Seq, "error", err)
	}
}

// query retrieves entries from the SQLite index matching the given
// params.
func (idx *sqliteIndex) query(params QueryParams) ([]Entry, error) {
	query := "SELECT seq, ts, run, graph, type, node, node_type, status, error, duration_us, details, hash FROM entries WHERE 1=1"
	var args []any

	if params.Run != "" {
		query += " AND run = ?"
		args = append(args, params.Run)
	}
	if params.Graph != "" {
		query += " AND graph = ?"
		args = append(args, params.Graph)
	}
	if params.Status != "" {
		query += " AND status = ?"
		args = append(args, params.Status)
	}
	if params.Since != "" {
		// Since is an ISO timestamp string, computed by the caller.
		query += " AND ts >= ?"
		args = append(args, params.Since)
	}

	query += " ORDER BY seq DESC"

	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sqlite index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detailsJSON string
		err := rows.Scan(
			&e.Seq, &e.Timestamp, &e.Run, &e.Graph, &e.Type,
			&e.Node, &e.NodeType, &e.Status, &e.Error,
			&e.DurationUs, &detailsJSON, &e.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning sqlite row: %w", err)
		}
		if detailsJSON != "" && detailsJSON != "null" {
			var parsed any
			if jsonErr := json.Unmarshal([]byte(detailsJSON), &parsed); jsonErr == nil {
				e.Details = parsed
			}
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// tail returns the N most recent entries from the index.
func (idx *sqliteIndex) tail(limit int) ([]Entry, error) {
	return idx.query(QueryParams{Limit: limit})
}

// lastSeq returns the highest sequence number in the index.
// Returns 0 if the index is empty.
func (idx *sqliteIndex) lastSeq() uint64 {
	var seq sql.NullInt64
	err := idx.db.QueryRow("SELECT MAX(seq) FROM entries").Scan(&seq)
	if err != nil || !seq.Valid {
		return 0
	}
	return uint64(seq.Int64)
}

// close closes the SQLite database connection.
func (idx *sqliteIndex) close() error {
	return idx.db.Close()
}
