// Package audit implements the hash-chained run log.
//
// Every node execution and host lifecycle event is recorded as an Entry
// in an append-only JSONL file. Each entry's hash is computed as
// SHA-256(prev_hash | seq | timestamp | run | node | status), forming a
// hash chain where tampering with any entry breaks the chain from that
// point forward.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// computeHash calculates the SHA-256 hash for a log entry.
// The hash depends on the previous entry's hash, creating a chain
// where modifying any entry invalidates all subsequent entries.
//
// Returns a prefixed hash string: "sha256:<hex>".
func computeHash(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s",
		e.PrevHash, e.Seq, e.Timestamp,
		e.Run, e.Node, e.Status)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// verifyEntry checks whether an entry's hash is valid given its contents.
func verifyEntry(e *Entry) bool {
	return e.Hash == computeHash(e)
}
