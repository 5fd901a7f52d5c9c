// Package envfile resolves configuration values from the process
// environment and an optional dotenv file.
//
// Resolution order: the dotenv file supplies a base value, a non-empty
// process environment value overrides it, and a caller-supplied fallback
// fills remaining gaps according to two toggles (apply the fallback also
// when the value is empty, and error instead of falling back when the key
// exists in neither source).
//
// The dotenv file is re-read on every call so edits take effect without a
// restart; the files involved are tiny and the host additionally watches
// them for change notifications.
package envfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/subosito/gotenv"
)

// Resolver looks up keys against a dotenv file and the process
// environment, and lists the keys it is willing to expose to graphs.
type Resolver struct {
	path         string // Dotenv file path; "" disables file lookups.
	exposeGlobs  []glob.Glob
	exposeSource []string // Original patterns, kept for error messages.
}

// NewResolver builds a resolver for the given dotenv path and exposure
// patterns. Patterns are glob syntax (e.g. "NODEFLOW_*", "OPENAI_*") and
// control which process environment keys Keys() reports; dotenv keys are
// always exposed. An invalid pattern is a configuration error.
func NewResolver(path string, exposePatterns []string) (*Resolver, error) {
	r := &Resolver{path: path, exposeSource: exposePatterns}

	for _, p := range exposePatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid expose pattern %q: %w", p, err)
		}
		r.exposeGlobs = append(r.exposeGlobs, g)
	}

	return r, nil
}

// Path returns the dotenv file path ("" when disabled).
func (r *Resolver) Path() string { return r.path }

// fileValues reads the dotenv file. A missing or unreadable file is
// treated as empty — the process environment still applies.
func (r *Resolver) fileValues() gotenv.Env {
	if r.path == "" {
		return gotenv.Env{}
	}
	env, err := gotenv.Read(r.path)
	if err != nil {
		return gotenv.Env{}
	}
	return env
}

// Keys returns the sorted set of keys available to graphs: every dotenv
// key plus process environment keys matching an expose pattern.
func (r *Resolver) Keys() []string {
	seen := make(map[string]bool)

	for key := range r.fileValues() {
		seen[key] = true
	}

	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, g := range r.exposeGlobs {
			if g.Match(key) {
				seen[key] = true
				break
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Resolve applies the resolution ladder for one key:
//
//  1. dotenv file value, overridden by a non-empty process env value
//  2. empty result → fallback, when fallbackWhenEmpty is set or the key
//     is absent from the process environment
//  3. errorWhenMissing converts "key in neither source" into an error
//     instead of silently falling back
//
// An empty key resolves to "" (or errors under errorWhenMissing).
func (r *Resolver) Resolve(key, fallback string, fallbackWhenEmpty, errorWhenMissing bool) (string, error) {
	if key == "" {
		if errorWhenMissing {
			return "", fmt.Errorf("no environment variable key provided")
		}
		return "", nil
	}

	fileVals := r.fileValues()
	resolved, inFile := fileVals[key]

	envVal, inEnv := os.LookupEnv(key)
	if envVal != "" {
		resolved = envVal
	}

	missing := !inEnv && !inFile

	if resolved == "" && (fallback != "" || fallbackWhenEmpty) {
		if errorWhenMissing && missing {
			return "", fmt.Errorf("environment variable %q is not set", key)
		}
		if fallbackWhenEmpty || !inEnv {
			resolved = fallback
		}
	} else if resolved == "" && errorWhenMissing && missing {
		return "", fmt.Errorf("environment variable %q is not set", key)
	}

	return resolved, nil
}
