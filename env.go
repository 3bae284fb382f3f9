package hive

import "sync"

// Env is the process-wide string key/value configuration table. It backs
// the GETENV/SETENV command surface and the well-known keys consumed at
// startup (thread, harbor, bootstrap, ...). Safe for concurrent use.
type Env struct {
	mu   sync.Mutex
	vars map[string]string
}

// NewEnv builds an Env seeded with the given key/value pairs (typically the
// merged output of the config package's TOML/YAML/environment sources).
func NewEnv(seed map[string]string) *Env {
	vars := make(map[string]string, len(seed))
	for k, v := range seed {
		vars[k] = v
	}
	return &Env{vars: vars}
}

// Get returns the value bound to key and whether it was set.
func (e *Env) Get(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vars[key]
	return v, ok
}

// Set stores value under key, overwriting any previous binding.
func (e *Env) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = value
}

// Snapshot returns a copy of the current table, for diagnostics.
func (e *Env) Snapshot() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
