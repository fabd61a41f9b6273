package store

import "fmt"

// Open returns the run store for a backend name: "sqlite" (the default
// for an empty name) or "memory". An empty path selects DefaultDBPath.
func Open(backend, path string) (RunStore, error) {
	switch backend {
	case "", "sqlite":
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewSQLiteRunStore(path)
	case "memory":
		return NewMemoryRunStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (valid: sqlite, memory)", backend)
	}
}
