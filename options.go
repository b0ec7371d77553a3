package revmig

import (
	"io/fs"
	"time"
)

type Option func(*Revmig)

func WithDB(db DB) Option {
	return func(m *Revmig) {
		m.db = db
	}
}

// WithFS points the engine at a filesystem of *.toml step definitions,
// typically an embed.FS compiled into the binary.
func WithFS(fsys fs.FS) Option {
	return func(m *Revmig) {
		m.fs = fsys
	}
}

// WithSteps supplies steps built in code instead of loading them from a
// filesystem.
func WithSteps(steps ...*Step) Option {
	return func(m *Revmig) {
		m.steps = steps
	}
}

// WithStore overrides the Postgres-backed applied-state store.
func WithStore(store Store) Option {
	return func(m *Revmig) {
		m.store = store
	}
}

func WithTable(table string) Option {
	return func(m *Revmig) {
		m.table = table
	}
}

// WithLockTimeout bounds the wait for the exclusive execution lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(m *Revmig) {
		m.lockTimeout = timeout
	}
}
