package revmig

import (
	"context"
	"time"
)

// AppliedRevision is one durable applied-state row in the target store.
type AppliedRevision struct {
	Id        string    `db:"id"`
	Revision  string    `db:"revision"`
	Branch    string    `db:"branch"`
	Checksum  string    `db:"checksum"`
	RunId     string    `db:"run_id"`
	AppliedAt time.Time `db:"applied_at"`
}

// Store persists applied state and executes rendered statements against
// the target. The Postgres implementation is the default; tests supply
// an in-memory one.
type Store interface {
	// Init prepares the applied-state bookkeeping, creating it when absent.
	Init(ctx context.Context) error

	// AcquireLock takes the exclusive execution lock, waiting at most
	// timeout before returning a LockTimeoutError.
	AcquireLock(ctx context.Context, timeout time.Duration) error
	ReleaseLock(ctx context.Context) error

	// Applied returns every applied-state row, unordered.
	Applied(ctx context.Context) ([]AppliedRevision, error)

	// ApplyStep executes a step's statements and records the applied row,
	// both in one transaction by default. Autocommit steps run their
	// statements outside any transaction and record the row only after
	// all of them succeed.
	ApplyStep(ctx context.Context, step *Step, statements []Statement, record AppliedRevision) error

	// RevertStep executes a step's downgrade statements and removes the
	// applied row, with the same execution contract as ApplyStep.
	RevertStep(ctx context.Context, step *Step, statements []Statement) error
}
