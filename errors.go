package revmig

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// BrokenChainError reports a step whose predecessor or depends-on
// reference names a revision absent from the loaded set.
type BrokenChainError struct {
	Revision string
	Missing  string
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("broken chain: step %q references unknown revision %q", e.Revision, e.Missing)
}

// AmbiguousChainError reports two steps claiming the same predecessor
// without distinct branch labels.
type AmbiguousChainError struct {
	Predecessor string
	Revisions   []string
}

func (e *AmbiguousChainError) Error() string {
	pred := e.Predecessor
	if pred == "" {
		pred = "<root>"
	}
	return fmt.Sprintf(
		"ambiguous chain: steps %s fork from %q without distinct branch labels",
		strings.Join(e.Revisions, ", "), pred,
	)
}

// CycleError reports a predecessor or depends-on graph that does not
// terminate at a root.
type CycleError struct {
	Revision string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in migration chain at revision %q", e.Revision)
}

// MigrationFailure reports a step whose action failed against the
// store. The applied position stays at the last successful step.
type MigrationFailure struct {
	Revision  string
	Direction Direction
	Err       error
}

func (e *MigrationFailure) Error() string {
	return fmt.Sprintf("migration %s of %q failed: %v", e.Direction, e.Revision, e.Err)
}

func (e *MigrationFailure) Unwrap() error {
	return e.Err
}

// LockTimeoutError reports that the exclusive execution lock could not
// be acquired within the bounded wait.
type LockTimeoutError struct {
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("migration lock not acquired within %s", e.Timeout)
}

// IntegrityError reports an applied revision whose stored checksum no
// longer matches the loaded definition, or an applied revision unknown
// to the loaded set.
type IntegrityError struct {
	Revision string
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for revision %q: %s", e.Revision, e.Reason)
}

// IrreversibleStepWarning flags a downgrade that is a declared no-op.
// It is reported, never returned as a failure.
type IrreversibleStepWarning struct {
	Revision string
}

func (w IrreversibleStepWarning) String() string {
	return fmt.Sprintf("revision %q is irreversible, forward change remains in place", w.Revision)
}
