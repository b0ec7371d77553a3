package revmig

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTable       = "revmig_revisions"
	defaultLockTimeout = 10 * time.Second
)

// Target shorthands: Head advances every branch tip, Base reverts the
// whole chain.
const (
	Head = "head"
	Base = "base"
)

// Revmig applies and reverts a predecessor-linked chain of schema
// migration steps against a relational store, tracking the store's
// position in the chain.
type Revmig struct {
	db          DB
	fs          fs.FS
	store       Store
	steps       []*Step
	chain       *Chain
	table       string
	lockTimeout time.Duration
	runId       string
}

// New loads the step set, resolves the chain and prepares the
// applied-state bookkeeping. Chain errors surface here, before any run
// can touch the store.
func New(ctx context.Context, options ...Option) (*Revmig, error) {
	m := &Revmig{
		table:       defaultTable,
		lockTimeout: defaultLockTimeout,
		runId:       uuid.NewString(),
	}
	for _, option := range options {
		option(m)
	}
	if m.steps == nil {
		if m.fs == nil {
			return nil, fmt.Errorf("no step source configured")
		}
		steps, loadErr := LoadSteps(m.fs)
		if loadErr != nil {
			return nil, fmt.Errorf("load steps failed: %w", loadErr)
		}
		m.steps = steps
	}
	chain, resolveErr := Resolve(m.steps)
	if resolveErr != nil {
		return nil, resolveErr
	}
	m.chain = chain
	if m.store == nil {
		if m.db == nil {
			return nil, fmt.Errorf("no database configured")
		}
		m.store = newPGStore(m.db, m.table)
	}
	if err := m.store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init applied state failed: %w", err)
	}
	return m, nil
}

// Chain returns the resolved migration chain.
func (m *Revmig) Chain() *Chain {
	return m.chain
}

type plannedStep struct {
	step       *Step
	statements []Statement
	checksum   string
}

// Upgrade applies every pending step up to and including the target, in
// chain order. The first failing step halts the run; everything applied
// before it stays applied and the position stays at the last success.
func (m *Revmig) Upgrade(ctx context.Context, target string) error {
	wanted, findErr := m.upgradeTargets(target)
	if findErr != nil {
		return findErr
	}
	if lockErr := m.store.AcquireLock(ctx, m.lockTimeout); lockErr != nil {
		return lockErr
	}
	defer m.releaseLock(ctx)
	applied, findAppliedErr := m.store.Applied(ctx)
	if findAppliedErr != nil {
		return fmt.Errorf("find applied revisions failed: %w", findAppliedErr)
	}
	if verifyErr := m.verifyIntegrity(applied); verifyErr != nil {
		return verifyErr
	}
	appliedSet := appliedRevisionSet(applied)
	var plan []plannedStep
	for _, step := range m.chain.Order() {
		if !wanted[step.Revision] || appliedSet[step.Revision] {
			continue
		}
		statements, renderErr := renderActions(step.Up)
		if renderErr != nil {
			return fmt.Errorf("render step %q failed: %w", step.Revision, renderErr)
		}
		checksum, checksumErr := stepChecksum(step)
		if checksumErr != nil {
			return fmt.Errorf("checksum step %q failed: %w", step.Revision, checksumErr)
		}
		plan = append(plan, plannedStep{step: step, statements: statements, checksum: checksum})
	}
	for _, planned := range plan {
		record := AppliedRevision{
			Id:        uuid.NewString(),
			Revision:  planned.step.Revision,
			Branch:    m.chain.Branch(planned.step.Revision),
			Checksum:  planned.checksum,
			RunId:     m.runId,
			AppliedAt: time.Now().UTC(),
		}
		if applyErr := m.store.ApplyStep(ctx, planned.step, planned.statements, record); applyErr != nil {
			return &MigrationFailure{
				Revision:  planned.step.Revision,
				Direction: DirectionUp,
				Err:       applyErr,
			}
		}
		log.Printf("🔼 %s: ✅\n", planned.step.Revision)
	}
	log.Println("migrator status: ✅")
	return nil
}

// Downgrade reverts applied steps in reverse chain order, down to but
// not including the target. Steps declared irreversible are flagged and
// skipped over, their applied position still moves back.
func (m *Revmig) Downgrade(ctx context.Context, target string) ([]IrreversibleStepWarning, error) {
	keep := make(map[string]bool)
	if target != Base && target != "" {
		step, findErr := m.chain.Find(target)
		if findErr != nil {
			return nil, findErr
		}
		keep = m.chain.ancestors(step)
		target = step.Revision
	} else {
		target = Base
	}
	if lockErr := m.store.AcquireLock(ctx, m.lockTimeout); lockErr != nil {
		return nil, lockErr
	}
	defer m.releaseLock(ctx)
	applied, findAppliedErr := m.store.Applied(ctx)
	if findAppliedErr != nil {
		return nil, fmt.Errorf("find applied revisions failed: %w", findAppliedErr)
	}
	if verifyErr := m.verifyIntegrity(applied); verifyErr != nil {
		return nil, verifyErr
	}
	appliedSet := appliedRevisionSet(applied)
	if target != Base && !appliedSet[target] {
		return nil, fmt.Errorf("cannot downgrade to unapplied revision %q", target)
	}
	var warnings []IrreversibleStepWarning
	order := m.chain.Order()
	for i := len(order) - 1; i >= 0; i-- {
		step := order[i]
		if !appliedSet[step.Revision] || keep[step.Revision] {
			continue
		}
		var statements []Statement
		if !step.Irreversible {
			rendered, renderErr := renderActions(step.Down)
			if renderErr != nil {
				return warnings, fmt.Errorf("render step %q failed: %w", step.Revision, renderErr)
			}
			statements = rendered
		}
		// An empty downgrade is flagged whether or not the step declared
		// it, the forward change stays in place either way.
		if len(statements) == 0 {
			warning := IrreversibleStepWarning{Revision: step.Revision}
			warnings = append(warnings, warning)
			log.Printf("⚠️ %s\n", warning.String())
		}
		if revertErr := m.store.RevertStep(ctx, step, statements); revertErr != nil {
			return warnings, &MigrationFailure{
				Revision:  step.Revision,
				Direction: DirectionDown,
				Err:       revertErr,
			}
		}
		log.Printf("🔽 %s: ✅\n", step.Revision)
	}
	log.Println("migrator status: ✅")
	return warnings, nil
}

// Current returns the applied head revisions, one per branch with
// applied steps, in chain order. Empty means base.
func (m *Revmig) Current(ctx context.Context) ([]string, error) {
	applied, findAppliedErr := m.store.Applied(ctx)
	if findAppliedErr != nil {
		return nil, fmt.Errorf("find applied revisions failed: %w", findAppliedErr)
	}
	appliedSet := appliedRevisionSet(applied)
	claimed := make(map[string]bool, len(appliedSet))
	for revision := range appliedSet {
		step, exists := m.chain.ByRevision(revision)
		if !exists {
			continue
		}
		if step.DownRevision != "" && appliedSet[step.DownRevision] {
			claimed[step.DownRevision] = true
		}
	}
	var heads []string
	for _, step := range m.chain.Order() {
		if appliedSet[step.Revision] && !claimed[step.Revision] {
			heads = append(heads, step.Revision)
		}
	}
	return heads, nil
}

// HistoryEntry is one chain position with its applied status.
type HistoryEntry struct {
	Step      *Step
	Branch    string
	Applied   bool
	AppliedAt time.Time
}

// History returns a restartable sequence over the whole chain in
// execution order, each entry carrying its applied status as of the
// call.
func (m *Revmig) History(ctx context.Context) (iter.Seq[HistoryEntry], error) {
	applied, findAppliedErr := m.store.Applied(ctx)
	if findAppliedErr != nil {
		return nil, fmt.Errorf("find applied revisions failed: %w", findAppliedErr)
	}
	rows := make(map[string]AppliedRevision, len(applied))
	for _, row := range applied {
		rows[row.Revision] = row
	}
	return func(yield func(HistoryEntry) bool) {
		for _, step := range m.chain.Order() {
			row, isApplied := rows[step.Revision]
			entry := HistoryEntry{
				Step:      step,
				Branch:    m.chain.Branch(step.Revision),
				Applied:   isApplied,
				AppliedAt: row.AppliedAt,
			}
			if !yield(entry) {
				return
			}
		}
	}, nil
}

func (m *Revmig) upgradeTargets(target string) (map[string]bool, error) {
	if target == "" || target == Head {
		wanted := make(map[string]bool, len(m.chain.Order()))
		for _, step := range m.chain.Order() {
			wanted[step.Revision] = true
		}
		return wanted, nil
	}
	step, findErr := m.chain.Find(target)
	if findErr != nil {
		return nil, findErr
	}
	return m.chain.ancestors(step), nil
}

func (m *Revmig) verifyIntegrity(applied []AppliedRevision) error {
	for _, row := range applied {
		step, exists := m.chain.ByRevision(row.Revision)
		if !exists {
			return &IntegrityError{
				Revision: row.Revision,
				Reason:   "applied revision missing from step definitions",
			}
		}
		checksum, checksumErr := stepChecksum(step)
		if checksumErr != nil {
			return fmt.Errorf("checksum step %q failed: %w", step.Revision, checksumErr)
		}
		if checksum != row.Checksum {
			return &IntegrityError{
				Revision: row.Revision,
				Reason:   "definition changed after being applied",
			}
		}
	}
	return nil
}

func (m *Revmig) releaseLock(ctx context.Context) {
	if err := m.store.ReleaseLock(ctx); err != nil {
		log.Printf("⚠️ release migration lock failed: %v\n", err)
	}
}

func appliedRevisionSet(applied []AppliedRevision) map[string]bool {
	set := make(map[string]bool, len(applied))
	for _, row := range applied {
		set[row.Revision] = true
	}
	return set
}
