package revmig

// Step is one discrete, named schema change. Steps are immutable once
// authored; they link to their predecessor by revision id and form the
// migration chain.
type Step struct {
	Revision     string
	DownRevision string   // empty for a branch root
	Branch       string   // optional branch label, inherited from the predecessor when empty
	DependsOn    []string // revisions in other branches that must already be applied

	// Autocommit steps run each statement outside any transaction, for
	// changes the store forbids inside one; the applied-state row is
	// written only after all statements succeed. The default runs a
	// step's statements and its state row in a single transaction.
	Autocommit bool

	// Irreversible marks the downgrade as a declared no-op: the forward
	// change is permanent and reverting past this step only moves the
	// applied position back.
	Irreversible bool

	Up   []Action
	Down []Action

	source string
}

// Source returns the path of the definition file the step was loaded
// from, or an empty string for steps built in code.
func (s *Step) Source() string {
	return s.source
}

// Statement is a single rendered store operation.
type Statement struct {
	SQL  string
	Args []any
}

// Action is one store-mutating operation of a step, rendered into the
// store's native change language just before execution.
type Action interface {
	Render() (Statement, error)
}

type AddColumn struct {
	Table    string
	Column   string
	Type     string
	Nullable bool
	Default  string // raw SQL default expression
}

type DropColumn struct {
	Table  string
	Column string
}

type CreateEnum struct {
	Name   string
	Values []string
}

type DropEnum struct {
	Name string
}

// AddEnumValue appends a value to an enumerated type. The rendered form
// is idempotent but the change itself is permanent, so steps carrying it
// are usually marked irreversible.
type AddEnumValue struct {
	Enum  string
	Value string
}

// DataChange is a bounded, idempotent data mutation, e.g. backfilling a
// freshly added column.
type DataChange struct {
	SQL  string
	Args []any
}

type RawStatement struct {
	SQL string
}
