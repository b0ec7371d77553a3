package revmig

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

func (a AddColumn) Render() (Statement, error) {
	if a.Table == "" || a.Column == "" || a.Type == "" {
		return Statement{}, fmt.Errorf("add column requires table, column and type")
	}
	var b strings.Builder
	b.WriteString("ALTER TABLE ")
	b.WriteString(pgx.Identifier{a.Table}.Sanitize())
	b.WriteString(" ADD COLUMN IF NOT EXISTS ")
	b.WriteString(pgx.Identifier{a.Column}.Sanitize())
	b.WriteString(" ")
	b.WriteString(a.Type)
	if a.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(a.Default)
	}
	if !a.Nullable {
		b.WriteString(" NOT NULL")
	}
	return Statement{SQL: b.String()}, nil
}

func (a DropColumn) Render() (Statement, error) {
	if a.Table == "" || a.Column == "" {
		return Statement{}, fmt.Errorf("drop column requires table and column")
	}
	return Statement{
		SQL: fmt.Sprintf(
			"ALTER TABLE %s DROP COLUMN IF EXISTS %s",
			pgx.Identifier{a.Table}.Sanitize(), pgx.Identifier{a.Column}.Sanitize(),
		),
	}, nil
}

func (a CreateEnum) Render() (Statement, error) {
	if a.Name == "" || len(a.Values) == 0 {
		return Statement{}, fmt.Errorf("create enum requires name and values")
	}
	values := make([]string, len(a.Values))
	for i, value := range a.Values {
		values[i] = quoteLiteral(value)
	}
	// CREATE TYPE has no IF NOT EXISTS form, the duplicate_object guard
	// keeps the statement safe to re-run.
	return Statement{
		SQL: fmt.Sprintf(
			"DO $$ BEGIN CREATE TYPE %s AS ENUM (%s); EXCEPTION WHEN duplicate_object THEN NULL; END $$",
			pgx.Identifier{a.Name}.Sanitize(), strings.Join(values, ", "),
		),
	}, nil
}

func (a DropEnum) Render() (Statement, error) {
	if a.Name == "" {
		return Statement{}, fmt.Errorf("drop enum requires name")
	}
	return Statement{
		SQL: fmt.Sprintf("DROP TYPE IF EXISTS %s", pgx.Identifier{a.Name}.Sanitize()),
	}, nil
}

func (a AddEnumValue) Render() (Statement, error) {
	if a.Enum == "" || a.Value == "" {
		return Statement{}, fmt.Errorf("add enum value requires enum and value")
	}
	return Statement{
		SQL: fmt.Sprintf(
			"ALTER TYPE %s ADD VALUE IF NOT EXISTS %s",
			pgx.Identifier{a.Enum}.Sanitize(), quoteLiteral(a.Value),
		),
	}, nil
}

func (a DataChange) Render() (Statement, error) {
	if a.SQL == "" {
		return Statement{}, fmt.Errorf("data change requires sql")
	}
	return Statement{SQL: a.SQL, Args: a.Args}, nil
}

func (a RawStatement) Render() (Statement, error) {
	if a.SQL == "" {
		return Statement{}, fmt.Errorf("raw statement requires sql")
	}
	return Statement{SQL: a.SQL}, nil
}

func renderActions(actions []Action) ([]Statement, error) {
	statements := make([]Statement, 0, len(actions))
	for _, action := range actions {
		statement, renderErr := action.Render()
		if renderErr != nil {
			return nil, fmt.Errorf("render action failed: %w", renderErr)
		}
		statements = append(statements, statement)
	}
	return statements, nil
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
