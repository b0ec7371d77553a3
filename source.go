package revmig

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pelletier/go-toml/v2"
)

// FormatConstraint is the definition-file format this engine reads.
// Files declaring an incompatible format are rejected at load time.
const FormatConstraint = "^1"

type stepFile struct {
	Format       string       `toml:"format"`
	Revision     string       `toml:"revision"`
	DownRevision string       `toml:"down_revision"`
	Branch       string       `toml:"branch"`
	DependsOn    []string     `toml:"depends_on"`
	Autocommit   bool         `toml:"autocommit"`
	Irreversible bool         `toml:"irreversible"`
	Up           []actionFile `toml:"up"`
	Down         []actionFile `toml:"down"`
}

type actionFile struct {
	Kind       string   `toml:"kind"`
	Table      string   `toml:"table"`
	Column     string   `toml:"column"`
	ColumnType string   `toml:"column_type"`
	Nullable   *bool    `toml:"nullable"`
	Default    string   `toml:"default"`
	Enum       string   `toml:"enum"`
	Value      string   `toml:"value"`
	Values     []string `toml:"values"`
	SQL        string   `toml:"sql"`
	Args       []any    `toml:"args"`
}

// LoadSteps walks a filesystem for *.toml step definitions and parses
// them into steps. Order on disk carries no meaning, the chain is
// resolved from predecessor links afterwards.
func LoadSteps(fsys fs.FS) ([]*Step, error) {
	formatRange, parseConstraintErr := semver.NewConstraint(FormatConstraint)
	if parseConstraintErr != nil {
		return nil, fmt.Errorf("parse format constraint failed: %w", parseConstraintErr)
	}
	var steps []*Step
	if err := fs.WalkDir(
		fsys, ".", func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
				return nil
			}
			fileBytes, readErr := fs.ReadFile(fsys, path)
			if readErr != nil {
				return fmt.Errorf("read step file failed: %w", readErr)
			}
			var file stepFile
			if unmarshalErr := toml.Unmarshal(fileBytes, &file); unmarshalErr != nil {
				return fmt.Errorf("parse %s failed: %w", path, unmarshalErr)
			}
			step, convertErr := file.toStep(path, formatRange)
			if convertErr != nil {
				return fmt.Errorf("invalid step %s: %w", path, convertErr)
			}
			steps = append(steps, step)
			return nil
		},
	); err != nil {
		return nil, fmt.Errorf("scan step definitions failed: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no step definitions found")
	}
	return steps, nil
}

func (f stepFile) toStep(path string, formatRange *semver.Constraints) (*Step, error) {
	if f.Format == "" {
		return nil, fmt.Errorf("missing format")
	}
	format, parseFormatErr := semver.NewVersion(f.Format)
	if parseFormatErr != nil {
		return nil, fmt.Errorf("parse format failed: %w", parseFormatErr)
	}
	if !formatRange.Check(format) {
		return nil, fmt.Errorf("format %s outside supported range %s", f.Format, FormatConstraint)
	}
	if f.Revision == "" {
		return nil, fmt.Errorf("missing revision")
	}
	if len(f.Up) == 0 {
		return nil, fmt.Errorf("missing up actions")
	}
	if f.Irreversible && len(f.Down) > 0 {
		return nil, fmt.Errorf("irreversible step declares down actions")
	}
	if !f.Irreversible && len(f.Down) == 0 {
		return nil, fmt.Errorf("missing down actions, declare irreversible for permanent steps")
	}
	step := &Step{
		Revision:     f.Revision,
		DownRevision: f.DownRevision,
		Branch:       f.Branch,
		DependsOn:    f.DependsOn,
		Autocommit:   f.Autocommit,
		Irreversible: f.Irreversible,
		source:       path,
	}
	for _, raw := range f.Up {
		action, convertErr := raw.toAction()
		if convertErr != nil {
			return nil, convertErr
		}
		step.Up = append(step.Up, action)
	}
	for _, raw := range f.Down {
		action, convertErr := raw.toAction()
		if convertErr != nil {
			return nil, convertErr
		}
		step.Down = append(step.Down, action)
	}
	return step, nil
}

func (f actionFile) toAction() (Action, error) {
	switch f.Kind {
	case "add_column":
		return AddColumn{
			Table:    f.Table,
			Column:   f.Column,
			Type:     f.ColumnType,
			Nullable: f.Nullable == nil || *f.Nullable,
			Default:  f.Default,
		}, nil
	case "drop_column":
		return DropColumn{Table: f.Table, Column: f.Column}, nil
	case "create_enum":
		return CreateEnum{Name: f.Enum, Values: f.Values}, nil
	case "drop_enum":
		return DropEnum{Name: f.Enum}, nil
	case "add_enum_value":
		return AddEnumValue{Enum: f.Enum, Value: f.Value}, nil
	case "data":
		return DataChange{SQL: f.SQL, Args: f.Args}, nil
	case "sql":
		return RawStatement{SQL: f.SQL}, nil
	case "":
		return nil, fmt.Errorf("action missing kind")
	default:
		return nil, fmt.Errorf("unknown action kind %q", f.Kind)
	}
}
