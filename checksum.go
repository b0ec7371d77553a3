package revmig

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

func createChecksum(values ...string) string {
	var buf bytes.Buffer
	for _, value := range values {
		value = strings.ReplaceAll(value, "\r\n", "\n")
		value = strings.TrimSpace(value)
		buf.WriteString(value)
	}
	return fmt.Sprintf("%x", sha256.Sum256(buf.Bytes()))
}

// stepChecksum fingerprints a step's identity, execution flags and
// rendered statements. Stored on the applied row and compared on later
// runs, so a definition edited after being applied is caught before
// anything executes.
func stepChecksum(step *Step) (string, error) {
	values := []string{
		step.Revision, step.DownRevision, step.Branch,
		strconv.FormatBool(step.Autocommit), strconv.FormatBool(step.Irreversible),
	}
	values = append(values, step.DependsOn...)
	for _, actions := range [][]Action{step.Up, step.Down} {
		statements, renderErr := renderActions(actions)
		if renderErr != nil {
			return "", fmt.Errorf("checksum render failed: %w", renderErr)
		}
		for _, statement := range statements {
			values = append(values, statement.SQL)
			if len(statement.Args) > 0 {
				values = append(values, fmt.Sprint(statement.Args...))
			}
		}
	}
	return createChecksum(values...), nil
}
