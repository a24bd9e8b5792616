// Package idgen names audit runs. Ids are UUIDv7 with a type prefix, so
// they sort by creation time in the store and in sink directories.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RunPrefix marks audit run ids.
const RunPrefix = "run_"

// Generator produces unique string identifiers.
type Generator func() string

// Prefixed returns a Generator of prefix + UUIDv7.
func Prefixed(prefix string) Generator {
	return func() string {
		return prefix + uuid.Must(uuid.NewV7()).String()
	}
}

// Run is the default run id generator.
var Run Generator = Prefixed(RunPrefix)

// NewRun returns a fresh run id.
func NewRun() string { return Run() }

// ParseRun validates a run id received from a client.
func ParseRun(s string) (string, error) {
	rest, ok := strings.CutPrefix(s, RunPrefix)
	if !ok {
		return "", fmt.Errorf("idgen: %q lacks prefix %s", s, RunPrefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid run id: %w", err)
	}
	return RunPrefix + u.String(), nil
}
