package wheel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a string does not parse as a wheel filename.
var ErrMalformed = errors.New("malformed wheel filename")

// ErrMissingDistInfo is returned when no dist-info directory matches the
// expected name and version.
var ErrMissingDistInfo = errors.New("no dist-info directory found")

// MultipleDistInfoError is returned when more than one dist-info directory
// matches the expected name and version.
type MultipleDistInfoError struct {
	Candidates []string
}

func (e *MultipleDistInfoError) Error() string {
	return fmt.Sprintf("multiple dist-info directories found: %s", strings.Join(e.Candidates, ", "))
}
