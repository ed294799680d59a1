package marshal

import (
	"errors"
	"fmt"

	"github.com/roach88/kotars/internal/ir"
)

var (
	// ErrUnsupported is returned for a type that cannot cross the boundary
	// in the requested direction.
	ErrUnsupported = errors.New("not supported at the boundary")

	// ErrReservedName is returned when a parameter collides with a name
	// the generated entry point uses itself.
	ErrReservedName = errors.New("reserved parameter name")
)

// reservedNames are bound by every generated entry point or bridge method.
var reservedNames = map[string]bool{
	"env":      true,
	"_class":   true,
	"handle":   true,
	"ctx":      true,
	"result":   true,
	"receiver": true,
	"outcome":  true,
	"value":    true,
}

// Error locates a generation failure.
type Error struct {
	Owner    string
	Function string
	Name     string // parameter, field or "return"
	Type     ir.WireType
	Err      error
}

func (e *Error) Error() string {
	where := e.Owner
	if e.Function != "" {
		where += "." + e.Function
	}
	if e.Name != "" {
		where += " " + e.Name
	}
	if e.Type != nil {
		return fmt.Sprintf("%s (%s): %v", where, e.Type, e.Err)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func unsupported(direction string, t ir.WireType) error {
	return fmt.Errorf("%w: cannot %s %s", ErrUnsupported, direction, t)
}
