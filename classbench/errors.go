package classbench

import (
	"errors"
	"fmt"
)

// ErrSyntax is matched by every ParseError.
var ErrSyntax = errors.New("classbench: syntax error")

// ParseError reports a malformed line of a rule set or trace.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("classbench: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("classbench: line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrSyntax, e.Err}
}
