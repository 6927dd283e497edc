package parser

import (
	"errors"
	"fmt"
)

var ErrParse = errors.New("parse error")

// ParseError locates a failure in the input text. Err holds an underlying
// cause such as an unknown unit.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s (at %d in %q)", e.Msg, e.Pos, e.Input)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }
