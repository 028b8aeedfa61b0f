// Package compiler turns CUE type definitions into registry types.
//
// A types file declares four top-level structs keyed by namespaced type
// name:
//
//	component: "logical::and": {
//		description: "Logical AND of lhs and rhs"
//		properties: {
//			lhs:    *false | bool
//			rhs:    *false | bool
//			result: *false | bool
//		}
//	}
//	entity: "logical::and": components: ["logical::and"]
//	relation: "core::connector": {outbound: "*", inbound: "*", components: ["core::connector"]}
//	flow: "logical::and3": wrapper: "logical::and"
//
// A property is a CUE type expression. Its kind gives the data type and its
// CUE default (or concrete value) gives the default value. Names listed in
// immutable are created immutable.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
