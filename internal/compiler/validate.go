package compiler

import (
	"fmt"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
)

// Validation error codes (E110-E119)
const (
	ErrUnknownComponent   = "E110" // component reference not defined
	ErrUnknownWrapper     = "E111" // flow wrapper entity type not defined
	ErrUnknownEndpoint    = "E112" // relation endpoint entity type not defined
	ErrConflictingProp    = "E113" // same property with different data types
	ErrDuplicateType      = "E114" // type defined more than once
	ErrDefaultNotAccepted = "E115" // default value does not match data type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks cross references within r. Types already registered in
// known (which may be nil) count as defined.
// Returns all errors found (does not fail-fast).
func Validate(r *Result, known *types.Registry) []ValidationError {
	var errs []ValidationError

	components := make(map[typeid.ComponentTypeID]types.Component)
	for _, c := range r.Components {
		field := "component." + c.Type.String()
		if _, dup := components[c.Type]; dup {
			errs = append(errs, ValidationError{Field: field, Message: "component defined more than once", Code: ErrDuplicateType})
		}
		components[c.Type] = c
		errs = append(errs, validateDefaults(field, c.Properties)...)
	}
	lookupComponent := func(ty typeid.ComponentTypeID) (types.Component, bool) {
		if c, ok := components[ty]; ok {
			return c, true
		}
		if known != nil {
			return known.Component(ty)
		}
		return types.Component{}, false
	}

	entities := make(map[string]bool)
	if known != nil {
		for _, et := range known.EntityTypes() {
			entities[et.Type.String()] = true
		}
	}
	seen := make(map[string]bool)
	for _, et := range r.EntityTypes {
		field := "entity." + et.Type.String()
		if seen[field] {
			errs = append(errs, ValidationError{Field: field, Message: "entity type defined more than once", Code: ErrDuplicateType})
		}
		seen[field] = true
		entities[et.Type.String()] = true
		errs = append(errs, validateComposition(field, et.Components, et.Properties, lookupComponent)...)
	}

	for _, rt := range r.RelationTypes {
		field := "relation." + rt.Type.String()
		if seen[field] {
			errs = append(errs, ValidationError{Field: field, Message: "relation type defined more than once", Code: ErrDuplicateType})
		}
		seen[field] = true
		for _, ep := range []string{rt.Outbound, rt.Inbound} {
			if ep != "" && ep != types.Wildcard && !entities[ep] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("endpoint entity type %s is not defined", ep),
					Code:    ErrUnknownEndpoint,
				})
			}
		}
		errs = append(errs, validateComposition(field, rt.Components, rt.Properties, lookupComponent)...)
	}

	for _, ft := range r.FlowTypes {
		field := "flow." + ft.Type.String()
		if seen[field] {
			errs = append(errs, ValidationError{Field: field, Message: "flow type defined more than once", Code: ErrDuplicateType})
		}
		seen[field] = true
		if !entities[ft.Wrapper.String()] {
			errs = append(errs, ValidationError{
				Field:   field + ".wrapper",
				Message: fmt.Sprintf("wrapper entity type %s is not defined", ft.Wrapper),
				Code:    ErrUnknownWrapper,
			})
		}
		errs = append(errs, validateDefaults(field, ft.Variables)...)
	}

	return errs
}

// validateComposition checks that every component exists and that no
// property is declared with two data types.
func validateComposition(field string, refs []typeid.ComponentTypeID, own []typeid.PropertyType,
	lookup func(typeid.ComponentTypeID) (types.Component, bool)) []ValidationError {
	var errs []ValidationError
	declared := make(map[string]typeid.DataType)
	declare := func(owner string, pt typeid.PropertyType) {
		if dt, ok := declared[pt.Name]; ok && dt != pt.DataType && dt != typeid.DataTypeAny && pt.DataType != typeid.DataTypeAny {
			errs = append(errs, ValidationError{
				Field:   field + ".properties." + pt.Name,
				Message: fmt.Sprintf("%s declares %s, previously %s", owner, pt.DataType, dt),
				Code:    ErrConflictingProp,
			})
		}
		declared[pt.Name] = pt.DataType
	}

	for _, ref := range refs {
		c, ok := lookup(ref)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".components",
				Message: fmt.Sprintf("component %s is not defined", ref),
				Code:    ErrUnknownComponent,
			})
			continue
		}
		for _, pt := range c.Properties {
			declare("component "+ref.String(), pt)
		}
	}
	for _, pt := range own {
		declare("type", pt)
	}
	return append(errs, validateDefaults(field, own)...)
}

func validateDefaults(field string, props []typeid.PropertyType) []ValidationError {
	var errs []ValidationError
	for _, pt := range props {
		if pt.Default != nil && !pt.DataType.Accepts(pt.Default) {
			errs = append(errs, ValidationError{
				Field:   field + ".properties." + pt.Name,
				Message: fmt.Sprintf("default %s does not match data type %s", pt.Default.Kind(), pt.DataType),
				Code:    ErrDefaultNotAccepted,
			})
		}
	}
	return errs
}
