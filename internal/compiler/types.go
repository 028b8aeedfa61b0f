package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
	"github.com/roach88/rgraph/internal/value"
)

// CompileComponent parses a CUE value into a Component named name.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`component: "logical::and": properties: {...}`)
//	c, err := CompileComponent("logical::and", v.LookupPath(cue.MakePath(cue.Str("component"), cue.Str("logical::and"))))
func CompileComponent(name string, v cue.Value) (*types.Component, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	ty, err := typeid.ParseComponentTypeID(name)
	if err != nil {
		return nil, nameError(v, err)
	}
	desc, err := optionalString(v, "description")
	if err != nil {
		return nil, err
	}
	props, err := parseProperties(v, "properties")
	if err != nil {
		return nil, err
	}
	return &types.Component{Type: ty, Description: desc, Properties: props}, nil
}

// CompileEntityType parses a CUE value into an EntityType named name.
func CompileEntityType(name string, v cue.Value) (*types.EntityType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	ty, err := typeid.ParseEntityTypeID(name)
	if err != nil {
		return nil, nameError(v, err)
	}
	desc, err := optionalString(v, "description")
	if err != nil {
		return nil, err
	}
	components, err := parseComponents(v)
	if err != nil {
		return nil, err
	}
	props, err := parseProperties(v, "properties")
	if err != nil {
		return nil, err
	}
	return &types.EntityType{Type: ty, Description: desc, Components: components, Properties: props}, nil
}

// CompileRelationType parses a CUE value into a RelationType named name.
// Missing endpoints default to the wildcard.
func CompileRelationType(name string, v cue.Value) (*types.RelationType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	ty, err := typeid.ParseRelationTypeID(name)
	if err != nil {
		return nil, nameError(v, err)
	}
	rt := &types.RelationType{Type: ty, Outbound: types.Wildcard, Inbound: types.Wildcard}
	if rt.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	endpoints := []struct {
		field string
		dst   *string
	}{{"outbound", &rt.Outbound}, {"inbound", &rt.Inbound}}
	for _, ep := range endpoints {
		field, dst := ep.field, ep.dst
		s, err := optionalString(v, field)
		if err != nil {
			return nil, err
		}
		if s == "" {
			continue
		}
		if s != types.Wildcard {
			if _, err := typeid.ParseEntityTypeID(s); err != nil {
				return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.LookupPath(cue.ParsePath(field)).Pos()}
			}
		}
		*dst = s
	}
	if rt.Components, err = parseComponents(v); err != nil {
		return nil, err
	}
	if rt.Properties, err = parseProperties(v, "properties"); err != nil {
		return nil, err
	}
	return rt, nil
}

// CompileFlowType parses a CUE value into a FlowType named name. The
// wrapper entity type is required.
func CompileFlowType(name string, v cue.Value) (*types.FlowType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	ty, err := typeid.ParseFlowTypeID(name)
	if err != nil {
		return nil, nameError(v, err)
	}
	wrapperVal := v.LookupPath(cue.ParsePath("wrapper"))
	if !wrapperVal.Exists() {
		return nil, &CompileError{
			Field:   "wrapper",
			Message: "wrapper is required",
			Pos:     v.Pos(),
		}
	}
	wrapperName, err := wrapperVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	wrapper, err := typeid.ParseEntityTypeID(wrapperName)
	if err != nil {
		return nil, &CompileError{Field: "wrapper", Message: err.Error(), Pos: wrapperVal.Pos()}
	}
	desc, err := optionalString(v, "description")
	if err != nil {
		return nil, err
	}
	vars, err := parseProperties(v, "variables")
	if err != nil {
		return nil, err
	}
	return &types.FlowType{Type: ty, Description: desc, Wrapper: wrapper, Variables: vars}, nil
}

func nameError(v cue.Value, err error) error {
	return &CompileError{Field: "name", Message: err.Error(), Pos: v.Pos()}
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseComponents(v cue.Value) ([]typeid.ComponentTypeID, error) {
	names, err := stringList(v, "components")
	if err != nil {
		return nil, err
	}
	out := make([]typeid.ComponentTypeID, 0, len(names))
	for _, n := range names {
		c, err := typeid.ParseComponentTypeID(n)
		if err != nil {
			return nil, &CompileError{Field: "components", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("components")).Pos()}
		}
		out = append(out, c)
	}
	return out, nil
}

// parseProperties reads the struct at field into property types in field
// order. Names in the immutable list must be declared.
func parseProperties(v cue.Value, field string) ([]typeid.PropertyType, error) {
	immutable, err := stringList(v, "immutable")
	if err != nil {
		return nil, err
	}

	var props []typeid.PropertyType
	f := v.LookupPath(cue.ParsePath(field))
	if f.Exists() {
		iter, err := f.Fields(cue.Optional(false))
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name := iter.Selector().Unquoted()
			pt, err := parseProperty(name, iter.Value())
			if err != nil {
				return nil, err
			}
			if slices.Contains(immutable, name) {
				pt.Mutability = typeid.Immutable
			}
			props = append(props, pt)
		}
	}

	if field != "properties" {
		return props, nil
	}
	for _, name := range immutable {
		if !slices.ContainsFunc(props, func(pt typeid.PropertyType) bool { return pt.Name == name }) {
			return nil, &CompileError{
				Field:   "immutable",
				Message: fmt.Sprintf("property %q is not declared", name),
				Pos:     v.LookupPath(cue.ParsePath("immutable")).Pos(),
			}
		}
	}
	return props, nil
}

func parseProperty(name string, v cue.Value) (typeid.PropertyType, error) {
	dt, err := extractDataType(v)
	if err != nil {
		return typeid.PropertyType{}, err
	}
	pt := typeid.NewPropertyType(name, dt)

	d, hasDefault := v.Default()
	if !hasDefault && !isConcreteScalar(v) {
		return pt, nil
	}
	data, err := d.MarshalJSON()
	if err != nil {
		return pt, formatCUEError(err)
	}
	def, err := value.Unmarshal(data)
	if err != nil {
		return pt, &CompileError{Field: "properties." + name, Message: err.Error(), Pos: v.Pos()}
	}
	return pt.WithDefault(def), nil
}

func isConcreteScalar(v cue.Value) bool {
	switch v.Kind() {
	case cue.BoolKind, cue.IntKind, cue.FloatKind, cue.NumberKind, cue.StringKind, cue.NullKind:
		return true
	}
	return false
}

// extractDataType converts a CUE type to a property data type. Null is
// ignored in disjunctions, so `null | string` is a string property.
func extractDataType(v cue.Value) (typeid.DataType, error) {
	k := v.IncompleteKind()
	if k == cue.TopKind {
		return typeid.DataTypeAny, nil
	}
	if k == cue.NullKind {
		return typeid.DataTypeNull, nil
	}
	switch k &^ cue.NullKind {
	case cue.BoolKind:
		return typeid.DataTypeBool, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return typeid.DataTypeNumber, nil
	case cue.StringKind:
		return typeid.DataTypeString, nil
	case cue.ListKind:
		return typeid.DataTypeArray, nil
	case cue.StructKind:
		return typeid.DataTypeObject, nil
	}
	return "", &CompileError{
		Field:   "type",
		Message: fmt.Sprintf("unsupported type kind: %v", k),
		Pos:     v.Pos(),
	}
}
