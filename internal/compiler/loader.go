package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rgraph/internal/types"
)

// LoadMode controls how errors are handled during type loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Result holds the types compiled from one or more CUE sources.
type Result struct {
	Components    []types.Component
	EntityTypes   []types.EntityType
	RelationTypes []types.RelationType
	FlowTypes     []types.FlowType
	FileCount     int
}

// Empty reports whether no type was compiled.
func (r *Result) Empty() bool {
	return len(r.Components)+len(r.EntityTypes)+len(r.RelationTypes)+len(r.FlowTypes) == 0
}

// Merge appends the types of other to r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Components = append(r.Components, other.Components...)
	r.EntityTypes = append(r.EntityTypes, other.EntityTypes...)
	r.RelationTypes = append(r.RelationTypes, other.RelationTypes...)
	r.FlowTypes = append(r.FlowTypes, other.FlowTypes...)
	r.FileCount += other.FileCount
}

// Apply registers the types in dependency order: components, entity types,
// relation types, flow types. Registration continues past failures; they
// are returned joined.
func (r *Result) Apply(reg *types.Registry) error {
	var errs []error
	for _, c := range r.Components {
		errs = append(errs, reg.AddComponent(c))
	}
	for _, et := range r.EntityTypes {
		errs = append(errs, reg.AddEntityType(et))
	}
	for _, rt := range r.RelationTypes {
		errs = append(errs, reg.AddRelationType(rt))
	}
	for _, ft := range r.FlowTypes {
		errs = append(errs, reg.AddFlowType(ft))
	}
	return errors.Join(errs...)
}

// LoadError represents an error that occurred during type loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidName      = "E101" // Malformed namespaced type name
	ErrCodeMissingWrapper   = "E102" // Flow without wrapper
	ErrCodeInvalidType      = "E103" // Unsupported property type
	ErrCodeUnknownImmutable = "E104" // immutable names an undeclared property
	ErrCodeInvalidEndpoint  = "E105" // Malformed relation endpoint
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name", "components":
		return ErrCodeInvalidName
	case "wrapper":
		return ErrCodeMissingWrapper
	case "type":
		return ErrCodeInvalidType
	case "immutable":
		return ErrCodeUnknownImmutable
	case "outbound", "inbound":
		return ErrCodeInvalidEndpoint
	default:
		return ErrCodeGeneric
	}
}

// LoadPaths loads every path, each a directory of CUE files or a single
// file, and merges the results.
func LoadPaths(paths []string, mode LoadMode) (*Result, []error) {
	result := &Result{}
	var errs []error
	for _, p := range paths {
		r, perrs := loadPath(p, mode)
		result.Merge(r)
		errs = append(errs, perrs...)
		if len(errs) > 0 && mode == LoadModeFailFast {
			return result, errs
		}
	}
	return result, errs
}

func loadPath(path string, mode LoadMode) (*Result, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("types path not found: %s", path)}}
	}
	if info.IsDir() {
		return LoadDir(path, mode)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
	}
	r, errs := CompileSource(path, string(src), mode)
	if r != nil {
		r.FileCount = 1
	}
	return r, errs
}

// LoadDir loads and compiles the CUE package in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*Result, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("types directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing types directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result, errs := compileValue(v, mode)
	result.FileCount = len(cueFiles)
	return result, errs
}

// CompileSource compiles CUE source text. filename is used in positions.
func CompileSource(filename, src string, mode LoadMode) (*Result, []error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, []error{convertCompileError(formatCUEError(err), filename)}
	}
	return compileValue(v, mode)
}

// section compiles every field of one top-level struct.
type section struct {
	label   string
	compile func(name string, v cue.Value, r *Result) error
}

var sections = []section{
	{"component", func(name string, v cue.Value, r *Result) error {
		c, err := CompileComponent(name, v)
		if err == nil {
			r.Components = append(r.Components, *c)
		}
		return err
	}},
	{"entity", func(name string, v cue.Value, r *Result) error {
		et, err := CompileEntityType(name, v)
		if err == nil {
			r.EntityTypes = append(r.EntityTypes, *et)
		}
		return err
	}},
	{"relation", func(name string, v cue.Value, r *Result) error {
		rt, err := CompileRelationType(name, v)
		if err == nil {
			r.RelationTypes = append(r.RelationTypes, *rt)
		}
		return err
	}},
	{"flow", func(name string, v cue.Value, r *Result) error {
		ft, err := CompileFlowType(name, v)
		if err == nil {
			r.FlowTypes = append(r.FlowTypes, *ft)
		}
		return err
	}},
}

func compileValue(v cue.Value, mode LoadMode) (*Result, []error) {
	result := &Result{}
	var errs []error

	for _, s := range sections {
		sv := v.LookupPath(cue.ParsePath(s.label))
		if !sv.Exists() {
			continue
		}
		iter, err := sv.Fields()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", s.label, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		for iter.Next() {
			name := iter.Selector().Unquoted()
			if err := s.compile(name, iter.Value(), result); err != nil {
				errs = append(errs, convertCompileError(err, s.label+"."+name))
				if mode == LoadModeFailFast {
					return result, errs
				}
			}
		}
	}

	if result.Empty() && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no component, entity, relation or flow types found"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
