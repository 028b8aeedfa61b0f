package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rgraph/internal/compiler"
	"github.com/roach88/rgraph/internal/runtime"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid         bool                       `json:"valid"`
	Files         int                        `json:"files"`
	Components    int                        `json:"components"`
	EntityTypes   int                        `json:"entity_types"`
	RelationTypes int                        `json:"relation_types"`
	FlowTypes     int                        `json:"flow_types"`
	Errors        []compiler.ValidationError `json:"errors,omitempty"`
}

// WriteText renders the result for the text format.
func (r ValidationResult) WriteText(w io.Writer) error {
	if r.Valid {
		_, err := fmt.Fprintf(w, "\u2713 All types valid (%d files: %d components, %d entity types, %d relation types, %d flow types)\n",
			r.Files, r.Components, r.EntityTypes, r.RelationTypes, r.FlowTypes)
		return err
	}
	fmt.Fprintln(w, "\u2717 Validation failed")
	fmt.Fprintln(w)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
	return nil
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [types-path...]",
		Short: "Validate CUE type definitions",
		Long: `Validate CUE components, entity, relation and flow types.

Each path is a CUE file or a directory of CUE files. Without paths the
types.paths of the configuration file are validated. Types may reference
the built-in gate and connector types.

Exit codes:
  0 - All types valid
  1 - Validation errors
  2 - Command error (path not found, no CUE files, etc.)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if len(paths) == 0 {
		paths = opts.Config.Types.Paths
	}
	if len(paths) == 0 {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "no types paths given", nil)
	}

	res, loadErrs := compiler.LoadPaths(paths, compiler.LoadModeCollectAll)
	formatter.VerboseLog("Loaded %d CUE file(s) from %v", res.FileCount, paths)

	var verrs []compiler.ValidationError
	for _, err := range loadErrs {
		var le *compiler.LoadError
		if !errors.As(err, &le) {
			verrs = append(verrs, compiler.ValidationError{Field: "load", Code: ErrCodeGeneric, Message: err.Error()})
			continue
		}
		if slices.Contains([]string{compiler.ErrCodeNotFound, compiler.ErrCodeNoFiles, compiler.ErrCodeScanError}, le.Code) {
			return formatter.fail(ExitCommandError, le.Code, le.Message, err)
		}
		verrs = append(verrs, compiler.ValidationError{Field: "load", Code: le.Code, Message: err.Error()})
	}

	// A runtime supplies the registry of built-in types.
	rt, err := runtime.New(cmd.Context(), runtime.WithLogger(opts.Logger))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to create runtime", err)
	}

	if len(verrs) == 0 {
		verrs = compiler.Validate(res, rt.Types())
	}
	if len(verrs) == 0 {
		if err := res.Apply(rt.Types()); err != nil {
			verrs = append(verrs, compiler.ValidationError{Field: "register", Code: compiler.ErrDuplicateType, Message: err.Error()})
		}
	}
	if len(verrs) == 0 && res.Empty() {
		verrs = append(verrs, compiler.ValidationError{Field: "types", Code: compiler.ErrCodeNoFiles, Message: "no types found"})
	}

	result := ValidationResult{
		Valid:         len(verrs) == 0,
		Files:         res.FileCount,
		Components:    len(res.Components),
		EntityTypes:   len(res.EntityTypes),
		RelationTypes: len(res.RelationTypes),
		FlowTypes:     len(res.FlowTypes),
		Errors:        verrs,
	}
	if result.Valid {
		return formatter.Success(result)
	}

	if err := formatter.Failure(verrs[0].Code, verrs[0].Message, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(verrs)))
}
