package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rgraph/internal/harness"
	"github.com/roach88/rgraph/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Database receives the snapshots and transition journal of every
	// scenario. Default: store.path of the configuration file; empty runs
	// each scenario against an in-memory store.
	Database string

	// Trace prints the propagation trace of every scenario.
	Trace bool
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Trace    []string `json:"trace,omitempty"`

	loadFailed bool
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// WriteText renders the result for the text format.
func (r RunResult) WriteText(w io.Writer) error {
	for _, s := range r.Scenarios {
		mark := "\u2713"
		if !s.Pass {
			mark = "\u2717"
		}
		fmt.Fprintf(w, "%s %s\n", mark, s.Name)
		for _, line := range s.Trace {
			fmt.Fprintf(w, "    %s\n", line)
		}
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	_, err := fmt.Fprintf(w, "%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	return err
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run propagation scenarios",
		Long: `Run YAML scenarios against a fresh runtime each.

A scenario builds entities, flows and connectors, drives them with steps and
checks the propagation trace and final state. With --db the final snapshot
and the behaviour transition journal are written to a SQLite database.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (database cannot be opened, etc.)

Examples:
  rgraph run testdata/scenarios/and3.yaml
  rgraph run --trace scenarios/*.yaml
  rgraph run --db ./rgraph.db scenarios/and3.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for snapshots and journal")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the propagation trace")

	return cmd
}

func runScenarios(opts *RunOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	runOpts := []harness.Option{harness.WithLogger(opts.Logger)}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				opts.Logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
		formatter.VerboseLog("Writing snapshots to %s", dbPath)
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(opts, file, runOpts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed == 0 {
		return formatter.Success(result)
	}
	first := result.Scenarios[0]
	for _, s := range result.Scenarios {
		if !s.Pass {
			first = s
			break
		}
	}
	code := ErrCodeScenarioRun
	if first.loadFailed {
		code = ErrCodeScenarioLoad
	}
	if err := formatter.Failure(code, fmt.Sprintf("scenario %s failed", first.Name), result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
}

// runScenario loads and executes one scenario file. Load and build errors
// fail the scenario.
func runScenario(opts *RunOptions, file string, runOpts []harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		sr.loadFailed = true
		return sr
	}
	sr.Name = scenario.Name

	opts.Logger.Debug("running scenario", "name", scenario.Name, "file", file)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	sr.Pass = result.Pass
	sr.Errors = result.Errors
	sr.Warnings = result.Warnings
	if opts.Trace || opts.Format == "json" {
		sr.Trace = make([]string, len(result.Trace))
		for i, ev := range result.Trace {
			sr.Trace[i] = ev.String()
		}
	}
	return sr
}
