package cli

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rgraph/internal/store"
	"github.com/roach88/rgraph/internal/value"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database    string
	Kind        string
	Transitions bool
	Instance    string
}

// InstanceView is one stored snapshot.
type InstanceView struct {
	Key        string       `json:"key"`
	Kind       string       `json:"kind"`
	Type       string       `json:"type"`
	Components []string     `json:"components"`
	Properties value.Object `json:"properties"`
	Hash       string       `json:"hash"`
	Seq        int64        `json:"seq"`
}

// TransitionView is one journaled behaviour transition.
type TransitionView struct {
	Seq       int64  `json:"seq"`
	Instance  string `json:"instance"`
	Behaviour string `json:"behaviour"`
	From      string `json:"from"`
	To        string `json:"to"`
	Error     string `json:"error,omitempty"`
}

// InspectResult is the content of a database.
type InspectResult struct {
	Counts      map[string]int   `json:"counts"`
	Instances   []InstanceView   `json:"instances"`
	Transitions []TransitionView `json:"transitions,omitempty"`
}

// WriteText renders the result for the text format.
func (r InspectResult) WriteText(w io.Writer) error {
	kinds := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "%s: %d\n", k, r.Counts[k])
	}

	if len(r.Instances) > 0 {
		fmt.Fprintln(w)
	}
	for _, in := range r.Instances {
		props, err := value.Marshal(in.Properties)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%04d %-8s %s %s %s\n", in.Seq, in.Kind, in.Type, in.Key, props)
	}

	if len(r.Transitions) > 0 {
		fmt.Fprintln(w)
	}
	for _, tr := range r.Transitions {
		fmt.Fprintf(w, "%04d %s %s %s -> %s", tr.Seq, tr.Instance, tr.Behaviour, tr.From, tr.To)
		if tr.Error != "" {
			fmt.Fprintf(w, " (%s)", tr.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the snapshots and journal of a database",
		Long: `Show the instance snapshots stored in a SQLite database and, with
--transitions, the behaviour transition journal.

Examples:
  rgraph inspect --db ./rgraph.db
  rgraph inspect --db ./rgraph.db --kind entity
  rgraph inspect --db ./rgraph.db --transitions --instance <entity-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: store.path of the config)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show instances of this kind (entity|relation|flow)")
	cmd.Flags().BoolVar(&opts.Transitions, "transitions", false, "show the transition journal")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "only show transitions of this instance")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	kind := store.Kind(opts.Kind)
	if !slices.Contains([]store.Kind{"", store.KindEntity, store.KindRelation, store.KindFlow}, kind) {
		return formatter.fail(ExitCommandError, ErrCodeInvalidFilter,
			fmt.Sprintf("invalid kind %q: must be entity, relation or flow", opts.Kind), nil)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Store.Path
	}
	if dbPath == "" {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "no database given (use --db)", nil)
	}
	// store.Open creates missing databases; inspecting one is a mistake.
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("database not found: %s", dbPath), err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	counts, err := st.CountInstances(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to count instances", err)
	}
	records, err := st.ReadInstances(ctx, kind)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to read instances", err)
	}

	result := InspectResult{
		Counts:    make(map[string]int, len(counts)),
		Instances: make([]InstanceView, len(records)),
	}
	for k, n := range counts {
		result.Counts[string(k)] = n
	}
	for i, rec := range records {
		result.Instances[i] = InstanceView{
			Key:        rec.Key,
			Kind:       string(rec.Kind),
			Type:       rec.Type,
			Components: rec.Components,
			Properties: rec.Properties,
			Hash:       rec.Hash,
			Seq:        rec.Seq,
		}
	}

	if opts.Transitions {
		trs, err := st.ReadTransitions(ctx, opts.Instance)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, "failed to read transitions", err)
		}
		result.Transitions = make([]TransitionView, len(trs))
		for i, tr := range trs {
			result.Transitions[i] = TransitionView(tr)
		}
	}

	formatter.VerboseLog("Read %d instance(s) from %s", len(records), dbPath)
	return formatter.Success(result)
}
