package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/modkit/internal/ir"
	"github.com/roach88/modkit/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database    string
	Limit       int
	Fingerprint string
	Module      string
	ID          string
}

// HistoryEntry is one recorded composition. Calls is only filled when a
// single snapshot is requested with --id.
type HistoryEntry struct {
	ir.Snapshot
	Calls []ir.CallRecord `json:"calls,omitempty"`
}

// HistoryResult holds the history output.
type HistoryResult struct {
	Snapshots []HistoryEntry `json:"snapshots"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded compositions",
		Long: `List composition snapshots recorded by compose and invoke.

Without filters the most recent snapshots are listed first. --fingerprint
and --module list matching snapshots oldest first. --id shows a single
snapshot together with its recorded calls.

Examples:
  modkit history --db ./modkit.db --limit 10
  modkit history --db ./modkit.db --module extension
  modkit history --db ./modkit.db --id 0192f0c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum snapshots to list (0 lists all)")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only snapshots with this surface fingerprint")
	cmd.Flags().StringVar(&opts.Module, "module", "", "only snapshots that registered this module")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show one snapshot and its calls")
	cmd.MarkFlagsMutuallyExclusive("fingerprint", "module", "id")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var snaps []ir.Snapshot
	switch {
	case opts.ID != "":
		snap, err := st.ReadSnapshot(ctx, opts.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("snapshot not found: %s", opts.ID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read snapshot", err)
		}
		calls, err := st.ReadCalls(ctx, snap.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read calls", err)
		}
		return outputHistory(cmd, opts, HistoryResult{Snapshots: []HistoryEntry{{Snapshot: snap, Calls: calls}}})
	case opts.Fingerprint != "":
		snaps, err = st.FindByFingerprint(ctx, opts.Fingerprint)
	case opts.Module != "":
		snaps, err = st.FindByModule(ctx, opts.Module)
	default:
		snaps, err = st.ListSnapshots(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query snapshots", err)
	}

	result := HistoryResult{Snapshots: make([]HistoryEntry, len(snaps))}
	for i, s := range snaps {
		result.Snapshots[i] = HistoryEntry{Snapshot: s}
	}
	return outputHistory(cmd, opts, result)
}

func outputHistory(cmd *cobra.Command, opts *HistoryOptions, result HistoryResult) error {
	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if len(result.Snapshots) == 0 {
		fmt.Fprintln(w, "No snapshots found")
		return nil
	}
	for _, e := range result.Snapshots {
		fmt.Fprintf(w, "[%d] %s %s %s\n", e.Seq, truncateID(e.ID), shortHash(e.Fingerprint), strings.Join(e.Modules, ","))
		if opts.Verbose || opts.ID != "" {
			fmt.Fprintf(w, "     created by: %s\n", e.CreatedBy)
			fmt.Fprintf(w, "     operations: %s\n", strings.Join(e.Surface.OperationNames(), ", "))
		}
		if opts.ID != "" {
			writeCalls(w, e.Calls)
		}
	}
	return nil
}

func writeCalls(w io.Writer, calls []ir.CallRecord) {
	if len(calls) == 0 {
		fmt.Fprintln(w, "     calls: (none)")
		return
	}
	fmt.Fprintln(w, "     calls:")
	for _, c := range calls {
		args, err := ir.MarshalCanonical(c.Args)
		if err != nil {
			args = []byte("?")
		}
		fmt.Fprintf(w, "       [%d] %s (%s) %s\n", c.Position+1, c.Capability, c.Module, args)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
