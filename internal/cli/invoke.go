package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/modkit/internal/ir"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	ComposeOptions
	Calls []string // name or name=<json object>
}

// InvokeResult is the JSON payload of the invoke command.
type InvokeResult struct {
	Fingerprint string          `json:"fingerprint"`
	Trace       []ir.CallRecord `json:"trace"`
	Config      ir.IRObject     `json:"config"`
	SnapshotID  string          `json:"snapshot_id,omitempty"`
	Seq         int64           `json:"seq,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{ComposeOptions: ComposeOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "invoke <specs-dir>",
		Short: "Compose modules and apply a sequence of calls",
		Long: `Compose modules, construct a builder and apply each --call in order.

Each call is a capability name, optionally followed by "=" and a JSON
object of arguments. The final configuration and the call trace are
printed; with --db both are recorded.

Example:
  modkit invoke ./specs --call withMeta='{"key":"v1"}' --call withUser='{"id":"u1","admin":true}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], cmd)
		},
	}

	addComposeFlags(cmd, &opts.ComposeOptions, "modkit invoke")
	cmd.Flags().StringArrayVar(&opts.Calls, "call", nil, "capability call (name or name=<json args>, repeatable)")

	return cmd
}

func runInvoke(opts *InvokeOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if len(opts.Calls) == 0 {
		return outputCompileError(formatter, ErrCodeGeneric, "at least one --call is required", nil)
	}
	type parsedCall struct {
		name string
		args ir.IRObject
	}
	calls := make([]parsedCall, len(opts.Calls))
	for i, raw := range opts.Calls {
		name, args, err := parseCall(raw)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
		calls[i] = parsedCall{name: name, args: args}
	}

	comp, b, err := buildComposition(&opts.ComposeOptions, specsDir, formatter, logger)
	if err != nil {
		return err
	}

	for i, c := range calls {
		formatter.VerboseLog("call[%d] %s", i, c.name)
		next, err := b.Call(c.name, c.args)
		if err != nil {
			return outputComposeError(formatter, fmt.Errorf("call[%d] %s: %w", i, c.name, err))
		}
		b = next
	}

	result := InvokeResult{
		Fingerprint: comp.Fingerprint(),
		Trace:       b.CallRecords(),
		Config:      b.Config(),
	}

	if opts.Database != "" {
		snap, err := recordComposition(cmd.Context(), &opts.ComposeOptions, comp, result.Trace, logger)
		if err != nil {
			return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
		}
		result.SnapshotID = snap.ID
		result.Seq = snap.Seq
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Applied %d call(s)\n\n", len(result.Trace))
	fmt.Fprintln(w, "Trace:")
	for _, r := range result.Trace {
		args, err := ir.MarshalCanonical(r.Args)
		if err != nil {
			return fmt.Errorf("marshaling args: %w", err)
		}
		fmt.Fprintf(w, "  [%d] %s (%s) %s\n", r.Position+1, r.Capability, r.Module, args)
	}
	fmt.Fprintln(w)
	if err := writeConfig(w, result.Config); err != nil {
		return err
	}
	if result.SnapshotID != "" {
		fmt.Fprintf(w, "\nRecorded snapshot %s (seq %d) in %s\n", result.SnapshotID, result.Seq, opts.Database)
	}
	return nil
}

// parseCall splits "name" or "name=<json object>".
func parseCall(s string) (string, ir.IRObject, error) {
	name, raw, hasArgs := strings.Cut(s, "=")
	if name == "" {
		return "", nil, fmt.Errorf("--call %q: missing capability name", s)
	}
	if !hasArgs || strings.TrimSpace(raw) == "" {
		return name, ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(raw))
	if err != nil {
		return "", nil, fmt.Errorf("--call %s: invalid args: %w", name, err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return "", nil, fmt.Errorf("--call %s: args must be a JSON object, got %s", name, ir.TypeName(v))
	}
	return name, obj, nil
}
