package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/modkit/internal/compiler"
	"github.com/roach88/modkit/internal/compose"
	"github.com/roach88/modkit/internal/ir"
	"github.com/roach88/modkit/internal/store"
)

// ComposeOptions holds flags shared by the compose and invoke commands.
type ComposeOptions struct {
	*RootOptions
	Modules   []string // module names in registration order; empty means all
	Overrides string   // YAML file with configuration overrides
	Set       []string // path=value overrides applied after the file
	Database  string   // snapshot database; empty disables recording
	CreatedBy string
}

// ComposeResult is the JSON payload of the compose command.
type ComposeResult struct {
	Surface    ir.Surface  `json:"surface"`
	Config     ir.IRObject `json:"config"`
	SnapshotID string      `json:"snapshot_id,omitempty"`
	Seq        int64       `json:"seq,omitempty"`
}

// NewComposeCommand creates the compose command.
func NewComposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ComposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compose <specs-dir>",
		Short: "Compose modules and print the resulting surface",
		Long: `Compose modules from a specs directory and print the operations and
effective configuration of a fresh builder.

Modules are registered in the order given by --module, or in declaration
order when no --module flag is passed.

Example:
  modkit compose ./specs --module core --module extension --set ctx.tenant=acme`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(opts, args[0], cmd)
		},
	}

	addComposeFlags(cmd, opts, "modkit compose")

	return cmd
}

func addComposeFlags(cmd *cobra.Command, opts *ComposeOptions, createdBy string) {
	cmd.Flags().StringArrayVarP(&opts.Modules, "module", "m", nil, "module to register (repeatable, in order)")
	cmd.Flags().StringVar(&opts.Overrides, "overrides", "", "YAML file with configuration overrides")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a config path (path=value, value parsed as YAML)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the composition in this snapshot database")
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", createdBy, "creator recorded with the snapshot")
}

func runCompose(opts *ComposeOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	comp, b, err := buildComposition(opts, specsDir, formatter, logger)
	if err != nil {
		return err
	}

	result := ComposeResult{Surface: comp.Surface(), Config: b.Config()}

	if opts.Database != "" {
		snap, err := recordComposition(cmd.Context(), opts, comp, nil, logger)
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
	fmt.Fprintf(w, "✓ Composed %d module(s): %s\n", len(result.Surface.Modules), strings.Join(result.Surface.Modules, ", "))
	fmt.Fprintf(w, "Fingerprint: %s\n\n", shortHash(result.Surface.Fingerprint))
	writeOperations(w, result.Surface)
	if err := writeConfig(w, result.Config); err != nil {
		return err
	}
	if result.SnapshotID != "" {
		fmt.Fprintf(w, "\nRecorded snapshot %s (seq %d) in %s\n", result.SnapshotID, result.Seq, opts.Database)
	}
	return nil
}

// buildComposition loads the specs, composes the selected modules and
// constructs a builder from the overrides. Failures are written through the
// formatter and returned as ExitErrors.
func buildComposition(opts *ComposeOptions, specsDir string, formatter *OutputFormatter, logger *slog.Logger) (*compose.Composition, *compose.Builder, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return nil, nil, outputCompileError(formatter, code, message, nil)
	}
	if len(loadErrors) > 0 {
		return nil, nil, outputCompileErrors(formatter, loadErrors)
	}

	selected, err := selectModules(loadResult.Modules, opts.Modules)
	if err != nil {
		return nil, nil, outputCompileError(formatter, ErrCodeNotFound, err.Error(), nil)
	}
	for i := range selected {
		if errs := compiler.Validate(&selected[i]); len(errs) > 0 {
			return nil, nil, outputCompileError(formatter, errs[0].Code,
				fmt.Sprintf("module %s: %s", selected[i].Name, errs[0].Error()), errs)
		}
	}
	formatter.VerboseLog("Registering %d module(s)", len(selected))

	overrides, err := loadOverrides(opts.Overrides, opts.Set)
	if err != nil {
		return nil, nil, outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	comp, err := compose.Compose(compose.FromSpecs(selected), compose.WithLogger(logger))
	if err != nil {
		return nil, nil, outputComposeError(formatter, err)
	}
	b, err := comp.NewBuilder(overrides)
	if err != nil {
		return comp, nil, outputComposeError(formatter, err)
	}
	return comp, b, nil
}

// selectModules picks modules by name in the requested order. No names
// selects every module in declaration order.
func selectModules(specs []ir.ModuleSpec, names []string) ([]ir.ModuleSpec, error) {
	if len(names) == 0 {
		return specs, nil
	}
	byName := make(map[string]ir.ModuleSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	selected := make([]ir.ModuleSpec, 0, len(names))
	for _, n := range names {
		spec, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("module %q not found in specs", n)
		}
		selected = append(selected, spec)
	}
	return selected, nil
}

// loadOverrides reads the overrides file, if any, and applies each
// path=value assignment on top of it.
func loadOverrides(path string, sets []string) (ir.IRObject, error) {
	overrides := ir.IRObject{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading overrides: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing overrides %s: %w", path, err)
		}
		overrides, err = ir.ObjectFromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("overrides %s: %w", path, err)
		}
	}

	for _, s := range sets {
		p, v, err := parseSet(s)
		if err != nil {
			return nil, err
		}
		overrides, err = overrides.SetPath(p, v)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", s, err)
		}
	}
	return overrides, nil
}

// parseSet splits "path=value" and decodes value as a YAML scalar or flow
// collection. An empty value is the empty string.
func parseSet(s string) (string, ir.IRValue, error) {
	path, raw, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return "", nil, fmt.Errorf("--set %q: expected path=value", s)
	}
	if raw == "" {
		return path, ir.IRString(""), nil
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", nil, fmt.Errorf("--set %s: %w", s, err)
	}
	v, err := ir.FromGo(decoded)
	if err != nil {
		return "", nil, fmt.Errorf("--set %s: %w", s, err)
	}
	return path, v, nil
}

// recordComposition writes the composition snapshot and the given calls to
// the configured database.
func recordComposition(ctx context.Context, opts *ComposeOptions, comp *compose.Composition, calls []ir.CallRecord, logger *slog.Logger) (ir.Snapshot, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return ir.Snapshot{}, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	snap, err := st.WriteSnapshot(ctx, comp.Snapshot(opts.CreatedBy))
	if err != nil {
		return ir.Snapshot{}, err
	}
	if err := st.WriteCalls(ctx, snap.ID, calls); err != nil {
		return ir.Snapshot{}, err
	}
	logger.Info("snapshot recorded", "id", snap.ID, "seq", snap.Seq, "calls", len(calls))
	return snap, nil
}

func writeOperations(w io.Writer, s ir.Surface) {
	fmt.Fprintln(w, "Operations:")
	for _, c := range s.Capabilities {
		args := make([]string, len(c.Args))
		for i, a := range c.Args {
			args[i] = a.Name + " " + a.Type
		}
		line := fmt.Sprintf("  %s(%s)", c.Name, strings.Join(args, ", "))
		if c.Writes != "" {
			line += " -> " + c.Writes
		}
		fmt.Fprintf(w, "%s [%s]\n", line, c.Module)
	}
	fmt.Fprintln(w)
}

func writeConfig(w io.Writer, cfg ir.IRObject) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprintln(w, "Config:")
	fmt.Fprintln(w, string(data))
	return nil
}
