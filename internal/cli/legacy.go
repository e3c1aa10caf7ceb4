package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/legacy"
)

// LegacyImportOptions holds flags for the legacy import command.
type LegacyImportOptions struct {
	*RootOptions
	File string
}

// ImportResult is the JSON data of legacy import.
type ImportResult struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
}

// NewLegacyCommand creates the legacy command and its subcommands.
func NewLegacyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Manage the legacy match table",
	}
	cmd.AddCommand(newLegacyImportCommand(rootOpts))
	return cmd
}

func newLegacyImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LegacyImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Seed the legacy match table from a YAML fixture",
		Long: `Seed the legacy match table from a YAML fixture.
Rows whose id already exists are left unchanged.

Example:
  cyclelog legacy import --file matches.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLegacyImport(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "legacy fixture YAML (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runLegacyImport(ctx context.Context, opts *LegacyImportOptions, cmd *cobra.Command) error {
	matches, err := legacy.LoadFixture(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load legacy fixture", err)
	}

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	inserted, err := rt.store.InsertLegacyMatches(ctx, matches)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to import legacy matches", err)
	}

	res := ImportResult{Read: len(matches), Inserted: inserted}
	out := opts.output(cmd)
	if out.JSON() {
		return out.Success(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d legacy match(es)\n", res.Inserted, res.Read)
	return nil
}
