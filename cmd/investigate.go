// -- cmd/investigate.go --
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
	"github.com/xkilldash9x/dossier-cli/internal/collectors"
	"github.com/xkilldash9x/dossier-cli/internal/config"
	"github.com/xkilldash9x/dossier-cli/internal/graph"
	"github.com/xkilldash9x/dossier-cli/internal/network"
	"github.com/xkilldash9x/dossier-cli/internal/observability"
	"github.com/xkilldash9x/dossier-cli/internal/orchestrator"
	"github.com/xkilldash9x/dossier-cli/internal/registry"
	"github.com/xkilldash9x/dossier-cli/internal/reporting"
	"github.com/xkilldash9x/dossier-cli/internal/target"
)

// ErrTimedOut marks an investigation that hit its deadline. The partial
// report has already been written when this surfaces; main maps it to a
// distinct exit code.
var ErrTimedOut = errors.New("investigation deadline exceeded, report contains partial results")

// newInvestigateCmd creates and configures the `investigate` command.
func newInvestigateCmd(v *viper.Viper, cfg *config.Config) *cobra.Command {
	investigateCmd := &cobra.Command{
		Use:   "investigate <target>",
		Short: "Runs every applicable collector against a target and renders the merged graph",
		Long: `Normalizes the target (domain, IP address, email address or username),
dispatches the applicable collectors concurrently and merges their findings
into a deduplicated, provenance-carrying graph.

A failing collector never aborts the investigation; its outcome is recorded
in the report alongside the findings of the collectors that succeeded.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := v.BindPFlag("engine.deadline", cmd.Flags().Lookup("deadline")); err != nil {
				return err
			}
			if err := v.BindPFlag("engine.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := v.BindPFlag("report.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			return v.BindPFlag("report.output", cmd.Flags().Lookup("output"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal so the flag bindings from PreRunE take effect.
			loaded, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			*cfg = *loaded

			tgt, err := target.Normalize(args[0])
			if err != nil {
				return err
			}

			client := network.NewClient(logger)
			reg := registry.New(logger)
			if err := reg.Register(collectors.NewCrtSh(client, logger)); err != nil {
				return fmt.Errorf("failed to register collector: %w", err)
			}
			if err := reg.Register(collectors.NewShodan(client, logger)); err != nil {
				return fmt.Errorf("failed to register collector: %w", err)
			}
			if err := reg.Register(collectors.NewUserEnum(client, logger)); err != nil {
				return fmt.Errorf("failed to register collector: %w", err)
			}

			orch, err := orchestrator.New(cfg, logger, reg)
			if err != nil {
				return err
			}

			agg := graph.New(logger)
			inv, err := orch.Run(ctx, tgt, agg)
			if err != nil {
				return err
			}

			reporter, err := reporting.New(cfg.Report.Format, cfg.Report.Output)
			if err != nil {
				return err
			}
			defer reporter.Close()

			if err := reporter.Render(inv, agg.Snapshot()); err != nil {
				return err
			}

			if inv.Status == schemas.StatusTimedOut {
				logger.Warn("Investigation timed out",
					zap.String("investigation_id", inv.ID),
					zap.Int("results", len(inv.Results)))
				return ErrTimedOut
			}
			return nil
		},
	}

	investigateCmd.Flags().Duration("deadline", 0, "investigation-level deadline (e.g. 90s, 2m)")
	investigateCmd.Flags().Int("concurrency", 0, "maximum number of collectors running in parallel")
	investigateCmd.Flags().StringP("format", "f", "", "report format: structured or tabular")
	investigateCmd.Flags().StringP("output", "o", "", "report destination path (default stdout)")
	return investigateCmd
}
