package cli

import (
	"strings"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/ipacheck/internal/adapters/cli"
	"github.com/example/ipacheck/internal/ports/primary"
	"github.com/example/ipacheck/internal/wire"
)

// RunsCmd returns the runs command listing stored audits.
func RunsCmd() *cobra.Command {
	var (
		domain string
		failed bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored audit runs",
		Long: `List audits stored with 'ipacheck check --save', newest first.

Examples:
  ipacheck runs
  ipacheck runs --domain ipa.example.com --failed --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.ReportAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return adapter.Runs(cmd.Context(), primary.RunFilters{
				Domain:     domain,
				FailedOnly: failed,
				Limit:      limit,
			})
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", "", "only runs for this domain")
	cmd.Flags().BoolVar(&failed, "failed", false, "only runs with failing checks")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")

	return cmd
}

// ShowCmd returns the show command rendering a stored run.
func ShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <RUN-ID>",
		Short: "Show the report of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.ReportAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.Show(cmd.Context(), args[0], cliadapter.ReportOptions{Format: output})
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", cliadapter.FormatCLI, "output format: "+strings.Join(cliadapter.Formats, ", "))

	return cmd
}
