package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cliadapter "github.com/example/ipacheck/internal/adapters/cli"
	"github.com/example/ipacheck/internal/config"
	"github.com/example/ipacheck/internal/ports/primary"
	"github.com/example/ipacheck/internal/wire"
)

// CheckCmd returns the check command, which runs a consistency audit.
func CheckCmd() *cobra.Command {
	var (
		hosts        []string
		domain       string
		bindDN       string
		bindPassword string
		checks       []string
		output       string
		noHeader     bool
		noBorder     bool
		save         bool
		metricsFile  string
		failOnIssues bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare all servers of a domain",
		Long: `Query every FreeIPA server of the domain and report, per check, whether the
servers agree. List checks also report entries missing from some servers and
objects that exist twice under the same name.

Servers come from --hosts or the config file; when neither names any, they are
discovered through DNS SRV records or Consul.

Examples:
  ipacheck check -d ipa.example.com -W secret
  ipacheck check -H ipa01.ipa.example.com,ipa02.ipa.example.com -o json
  ipacheck check --checks users,hosts,replicas --save --fail-on-issues`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig()
			applyCheckFlags(cmd.Flags(), cfg, hosts, domain, bindDN, bindPassword, metricsFile)
			if err := cfg.Validate(true); err != nil {
				return err
			}

			adapter, err := wire.ReportAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			run, err := adapter.Check(cmd.Context(), primary.AuditRequest{
				Domain: cfg.Domain,
				Hosts:  cfg.Hosts,
				Checks: checks,
				Save:   save,
			}, cliadapter.ReportOptions{
				Format:   output,
				NoHeader: noHeader,
				NoBorder: noBorder,
			})
			if err != nil {
				return err
			}

			if failOnIssues && (!run.Report.OK() || len(run.EvaluationErrors) > 0) {
				return ErrIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&hosts, "hosts", "H", nil, "servers to query (comma separated)")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "FreeIPA domain")
	cmd.Flags().StringVarP(&bindDN, "binddn", "D", "", "bind DN")
	cmd.Flags().StringVarP(&bindPassword, "bindpw", "W", "", "bind password")
	cmd.Flags().StringSliceVar(&checks, "checks", nil, "only run these checks (see 'ipacheck catalog')")
	cmd.Flags().StringVarP(&output, "output", "o", cliadapter.FormatCLI, "output format: "+strings.Join(cliadapter.Formats, ", "))
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the table header")
	cmd.Flags().BoolVar(&noBorder, "no-border", false, "draw the table without borders")
	cmd.Flags().BoolVar(&save, "save", false, "store the run in history")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&failOnIssues, "fail-on-issues", false, "exit with status 2 when a check fails")

	return cmd
}

// applyCheckFlags overrides configuration values with flags given on the command line.
func applyCheckFlags(flags *pflag.FlagSet, cfg *config.Config, hosts []string, domain, bindDN, bindPassword, metricsFile string) {
	if flags.Changed("hosts") {
		cfg.Hosts = hosts
	}
	if flags.Changed("domain") {
		cfg.Domain = domain
	}
	if flags.Changed("binddn") {
		cfg.BindDN = bindDN
	}
	if flags.Changed("bindpw") {
		cfg.BindPassword = bindPassword
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = metricsFile
	}
}

