// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/example/ipacheck/internal/core/consistency"
	"github.com/example/ipacheck/internal/ports/primary"
)

// Output formats accepted by ReportAdapter.
const (
	FormatCLI  = "cli"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the supported output formats.
var Formats = []string{FormatCLI, FormatJSON, FormatYAML}

// ReportOptions controls how a report is rendered.
type ReportOptions struct {
	Format   string
	NoHeader bool
	NoBorder bool
}

// ReportAdapter is a thin adapter that translates CLI operations to AuditService calls.
// It depends only on the AuditService interface, enabling easy testing with mocks.
type ReportAdapter struct {
	service primary.AuditService
	out     io.Writer
}

// NewReportAdapter creates a new ReportAdapter with the given service.
func NewReportAdapter(service primary.AuditService, out io.Writer) *ReportAdapter {
	return &ReportAdapter{
		service: service,
		out:     out,
	}
}

// Check runs an audit and renders its report.
func (a *ReportAdapter) Check(ctx context.Context, req primary.AuditRequest, opts ReportOptions) (*primary.AuditRun, error) {
	if err := validateFormat(opts.Format); err != nil {
		return nil, err
	}
	run, err := a.service.RunAudit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.Render(run, opts); err != nil {
		return nil, err
	}
	return run, nil
}

// Show renders a stored run.
func (a *ReportAdapter) Show(ctx context.Context, runID string, opts ReportOptions) (*primary.AuditRun, error) {
	if err := validateFormat(opts.Format); err != nil {
		return nil, err
	}
	run, err := a.service.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if opts.Format == FormatCLI || opts.Format == "" {
		fmt.Fprintf(a.out, "Run:      %s\n", run.ID)
		fmt.Fprintf(a.out, "Domain:   %s\n", run.Domain)
		fmt.Fprintf(a.out, "Started:  %s\n", run.StartedAt)
		fmt.Fprintf(a.out, "Finished: %s\n\n", run.FinishedAt)
	}
	if err := a.Render(run, opts); err != nil {
		return nil, err
	}
	return run, nil
}

// Runs lists stored runs.
func (a *ReportAdapter) Runs(ctx context.Context, filters primary.RunFilters) error {
	runs, err := a.service.ListRuns(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tNODES\tSTATE\tSTARTED\tFAILED CHECKS")
	fmt.Fprintln(w, "--\t------\t-----\t-----\t-------\t-------------")
	for _, r := range runs {
		failed := strings.Join(r.Failed, ",")
		if failed == "" {
			failed = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Domain, r.NodeCount, state(r.OK), r.StartedAt, failed)
	}
	return w.Flush()
}

// Render writes the report of run in the requested format.
func (a *ReportAdapter) Render(run *primary.AuditRun, opts ReportOptions) error {
	switch opts.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(run.Report, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(run.Report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = a.out.Write(data)
		return err
	case FormatCLI, "":
		a.renderTable(run.Report, opts)
		a.renderMissing(run.Report)
		a.renderDuplicates(run.Report)
		a.renderErrors(run.EvaluationErrors)
		return nil
	}
	return validateFormat(opts.Format)
}

func (a *ReportAdapter) renderTable(report consistency.ConsistencyReport, opts ReportOptions) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if opts.NoBorder {
		t = t.BorderTop(false).
			BorderBottom(false).
			BorderLeft(false).
			BorderRight(false).
			BorderColumn(false).
			BorderHeader(false)
	}

	if !opts.NoHeader {
		headers := []string{"FreeIPA servers:"}
		for _, n := range report.Nodes {
			headers = append(headers, n.Label)
		}
		headers = append(headers, "STATE")
		t = t.Headers(headers...)
	}

	for _, c := range report.Checks {
		row := []string{c.DisplayName}
		for _, n := range report.Nodes {
			row = append(row, c.Nodes[n.Address].String())
		}
		row = append(row, state(c.OK()))
		t = t.Row(row...)
	}

	fmt.Fprintln(a.out, t.Render())
	fmt.Fprintln(a.out)
}

func (a *ReportAdapter) renderMissing(report consistency.ConsistencyReport) {
	fmt.Fprintln(a.out, "Missing entries...")
	fmt.Fprintln(a.out)

	for _, c := range report.Checks {
		if c.Missing == nil {
			continue
		}
		if c.Missing.OK {
			fmt.Fprintf(a.out, "status for %s is ok\n", c.DisplayName)
			continue
		}
		fmt.Fprintf(a.out, "status for %s shows issues\n", c.DisplayName)
		for _, n := range report.Nodes {
			keys := c.Missing.MissingKeys[n.Address]
			if len(keys) == 0 {
				continue
			}
			fmt.Fprintf(a.out, "  server %s is missing these entries:\n", n.Label)
			for _, k := range keys {
				fmt.Fprintf(a.out, "    %s\n", k)
			}
		}
	}
	fmt.Fprintln(a.out)
}

func (a *ReportAdapter) renderDuplicates(report consistency.ConsistencyReport) {
	fmt.Fprintln(a.out, "Duplicate objects...")
	fmt.Fprintln(a.out)

	for _, c := range report.Checks {
		if c.Duplicates == nil {
			continue
		}
		if c.Duplicates.OK {
			fmt.Fprintf(a.out, "status for %s is ok\n", c.DisplayName)
			continue
		}
		fmt.Fprintf(a.out, "status for %s shows issues\n", c.DisplayName)

		ids := make([]string, 0, len(c.Duplicates.Groups))
		for id := range c.Duplicates.Groups {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			g := c.Duplicates.Groups[id]
			fmt.Fprintf(a.out, "  %s item %s has multiple versions\n", c.Name, id)
			for _, entry := range sortedKeys(g.PerEntry) {
				fmt.Fprintf(a.out, "    entry %s with ipaUniqueIDs: %s\n", entry, strings.Join(g.PerEntry[entry], ", "))
			}
			for _, n := range report.Nodes {
				if uids, ok := g.PerNode[n.Address]; ok {
					fmt.Fprintf(a.out, "    %s knows: %s\n", n.Label, strings.Join(uids, ", "))
				}
			}
		}
	}
	fmt.Fprintln(a.out)
}

func (a *ReportAdapter) renderErrors(errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(a.out, color.New(color.FgRed).Sprint("Evaluation errors:"))
	for _, e := range errs {
		fmt.Fprintf(a.out, "  %s\n", e)
	}
	fmt.Fprintln(a.out)
}

func state(ok bool) string {
	if ok {
		return color.New(color.FgGreen).Sprint("OK")
	}
	return color.New(color.FgRed).Sprint("FAIL")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateFormat(format string) error {
	if format == "" {
		return nil
	}
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (valid: %s)", format, strings.Join(Formats, ", "))
}
