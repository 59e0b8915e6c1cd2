package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/ipacheck/internal/core/consistency"
)

// CatalogCmd returns the catalog command listing the available checks.
func CatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the available checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printCatalog(cmd.OutOrStdout(), consistency.Catalog())
			return nil
		},
	}
}

func printCatalog(out io.Writer, specs []consistency.CheckSpec) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tKIND\tPOLICY\tANALYSES")
	for _, spec := range specs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			spec.Name, spec.DisplayName, kind(spec.Kind), spec.Policy, strings.Join(analyses(spec), ","))
	}
	w.Flush()
}

func kind(k consistency.ResultKind) string {
	if k == consistency.KindScalar {
		return "scalar"
	}
	return "list"
}

func analyses(spec consistency.CheckSpec) []string {
	out := []string{"count"}
	if spec.MissingRecords {
		out = append(out, "missing")
	}
	if spec.Duplicates != nil {
		out = append(out, "duplicates")
	}
	return out
}
