package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/ipacheck/internal/config"
	"github.com/example/ipacheck/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and run history database",
		Long: `Write a commented config file (unless one exists) and create the run
history database with the required schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path := configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Config file at %s\n", path)

			if p := currentConfig().History.Path; p != "" {
				db.SetPath(p)
			}
			dbPath, err := db.GetDBPath()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}
			if _, err := db.GetDB(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			fmt.Fprintf(out, "✓ Run history at %s\n", dbPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  edit %s\n", path)
			fmt.Fprintln(out, "  ipacheck check --save")

			return nil
		},
	}
}
