package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run data migrations",
	}
	cmd.AddCommand(newMigrateLegacyTypesCmd(o))
	return cmd
}

// MigrationResult is the JSON output of a migration.
type MigrationResult struct {
	Migration string `json:"migration"`
	Migrated  int    `json:"migrated"`
}

func newMigrateLegacyTypesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "legacy-types",
		Short: "Rewrite legacy property type values to their canonical form",
		Long:  "Rewrites stored listings whose type is a legacy alias (English labels such as \"house\") to the canonical type. Running it again migrates nothing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			props, closeFn, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			migrated, err := props.MigrateLegacyTypes(ctx)
			if err != nil {
				return fmt.Errorf("migrating legacy types: %w", err)
			}

			out := cmd.OutOrStdout()
			if o.isJSON() {
				return printJSON(out, MigrationResult{Migration: "legacy-types", Migrated: migrated})
			}
			_, err = fmt.Fprintf(out, "Migrated %d properties to canonical types.\n", migrated)
			return err
		},
	}
}
