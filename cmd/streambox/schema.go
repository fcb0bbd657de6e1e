package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velmie/streambox/sqlstore"
)

func newSchemaCommand(rootOpts *rootOptions) *cobra.Command {
	var (
		dialect string
		tables  []string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the DDL for the configured box tables",
		Long: `Print CREATE TABLE and CREATE INDEX statements for every configured box.

--table overrides the configured boxes and --dialect overrides storage.driver.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dialect == "" {
				dialect = rootOpts.cfg.Storage.Driver
			}
			d, err := sqlstore.DialectFor(dialect)
			if err != nil {
				return err
			}
			if len(tables) == 0 {
				for _, box := range rootOpts.cfg.Boxes {
					tables = append(tables, box.table())
				}
			}
			if len(tables) == 0 {
				return fmt.Errorf("no tables: configure boxes or pass --table")
			}

			for _, table := range tables {
				script, err := sqlstore.SchemaScript(d, table)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), script)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "", "SQL dialect: mysql, postgres or sqlite3")
	cmd.Flags().StringSliceVar(&tables, "table", nil, "table name (repeatable)")

	return cmd
}

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the configured box tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			boxes, err := rootOpts.cfg.selectBoxes(names)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			base, stores, err := rootOpts.openStores(ctx, boxes)
			if err != nil {
				return err
			}
			defer base.Close()

			for _, box := range boxes {
				store := stores[box.Name]
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: table %s ready\n", box.Name, store.Table())
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&names, "box", nil, "limit to these boxes (repeatable)")

	return cmd
}
