package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"layoutsync/internal/datasource/archive"
	"layoutsync/internal/layout"
	"layoutsync/internal/schema/ddl"
)

func newDDLCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "ddl <layout.txt>",
		Short: "Print a CREATE TABLE statement matching a layout",
		Long: "Print a CREATE TABLE statement for the --db-driver dialect. The table name defaults\n" +
			"to the layout file name without the _layout suffix; the key comes from --tables or\n" +
			"--primary-key. Nothing is executed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			if err := a.setup(false); err != nil {
				return err
			}
			dialect, err := ddl.ParseDialect(a.cfg.DBDriver)
			if err != nil {
				return err
			}
			specs, err := layout.ReadFile(args[0])
			if err != nil {
				return err
			}
			if table == "" {
				base := filepath.Base(args[0])
				table = strings.TrimSuffix(base, filepath.Ext(base))
				if strings.HasSuffix(strings.ToLower(table), archive.LayoutSuffix) {
					table = table[:len(table)-len(archive.LayoutSuffix)]
				}
			}
			reg, err := a.cfg.Registry()
			if err != nil {
				return err
			}

			def, err := ddl.FromLayout(table, specs, reg.PrimaryKey(table))
			if err != nil {
				return err
			}
			if a.cfg.DBSchema != "" {
				def.FQN = a.cfg.DBSchema + "." + def.FQN
			}
			stmt, err := ddl.BuildCreateTableSQL(dialect, def)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, stmt)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Table name (default: derived from the layout file name)")
	return cmd
}
