package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"virtual-mentor/internal/migrate"
)

var flagPrintSQL bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPrintSQL {
			for _, stmt := range migrate.Statements() {
				fmt.Fprintf(os.Stdout, "%s;\n\n", stmt)
			}
			return nil
		}

		deps, err := openDeps(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := migrate.Up(cmd.Context(), deps.db); err != nil {
			return err
		}
		deps.log.Info("schema up to date", "statements", len(migrate.Statements()))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&flagPrintSQL, "print", false, "Print the DDL instead of applying it")
}
