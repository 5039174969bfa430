package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/regwatch/internal/database"
)

func newMigrateCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if list {
				names, err := database.Migrations()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			v, err := app.Migrate()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema at version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print the embedded migrations and exit")
	return cmd
}
