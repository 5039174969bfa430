package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/regwatch/internal/report"
)

func newVersionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect a source's version history",
	}
	cmd.AddCommand(newVersionsListCommand(), newVersionsShowCommand())
	return cmd
}

func newVersionsListCommand() *cobra.Command {
	var sourceID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List versions of a source, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if _, err = app.Store.GetSource(ctx, sourceID); err != nil {
				return err
			}
			versions, err := app.Store.ListVersions(ctx, sourceID)
			if err != nil {
				return err
			}
			report.RenderVersions(cmd.OutOrStdout(), versions)
			return nil
		},
	}
	cmd.Flags().Int64Var(&sourceID, "source-id", 0, "source id (see sources list)")
	_ = cmd.MarkFlagRequired("source-id")
	return cmd
}

func newVersionsShowCommand() *cobra.Command {
	var (
		sourceID    int64
		versionNo   int
		showVerdict bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored text of one version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			v, err := app.Store.GetVersion(cmd.Context(), sourceID, versionNo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showVerdict {
				report.RenderVerdict(out, v.Verdict)
				return nil
			}
			fmt.Fprintln(out, v.Content)
			return nil
		},
	}
	cmd.Flags().Int64Var(&sourceID, "source-id", 0, "source id (see sources list)")
	cmd.Flags().IntVar(&versionNo, "version", 0, "version number")
	cmd.Flags().BoolVar(&showVerdict, "verdict", false, "print the change verdict instead of the text")
	_ = cmd.MarkFlagRequired("source-id")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
