package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/report"
)

func newSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect tracked sources",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured sources with their stored state",
		RunE:  listSources,
	})
	return cmd
}

func listSources(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	targets, err := app.Targets(nil)
	if err != nil {
		return err
	}
	stored, err := app.Store.ListSources(cmd.Context())
	if err != nil {
		return err
	}

	report.RenderSources(cmd.OutOrStdout(), joinStored(targets, stored))
	return nil
}

// joinStored overlays stored state on configured targets, then appends stored
// sources no longer in the configuration.
func joinStored(targets, stored []domain.Source) []domain.Source {
	key := func(s domain.Source) string { return s.Authority + "\x00" + s.URL }

	byKey := make(map[string]domain.Source, len(stored))
	for _, s := range stored {
		byKey[key(s)] = s
	}

	out := make([]domain.Source, 0, len(targets)+len(stored))
	for _, t := range targets {
		if s, ok := byKey[key(t)]; ok {
			out = append(out, s)
			delete(byKey, key(t))
			continue
		}
		out = append(out, t)
	}
	for _, s := range stored {
		if _, ok := byKey[key(s)]; ok {
			out = append(out, s)
		}
	}
	return out
}
