package monitor

import (
	"strings"

	"github.com/jonesrussell/north-cloud/regwatch/internal/config"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
)

// Targets converts configured sources into run targets, keeping only labels
// listed in only when it is non-empty. Label matching ignores case.
func Targets(sources []config.SourceConfig, jurisdiction string, only []string) []domain.Source {
	keep := make(map[string]struct{}, len(only))
	for _, label := range only {
		keep[strings.ToLower(strings.TrimSpace(label))] = struct{}{}
	}

	targets := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		if len(keep) > 0 {
			if _, ok := keep[strings.ToLower(s.Label)]; !ok {
				continue
			}
		}
		targets = append(targets, domain.Source{
			Authority:    s.Authority,
			URL:          s.URL,
			Label:        s.Label,
			Category:     s.Category,
			Language:     s.Language,
			Jurisdiction: jurisdiction,
		})
	}
	return targets
}
