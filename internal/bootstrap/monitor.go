package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/regwatch/internal/classifier"
	"github.com/jonesrussell/north-cloud/regwatch/internal/config"
	"github.com/jonesrussell/north-cloud/regwatch/internal/diff"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/fetcher"
	"github.com/jonesrussell/north-cloud/regwatch/internal/importer"
	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
	_ "github.com/jonesrussell/north-cloud/regwatch/internal/llm/providers" // register backends
	"github.com/jonesrussell/north-cloud/regwatch/internal/lock"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/monitor"
	"github.com/jonesrussell/north-cloud/regwatch/internal/normalize"
)

// Targets merges configured sources with the sources_file spreadsheet and
// keeps only the labels in only, when given.
func (a *App) Targets(only []string) ([]domain.Source, error) {
	cfgSources := a.Config.Sources

	if a.Config.SourcesFile != "" {
		imported, failures, err := importer.LoadSources(a.Config.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("load sources file: %w", err)
		}
		for _, f := range failures {
			a.Log.Warn("Skipping spreadsheet row",
				logger.String("file", a.Config.SourcesFile),
				logger.Int("row", f.Row),
				logger.String("error", f.Error),
			)
		}
		a.Config.Monitor.ApplySourceDefaults(imported)
		cfgSources = mergeSources(cfgSources, imported)
	}

	targets := monitor.Targets(cfgSources, a.Config.Monitor.Jurisdiction, only)
	if len(targets) == 0 {
		return nil, fmt.Errorf("no sources match %v", only)
	}
	return targets, nil
}

// mergeSources appends extra entries whose URL is not already in base.
func mergeSources(base, extra []config.SourceConfig) []config.SourceConfig {
	seen := make(map[string]struct{}, len(base))
	merged := make([]config.SourceConfig, 0, len(base)+len(extra))
	for _, s := range base {
		seen[s.URL] = struct{}{}
		merged = append(merged, s)
	}
	for _, s := range extra {
		if _, dup := seen[s.URL]; dup {
			continue
		}
		seen[s.URL] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

// NewClassifier builds the LLM client and classifier. Parse failures are
// counted in App.Metrics.
func (a *App) NewClassifier() (*classifier.Classifier, error) {
	lc := a.Config.LLM
	client, err := llm.NewClient(llm.Config{
		Provider:        lc.Provider,
		Model:           lc.Model,
		APIKey:          lc.APIKey,
		BaseURL:         lc.BaseURL,
		Timeout:         lc.Timeout,
		MaxOutputTokens: lc.MaxOutputTokens,
		MaxAttempts:     lc.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	cls := classifier.New(client, classifier.Config{
		DomainContext:     a.Config.Monitor.DomainContext,
		Model:             lc.Model,
		MaxOutputTokens:   lc.MaxOutputTokens,
		RequestsPerMinute: lc.RequestsPerMinute,
	}, a.Log.With(logger.String("provider", client.Provider())))
	cls.OnParseFailure(a.Metrics.ParseFailure)
	return cls, nil
}

// NewMonitor assembles a Monitor. When Redis is enabled the run lock is
// attached; an unreachable Redis is logged and the run proceeds unlocked.
func (a *App) NewMonitor(ctx context.Context, dryRun bool) (*monitor.Monitor, error) {
	cls, err := a.NewClassifier()
	if err != nil {
		return nil, err
	}

	mc := a.Config.Monitor
	f := fetcher.New(fetcher.Config{
		UserAgent:     mc.UserAgent,
		Timeout:       mc.FetchTimeout,
		Attempts:      mc.FetchAttempts,
		MaxBodyBytes:  mc.MaxBodyBytes,
		RespectRobots: mc.RespectRobots,
	}, nil, a.Log)

	diffContext, diffMinChars := mc.DiffSettings()
	m := monitor.New(a.Store, f, normalize.New(mc.StripSelectors...), cls, a.Log, monitor.Options{
		Delay:        mc.SourceDelay,
		Diff:         diff.Options{Context: diffContext, MinChars: diffMinChars},
		Jurisdiction: mc.Jurisdiction,
		DryRun:       dryRun,
	}).WithRecorder(a.Metrics)

	if a.Config.Redis.Enabled && !dryRun {
		client, lockErr := lock.NewClient(ctx, a.Config.Redis)
		if lockErr != nil {
			a.Log.Warn("Redis not available, run lock disabled", logger.Error(lockErr))
			return m, nil
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		m.WithLocker(lock.New(client, lock.DefaultKey, a.Config.Redis.LockTTL, a.Log))
		a.Log.Info("Run lock enabled", logger.String("redis_address", a.Config.Redis.Address))
	}
	return m, nil
}
