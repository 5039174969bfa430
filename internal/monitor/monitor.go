// Package monitor drives one batch over the configured regulatory sources:
// fetch, normalize, fingerprint, compare, and on change diff, classify and
// record a new version. A failing source never stops the batch.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/regwatch/internal/classifier"
	"github.com/jonesrussell/north-cloud/regwatch/internal/diff"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/fingerprint"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
)

// Options tune a Monitor.
type Options struct {
	// Delay separates consecutive sources.
	Delay        time.Duration
	Diff         diff.Options
	Jurisdiction string
	// DryRun fetches, diffs and classifies but never writes.
	DryRun bool
}

// Monitor runs batches. Dependencies are injected; nothing is global.
type Monitor struct {
	store      Store
	fetcher    Fetcher
	normalizer Normalizer
	classifier Classifier
	log        logger.Logger
	opts       Options

	locker   Locker
	recorder Recorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Monitor.
func New(
	store Store,
	fetcher Fetcher,
	normalizer Normalizer,
	cls Classifier,
	log logger.Logger,
	opts Options,
) *Monitor {
	return &Monitor{
		store:      store,
		fetcher:    fetcher,
		normalizer: normalizer,
		classifier: cls,
		log:        log,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// WithLocker makes Run hold l for the whole batch.
func (m *Monitor) WithLocker(l Locker) *Monitor {
	m.locker = l
	return m
}

// WithRecorder reports outcomes to r.
func (m *Monitor) WithRecorder(r Recorder) *Monitor {
	m.recorder = r
	return m
}

// Run processes targets sequentially. It returns an error only when the run
// could not start or ctx ended early; per-source failures are reported in
// the summary.
func (m *Monitor) Run(ctx context.Context, targets []domain.Source) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		DryRun:    m.opts.DryRun,
		StartedAt: m.now(),
		Results:   make([]Result, 0, len(targets)),
	}
	log := m.log.With(logger.String("run_id", summary.RunID), logger.Bool("dry_run", m.opts.DryRun))

	if m.locker != nil {
		release, err := m.locker.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		defer release()
	}

	log.Info("Run started", logger.Int("sources", len(targets)))

	var runErr error
	for i, target := range targets {
		if i > 0 && m.opts.Delay > 0 {
			if err := m.sleep(ctx, m.opts.Delay); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		res := m.processSource(ctx, log, target)
		summary.Results = append(summary.Results, res)
		if m.recorder != nil {
			m.recorder.ObserveSource(res.Outcome, res.Meaningful, res.Duration)
		}
	}

	summary.FinishedAt = m.now()
	if m.recorder != nil {
		m.recorder.ObserveRun(summary)
	}

	log.Info("Run finished",
		logger.Int("inserted", summary.Count(OutcomeInserted)),
		logger.Int("unchanged", summary.Count(OutcomeUnchanged)),
		logger.Int("changed", summary.Count(OutcomeChanged)),
		logger.Int("errors", summary.Count(OutcomeError)),
		logger.Duration("duration", summary.Duration()),
	)

	if runErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", runErr)
	}
	return summary, nil
}

func (m *Monitor) processSource(ctx context.Context, log logger.Logger, target domain.Source) Result {
	start := m.now()
	if target.Jurisdiction == "" {
		target.Jurisdiction = m.opts.Jurisdiction
	}
	log = log.With(logger.String("source", target.Label), logger.String("url", target.URL))

	res, err := m.check(ctx, log, target)
	res.Label, res.URL, res.Authority = target.Label, target.URL, target.Authority
	res.Duration = m.now().Sub(start)

	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		log.Error("Source failed", logger.Error(err))
		return res
	}

	log.Info("Source processed",
		logger.String("outcome", string(res.Outcome)),
		logger.Int("version", res.Version),
		logger.Bool("meaningful", res.Meaningful),
		logger.Duration("duration", res.Duration),
	)
	return res
}

func (m *Monitor) check(ctx context.Context, log logger.Logger, target domain.Source) (Result, error) {
	body, err := m.fetcher.Fetch(ctx, target.URL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch: %w", err)
	}

	text, err := m.normalizer.Normalize(body)
	if err != nil {
		return Result{}, fmt.Errorf("normalize: %w", err)
	}
	fp := fingerprint.Of(text)
	log.Debug("Page normalized", logger.Int("chars", len([]rune(text))), logger.String("fingerprint", fp))

	src, current, err := m.store.Current(ctx, target.Authority, target.URL)
	if err != nil {
		return Result{}, fmt.Errorf("load current version: %w", err)
	}

	if current == nil {
		return m.seed(ctx, log, target, text)
	}

	if current.Fingerprint == fp {
		if !m.opts.DryRun {
			if err = m.store.RecordUnchanged(ctx, src.ID); err != nil {
				return Result{}, fmt.Errorf("record unchanged: %w", err)
			}
		}
		return Result{Outcome: OutcomeUnchanged, Version: current.VersionNo}, nil
	}

	return m.change(ctx, log, target, src, current, text, fp)
}

func (m *Monitor) seed(ctx context.Context, log logger.Logger, target domain.Source, text string) (Result, error) {
	if m.opts.DryRun {
		log.Info("Would seed source", logger.Int("chars", len([]rune(text))))
		return Result{Outcome: OutcomeInserted, Version: 1}, nil
	}

	v, err := m.store.Seed(ctx, target, text)
	if err != nil {
		return Result{}, fmt.Errorf("seed: %w", err)
	}
	return Result{Outcome: OutcomeInserted, Version: v.VersionNo}, nil
}

func (m *Monitor) change(
	ctx context.Context,
	log logger.Logger,
	target domain.Source,
	src *domain.Source,
	current *domain.Version,
	text, fp string,
) (Result, error) {
	pairs := diff.Extract(current.Content, text, m.opts.Diff)
	log.Info("Content changed",
		logger.Int("from_version", current.VersionNo),
		logger.Int("pairs", len(pairs)),
		logger.Bool("fallback", len(pairs) == 1 && pairs[0].Fallback),
	)
	if m.opts.DryRun {
		if oldLine, newLine, ok := diff.FirstDifference(current.Content, text); ok {
			log.Info("First difference", logger.String("old", oldLine), logger.String("new", newLine))
		}
	}

	subject := classifier.Subject{Label: target.Label, Authority: target.Authority, Jurisdiction: target.Jurisdiction}
	verdict, err := m.classifier.Evaluate(ctx, subject, pairs)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}

	res := Result{
		Outcome:              OutcomeChanged,
		Version:              current.VersionNo + 1,
		Meaningful:           verdict.Meaningful(),
		RegenerationRequired: verdict != nil && verdict.RegenerationRequired,
		Pairs:                len(pairs),
	}
	if verdict != nil {
		log.Info("Change classified",
			logger.Bool("meaningful", verdict.IsMeaningfulChange),
			logger.Bool("regeneration_required", verdict.RegenerationRequired),
			logger.Strings("categories", verdict.Categories),
			logger.String("reason", verdict.Reason),
		)
	}
	if m.opts.DryRun {
		return res, nil
	}

	v, err := m.store.RecordChange(ctx, src.ID, text, fp, verdict)
	if err != nil {
		return Result{}, fmt.Errorf("record change: %w", err)
	}
	res.Version = v.VersionNo
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsInterrupted reports whether err came from a cancelled run.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
