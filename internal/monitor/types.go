package monitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonesrussell/north-cloud/regwatch/internal/classifier"
	"github.com/jonesrussell/north-cloud/regwatch/internal/diff"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
)

// Outcome is the per-source result of a run.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeChanged   Outcome = "changed"
	OutcomeError     Outcome = "error"
)

// Store is the version history the monitor reads and appends to.
type Store interface {
	Current(ctx context.Context, authority, url string) (*domain.Source, *domain.Version, error)
	Seed(ctx context.Context, src domain.Source, text string) (*domain.Version, error)
	RecordUnchanged(ctx context.Context, sourceID int64) error
	RecordChange(ctx context.Context, sourceID int64, text, fp string, verdict *domain.ChangeVerdict) (*domain.Version, error)
}

// Fetcher downloads a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Normalizer turns markup into canonical text.
type Normalizer interface {
	Normalize(markup []byte) (string, error)
}

// Classifier judges the changed regions of a page.
type Classifier interface {
	Evaluate(ctx context.Context, subject classifier.Subject, pairs []diff.Pair) (*domain.ChangeVerdict, error)
}

// Locker guards against overlapping runs. release is always safe to call.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Recorder receives run metrics.
type Recorder interface {
	ObserveSource(outcome Outcome, meaningful bool, d time.Duration)
	ObserveRun(summary *RunSummary)
}

// Result is what happened to one source.
type Result struct {
	Label                string        `json:"label"`
	URL                  string        `json:"url"`
	Authority            string        `json:"authority"`
	Outcome              Outcome       `json:"outcome"`
	Version              int           `json:"version,omitempty"`
	Meaningful           bool          `json:"meaningful"`
	RegenerationRequired bool          `json:"regeneration_required"`
	Pairs                int           `json:"pairs,omitempty"`
	Duration             time.Duration `json:"duration"`
	Err                  error         `json:"-"`
}

// ErrorMessage returns the failure message, or "".
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON adds the failure message as "error".
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(r), r.ErrorMessage()})
}

// RunSummary collects the results of one batch in source order.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Count returns how many sources ended with outcome.
func (s *RunSummary) Count(outcome Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
