// Package classifier asks a completion backend whether a content change is
// policy-relevant and folds per-region answers into one verdict.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/regwatch/internal/diff"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"golang.org/x/time/rate"
)

const defaultMaxOutputTokens = 1024

// Config tunes prompts and completion requests.
type Config struct {
	DomainContext   string
	Model           string
	MaxOutputTokens int
	ExcerptChars    int

	// RequestsPerMinute caps completion requests; zero means unlimited.
	RequestsPerMinute int
}

// Classifier judges diffs with an llm.Client. It holds no mutable state.
type Classifier struct {
	client  llm.Client
	cfg     Config
	log     logger.Logger
	limiter *rate.Limiter // nil when unlimited
	// onParseFailure is invoked once per unparseable completion.
	onParseFailure func()
}

// New creates a Classifier.
func New(client llm.Client, cfg Config, log logger.Logger) *Classifier {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = DefaultExcerptChars
	}
	c := &Classifier{client: client, cfg: cfg, log: log, onParseFailure: func() {}}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// OnParseFailure registers a hook, typically a metrics counter.
func (c *Classifier) OnParseFailure(fn func()) {
	if fn != nil {
		c.onParseFailure = fn
	}
}

// Classify judges a single pair. A transport failure is returned as an error;
// unparseable output yields a fail-closed verdict and no error.
func (c *Classifier) Classify(ctx context.Context, subject Subject, pair diff.Pair) (domain.ChangeVerdict, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ChangeVerdict{}, fmt.Errorf("classify %s: %w", subject.Label, err)
		}
	}
	raw, err := c.client.GenerateJSON(ctx, llm.Request{
		System:          systemPrompt(c.cfg.DomainContext),
		Prompt:          userPrompt(subject, pair.Old, pair.New, c.cfg.ExcerptChars),
		Model:           c.cfg.Model,
		Temperature:     0,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	})
	if err != nil {
		return domain.ChangeVerdict{}, fmt.Errorf("classify %s: %w", subject.Label, err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		c.onParseFailure()
		c.log.Warn("Classifier returned non-JSON output",
			logger.String("source", subject.Label),
			logger.String("provider", c.client.Provider()),
			logger.String("raw", raw),
			logger.Error(err),
		)
		return failClosed(raw), nil
	}
	return verdict, nil
}

// Evaluate classifies every pair in order and aggregates the answers: the
// change is meaningful if any pair is, and regeneration is required if any
// pair asks for it or the change is meaningful. The first transport error
// aborts evaluation.
func (c *Classifier) Evaluate(ctx context.Context, subject Subject, pairs []diff.Pair) (*domain.ChangeVerdict, error) {
	verdicts := make([]domain.ChangeVerdict, 0, len(pairs))
	for _, p := range pairs {
		v, err := c.Classify(ctx, subject, p)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}

	agg := Aggregate(verdicts)
	c.log.Debug("Change evaluated",
		logger.String("source", subject.Label),
		logger.Int("pairs", len(pairs)),
		logger.Bool("meaningful", agg.IsMeaningfulChange),
		logger.Bool("regeneration_required", agg.RegenerationRequired),
	)
	return agg, nil
}

// Aggregate folds per-pair verdicts into one. Categories are de-duplicated in
// first-seen order; changes are concatenated. The reason joins the meaningful
// verdicts' reasons, or every reason when none is meaningful.
func Aggregate(verdicts []domain.ChangeVerdict) *domain.ChangeVerdict {
	out := &domain.ChangeVerdict{Categories: []string{}, Changes: []domain.Change{}}
	seen := make(map[string]struct{})
	var meaningfulReasons, allReasons, raws []string

	for _, v := range verdicts {
		out.IsMeaningfulChange = out.IsMeaningfulChange || v.IsMeaningfulChange
		out.RegenerationRequired = out.RegenerationRequired || v.RegenerationRequired

		for _, cat := range v.Categories {
			key := strings.ToLower(strings.TrimSpace(cat))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.Categories = append(out.Categories, strings.TrimSpace(cat))
		}
		out.Changes = append(out.Changes, v.Changes...)

		if r := strings.TrimSpace(v.Reason); r != "" {
			allReasons = append(allReasons, r)
			if v.IsMeaningfulChange {
				meaningfulReasons = append(meaningfulReasons, r)
			}
		}
		if v.Raw != "" {
			raws = append(raws, v.Raw)
		}
	}

	out.RegenerationRequired = out.RegenerationRequired || out.IsMeaningfulChange
	if out.IsMeaningfulChange {
		out.Reason = strings.Join(meaningfulReasons, "; ")
	} else {
		out.Reason = strings.Join(allReasons, "; ")
	}
	out.Raw = strings.Join(raws, "\n---\n")
	return out
}
