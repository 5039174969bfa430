// Package report renders run summaries and history as terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/monitor"
)

const (
	timeLayout  = "2006-01-02 15:04"
	urlMaxWidth = 60
	errMaxWidth = 50
)

func newWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderRun prints one row per source followed by outcome totals.
func RenderRun(w io.Writer, s *monitor.RunSummary) {
	t := newWriter(w)
	title := "Run " + s.RunID
	if s.DryRun {
		title += " (dry run)"
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Source", "Outcome", "Version", "Meaningful", "Regenerate", "Pairs", "Duration", "Error"})

	for _, r := range s.Results {
		t.AppendRow(table.Row{
			r.Label,
			colorOutcome(r.Outcome),
			blankZero(r.Version),
			yesNo(r.Outcome == monitor.OutcomeChanged, r.Meaningful),
			yesNo(r.Outcome == monitor.OutcomeChanged, r.RegenerationRequired),
			blankZero(r.Pairs),
			r.Duration.Round(time.Millisecond),
			text.WrapSoft(r.ErrorMessage(), errMaxWidth),
		})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d inserted, %d unchanged, %d changed, %d error",
			s.Count(monitor.OutcomeInserted),
			s.Count(monitor.OutcomeUnchanged),
			s.Count(monitor.OutcomeChanged),
			s.Count(monitor.OutcomeError)),
		"", "", "", "",
		s.Duration().Round(time.Millisecond),
	})
	t.Render()
}

// RenderSources prints tracked sources.
func RenderSources(w io.Writer, sources []domain.Source) {
	t := newWriter(w)
	t.AppendHeader(table.Row{"ID", "Label", "Authority", "Category", "URL", "Version", "Last Fetched", "Last Changed"})
	for _, s := range sources {
		t.AppendRow(table.Row{
			s.ID,
			s.Label,
			s.Authority,
			s.Category,
			text.Trim(s.URL, urlMaxWidth),
			s.CurrentVersion,
			formatTime(s.LastFetchedAt),
			formatTime(s.LastChangedAt),
		})
	}
	t.Render()
}

// RenderVersions prints a source's history, newest first as given.
func RenderVersions(w io.Writer, versions []domain.Version) {
	t := newWriter(w)
	t.AppendHeader(table.Row{"Version", "Captured", "Chars", "Fingerprint", "Meaningful", "Categories"})
	for _, v := range versions {
		categories := ""
		if v.Verdict != nil {
			categories = strings.Join(v.Verdict.Categories, ", ")
		}
		t.AppendRow(table.Row{
			v.VersionNo,
			v.CapturedAt.Format(timeLayout),
			len([]rune(v.Content)),
			v.Fingerprint[:min(12, len(v.Fingerprint))],
			yesNo(v.VersionNo > 1, v.Verdict.Meaningful()),
			categories,
		})
	}
	t.Render()
}

// RenderVerdict prints the change records of a stored verdict.
func RenderVerdict(w io.Writer, v *domain.ChangeVerdict) {
	if v == nil {
		fmt.Fprintln(w, "No verdict stored for this version.")
		return
	}
	fmt.Fprintf(w, "Meaningful: %t\nRegeneration required: %t\nReason: %s\n",
		v.IsMeaningfulChange, v.RegenerationRequired, v.Reason)
	if len(v.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(v.Categories, ", "))
	}
	if len(v.Changes) == 0 {
		return
	}

	t := newWriter(w)
	t.AppendHeader(table.Row{"Section", "Old", "New", "Analysis"})
	for _, c := range v.Changes {
		t.AppendRow(table.Row{
			c.SectionHint,
			text.WrapSoft(c.OldExcerpt, errMaxWidth),
			text.WrapSoft(c.NewExcerpt, errMaxWidth),
			text.WrapSoft(c.Analysis, errMaxWidth),
		})
	}
	t.Render()
}

func colorOutcome(o monitor.Outcome) string {
	switch o {
	case monitor.OutcomeChanged:
		return text.FgYellow.Sprint(o)
	case monitor.OutcomeError:
		return text.FgRed.Sprint(o)
	case monitor.OutcomeInserted:
		return text.FgGreen.Sprint(o)
	default:
		return string(o)
	}
}

func yesNo(applies, v bool) string {
	switch {
	case !applies:
		return "-"
	case v:
		return "yes"
	default:
		return "no"
	}
}

func blankZero(n int) any {
	if n == 0 {
		return ""
	}
	return n
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(timeLayout)
}
