// Package diff isolates the changed regions between two versions of a page.
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// DefaultContext is the number of unchanged lines kept around each change.
	DefaultContext = 3
	// DefaultMinChars drops pairs whose sides together are shorter than this.
	DefaultMinChars = 200
	// FallbackChars bounds each side of the whole-text fallback pair.
	FallbackChars = 4000
	// hintChars bounds each side of a FirstDifference hint.
	hintChars = 200
)

// Pair is one changed region. Fallback marks the whole-text pair returned
// when no region passed the size threshold.
type Pair struct {
	Old      string
	New      string
	Fallback bool
}

// Options tune Extract. Negative values are treated as zero.
type Options struct {
	Context  int
	MinChars int
}

// DefaultOptions returns the standard context window and size threshold.
func DefaultOptions() Options {
	return Options{Context: DefaultContext, MinChars: DefaultMinChars}
}

// Extract aligns oldText and newText line by line and returns every
// non-equal block widened by opts.Context lines, in document order. Pairs
// whose combined length is below opts.MinChars characters are dropped; when
// none remain, a single fallback pair of the leading FallbackChars of each
// text is returned. The result is never empty.
func Extract(oldText, newText string, opts Options) []Pair {
	ctx := max(opts.Context, 0)
	minChars := max(opts.MinChars, 0)

	a, b := splitLines(oldText), splitLines(newText)

	var pairs []Pair
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		i1, i2 := max(op.I1-ctx, 0), min(op.I2+ctx, len(a))
		j1, j2 := max(op.J1-ctx, 0), min(op.J2+ctx, len(b))

		p := Pair{
			Old: strings.TrimSpace(strings.Join(a[i1:i2], "\n")),
			New: strings.TrimSpace(strings.Join(b[j1:j2], "\n")),
		}
		if utf8.RuneCountInString(p.Old)+utf8.RuneCountInString(p.New) >= minChars {
			pairs = append(pairs, p)
		}
	}

	if len(pairs) == 0 {
		return []Pair{{
			Old:      truncate(oldText, FallbackChars),
			New:      truncate(newText, FallbackChars),
			Fallback: true,
		}}
	}
	return pairs
}

// FirstDifference returns the first pair of lines that differ, each cut to
// 200 characters. A missing line compares as empty. ok is false when the
// texts have identical lines.
func FirstDifference(oldText, newText string) (oldLine, newLine string, ok bool) {
	a, b := splitLines(oldText), splitLines(newText)
	for i := range max(len(a), len(b)) {
		var x, y string
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return truncate(x, hintChars), truncate(y, hintChars), true
		}
	}
	return "", "", false
}

// splitLines splits on newlines without producing a trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return strings.Split(s, "\n")
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
