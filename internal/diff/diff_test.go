package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedLines builds n distinct lines of roughly 60 characters each.
func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("Section %02d: reporting entities must keep the prescribed records.", i)
	}
	return lines
}

func TestExtract_SingleInsertionWithContext(t *testing.T) {
	t.Parallel()

	base := numberedLines(50)
	paragraph := strings.Repeat("New large virtual currency transaction reporting obligation. ", 10)

	changed := make([]string, 0, len(base)+1)
	changed = append(changed, base[:25]...)
	changed = append(changed, paragraph)
	changed = append(changed, base[25:]...)

	pairs := Extract(strings.Join(base, "\n"), strings.Join(changed, "\n"), DefaultOptions())
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.False(t, p.Fallback)
	assert.Equal(t, strings.Join(base[22:28], "\n"), p.Old)
	assert.Equal(t, strings.Join(changed[22:29], "\n"), p.New)
	assert.Contains(t, p.New, strings.TrimSpace(paragraph))
}

func TestExtract_ContextClippedAtBounds(t *testing.T) {
	t.Parallel()

	base := numberedLines(10)
	changed := append([]string(nil), base...)
	changed[0] = "Section 00: reporting entities must keep the amended records for seven years."

	pairs := Extract(strings.Join(base, "\n"), strings.Join(changed, "\n"), Options{Context: 3, MinChars: 10})
	require.Len(t, pairs, 1)
	assert.Equal(t, strings.Join(base[0:4], "\n"), pairs[0].Old)
	assert.Equal(t, strings.Join(changed[0:4], "\n"), pairs[0].New)
}

func TestExtract_OrderedByPosition(t *testing.T) {
	t.Parallel()

	base := numberedLines(40)
	changed := append([]string(nil), base...)
	changed[5] = "Section 05 was rewritten entirely with new wording about beneficial ownership."
	changed[30] = "Section 30 was rewritten entirely with new wording about travel rule records."

	pairs := Extract(strings.Join(base, "\n"), strings.Join(changed, "\n"), Options{Context: 1, MinChars: 10})
	require.Len(t, pairs, 2)
	assert.Contains(t, pairs[0].New, "beneficial ownership")
	assert.Contains(t, pairs[1].New, "travel rule")
}

func TestExtract_TinyEditFallsBack(t *testing.T) {
	t.Parallel()

	oldText := "Report within 30 days."
	newText := "Report within 15 days."

	pairs := Extract(oldText, newText, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.True(t, pairs[0].Fallback)
	assert.Equal(t, oldText, pairs[0].Old)
	assert.Equal(t, newText, pairs[0].New)
}

func TestExtract_FallbackTruncatesByCharacter(t *testing.T) {
	t.Parallel()

	oldText := strings.Repeat("é", FallbackChars+50)
	newText := strings.Repeat("è", FallbackChars+50)

	pairs := Extract(oldText, newText, Options{Context: 3, MinChars: 1 << 20})
	require.Len(t, pairs, 1)
	assert.Equal(t, FallbackChars, len([]rune(pairs[0].Old)))
	assert.Equal(t, FallbackChars, len([]rune(pairs[0].New)))
}

func TestExtract_ThresholdCountsCharacters(t *testing.T) {
	t.Parallel()

	// 100 two-byte runes per side: 200 characters but 400 bytes.
	oldText := strings.Repeat("é", 100)
	newText := strings.Repeat("è", 100)

	pairs := Extract(oldText, newText, Options{MinChars: 200})
	require.Len(t, pairs, 1)
	assert.False(t, pairs[0].Fallback)

	pairs = Extract(oldText, newText, Options{MinChars: 201})
	assert.True(t, pairs[0].Fallback)
}

func TestExtract_FromEmpty(t *testing.T) {
	t.Parallel()

	newText := strings.Join(numberedLines(5), "\n")
	pairs := Extract("", newText, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Empty(t, pairs[0].Old)
	assert.Equal(t, newText, pairs[0].New)
}

func TestFirstDifference(t *testing.T) {
	t.Parallel()

	o, n, ok := FirstDifference("a\nb\nc", "a\nB\nc")
	require.True(t, ok)
	assert.Equal(t, "b", o)
	assert.Equal(t, "B", n)

	o, n, ok = FirstDifference("a", "a\nappended")
	require.True(t, ok)
	assert.Empty(t, o)
	assert.Equal(t, "appended", n)

	_, _, ok = FirstDifference("same\n", "same")
	assert.False(t, ok)

	o, _, _ = FirstDifference(strings.Repeat("x", 500), "y")
	assert.Len(t, o, hintChars)
}
