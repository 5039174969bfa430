package classifier

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultExcerptChars caps each side of a pair in the user prompt.
const DefaultExcerptChars = 12000

// Subject identifies the page a change belongs to.
type Subject struct {
	Label        string
	Authority    string
	Jurisdiction string
}

func (s Subject) String() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{s.Authority, s.Jurisdiction} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return s.Label
	}
	return fmt.Sprintf("%s (%s)", s.Label, strings.Join(parts, ", "))
}

func systemPrompt(domainContext string) string {
	var b strings.Builder
	b.WriteString("You are a financial compliance analyst")
	if domainContext != "" {
		b.WriteString(" specializing in ")
		b.WriteString(domainContext)
	}
	b.WriteString(". Return STRICT JSON only. Keys: is_meaningful_change (bool), reason (str), ")
	b.WriteString("categories (array), changes (array of {section_hint, old_excerpt, new_excerpt, analysis}), ")
	b.WriteString("regeneration_required (bool). Ignore punctuation/formatting-only edits.")
	return b.String()
}

func userPrompt(subject Subject, oldText, newText string, excerptChars int) string {
	return fmt.Sprintf(
		"OLD:\n%s\n\nNEW:\n%s\n\nContext: %s page. Evaluate only policy-relevant differences.",
		clip(oldText, excerptChars), clip(newText, excerptChars), subject,
	)
}

func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
