package classifier

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
)

// ParseFailureReason is the verdict reason when completion output is not JSON.
const ParseFailureReason = "classifier response was not valid JSON"

var errNoObject = errors.New("no JSON object in response")

// parseVerdict decodes a completion into a verdict. It accepts output wrapped
// in markdown fences or surrounded by prose, as long as it holds one object.
// Valid JSON that is not an object (null, arrays of scalars) is an error.
func parseVerdict(raw string) (domain.ChangeVerdict, error) {
	var v domain.ChangeVerdict

	body := stripFences(raw)
	if strings.HasPrefix(body, "{") {
		if err := json.Unmarshal([]byte(body), &v); err == nil {
			return v, nil
		}
	}

	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return domain.ChangeVerdict{}, errNoObject
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &v); err != nil {
		return domain.ChangeVerdict{}, err
	}
	return v, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// failClosed is the verdict for unparseable output. Raw is kept for review.
func failClosed(raw string) domain.ChangeVerdict {
	return domain.ChangeVerdict{
		IsMeaningfulChange:   false,
		RegenerationRequired: false,
		Reason:               ParseFailureReason,
		Categories:           []string{},
		Changes:              []domain.Change{},
		Raw:                  raw,
	}
}
