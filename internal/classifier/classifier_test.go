package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/diff"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
)

// scriptedClient returns queued responses in order and records requests.
type scriptedClient struct {
	responses []string
	err       error
	requests  []llm.Request
}

func (s *scriptedClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	return s.GenerateJSON(ctx, req)
}

func (s *scriptedClient) GenerateJSON(_ context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out, nil
}

func (s *scriptedClient) Provider() string { return "scripted" }

var msb = Subject{Label: "MSB Obligations", Authority: "FINTRAC", Jurisdiction: "Canada"}

func TestClassify_RequestShape(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{`{"is_meaningful_change":true,"reason":"new threshold"}`}}
	c := New(client, Config{DomainContext: "FINTRAC AML obligations", Model: "m1", MaxOutputTokens: 400}, logger.NewNop())

	long := strings.Repeat("a", DefaultExcerptChars+10)
	v, err := c.Classify(context.Background(), msb, diff.Pair{Old: long, New: "added"})
	require.NoError(t, err)
	assert.True(t, v.IsMeaningfulChange)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Zero(t, req.Temperature)
	assert.Equal(t, "m1", req.Model)
	assert.Equal(t, 400, req.MaxOutputTokens)
	assert.Contains(t, req.System, "FINTRAC AML obligations")
	assert.Contains(t, req.System, "Return STRICT JSON only")
	assert.Contains(t, req.System, "Ignore punctuation/formatting-only edits")
	assert.Contains(t, req.Prompt, "OLD:\n"+strings.Repeat("a", DefaultExcerptChars)+"\n\nNEW:\nadded")
	assert.NotContains(t, req.Prompt, strings.Repeat("a", DefaultExcerptChars+1))
	assert.Contains(t, req.Prompt, "Context: MSB Obligations (FINTRAC, Canada) page.")
}

func TestClassify_ToleratesFencesAndProse(t *testing.T) {
	t.Parallel()

	responses := []string{
		"```json\n{\"is_meaningful_change\": true, \"categories\": [\"Reporting\"]}\n```",
		"Here is my answer:\n{\"is_meaningful_change\": true}\nThanks.",
		"```\n{\"is_meaningful_change\": true}\n```",
	}
	for _, resp := range responses {
		c := New(&scriptedClient{responses: []string{resp}}, Config{}, logger.NewNop())
		v, err := c.Classify(context.Background(), msb, diff.Pair{})
		require.NoError(t, err)
		assert.True(t, v.IsMeaningfulChange, resp)
		assert.Empty(t, v.Raw)
	}
}

func TestClassify_FailsClosedOnGarbage(t *testing.T) {
	t.Parallel()

	failures := 0
	c := New(&scriptedClient{responses: []string{"I think it changed a lot!"}}, Config{}, logger.NewNop())
	c.OnParseFailure(func() { failures++ })

	v, err := c.Classify(context.Background(), msb, diff.Pair{Old: "a", New: "b"})
	require.NoError(t, err)
	assert.False(t, v.IsMeaningfulChange)
	assert.False(t, v.RegenerationRequired)
	assert.Equal(t, ParseFailureReason, v.Reason)
	assert.Equal(t, "I think it changed a lot!", v.Raw)
	assert.Equal(t, 1, failures)
}

func TestClassify_TransportErrorIsNotAVerdict(t *testing.T) {
	t.Parallel()

	boom := errors.New("deadline exceeded")
	c := New(&scriptedClient{err: boom}, Config{}, logger.NewNop())

	_, err := c.Classify(context.Background(), msb, diff.Pair{})
	require.ErrorIs(t, err, boom)
}

func TestEvaluate_AnyMeaningfulWins(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{
		`{"is_meaningful_change":false,"reason":"typo","categories":["Formatting"]}`,
		`{"is_meaningful_change":true,"reason":"new LVCTR threshold","categories":["Reporting","formatting"],
		  "changes":[{"section_hint":"Reporting","old_excerpt":"$10,000","new_excerpt":"$5,000","analysis":"lower"}]}`,
	}}
	c := New(client, Config{}, logger.NewNop())

	v, err := c.Evaluate(context.Background(), msb, []diff.Pair{{Old: "a"}, {Old: "b"}})
	require.NoError(t, err)
	assert.True(t, v.IsMeaningfulChange)
	assert.True(t, v.RegenerationRequired)
	assert.Equal(t, "new LVCTR threshold", v.Reason)
	assert.Equal(t, []string{"Formatting", "Reporting"}, v.Categories)
	require.Len(t, v.Changes, 1)
	assert.Equal(t, "$5,000", v.Changes[0].NewExcerpt)
	assert.Len(t, client.requests, 2)
}

func TestEvaluate_StopsOnTransportError(t *testing.T) {
	t.Parallel()

	c := New(&scriptedClient{err: errors.New("status 503")}, Config{}, logger.NewNop())
	v, err := c.Evaluate(context.Background(), msb, []diff.Pair{{}, {}})
	require.Error(t, err)
	assert.Nil(t, v)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         []domain.ChangeVerdict
		meaningful bool
		regen      bool
		reason     string
	}{
		{name: "empty", in: nil},
		{
			name:   "all cosmetic",
			in:     []domain.ChangeVerdict{{Reason: "punctuation"}, {Reason: "spacing"}},
			reason: "punctuation; spacing",
		},
		{
			name:  "regen without meaningful",
			in:    []domain.ChangeVerdict{{RegenerationRequired: true}},
			regen: true,
		},
		{
			name:       "meaningful forces regen",
			in:         []domain.ChangeVerdict{{IsMeaningfulChange: true, Reason: "scope"}, {Reason: "typo"}},
			meaningful: true,
			regen:      true,
			reason:     "scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Aggregate(tt.in)
			assert.Equal(t, tt.meaningful, got.IsMeaningfulChange)
			assert.Equal(t, tt.regen, got.RegenerationRequired)
			assert.Equal(t, tt.reason, got.Reason)
			assert.NotNil(t, got.Categories)
			assert.NotNil(t, got.Changes)
		})
	}
}

func TestSubjectString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Act", Subject{Label: "Act"}.String())
	assert.Equal(t, "Act (FINTRAC)", Subject{Label: "Act", Authority: "FINTRAC"}.String())
}

func TestClassify_RequestsPerMinute(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{
		`{"is_meaningful_change":false}`,
		`{"is_meaningful_change":false}`,
	}}
	c := New(client, Config{RequestsPerMinute: 1}, logger.NewNop())

	_, err := c.Classify(context.Background(), msb, diff.Pair{Old: "a", New: "b"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Classify(ctx, msb, diff.Pair{Old: "a", New: "c"})
	require.Error(t, err)
	assert.Len(t, client.requests, 1)
}

func TestClassify_NonObjectJSONFailsClosed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"null", "true", `"yes"`, "[1, 2]", "42"} {
		client := &scriptedClient{responses: []string{raw}}
		c := New(client, Config{}, logger.NewNop())
		failures := 0
		c.OnParseFailure(func() { failures++ })

		v, err := c.Classify(context.Background(), msb, diff.Pair{Old: "a", New: "b"})
		require.NoError(t, err, raw)
		assert.False(t, v.IsMeaningfulChange, raw)
		assert.Equal(t, ParseFailureReason, v.Reason, raw)
		assert.Equal(t, raw, v.Raw, raw)
		assert.Equal(t, 1, failures, raw)
	}
}
