package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
)

func TestJoinStored(t *testing.T) {
	t.Parallel()

	targets := []domain.Source{
		{Authority: "FINTRAC", URL: "https://a", Label: "A"},
		{Authority: "FINTRAC", URL: "https://b", Label: "B"},
	}
	stored := []domain.Source{
		{ID: 7, Authority: "FINTRAC", URL: "https://b", Label: "B", CurrentVersion: 3},
		{ID: 9, Authority: "FINTRAC", URL: "https://old", Label: "Retired", CurrentVersion: 1},
	}

	out := joinStored(targets, stored)
	require.Len(t, out, 3)
	assert.Equal(t, int64(0), out[0].ID)
	assert.Equal(t, int64(7), out[1].ID)
	assert.Equal(t, 3, out[1].CurrentVersion)
	assert.Equal(t, "Retired", out[2].Label)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := newVersionCommand()
	c.SetOut(&buf)
	c.SetArgs(nil)
	require.NoError(t, c.Execute())
	assert.Contains(t, buf.String(), "regwatch version")
}

func TestRunCommand_RejectsUnknownOutput(t *testing.T) {
	t.Parallel()

	c := newRunCommand()
	c.SetArgs([]string{"--output", "xml"})
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	err := c.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestVersionsShow_RequiresFlags(t *testing.T) {
	t.Parallel()

	c := newVersionsShowCommand()
	c.SetArgs([]string{"--source-id", "1"})
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	require.Error(t, c.Execute())
}
