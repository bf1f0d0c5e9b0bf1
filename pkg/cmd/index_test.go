package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePinsEmpty(t *testing.T) {
	pins, err := parsePins(nil)
	require.NoError(t, err)
	assert.Nil(t, pins)
}

func TestParsePinsSingleSelector(t *testing.T) {
	pins, err := parsePins([]string{"foo=<2.0"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"foo": {"<2.0"}}, pins)
}

func TestParsePinsMultipleSelectorsAndNames(t *testing.T) {
	pins, err := parsePins([]string{"foo=<2.0,>=1.0", "bar==1.5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"<2.0", ">=1.0"}, pins["foo"])
	assert.Equal(t, []string{"==1.5"}, pins["bar"])
}

func TestParsePinsRepeatedNameAccumulates(t *testing.T) {
	pins, err := parsePins([]string{"foo=<2.0", "foo=>=1.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"<2.0", ">=1.0"}, pins["foo"])
}

func TestParsePinsRejectsMalformedEntry(t *testing.T) {
	_, err := parsePins([]string{"no-equals-sign"})
	assert.Error(t, err)

	_, err = parsePins([]string{"=missing-name"})
	assert.Error(t, err)

	_, err = parsePins([]string{"missing-selector="})
	assert.Error(t, err)
}

func TestNewIndexCommandDefaults(t *testing.T) {
	c := NewIndexCommand()
	assert.True(t, c.WriteCurrent)
	assert.True(t, c.SaveFSState)
	assert.False(t, c.WriteShards)
	assert.False(t, c.WriteSummary)
	assert.NotNil(t, c.Common)
}
