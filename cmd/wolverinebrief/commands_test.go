package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnd(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	end, err := parseEnd("2026-10-12", loc)
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2026, time.October, 12, 0, 0, 0, 0, loc)))

	zero, err := parseEnd("", loc)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseEnd("12/10/2026", loc)
	require.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"collect", "compose", "distribute", "run"}, names)

	compose, _, err := root.Find([]string{"compose"})
	require.NoError(t, err)
	assert.NotNil(t, compose.Flags().Lookup("end"))

	distribute, _, err := root.Find([]string{"distribute"})
	require.NoError(t, err)
	assert.NotNil(t, distribute.Flags().Lookup("dry-run"))
}
