package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsBadCost(t *testing.T) {
	err := run([]string{"--cost", "2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cost must be between")
}

func TestRun_UnknownFlag(t *testing.T) {
	require.Error(t, run([]string{"--bogus"}))
}

func TestRun_Help(t *testing.T) {
	assert.NoError(t, run([]string{"--help"}))
}

func TestRun_GeneratesKey(t *testing.T) {
	assert.NoError(t, run([]string{"--cost", "4"}))
}
