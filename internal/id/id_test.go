package id

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runPattern = regexp.MustCompile(`^etl-20261018-[0-9a-z]{10}$`)

func TestRun_Format(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 59, 0, 0, time.FixedZone("x", -5*3600))

	got, err := Run("etl", now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.Regexp(t, runPattern, got)
}

func TestRun_Uniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	now := time.Now()
	for range 1000 {
		v, err := Run("recovery", now)
		require.NoError(t, err)
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestRunFunc(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 10, 18, 2, 0, 0, 0, time.UTC) }
	gen := RunFunc("etl", clock)

	a, b := gen(), gen()
	assert.Regexp(t, runPattern, a)
	assert.NotEqual(t, a, b)
}
