package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalSingleUnit(t *testing.T) {
	d, err := ParseInterval("30m")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)
}

func TestParseIntervalCombinesUnits(t *testing.T) {
	d, err := ParseInterval("1h30m")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+30*time.Minute, d)
}

func TestParseIntervalToleratesWhitespace(t *testing.T) {
	d, err := ParseInterval("1d 2h 15m")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour+2*time.Hour+15*time.Minute, d)
}

func TestParseIntervalWeek(t *testing.T) {
	d, err := ParseInterval("1w")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)
}

func TestParseIntervalRejectsNoTokens(t *testing.T) {
	_, err := ParseInterval("tomorrow")
	assert.Error(t, err)
}

func TestParseIntervalRejectsZeroDuration(t *testing.T) {
	_, err := ParseInterval("0s")
	assert.Error(t, err)
}
