package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodArithmetic(t *testing.T) {
	p := Period(202409)
	require.True(t, p.Valid())
	require.Equal(t, 2024, p.Year())
	require.Equal(t, time.September, p.Month())

	require.Equal(t, Period(202412), p.Add(3))
	require.Equal(t, Period(202501), p.Add(4))
	require.Equal(t, Period(202312), p.Add(-9))

	require.Equal(t, 4, Period(202501).MonthsSince(p))
	require.Equal(t, -4, p.MonthsSince(Period(202501)))
	require.Equal(t, 0, p.MonthsSince(p))
}

func TestPeriodOfAndBounds(t *testing.T) {
	d := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	p := PeriodOf(d)
	require.Equal(t, Period(202402), p)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), p.Start())
	require.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), p.End())
	require.Equal(t, 29, p.Days())
	require.True(t, p.Contains(p.End()))
	require.False(t, p.Contains(p.End().AddDate(0, 0, 1)))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("202401")
	require.NoError(t, err)
	require.Equal(t, Period(202401), p)
	require.Equal(t, "202401", p.String())

	_, err = ParsePeriod("abc")
	require.Error(t, err)
	_, err = ParsePeriod("202413")
	require.Error(t, err)
}

func TestEnsurePostable(t *testing.T) {
	require.NoError(t, EnsurePostable(PeriodStatusOpen))
	require.ErrorIs(t, EnsurePostable(PeriodStatusClosed), ErrPeriodNotPostable)
	require.ErrorIs(t, EnsurePostable(PeriodStatusLocked), ErrPeriodNotPostable)
}
