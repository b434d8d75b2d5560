package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone_StartOfLocalDay(t *testing.T) {
	zone, err := LoadZone("Europe/Rome")
	require.NoError(t, err)

	// 23:30 UTC on May 31 is already June 1 in Rome (UTC+2).
	now := time.Date(2024, 5, 31, 23, 30, 0, 0, time.UTC)
	start := zone.StartOfLocalDay(now)

	assert.Equal(t, time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, Date{Year: 2024, Month: 6, Day: 1}, zone.LocalDate(now))
}

func TestAddDays_AcrossDST(t *testing.T) {
	zone, err := LoadZone("Europe/Rome")
	require.NoError(t, err)

	// Clocks go forward on 2024-03-31 in Rome; the day is only 23 hours long.
	midnight := zone.StartOfLocalDay(time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC))
	next := AddDays(midnight, 1)

	local := next.In(zone.Location())
	assert.Equal(t, 0, local.Hour())
	assert.Equal(t, time.April, local.Month())
	assert.Equal(t, 1, local.Day())
	assert.Equal(t, 23*time.Hour, next.Sub(midnight))
}

func TestZone_At(t *testing.T) {
	zone, err := LoadZone("Europe/Rome")
	require.NoError(t, err)

	at := zone.At(Date{Year: 2024, Month: 6, Day: 1}, 20, 30)
	assert.Equal(t, time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC), at.UTC())
}

func TestLoadZone_Invalid(t *testing.T) {
	_, err := LoadZone("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestZone_ZeroValueIsUTC(t *testing.T) {
	var zone Zone
	now := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), zone.StartOfLocalDay(now))
	assert.Equal(t, "2024-06-01", zone.LocalDate(now).String())
}
