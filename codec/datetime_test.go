package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	good := NewDateTime(2024, 2, 29, 23, 59, 59)
	require.NoError(t, good.Validate())

	bad := []DateTime{
		NewDateTime(2024, 13, 1, 0, 0, 0),
		NewDateTime(2024, 0, 1, 0, 0, 0),
		NewDateTime(2024, 1, 32, 0, 0, 0),
		NewDateTime(2024, 1, 0, 0, 0, 0),
		NewDateTime(2024, 1, 1, 24, 0, 0),
		NewDateTime(2024, 1, 1, 0, 60, 0),
		NewDateTime(2024, 1, 1, 0, 0, 60),
		NewDateTime(1999, 1, 1, 0, 0, 0),
		NewDateTime(2200, 1, 1, 0, 0, 0),
	}
	for _, dt := range bad {
		assert.ErrorIs(t, dt.Validate(), ErrOutOfRange, dt.String())
	}

	// time of day only ignores the calendar fields
	assert.NoError(t, NewTimeOfDay(5, 15, 30).ValidateTimeOfDay())
	assert.Error(t, NewTimeOfDay(5, 15, 30).Validate())
}

func TestFromTime(t *testing.T) {
	// 2006-01-02 was a Monday
	dt := FromTime(time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, DateTime{Second: 5, Minute: 4, Hour: 15, Day: 2, Weekday: 2, Month: 1, Year: 2006}, dt)
	assert.Equal(t, "2006-01-02 15:04:05", dt.String())
}

func TestCalendar(t *testing.T) {
	const epoch = 1709251199 // 2024-02-29 23:59:59 UTC
	dt := UTC.FromEpoch(epoch)
	assert.Equal(t, uint16(2024), dt.Year)
	assert.Equal(t, uint8(2), dt.Month)
	assert.Equal(t, uint8(29), dt.Day)
	assert.Equal(t, uint8(23), dt.Hour)
	assert.Equal(t, uint8(5), dt.Weekday) // Thursday
	assert.Equal(t, int64(epoch), UTC.ToEpoch(dt))

	loc := time.FixedZone("UTC+2", 2*60*60)
	local := NewCalendar(loc).FromEpoch(epoch)
	assert.Equal(t, uint8(1), local.Hour)
	assert.Equal(t, uint8(3), local.Month)
	assert.Equal(t, int64(epoch), NewCalendar(loc).ToEpoch(local))
}

func TestParseStamp(t *testing.T) {
	dt, err := ParseStamp("Jan  2 2006", "15:04:05")
	require.NoError(t, err)
	assert.Equal(t, NewDateTime(2006, 1, 2, 15, 4, 5).Year, dt.Year)
	assert.Equal(t, uint8(2), dt.Day)
	assert.Equal(t, uint8(15), dt.Hour)
	assert.Equal(t, uint8(2), dt.Weekday)

	dt, err = ParseStamp("Oct 16 2026", "07:30:00")
	require.NoError(t, err)
	assert.Equal(t, uint8(16), dt.Day)
	assert.Equal(t, uint8(10), dt.Month)

	_, err = ParseStamp("2006-01-02", "15:04:05")
	assert.ErrorIs(t, err, ErrStamp)
	_, err = ParseStamp("Jan  2 2006", "3pm")
	assert.ErrorIs(t, err, ErrStamp)
}
