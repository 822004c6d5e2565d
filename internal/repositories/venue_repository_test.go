package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	minutes, err := parseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, 630, minutes)

	minutes, err = parseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)

	minutes, err = parseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, minutes)

	_, err = parseClock("24:00")
	assert.Error(t, err)

	_, err = parseClock("10:60")
	assert.Error(t, err)

	_, err = parseClock("1030")
	assert.Error(t, err)
}

func TestBookingMinutes(t *testing.T) {
	minutes, err := bookingMinutes("10:00", "14:00")
	require.NoError(t, err)
	assert.Equal(t, 240, minutes)

	// an end before the start crosses midnight
	minutes, err = bookingMinutes("22:00", "02:00")
	require.NoError(t, err)
	assert.Equal(t, 240, minutes)

	// equal times are a zero-length booking, not a full day
	minutes, err = bookingMinutes("10:00", "10:00")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)

	_, err = bookingMinutes("bad", "14:00")
	assert.Error(t, err)
}

func TestBookingWeekday(t *testing.T) {
	// 2025-06-02 is a Monday
	day, err := bookingWeekday("2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, 0, day)

	// 2025-06-08 is a Sunday
	day, err = bookingWeekday("2025-06-08")
	require.NoError(t, err)
	assert.Equal(t, 6, day)

	_, err = bookingWeekday("not-a-date")
	assert.Error(t, err)
}

func TestOverlaps(t *testing.T) {
	assert.True(t, overlaps("10:00", "14:00", "13:00", "15:00"))
	assert.True(t, overlaps("13:00", "15:00", "10:00", "14:00"))
	assert.True(t, overlaps("10:00", "14:00", "11:00", "12:00"))

	// back to back bookings share an endpoint but do not overlap
	assert.False(t, overlaps("10:00", "14:00", "14:00", "16:00"))
	assert.False(t, overlaps("14:00", "16:00", "10:00", "14:00"))
	assert.False(t, overlaps("08:00", "09:00", "09:30", "10:00"))
}
