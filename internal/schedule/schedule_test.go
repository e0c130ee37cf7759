package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlotsExcludesBreaks(t *testing.T) {
	day := Day{
		IsAvailable: true,
		StartTime:   "09:00",
		EndTime:     "12:00",
		Breaks:      []Break{{StartTime: "10:00", EndTime: "10:30"}},
	}

	slots, err := GenerateSlots(day, 30)
	require.NoError(t, err)
	require.Len(t, slots, 6)

	for _, s := range slots {
		if s.StartTime == "10:00" {
			assert.False(t, s.IsAvailable)
			assert.Equal(t, ReasonBreak, s.ReasonUnavailable)
			continue
		}
		assert.True(t, s.IsAvailable, "slot %s should be available", s.StartTime)
		assert.Empty(t, s.ReasonUnavailable)
	}
	assert.Equal(t, "11:30", slots[5].StartTime)
	assert.Equal(t, "12:00", slots[5].EndTime)
}

func TestGenerateSlotsBreakOverlapsTwoSlots(t *testing.T) {
	day := Day{
		IsAvailable: true,
		StartTime:   "09:00",
		EndTime:     "11:00",
		Breaks:      []Break{{StartTime: "09:45", EndTime: "10:15"}},
	}

	slots, err := GenerateSlots(day, 30)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.True(t, slots[0].IsAvailable)
	assert.False(t, slots[1].IsAvailable)
	assert.False(t, slots[2].IsAvailable)
	assert.True(t, slots[3].IsAvailable)
}

func TestGenerateSlotsClipsFinalSlot(t *testing.T) {
	day := Day{IsAvailable: true, StartTime: "09:00", EndTime: "10:10"}

	slots, err := GenerateSlots(day, 30)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "10:00", slots[2].StartTime)
	assert.Equal(t, "10:10", slots[2].EndTime)
	assert.Equal(t, 10, slots[2].DurationMinutes())
}

func TestGenerateSlotsClosedDay(t *testing.T) {
	slots, err := GenerateSlots(Day{IsAvailable: false, StartTime: "09:00", EndTime: "17:00"}, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		day     Day
		minutes int
	}{
		{"zero duration", Day{IsAvailable: true, StartTime: "09:00", EndTime: "10:00"}, 0},
		{"inverted hours", Day{IsAvailable: true, StartTime: "12:00", EndTime: "09:00"}, 30},
		{"unpadded clock", Day{IsAvailable: true, StartTime: "9:00", EndTime: "10:00"}, 30},
		{"empty break", Day{IsAvailable: true, StartTime: "09:00", EndTime: "10:00", Breaks: []Break{{StartTime: "09:30", EndTime: "09:30"}}}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateSlots(tt.day, tt.minutes)
			assert.Error(t, err)
		})
	}
}

func TestWeeklyScheduleForWeekday(t *testing.T) {
	w := WeeklySchedule{
		Monday: Day{IsAvailable: true, StartTime: "08:00", EndTime: "16:00"},
		Sunday: Day{IsAvailable: false},
	}
	assert.Equal(t, "08:00", w.ForWeekday(time.Monday).StartTime)
	assert.False(t, w.ForWeekday(time.Sunday).IsAvailable)
	assert.False(t, w.ForWeekday(time.Tuesday).IsAvailable)
	assert.NoError(t, w.Validate())

	w.Friday = Day{IsAvailable: true, StartTime: "17:00", EndTime: "08:00"}
	err := w.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Friday")
}

func TestClockHelpers(t *testing.T) {
	m, err := ParseClock("13:45")
	require.NoError(t, err)
	assert.Equal(t, 13*60+45, m)
	assert.Equal(t, "07:05", FormatClock(7*60+5))

	end, err := AddMinutes("23:30", 30)
	require.NoError(t, err)
	assert.Equal(t, "24:00", end)

	_, err = AddMinutes("23:45", 30)
	assert.Error(t, err)
}

func TestEachDate(t *testing.T) {
	var dates []string
	var weekdays []time.Weekday
	err := EachDate("2026-03-01", "2026-03-03", func(date string, wd time.Weekday) error {
		dates = append(dates, date)
		weekdays = append(weekdays, wd)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01", "2026-03-02", "2026-03-03"}, dates)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Monday, time.Tuesday}, weekdays)

	assert.Error(t, EachDate("2026-03-03", "2026-03-01", func(string, time.Weekday) error { return nil }))

	n, err := DaysBetween("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}
