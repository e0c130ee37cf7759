// Package schedule turns recurring weekly working hours into concrete
// bookable time slots. It performs no I/O and no timezone handling; all
// arithmetic is in minutes since midnight.
package schedule

import (
	"fmt"
	"time"
)

// Reason explains why a slot is unavailable.
type Reason string

const (
	ReasonBooked      Reason = "booked"
	ReasonBreak       Reason = "break"
	ReasonMaintenance Reason = "maintenance"
	ReasonCustom      Reason = "custom"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonBooked, ReasonBreak, ReasonMaintenance, ReasonCustom:
		return true
	}
	return false
}

// Slot is a fixed interval on one date for one staff member or resource.
type Slot struct {
	StartTime           string `json:"start_time" dynamodbav:"startTime"`
	EndTime             string `json:"end_time" dynamodbav:"endTime"`
	IsAvailable         bool   `json:"is_available" dynamodbav:"isAvailable"`
	BookedAppointmentID string `json:"booked_appointment_id,omitempty" dynamodbav:"bookedAppointmentId,omitempty"`
	ReasonUnavailable   Reason `json:"reason_unavailable,omitempty" dynamodbav:"reasonUnavailable,omitempty"`
	CustomReason        string `json:"custom_reason,omitempty" dynamodbav:"customReason,omitempty"`
}

// Span returns the slot bounds in minutes since midnight.
func (s Slot) Span() (start, end int, err error) {
	if start, err = ParseClock(s.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = ParseClock(s.EndTime); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// DurationMinutes returns the slot length, or 0 when the bounds are malformed.
func (s Slot) DurationMinutes() int {
	start, end, err := s.Span()
	if err != nil {
		return 0
	}
	return end - start
}

// MarkAvailable clears every unavailability marker.
func (s *Slot) MarkAvailable() {
	s.IsAvailable = true
	s.BookedAppointmentID = ""
	s.ReasonUnavailable = ""
	s.CustomReason = ""
}

// MarkBooked marks the slot as held by appointmentID.
func (s *Slot) MarkBooked(appointmentID string) {
	s.IsAvailable = false
	s.BookedAppointmentID = appointmentID
	s.ReasonUnavailable = ReasonBooked
	s.CustomReason = ""
}

// Break is an interval inside a working day when nothing can be booked.
type Break struct {
	StartTime string `json:"start_time" dynamodbav:"startTime"`
	EndTime   string `json:"end_time" dynamodbav:"endTime"`
}

// Day is the working pattern for one weekday.
type Day struct {
	IsAvailable bool    `json:"is_available"`
	StartTime   string  `json:"start_time,omitempty"`
	EndTime     string  `json:"end_time,omitempty"`
	Breaks      []Break `json:"breaks,omitempty"`
}

// Validate checks the day's clock strings and ordering. Closed days are
// always valid.
func (d Day) Validate() error {
	if !d.IsAvailable {
		return nil
	}
	start, err := ParseClock(d.StartTime)
	if err != nil {
		return fmt.Errorf("schedule: start time: %w", err)
	}
	end, err := ParseClock(d.EndTime)
	if err != nil {
		return fmt.Errorf("schedule: end time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("schedule: start %s must be before end %s", d.StartTime, d.EndTime)
	}
	for _, b := range d.Breaks {
		bs, err := ParseClock(b.StartTime)
		if err != nil {
			return fmt.Errorf("schedule: break start: %w", err)
		}
		be, err := ParseClock(b.EndTime)
		if err != nil {
			return fmt.Errorf("schedule: break end: %w", err)
		}
		if bs >= be {
			return fmt.Errorf("schedule: break %s-%s is empty", b.StartTime, b.EndTime)
		}
	}
	return nil
}

// WeeklySchedule holds one Day per weekday.
type WeeklySchedule struct {
	Monday    Day `json:"monday"`
	Tuesday   Day `json:"tuesday"`
	Wednesday Day `json:"wednesday"`
	Thursday  Day `json:"thursday"`
	Friday    Day `json:"friday"`
	Saturday  Day `json:"saturday"`
	Sunday    Day `json:"sunday"`
}

// ForWeekday returns the Day for the given weekday.
func (w WeeklySchedule) ForWeekday(weekday time.Weekday) Day {
	switch weekday {
	case time.Sunday:
		return w.Sunday
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return Day{}
	}
}

// Validate checks every day of the week.
func (w WeeklySchedule) Validate() error {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if err := w.ForWeekday(wd).Validate(); err != nil {
			return fmt.Errorf("%s: %w", wd, err)
		}
	}
	return nil
}

// GenerateSlots walks the working day in slotMinutes steps. The final slot is
// clipped to the day's end time. Slots intersecting a break are returned
// unavailable with ReasonBreak. A closed day yields no slots.
func GenerateSlots(day Day, slotMinutes int) ([]Slot, error) {
	if !day.IsAvailable {
		return nil, nil
	}
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("schedule: slot duration must be positive, got %d", slotMinutes)
	}
	if err := day.Validate(); err != nil {
		return nil, err
	}

	start, _ := ParseClock(day.StartTime)
	end, _ := ParseClock(day.EndTime)

	type interval struct{ start, end int }
	breaks := make([]interval, 0, len(day.Breaks))
	for _, b := range day.Breaks {
		bs, _ := ParseClock(b.StartTime)
		be, _ := ParseClock(b.EndTime)
		breaks = append(breaks, interval{bs, be})
	}

	slots := make([]Slot, 0, (end-start+slotMinutes-1)/slotMinutes)
	for t := start; t < end; t += slotMinutes {
		slotEnd := t + slotMinutes
		if slotEnd > end {
			slotEnd = end
		}
		slot := Slot{
			StartTime:   FormatClock(t),
			EndTime:     FormatClock(slotEnd),
			IsAvailable: true,
		}
		for _, b := range breaks {
			// Half-open overlap: [t,slotEnd) intersects [b.start,b.end).
			if t < b.end && slotEnd > b.start {
				slot.IsAvailable = false
				slot.ReasonUnavailable = ReasonBreak
				break
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
