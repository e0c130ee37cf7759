package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/schedule"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseDatetime reads an RFC3339 instant, or a zone-less YYYY-MM-DDTHH:MM[:SS]
// string interpreted in loc.
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.InvalidArgument("datetime %q must be RFC3339 or YYYY-MM-DDTHH:MM", s)
}

// SplitDatetime returns the literal date and HH:MM parts of an ISO datetime.
// No timezone conversion happens here.
func SplitDatetime(s string) (date, clock string, err error) {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, 'T')
	if i < 0 || len(s) < i+6 {
		return "", "", apperr.InvalidArgument("datetime %q must look like YYYY-MM-DDTHH:MM", s)
	}
	date, clock = s[:i], s[i+1:i+6]
	if _, err := schedule.ParseDate(date); err != nil {
		return "", "", apperr.InvalidArgument("datetime %q has a bad date part", s)
	}
	if _, err := schedule.ParseClock(clock); err != nil {
		return "", "", apperr.InvalidArgument("datetime %q has a bad time part", s)
	}
	return date, clock, nil
}

// checkTiming enforces the past-date and advance-window rules. A datetime
// exactly MaxAdvanceBookingDays ahead is allowed.
func checkTiming(cfg *orgconfig.BusinessConfiguration, at, now time.Time) error {
	if at.Before(now) {
		return apperr.New(apperr.CodePastDate, "appointment time %s is in the past", at.Format(time.RFC3339))
	}
	limit := now.Add(time.Duration(cfg.MaxAdvanceBookingDays) * 24 * time.Hour)
	if at.After(limit) {
		return apperr.New(apperr.CodeAdvanceWindowExceeded,
			"appointment time %s is more than %d days ahead", at.Format(time.RFC3339), cfg.MaxAdvanceBookingDays)
	}
	return nil
}

// Penalty returns the cancellation penalty percentage. Only client
// cancellations inside the policy window are charged.
func Penalty(policy *orgconfig.CancellationPolicy, cancelledBy string, at, now time.Time) float64 {
	if policy == nil || cancelledBy != ActorClient {
		return 0
	}
	hoursUntil := at.Sub(now).Hours()
	if hoursUntil < float64(policy.HoursBeforeAppointment) {
		return policy.PenaltyPercentage
	}
	return 0
}
