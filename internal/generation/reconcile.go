package generation

import (
	"context"
	"fmt"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/schedule"
)

// overwrite replaces the stored slots of key with fresh, carrying live
// bookings across. A live booking that no longer fits fails the date with
// OVERRIDE_CONFLICT unless force is set, in which case its id is returned as
// dropped. Manual blocks are not carried over.
func (g *Generator) overwrite(ctx context.Context, key availability.Key, fresh []schedule.Slot, force bool) ([]string, error) {
	live := make(map[string]bool)
	var dropped []string

	_, err := g.availability.Mutate(ctx, key, func(a *availability.Availability) error {
		dropped = nil
		next := append([]schedule.Slot(nil), fresh...)

		for _, id := range a.BookedAppointmentIDs() {
			ok, err := g.isLive(ctx, key.OrgID, id, live)
			if err != nil {
				return fmt.Errorf("generation: check booking %s: %w", id, err)
			}
			if !ok {
				g.logger.ForOrg(key.OrgID).Info("dropping stale booking on override", "date", key.Date, "booking_id", id)
				continue
			}
			if reapply(next, a.TimeSlots, id) {
				continue
			}
			if !force {
				return apperr.New(apperr.CodeOverrideConflict,
					"booking %s on %s does not fit the regenerated slots", id, key.Date)
			}
			dropped = append(dropped, id)
		}

		a.TimeSlots = next
		a.IsActive = true
		a.Override = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dropped, nil
}

func (g *Generator) isLive(ctx context.Context, orgID, id string, cache map[string]bool) (bool, error) {
	if g.liveness == nil {
		return true, nil
	}
	if v, ok := cache[id]; ok {
		return v, nil
	}
	v, err := g.liveness.IsBookingLive(ctx, orgID, id)
	if err != nil {
		return false, err
	}
	cache[id] = v
	return v, nil
}

// reapply books id onto every slot of next that overlaps a slot id held in
// old. It changes nothing and reports false when one of those slots is not
// free or when nothing overlaps.
func reapply(next, old []schedule.Slot, id string) bool {
	type span struct{ start, end int }
	var held []span
	for _, s := range old {
		if s.ReasonUnavailable != schedule.ReasonBooked || s.BookedAppointmentID != id {
			continue
		}
		start, end, err := s.Span()
		if err != nil {
			continue
		}
		held = append(held, span{start, end})
	}

	var targets []int
	for i, s := range next {
		start, end, err := s.Span()
		if err != nil {
			continue
		}
		for _, h := range held {
			if start < h.end && end > h.start {
				if !s.IsAvailable {
					return false
				}
				targets = append(targets, i)
				break
			}
		}
	}
	if len(targets) == 0 {
		return false
	}
	for _, i := range targets {
		next[i].MarkBooked(id)
	}
	return true
}
