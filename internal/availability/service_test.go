package availability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

var testKey = Key{OrgID: "org-1", EntityType: EntityStaff, EntityID: "staff-1", Date: "2026-03-02"}

func seedDay(t *testing.T, store Store) {
	t.Helper()
	slots, err := schedule.GenerateSlots(schedule.Day{
		IsAvailable: true,
		StartTime:   "09:00",
		EndTime:     "12:00",
		Breaks:      []schedule.Break{{StartTime: "10:00", EndTime: "10:30"}},
	}, 30)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &Availability{
		OrgID:      testKey.OrgID,
		EntityType: testKey.EntityType,
		EntityID:   testKey.EntityID,
		Date:       testKey.Date,
		TimeSlots:  slots,
		IsActive:   true,
	}))
}

func slotAt(t *testing.T, a *Availability, start string) schedule.Slot {
	t.Helper()
	for _, s := range a.TimeSlots {
		if s.StartTime == start {
			return s
		}
	}
	t.Fatalf("no slot at %s", start)
	return schedule.Slot{}
}

func TestBookThenReleaseRestoresSlot(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, logging.Default())
	ctx := context.Background()

	booked, err := svc.BookSlot(ctx, testKey, "09:00", "09:30", "appt-1")
	require.NoError(t, err)
	slot := slotAt(t, booked, "09:00")
	assert.False(t, slot.IsAvailable)
	assert.Equal(t, "appt-1", slot.BookedAppointmentID)
	assert.Equal(t, schedule.ReasonBooked, slot.ReasonUnavailable)
	assert.Equal(t, int64(2), booked.Version)

	released, err := svc.ReleaseSlot(ctx, testKey, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	after, err := svc.Get(ctx, testKey)
	require.NoError(t, err)
	slot = slotAt(t, after, "09:00")
	assert.True(t, slot.IsAvailable)
	assert.Empty(t, slot.BookedAppointmentID)
	assert.Empty(t, slot.ReasonUnavailable)
}

func TestReleaseUnknownAppointmentIsNoop(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)

	released, err := svc.ReleaseSlot(context.Background(), testKey, "appt-missing")
	require.NoError(t, err)
	assert.Zero(t, released)

	released, err = svc.ReleaseSlot(context.Background(), Key{OrgID: "org-1", EntityType: EntityStaff, EntityID: "staff-1", Date: "2030-01-01"}, "appt-1")
	require.NoError(t, err)
	assert.Zero(t, released)

	a, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version, "no-op release must not write")
}

func TestBookSlotMissingRecordIsNotFound(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	_, err := svc.BookSlot(context.Background(), testKey, "09:00", "09:30", "appt-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBookSlotRejectsTakenAndBreakSlots(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.BookSlot(ctx, testKey, "09:30", "10:00", "appt-1")
	require.NoError(t, err)

	_, err = svc.BookSlot(ctx, testKey, "09:30", "10:00", "appt-2")
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)

	_, err = svc.BookSlot(ctx, testKey, "10:00", "10:30", "appt-3")
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)

	_, err = svc.BookSlot(ctx, testKey, "13:00", "13:30", "appt-4")
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)
}

func TestBookSlotSameAppointmentIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)
	ctx := context.Background()

	first, err := svc.BookSlot(ctx, testKey, "11:00", "12:00", "appt-1")
	require.NoError(t, err)
	second, err := svc.BookSlot(ctx, testKey, "11:00", "12:00", "appt-1")
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
}

func TestBookSlotSpanningSlotsBooksEach(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)

	a, err := svc.BookSlot(context.Background(), testKey, "10:30", "11:30", "appt-1")
	require.NoError(t, err)
	assert.Equal(t, "appt-1", slotAt(t, a, "10:30").BookedAppointmentID)
	assert.Equal(t, "appt-1", slotAt(t, a, "11:00").BookedAppointmentID)
	assert.True(t, slotAt(t, a, "11:30").IsAvailable)
	assert.Equal(t, []string{"appt-1"}, a.BookedAppointmentIDs())
}

func TestBookSlotPartialOverlapBooksIntersectingSlots(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)

	a, err := svc.BookSlot(context.Background(), testKey, "09:15", "09:45", "appt-1")
	require.NoError(t, err)
	assert.Equal(t, "appt-1", slotAt(t, a, "09:00").BookedAppointmentID)
	assert.Equal(t, "appt-1", slotAt(t, a, "09:30").BookedAppointmentID)
	assert.Equal(t, schedule.ReasonBreak, slotAt(t, a, "10:00").ReasonUnavailable)
}

func TestConcurrentBookingsOfSameSlotHaveOneWinner(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)
	ctx := context.Background()

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.BookSlot(ctx, testKey, "11:00", "11:30", "appt-"+string(rune('a'+i)))
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrSlotUnavailable) || errors.Is(err, apperr.ErrConcurrentModification), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	a, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.NotEmpty(t, slotAt(t, a, "11:00").BookedAppointmentID)
}

func TestConcurrentDisjointBookingsAllLand(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil, WithMaxAttempts(50))
	ctx := context.Background()

	starts := []string{"09:00", "09:30", "10:30", "11:00", "11:30"}
	var wg sync.WaitGroup
	for _, st := range starts {
		wg.Add(1)
		go func(st string) {
			defer wg.Done()
			end, err := schedule.AddMinutes(st, 30)
			if !assert.NoError(t, err) {
				return
			}
			_, err = svc.BookSlot(ctx, testKey, st, end, "appt-"+st)
			assert.NoError(t, err)
		}(st)
	}
	wg.Wait()

	a, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	for _, st := range starts {
		assert.Equal(t, "appt-"+st, slotAt(t, a, st).BookedAppointmentID)
	}
}

// racingStore lets a rival booking land between the read and the write of
// the first mutation attempt.
type racingStore struct {
	*MemoryStore
	once  sync.Once
	rival func()
}

func (r *racingStore) CompareAndSwap(ctx context.Context, a *Availability, expected int64) error {
	r.once.Do(r.rival)
	return r.MemoryStore.CompareAndSwap(ctx, a, expected)
}

func TestLosingWriterIsRejectedOnReread(t *testing.T) {
	mem := NewMemoryStore()
	seedDay(t, mem)
	rivalSvc := NewService(mem, nil)
	ctx := context.Background()

	store := &racingStore{MemoryStore: mem}
	store.rival = func() {
		_, err := rivalSvc.BookSlot(ctx, testKey, "09:00", "09:30", "appt-rival")
		require.NoError(t, err)
	}
	svc := NewService(store, nil)

	_, err := svc.BookSlot(ctx, testKey, "09:00", "09:30", "appt-late")
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)

	a, err := mem.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "appt-rival", slotAt(t, a, "09:00").BookedAppointmentID)
}

type conflictingStore struct {
	*MemoryStore
}

func (conflictingStore) CompareAndSwap(context.Context, *Availability, int64) error {
	return ErrVersionConflict
}

func TestMutateGivesUpAfterMaxAttempts(t *testing.T) {
	mem := NewMemoryStore()
	seedDay(t, mem)
	svc := NewService(conflictingStore{mem}, nil, WithMaxAttempts(3))

	_, err := svc.BookSlot(context.Background(), testKey, "09:00", "09:30", "appt-1")
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
}

func TestBlockAndUnblock(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.BookSlot(ctx, testKey, "11:30", "12:00", "appt-1")
	require.NoError(t, err)

	_, err = svc.BlockSlot(ctx, testKey, "11:00", "12:00", schedule.ReasonMaintenance, "")
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)

	a, err := svc.BlockSlot(ctx, testKey, "09:30", "10:30", schedule.ReasonCustom, "staff training")
	require.NoError(t, err)
	blocked := slotAt(t, a, "09:30")
	assert.False(t, blocked.IsAvailable)
	assert.Equal(t, schedule.ReasonCustom, blocked.ReasonUnavailable)
	assert.Equal(t, "staff training", blocked.CustomReason)
	assert.Empty(t, blocked.BookedAppointmentID)
	assert.Equal(t, schedule.ReasonBreak, slotAt(t, a, "10:00").ReasonUnavailable)

	_, err = svc.BlockSlot(ctx, testKey, "09:00", "09:30", schedule.ReasonBooked, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	a, err = svc.UnblockSlot(ctx, testKey, "09:00", "12:00")
	require.NoError(t, err)
	assert.True(t, slotAt(t, a, "09:30").IsAvailable)
	assert.Equal(t, schedule.ReasonBreak, slotAt(t, a, "10:00").ReasonUnavailable)
	assert.Equal(t, "appt-1", slotAt(t, a, "11:30").BookedAppointmentID)
}

func TestRetagMovesBookings(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.BookSlot(ctx, testKey, "09:00", "10:00", "rsv_1")
	require.NoError(t, err)

	moved, err := svc.Retag(ctx, testKey, "rsv_1", "appt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	a, err := svc.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"appt-1"}, a.BookedAppointmentIDs())

	moved, err = svc.Retag(ctx, testKey, "rsv_1", "appt-1")
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestUpdateValidatesSlots(t *testing.T) {
	store := NewMemoryStore()
	seedDay(t, store)
	svc := NewService(store, nil)
	ctx := context.Background()

	bad := []schedule.Slot{{StartTime: "09:00", EndTime: "09:30", IsAvailable: false, ReasonUnavailable: schedule.ReasonBooked}}
	_, err := svc.Update(ctx, testKey, Patch{TimeSlots: bad})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	inactive := false
	a, err := svc.Update(ctx, testKey, Patch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, a.IsActive)
	assert.Len(t, a.TimeSlots, 6)
}

func TestGetRangeOrdersByDate(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()
	for _, d := range []string{"2026-03-04", "2026-03-02", "2026-03-09"} {
		require.NoError(t, svc.Create(ctx, &Availability{OrgID: "org-1", EntityType: EntityStaff, EntityID: "staff-1", Date: d, IsActive: true}))
	}

	got, err := svc.GetRange(ctx, "org-1", EntityStaff, "staff-1", "2026-03-01", "2026-03-05")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-02", got[0].Date)
	assert.Equal(t, "2026-03-04", got[1].Date)

	_, err = svc.GetRange(ctx, "org-1", EntityStaff, "staff-1", "2026-03-05", "2026-03-01")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	err = svc.Create(ctx, &Availability{OrgID: "org-1", EntityType: EntityStaff, EntityID: "staff-1", Date: "2026-03-02"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}
