package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-engine/internal/availability"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	"github.com/wolfman30/booking-engine/internal/directory"
	"github.com/wolfman30/booking-engine/internal/generation"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

func TestBuildStackRequiresBackends(t *testing.T) {
	_, err := BuildStack(&appconfig.Config{}, Backends{}, prometheus.NewRegistry(), logging.New("error"))
	assert.Error(t, err)

	_, err = BuildStack(nil, Backends{}, prometheus.NewRegistry(), logging.New("error"))
	assert.Error(t, err)
}

func TestBuildStackInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := &appconfig.Config{UseMemoryStores: true, DefaultSlotMinutes: 60, ReservationTTL: time.Minute}
	stack, err := BuildStack(cfg, Backends{}, prometheus.NewRegistry(), logging.New("error"))
	require.NoError(t, err)
	assert.Nil(t, stack.Deliverer)

	require.NoError(t, stack.Configs.Set(ctx, &orgconfig.BusinessConfiguration{
		OrgID: "org-1", AppointmentModel: orgconfig.ModelResourceBased, MaxAdvanceBookingDays: 30,
	}))
	day := schedule.Day{IsAvailable: true, StartTime: "09:00", EndTime: "11:00"}
	require.NoError(t, stack.Directory.UpsertResource(ctx, &directory.Resource{
		ID: "room", OrgID: "org-1", Name: "Room", Schedule: schedule.WeeklySchedule{Monday: day}, IsActive: true,
	}))

	rep, err := stack.Generator.GenerateForEntity(ctx, "org-1", availability.EntityResource, "room",
		generation.Options{StartDate: "2026-03-02", EndDate: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-02"}, rep.Created)

	rec, err := stack.Availability.Get(ctx, availability.Key{OrgID: "org-1", EntityType: availability.EntityResource, EntityID: "room", Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Len(t, rec.TimeSlots, 2, "org config has no slot size so the configured default applies")

	res, err := stack.Sweeper.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Committed+res.Released+res.Failed)
}
