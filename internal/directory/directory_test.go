package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/schedule"
)

const weekdayScheduleJSON = `{"monday":{"is_available":true,"start_time":"09:00","end_time":"17:00"},"tuesday":{"is_available":false},"wednesday":{"is_available":false},"thursday":{"is_available":false},"friday":{"is_available":false},"saturday":{"is_available":false},"sunday":{"is_available":false}}`

func TestHasAnySpecialty(t *testing.T) {
	s := Staff{Specialties: []string{"Botox", "laser"}}
	assert.True(t, s.HasAnySpecialty(nil))
	assert.True(t, s.HasAnySpecialty([]string{"botox"}))
	assert.True(t, s.HasAnySpecialty([]string{"filler", "Laser"}))
	assert.False(t, s.HasAnySpecialty([]string{"filler"}))
}

func TestPostgresGetStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	rows := pgxmock.NewRows([]string{"id", "org_id", "name", "role", "specialties", "schedule", "is_active"}).
		AddRow("staff-1", "org-1", "Ana", "injector", []string{"botox"}, []byte(weekdayScheduleJSON), true)
	mock.ExpectQuery("SELECT id, org_id, name, role").WithArgs("org-1", "staff-1").WillReturnRows(rows)

	s, err := repo.GetStaff(context.Background(), "org-1", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", s.Name)
	assert.Equal(t, []string{"botox"}, s.Specialties)
	assert.True(t, s.Schedule.Monday.IsAvailable)
	assert.Equal(t, "17:00", s.Schedule.Monday.EndTime)

	mock.ExpectQuery("SELECT id, org_id, name, role").WithArgs("org-1", "ghost").WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetStaff(context.Background(), "org-1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListStaffActiveOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	rows := pgxmock.NewRows([]string{"id", "org_id", "name", "role", "specialties", "schedule", "is_active"}).
		AddRow("staff-1", "org-1", "Ana", "injector", []string{"botox"}, []byte(weekdayScheduleJSON), true).
		AddRow("staff-2", "org-1", "Ben", "nurse", []string{}, []byte(`{}`), true)
	mock.ExpectQuery("FROM staff").WithArgs("org-1", true).WillReturnRows(rows)

	got, err := repo.ListStaff(context.Background(), "org-1", true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "staff-1", got[0].ID)
	assert.Equal(t, "staff-2", got[1].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListResourcesPropagatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM resources").WithArgs("org-1", false).WillReturnError(errors.New("connection reset"))

	_, err = repo.ListResources(context.Background(), "org-1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresUpsertResource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectExec("INSERT INTO resources").
		WithArgs("room-1", "org-1", "Chamber A", "hyperbaric_chamber", []string{"technician"}, pgxmock.AnyArg(), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.UpsertResource(context.Background(), &Resource{
		ID: "room-1", OrgID: "org-1", Name: "Chamber A", Type: "hyperbaric_chamber",
		StaffRequirements: []string{"technician"}, IsActive: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	err = repo.UpsertResource(context.Background(), &Resource{ID: "room-2", OrgID: "org-1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestMemoryRepositoryFilters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	open := schedule.WeeklySchedule{Monday: schedule.Day{IsAvailable: true, StartTime: "09:00", EndTime: "12:00"}}

	require.NoError(t, repo.UpsertStaff(ctx, &Staff{ID: "s1", OrgID: "org-1", Name: "Ana", Role: "injector", Specialties: []string{"botox"}, Schedule: open, IsActive: true}))
	require.NoError(t, repo.UpsertStaff(ctx, &Staff{ID: "s2", OrgID: "org-1", Name: "Ben", Role: "nurse", Schedule: open, IsActive: false}))
	require.NoError(t, repo.UpsertStaff(ctx, &Staff{ID: "s3", OrgID: "org-2", Name: "Cy", Role: "injector", Schedule: open, IsActive: true}))
	require.NoError(t, repo.UpsertResource(ctx, &Resource{ID: "r1", OrgID: "org-1", Name: "Room", Type: "room", Schedule: open, IsActive: true}))

	all, _ := repo.ListStaff(ctx, "org-1", false)
	assert.Len(t, all, 2)
	active, _ := repo.ListStaff(ctx, "org-1", true)
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].ID)

	byRole, _ := repo.ListStaffByRole(ctx, "org-1", "INJECTOR")
	assert.Len(t, byRole, 1)
	bySpecialty, _ := repo.ListStaffBySpecialty(ctx, "org-1", "botox")
	assert.Len(t, bySpecialty, 1)

	require.NoError(t, repo.UpsertStaff(ctx, &Staff{ID: "s2", OrgID: "org-1", Name: "Ben", Schedule: open, IsActive: true}))
	active, _ = repo.ListStaff(ctx, "org-1", true)
	assert.Equal(t, []string{"s1", "s2"}, []string{active[0].ID, active[1].ID})

	res, err := repo.GetResource(ctx, "org-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "Room", res.Name)
	_, err = repo.GetResource(ctx, "org-2", "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	bad := open
	bad.Friday = schedule.Day{IsAvailable: true, StartTime: "18:00", EndTime: "09:00"}
	assert.Error(t, repo.UpsertStaff(ctx, &Staff{ID: "s4", OrgID: "org-1", Name: "Dee", Schedule: bad}))
}
