package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-engine/internal/assignment"
)

var appointmentRowColumns = []string{
	"id", "org_id", "staff_id", "resource_id", "client_info", "service_info", "datetime",
	"duration_minutes", "status", "assignment_type", "reservation_token", "cancellation_info",
	"rescheduling_history", "notes", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }

func TestPostgresCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	appt := &Appointment{
		ID: "appt-1", OrgID: "org-1", StaffID: "ana",
		ClientInfo: ClientInfo{Name: "Jo"}, ServiceInfo: ServiceInfo{Name: "Botox", DurationMinutes: 30},
		Datetime: "2026-03-02T10:00:00Z", Duration: 30, Status: StatusConfirmed,
		AssignmentType: assignment.TypeStaffOnly, ReservationToken: "rsv_1", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("appt-1", "org-1", strPtr("ana"), (*string)(nil), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"2026-03-02T10:00:00Z", 30, "confirmed", "staff_only", strPtr("rsv_1"), []byte(nil),
			[]byte("[]"), "", now, now, "2026-03-02").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), appt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(appointmentRowColumns).AddRow(
		"appt-1", "org-1", strPtr("ana"), (*string)(nil),
		[]byte(`{"name":"Jo"}`), []byte(`{"name":"Botox","duration":30}`), "2026-03-02T10:00:00Z",
		30, "cancelled", "staff_only", (*string)(nil),
		[]byte(`{"cancelled_by":"client","penalty_applied":25,"cancelled_at":"2026-03-02T00:00:00Z"}`),
		[]byte(`[{"previous_datetime":"2026-03-02T09:00:00Z","new_datetime":"2026-03-02T10:00:00Z","rescheduled_by":"staff","rescheduled_at":"2026-03-01T09:00:00Z"}]`),
		"", now, now,
	)
	mock.ExpectQuery("FROM appointments").WithArgs("org-1", "appt-1").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "org-1", "appt-1")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.StaffID)
	assert.Empty(t, got.ResourceID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "Jo", got.ClientInfo.Name)
	require.NotNil(t, got.CancellationInfo)
	assert.Equal(t, 25.0, got.CancellationInfo.PenaltyApplied)
	require.Len(t, got.ReschedulingHistory, 1)
	assert.Equal(t, "staff", got.ReschedulingHistory[0].RescheduledBy)

	mock.ExpectQuery("FROM appointments").WithArgs("org-1", "missing").WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "org-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectExec("UPDATE appointments SET").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), &Appointment{
		ID: "appt-1", OrgID: "org-1", StaffID: "ana", Datetime: "2026-03-02T10:00:00Z",
		Duration: 30, Status: StatusConfirmed, AssignmentType: assignment.TypeStaffOnly,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindIDByReservationToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("reservation_token = \\$2").WithArgs("org-1", "rsv_1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("appt-1"))
	mock.ExpectQuery("reservation_token = \\$2").WithArgs("org-1", "rsv_2").WillReturnError(pgx.ErrNoRows)

	id, found, err := repo.FindIDByReservationToken(context.Background(), "org-1", "rsv_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "appt-1", id)

	_, found, err = repo.FindIDByReservationToken(context.Background(), "org-1", "rsv_2")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByDateRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now().UTC()
	rows := pgxmock.NewRows(appointmentRowColumns).AddRow(
		"appt-1", "org-1", (*string)(nil), strPtr("room"),
		[]byte(`{"name":"Jo"}`), []byte(`{"name":"Facial"}`), "2026-03-02T10:00:00Z",
		60, "confirmed", "resource_only", (*string)(nil), []byte(nil), []byte(`[]`), "", now, now,
	)
	mock.ExpectQuery("appointment_date BETWEEN").
		WithArgs("org-1", "2026-03-01", "2026-03-07", "", "room").
		WillReturnRows(rows)

	got, err := repo.ListByDateRange(context.Background(), RangeQuery{OrgID: "org-1", StartDate: "2026-03-01", EndDate: "2026-03-07", ResourceID: "room"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "room", got[0].ResourceID)
	assert.Nil(t, got[0].CancellationInfo)
	assert.Empty(t, got[0].ReschedulingHistory)
	require.NoError(t, mock.ExpectationsWereMet())
}
