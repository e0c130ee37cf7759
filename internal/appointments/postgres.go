package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/booking-engine/internal/assignment"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `id, org_id, staff_id, resource_id, client_info, service_info, datetime,
	duration_minutes, status, assignment_type, reservation_token, cancellation_info,
	rescheduling_history, notes, created_at, updated_at`

// PostgresRepository stores appointments in Postgres.
type PostgresRepository struct {
	db DB
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: db cannot be nil")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	args, err := writeArgs(a)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`, appointment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		args...)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, orgID, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1 AND id = $2`, orgID, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *Appointment) error {
	args, err := writeArgs(a)
	if err != nil {
		return err
	}
	updateArgs := append(append([]any{}, args[:14]...), args[15], args[16])
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments SET
			staff_id = $3,
			resource_id = $4,
			client_info = $5,
			service_info = $6,
			datetime = $7,
			duration_minutes = $8,
			status = $9,
			assignment_type = $10,
			reservation_token = $11,
			cancellation_info = $12,
			rescheduling_history = $13,
			notes = $14,
			updated_at = $15,
			appointment_date = $16
		WHERE id = $1 AND org_id = $2`,
		updateArgs...)
	if err != nil {
		return fmt.Errorf("appointments: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByDateRange(ctx context.Context, q RangeQuery) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1
			AND appointment_date BETWEEN $2 AND $3
			AND ($4 = '' OR staff_id = $4)
			AND ($5 = '' OR resource_id = $5)
		ORDER BY datetime ASC, id ASC`,
		q.OrgID, q.StartDate, q.EndDate, q.StaffID, q.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by date range: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindIDByReservationToken(ctx context.Context, orgID, token string) (string, bool, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		SELECT id FROM appointments
		WHERE org_id = $1 AND reservation_token = $2`, orgID, token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("appointments: find by reservation token: %w", err)
	}
	return id, true, nil
}

// writeArgs returns the column values in appointmentColumns order followed by
// appointment_date.
func writeArgs(a *Appointment) ([]any, error) {
	client, err := json.Marshal(a.ClientInfo)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal client info: %w", err)
	}
	service, err := json.Marshal(a.ServiceInfo)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal service info: %w", err)
	}
	var cancellation []byte
	if a.CancellationInfo != nil {
		if cancellation, err = json.Marshal(a.CancellationInfo); err != nil {
			return nil, fmt.Errorf("appointments: marshal cancellation info: %w", err)
		}
	}
	history := a.ReschedulingHistory
	if history == nil {
		history = []ReschedulingRecord{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal rescheduling history: %w", err)
	}
	return []any{
		a.ID, a.OrgID, nullable(a.StaffID), nullable(a.ResourceID), client, service, a.Datetime,
		a.Duration, string(a.Status), string(a.AssignmentType), nullable(a.ReservationToken), cancellation,
		historyJSON, a.Notes, a.CreatedAt, a.UpdatedAt, a.Date(),
	}, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                                Appointment
		staffID, resourceID, token       *string
		client, service, cancel, history []byte
		status, assignmentType           string
		createdAt, updatedAt             time.Time
	)
	if err := row.Scan(&a.ID, &a.OrgID, &staffID, &resourceID, &client, &service, &a.Datetime,
		&a.Duration, &status, &assignmentType, &token, &cancel,
		&history, &a.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.StaffID = deref(staffID)
	a.ResourceID = deref(resourceID)
	a.ReservationToken = deref(token)
	a.Status = Status(status)
	a.AssignmentType = assignment.Type(assignmentType)
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	if err := json.Unmarshal(client, &a.ClientInfo); err != nil {
		return nil, fmt.Errorf("decode client info: %w", err)
	}
	if err := json.Unmarshal(service, &a.ServiceInfo); err != nil {
		return nil, fmt.Errorf("decode service info: %w", err)
	}
	if len(cancel) > 0 {
		var info CancellationInfo
		if err := json.Unmarshal(cancel, &info); err != nil {
			return nil, fmt.Errorf("decode cancellation info: %w", err)
		}
		a.CancellationInfo = &info
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.ReschedulingHistory); err != nil {
			return nil, fmt.Errorf("decode rescheduling history: %w", err)
		}
	}
	return &a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
