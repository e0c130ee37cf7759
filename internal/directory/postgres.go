package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	staffColumns    = `id, org_id, name, role, specialties, schedule, is_active`
	resourceColumns = `id, org_id, name, type, staff_requirements, schedule, is_active`
)

// PostgresRepository stores staff and resources in Postgres.
type PostgresRepository struct {
	db DB
}

var _ Directory = (*PostgresRepository)(nil)

func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("directory: db cannot be nil")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetStaff(ctx context.Context, orgID, staffID string) (*Staff, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE org_id = $1 AND id = $2`, orgID, staffID)
	s, err := scanStaff(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get staff: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListStaff(ctx context.Context, orgID string, activeOnly bool) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE org_id = $1 AND (NOT $2 OR is_active)
		ORDER BY created_at ASC, id ASC`, orgID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("directory: list staff: %w", err)
	}
	defer rows.Close()
	return collectStaff(rows)
}

func (r *PostgresRepository) ListStaffByRole(ctx context.Context, orgID, role string) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE org_id = $1 AND role = $2 AND is_active
		ORDER BY created_at ASC, id ASC`, orgID, role)
	if err != nil {
		return nil, fmt.Errorf("directory: list staff by role: %w", err)
	}
	defer rows.Close()
	return collectStaff(rows)
}

func (r *PostgresRepository) ListStaffBySpecialty(ctx context.Context, orgID, specialty string) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE org_id = $1 AND $2 = ANY(specialties) AND is_active
		ORDER BY created_at ASC, id ASC`, orgID, specialty)
	if err != nil {
		return nil, fmt.Errorf("directory: list staff by specialty: %w", err)
	}
	defer rows.Close()
	return collectStaff(rows)
}

func (r *PostgresRepository) UpsertStaff(ctx context.Context, s *Staff) error {
	if err := ValidateStaff(s); err != nil {
		return err
	}
	sched, err := json.Marshal(s.Schedule)
	if err != nil {
		return fmt.Errorf("directory: marshal schedule: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO staff (id, org_id, name, role, specialties, schedule, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			specialties = EXCLUDED.specialties,
			schedule = EXCLUDED.schedule,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		s.ID, s.OrgID, s.Name, s.Role, s.Specialties, sched, s.IsActive)
	if err != nil {
		return fmt.Errorf("directory: upsert staff: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetResource(ctx context.Context, orgID, resourceID string) (*Resource, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		WHERE org_id = $1 AND id = $2`, orgID, resourceID)
	res, err := scanResource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get resource: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) ListResources(ctx context.Context, orgID string, activeOnly bool) ([]Resource, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		WHERE org_id = $1 AND (NOT $2 OR is_active)
		ORDER BY created_at ASC, id ASC`, orgID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("directory: list resources: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

func (r *PostgresRepository) ListResourcesByType(ctx context.Context, orgID, resourceType string) ([]Resource, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		WHERE org_id = $1 AND type = $2 AND is_active
		ORDER BY created_at ASC, id ASC`, orgID, resourceType)
	if err != nil {
		return nil, fmt.Errorf("directory: list resources by type: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

func (r *PostgresRepository) UpsertResource(ctx context.Context, res *Resource) error {
	if err := ValidateResource(res); err != nil {
		return err
	}
	sched, err := json.Marshal(res.Schedule)
	if err != nil {
		return fmt.Errorf("directory: marshal schedule: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO resources (id, org_id, name, type, staff_requirements, schedule, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			staff_requirements = EXCLUDED.staff_requirements,
			schedule = EXCLUDED.schedule,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		res.ID, res.OrgID, res.Name, res.Type, res.StaffRequirements, sched, res.IsActive)
	if err != nil {
		return fmt.Errorf("directory: upsert resource: %w", err)
	}
	return nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	var sched []byte
	if err := row.Scan(&s.ID, &s.OrgID, &s.Name, &s.Role, &s.Specialties, &sched, &s.IsActive); err != nil {
		return nil, err
	}
	if len(sched) > 0 {
		if err := json.Unmarshal(sched, &s.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule for staff %s: %w", s.ID, err)
		}
	}
	return &s, nil
}

func collectStaff(rows pgx.Rows) ([]Staff, error) {
	var out []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan staff: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate staff: %w", err)
	}
	return out, nil
}

func scanResource(row pgx.Row) (*Resource, error) {
	var res Resource
	var sched []byte
	if err := row.Scan(&res.ID, &res.OrgID, &res.Name, &res.Type, &res.StaffRequirements, &sched, &res.IsActive); err != nil {
		return nil, err
	}
	if len(sched) > 0 {
		if err := json.Unmarshal(sched, &res.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule for resource %s: %w", res.ID, err)
		}
	}
	return &res, nil
}

func collectResources(rows pgx.Rows) ([]Resource, error) {
	var out []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan resource: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate resources: %w", err)
	}
	return out, nil
}
