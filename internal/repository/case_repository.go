package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const caseColumns = `
	id, attorney_id, title, admin_status, attorney_status, scheduled_date, scheduled_time,
	timezone_offset_minutes, state_code, required_jurors, reschedule_required,
	created_at, updated_at, deleted_at`

type CaseRepository struct {
	db *base.Repository
}

func NewCaseRepository(db *base.Repository) *CaseRepository {
	return &CaseRepository{db: db}
}

func scanCase(row pgx.Row) (*model.Case, error) {
	var c model.Case
	err := row.Scan(
		&c.ID,
		&c.AttorneyID,
		&c.Title,
		&c.AdminStatus,
		&c.AttorneyStatus,
		&c.ScheduledDate,
		&c.ScheduledTime,
		&c.TimezoneOffsetMinutes,
		&c.StateCode,
		&c.RequiredJurors,
		&c.RescheduleRequired,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create сохраняет новый кейс
func (r *CaseRepository) Create(ctx context.Context, c *model.Case) error {
	query := `
		INSERT INTO cases (attorney_id, title, admin_status, attorney_status, scheduled_date, scheduled_time,
		                   timezone_offset_minutes, state_code, required_jurors, reschedule_required)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.AttorneyID,
		c.Title,
		c.AdminStatus,
		c.AttorneyStatus,
		c.ScheduledDate,
		c.ScheduledTime,
		c.TimezoneOffsetMinutes,
		c.StateCode,
		c.RequiredJurors,
		c.RescheduleRequired,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create case: %w", err)
	}

	return nil
}

// GetByID получает не удалённый кейс по ID
func (r *CaseRepository) GetByID(ctx context.Context, id int64) (*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 AND deleted_at IS NULL`

	c, err := scanCase(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get case by id: %w", err)
	}

	return c, nil
}

// FindApprovedAtSlot ищет другой одобренный активный кейс на точно такой же дате и времени
func (r *CaseRepository) FindApprovedAtSlot(ctx context.Context, slot model.Slot, excludeID int64) (*model.Case, error) {
	query := `SELECT ` + caseColumns + `
		FROM cases
		WHERE scheduled_date = $1
		  AND scheduled_time = $2
		  AND admin_status = 'approved'
		  AND attorney_status <> 'cancelled'
		  AND deleted_at IS NULL
		  AND id <> $3
		LIMIT 1
	`

	c, err := scanCase(r.db.QueryRow(ctx, query, slot.Date, slot.Time, excludeID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find case at slot: %w", err)
	}

	return c, nil
}

// Update записывает статусы, расписание и флаг переноса
func (r *CaseRepository) Update(ctx context.Context, c *model.Case) error {
	query := `
		UPDATE cases
		SET admin_status = $1,
		    attorney_status = $2,
		    scheduled_date = $3,
		    scheduled_time = $4,
		    reschedule_required = $5,
		    updated_at = NOW()
		WHERE id = $6 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.AdminStatus,
		c.AttorneyStatus,
		c.ScheduledDate,
		c.ScheduledTime,
		c.RescheduleRequired,
		c.ID,
	).Scan(&c.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("case not found")
		}
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("update case: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("update case: %w", err)
	}

	return nil
}

// SoftDelete помечает кейс удалённым
func (r *CaseRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE cases SET deleted_at = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("soft delete case: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("case not found")
	}

	return nil
}

// ListByAttorney получает кейсы адвоката
func (r *CaseRepository) ListByAttorney(ctx context.Context, attorneyID int64) ([]*model.Case, error) {
	query := `SELECT ` + caseColumns + `
		FROM cases
		WHERE attorney_id = $1 AND deleted_at IS NULL
		ORDER BY scheduled_date, scheduled_time
	`
	return r.list(ctx, query, attorneyID)
}

// ListByJuror получает кейсы, где заявка присяжного одобрена
func (r *CaseRepository) ListByJuror(ctx context.Context, jurorID int64) ([]*model.Case, error) {
	query := `SELECT ` + prefixed("c", caseColumns) + `
		FROM cases c
		JOIN juror_applications a ON a.case_id = c.id
		WHERE a.juror_id = $1 AND a.status = 'approved' AND c.deleted_at IS NULL
		ORDER BY c.scheduled_date, c.scheduled_time
	`
	return r.list(ctx, query, jurorID)
}

func (r *CaseRepository) list(ctx context.Context, query string, args ...any) ([]*model.Case, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []*model.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}
