package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type JurorApplicationRepository struct {
	db *base.Repository
}

func NewJurorApplicationRepository(db *base.Repository) *JurorApplicationRepository {
	return &JurorApplicationRepository{db: db}
}

func scanApplication(row pgx.Row) (*model.JurorApplication, error) {
	var a model.JurorApplication
	err := row.Scan(&a.ID, &a.CaseID, &a.JurorID, &a.Status, &a.AppliedAt, &a.ReviewedAt, &a.ReviewedBy)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create создаёт заявку присяжного; повторная заявка на тот же кейс даёт base.ErrDuplicate
func (r *JurorApplicationRepository) Create(ctx context.Context, a *model.JurorApplication) error {
	query := `
		INSERT INTO juror_applications (case_id, juror_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, applied_at
	`

	err := r.db.QueryRow(ctx, query, a.CaseID, a.JurorID, a.Status).Scan(&a.ID, &a.AppliedAt)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create application: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("create application: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *JurorApplicationRepository) GetByID(ctx context.Context, id int64) (*model.JurorApplication, error) {
	query := `
		SELECT id, case_id, juror_id, status, applied_at, reviewed_at, reviewed_by
		FROM juror_applications
		WHERE id = $1
	`

	a, err := scanApplication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application by id: %w", err)
	}

	return a, nil
}

// GetByCaseAndJuror получает заявку присяжного на кейс
func (r *JurorApplicationRepository) GetByCaseAndJuror(ctx context.Context, caseID, jurorID int64) (*model.JurorApplication, error) {
	query := `
		SELECT id, case_id, juror_id, status, applied_at, reviewed_at, reviewed_by
		FROM juror_applications
		WHERE case_id = $1 AND juror_id = $2
	`

	a, err := scanApplication(r.db.QueryRow(ctx, query, caseID, jurorID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application by case and juror: %w", err)
	}

	return a, nil
}

// CountApproved подсчитывает одобренные заявки кейса
func (r *JurorApplicationRepository) CountApproved(ctx context.Context, caseID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM juror_applications WHERE case_id = $1 AND status = 'approved'`,
		caseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved applications: %w", err)
	}
	return count, nil
}

// ListByCase получает все заявки кейса
func (r *JurorApplicationRepository) ListByCase(ctx context.Context, caseID int64) ([]*model.JurorApplication, error) {
	query := `
		SELECT id, case_id, juror_id, status, applied_at, reviewed_at, reviewed_by
		FROM juror_applications
		WHERE case_id = $1
		ORDER BY applied_at
	`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.JurorApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}

	return apps, rows.Err()
}

// UpdateStatus обновляет статус заявки и того, кто её рассмотрел
func (r *JurorApplicationRepository) UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus, reviewerID *int64, at time.Time) error {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE juror_applications SET status = $1, reviewed_by = $2, reviewed_at = $3 WHERE id = $4`,
		status, reviewerID, at, id,
	)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("application not found")
	}

	return nil
}

// DeleteByCase удаляет все заявки кейса (любой статус)
func (r *JurorApplicationRepository) DeleteByCase(ctx context.Context, caseID int64) (int64, error) {
	affected, err := r.db.ExecAffected(ctx, `DELETE FROM juror_applications WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("delete applications by case: %w", err)
	}
	return affected, nil
}
