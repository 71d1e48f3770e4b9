package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const rescheduleColumns = `
	id, case_id, initiator, initiated_by, original_date, original_time, alternate_slots,
	proposed_date, proposed_time, selected_date, selected_time, status, reason,
	attorney_comments, admin_comments, attorney_response, resolved_by, created_at, resolved_at`

type RescheduleRequestRepository struct {
	db *base.Repository
}

func NewRescheduleRequestRepository(db *base.Repository) *RescheduleRequestRepository {
	return &RescheduleRequestRepository{db: db}
}

func scanRescheduleRequest(row pgx.Row) (*model.RescheduleRequest, error) {
	var (
		req                        model.RescheduleRequest
		alternates                 []byte
		proposedDate, proposedTime *string
		selectedDate, selectedTime *string
	)

	err := row.Scan(
		&req.ID,
		&req.CaseID,
		&req.Initiator,
		&req.InitiatedBy,
		&req.OriginalSlot.Date,
		&req.OriginalSlot.Time,
		&alternates,
		&proposedDate,
		&proposedTime,
		&selectedDate,
		&selectedTime,
		&req.Status,
		&req.Reason,
		&req.AttorneyComments,
		&req.AdminComments,
		&req.AttorneyResponse,
		&req.ResolvedBy,
		&req.CreatedAt,
		&req.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(alternates) > 0 {
		if err := json.Unmarshal(alternates, &req.AlternateSlots); err != nil {
			return nil, fmt.Errorf("decode alternate slots: %w", err)
		}
	}
	req.ProposedSlot = optionalSlot(proposedDate, proposedTime)
	req.SelectedSlot = optionalSlot(selectedDate, selectedTime)

	return &req, nil
}

func optionalSlot(date, tm *string) *model.Slot {
	if date == nil || tm == nil {
		return nil
	}
	return &model.Slot{Date: *date, Time: *tm}
}

func slotParts(s *model.Slot) (*string, *string) {
	if s == nil {
		return nil, nil
	}
	return &s.Date, &s.Time
}

// Create создаёт запрос на перенос; второй pending запрос по кейсу даёт base.ErrDuplicate
func (r *RescheduleRequestRepository) Create(ctx context.Context, req *model.RescheduleRequest) error {
	alternates, err := json.Marshal(nonNilSlots(req.AlternateSlots))
	if err != nil {
		return fmt.Errorf("encode alternate slots: %w", err)
	}
	proposedDate, proposedTime := slotParts(req.ProposedSlot)

	query := `
		INSERT INTO reschedule_requests (case_id, initiator, initiated_by, original_date, original_time,
		                                 alternate_slots, proposed_date, proposed_time, status, reason,
		                                 attorney_comments, admin_comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	err = r.db.QueryRow(
		ctx, query,
		req.CaseID,
		req.Initiator,
		req.InitiatedBy,
		req.OriginalSlot.Date,
		req.OriginalSlot.Time,
		alternates,
		proposedDate,
		proposedTime,
		req.Status,
		req.Reason,
		req.AttorneyComments,
		req.AdminComments,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create reschedule request: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("create reschedule request: %w", err)
	}

	return nil
}

// GetByID получает запрос по ID
func (r *RescheduleRequestRepository) GetByID(ctx context.Context, id int64) (*model.RescheduleRequest, error) {
	query := `SELECT ` + rescheduleColumns + ` FROM reschedule_requests WHERE id = $1`

	req, err := scanRescheduleRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reschedule request by id: %w", err)
	}

	return req, nil
}

// GetPendingByCase получает pending запрос кейса, если он есть
func (r *RescheduleRequestRepository) GetPendingByCase(ctx context.Context, caseID int64) (*model.RescheduleRequest, error) {
	query := `SELECT ` + rescheduleColumns + `
		FROM reschedule_requests
		WHERE case_id = $1 AND status = 'pending'
		LIMIT 1
	`

	req, err := scanRescheduleRequest(r.db.QueryRow(ctx, query, caseID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending reschedule request: %w", err)
	}

	return req, nil
}

// Update записывает изменяемые поля запроса
func (r *RescheduleRequestRepository) Update(ctx context.Context, req *model.RescheduleRequest) error {
	alternates, err := json.Marshal(nonNilSlots(req.AlternateSlots))
	if err != nil {
		return fmt.Errorf("encode alternate slots: %w", err)
	}
	selectedDate, selectedTime := slotParts(req.SelectedSlot)

	query := `
		UPDATE reschedule_requests
		SET alternate_slots = $1,
		    selected_date = $2,
		    selected_time = $3,
		    status = $4,
		    attorney_comments = $5,
		    admin_comments = $6,
		    attorney_response = $7,
		    resolved_by = $8,
		    resolved_at = $9
		WHERE id = $10
	`

	affected, err := r.db.ExecAffected(
		ctx, query,
		alternates,
		selectedDate,
		selectedTime,
		req.Status,
		req.AttorneyComments,
		req.AdminComments,
		req.AttorneyResponse,
		req.ResolvedBy,
		req.ResolvedAt,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("update reschedule request: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("reschedule request not found")
	}

	return nil
}

// ListPending получает все pending запросы, старые первыми
func (r *RescheduleRequestRepository) ListPending(ctx context.Context) ([]*model.RescheduleRequest, error) {
	query := `SELECT ` + rescheduleColumns + `
		FROM reschedule_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending reschedule requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.RescheduleRequest
	for rows.Next() {
		req, err := scanRescheduleRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reschedule request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func nonNilSlots(slots []model.Slot) []model.Slot {
	if slots == nil {
		return []model.Slot{}
	}
	return slots
}
