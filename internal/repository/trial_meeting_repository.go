package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type TrialMeetingRepository struct {
	db *base.Repository
}

func NewTrialMeetingRepository(db *base.Repository) *TrialMeetingRepository {
	return &TrialMeetingRepository{db: db}
}

const meetingColumns = `id, case_id, room_id, chat_thread_id, chat_service_identity, status, valid_until, created_at, updated_at`

func scanMeeting(row pgx.Row) (*model.TrialMeeting, error) {
	var m model.TrialMeeting
	err := row.Scan(&m.ID, &m.CaseID, &m.RoomID, &m.ChatThreadID, &m.ChatServiceIdentity, &m.Status, &m.ValidUntil, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create сохраняет встречу; если у кейса она уже есть, возвращает created=false
func (r *TrialMeetingRepository) Create(ctx context.Context, m *model.TrialMeeting) (bool, error) {
	query := `
		INSERT INTO trial_meetings (case_id, room_id, chat_thread_id, chat_service_identity, status, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (case_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, m.CaseID, m.RoomID, m.ChatThreadID, m.ChatServiceIdentity, m.Status, m.ValidUntil).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create trial meeting: %w", err)
	}

	return true, nil
}

// GetByCaseID получает встречу кейса
func (r *TrialMeetingRepository) GetByCaseID(ctx context.Context, caseID int64) (*model.TrialMeeting, error) {
	query := `SELECT ` + meetingColumns + `
		FROM trial_meetings
		WHERE case_id = $1
	`

	m, err := scanMeeting(r.db.QueryRow(ctx, query, caseID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trial meeting by case: %w", err)
	}

	return m, nil
}

// TransitionStatus меняет статус, только если текущий равен from; возвращает, произошла ли смена
func (r *TrialMeetingRepository) TransitionStatus(ctx context.Context, id int64, from, to model.MeetingStatus) (bool, error) {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE trial_meetings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition trial meeting status: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus безусловно выставляет статус
func (r *TrialMeetingRepository) UpdateStatus(ctx context.Context, id int64, status model.MeetingStatus) error {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE trial_meetings SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update trial meeting status: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("trial meeting not found")
	}

	return nil
}

// ReplaceRoom переводит встречу в новую комнату провайдера
func (r *TrialMeetingRepository) ReplaceRoom(ctx context.Context, m *model.TrialMeeting) error {
	query := `
		UPDATE trial_meetings
		SET room_id = $2, chat_thread_id = $3, chat_service_identity = $4, status = $5, valid_until = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, m.ID, m.RoomID, m.ChatThreadID, m.ChatServiceIdentity, m.Status, m.ValidUntil).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("trial meeting not found")
		}
		return fmt.Errorf("replace trial meeting room: %w", err)
	}

	return nil
}

// ListWithStaleParticipants получает завершённые и списанные встречи, где кто-то ещё числится активным
func (r *TrialMeetingRepository) ListWithStaleParticipants(ctx context.Context) ([]*model.TrialMeeting, error) {
	query := `SELECT ` + prefixed("m", meetingColumns) + `
		FROM trial_meetings m
		WHERE m.status IN ('completed', 'retired')
		  AND EXISTS (
			SELECT 1 FROM trial_participants p
			WHERE p.meeting_id = m.id AND p.left_at IS NULL AND p.removed_at IS NULL
		  )
		ORDER BY m.updated_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trial meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*model.TrialMeeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial meeting: %w", err)
		}
		meetings = append(meetings, m)
	}

	return meetings, rows.Err()
}
