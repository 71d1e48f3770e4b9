package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const participantColumns = `id, meeting_id, user_id, user_type, display_name, external_identity, joined_at, left_at, removed_at`

type ParticipantRepository struct {
	db *base.Repository
}

func NewParticipantRepository(db *base.Repository) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func scanParticipant(row pgx.Row) (*model.Participant, error) {
	var p model.Participant
	err := row.Scan(&p.ID, &p.MeetingID, &p.UserID, &p.UserType, &p.DisplayName, &p.ExternalIdentity, &p.JoinedAt, &p.LeftAt, &p.RemovedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create сохраняет новое активное подключение; второе активное для того же ключа даёт base.ErrDuplicate
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	query := `
		INSERT INTO trial_participants (meeting_id, user_id, user_type, display_name, external_identity, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, p.MeetingID, p.UserID, p.UserType, p.DisplayName, p.ExternalIdentity, p.JoinedAt).Scan(&p.ID)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create participant: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("create participant: %w", err)
	}

	return nil
}

// GetActive получает активное подключение пользователя к встрече
func (r *ParticipantRepository) GetActive(ctx context.Context, meetingID, userID int64, userType model.UserType) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM trial_participants
		WHERE meeting_id = $1 AND user_id = $2 AND user_type = $3
		  AND left_at IS NULL AND removed_at IS NULL
		ORDER BY joined_at DESC
		LIMIT 1
	`

	p, err := scanParticipant(r.db.QueryRow(ctx, query, meetingID, userID, userType))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active participant: %w", err)
	}

	return p, nil
}

// MarkLeft закрывает подключение как покинутое
func (r *ParticipantRepository) MarkLeft(ctx context.Context, id int64, at time.Time) error {
	return r.close(ctx, `UPDATE trial_participants SET left_at = $1 WHERE id = $2 AND left_at IS NULL AND removed_at IS NULL`, id, at)
}

// MarkRemoved закрывает подключение как удалённое
func (r *ParticipantRepository) MarkRemoved(ctx context.Context, id int64, at time.Time) error {
	return r.close(ctx, `UPDATE trial_participants SET removed_at = $1 WHERE id = $2 AND left_at IS NULL AND removed_at IS NULL`, id, at)
}

func (r *ParticipantRepository) close(ctx context.Context, query string, id int64, at time.Time) error {
	if _, err := r.db.ExecAffected(ctx, query, at, id); err != nil {
		return fmt.Errorf("close participant: %w", err)
	}
	return nil
}

// ListActive получает активные подключения встречи
func (r *ParticipantRepository) ListActive(ctx context.Context, meetingID int64) ([]*model.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM trial_participants
		WHERE meeting_id = $1 AND left_at IS NULL AND removed_at IS NULL
		ORDER BY joined_at
	`

	rows, err := r.db.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list active participants: %w", err)
	}
	defer rows.Close()

	var participants []*model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// CloseAllActive помечает все активные подключения встречи покинутыми
func (r *ParticipantRepository) CloseAllActive(ctx context.Context, meetingID int64, at time.Time) (int64, error) {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE trial_participants SET left_at = $1 WHERE meeting_id = $2 AND left_at IS NULL AND removed_at IS NULL`,
		at, meetingID,
	)
	if err != nil {
		return 0, fmt.Errorf("close active participants: %w", err)
	}
	return affected, nil
}
