package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type SlotBlockRepository struct {
	db *base.Repository
}

func NewSlotBlockRepository(db *base.Repository) *SlotBlockRepository {
	return &SlotBlockRepository{db: db}
}

func scanSlotBlock(row pgx.Row) (*model.SlotBlock, error) {
	var b model.SlotBlock
	if err := row.Scan(&b.ID, &b.Date, &b.Time, &b.Reason, &b.CreatedBy, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create создаёт блокировку; если такая уже есть, возвращает created=false
func (r *SlotBlockRepository) Create(ctx context.Context, b *model.SlotBlock) (bool, error) {
	query := `
		INSERT INTO slot_blocks (block_date, block_time, reason, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, b.Date, b.Time, b.Reason, b.CreatedBy).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create slot block: %w", err)
	}

	return true, nil
}

// GetExact получает блокировку ровно для этой даты и времени (nil время - весь день)
func (r *SlotBlockRepository) GetExact(ctx context.Context, date string, tm *string) (*model.SlotBlock, error) {
	query := `
		SELECT id, block_date, block_time, reason, created_by, created_at
		FROM slot_blocks
		WHERE block_date = $1 AND COALESCE(block_time, '') = COALESCE($2, '')
	`

	b, err := scanSlotBlock(r.db.QueryRow(ctx, query, date, tm))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot block: %w", err)
	}

	return b, nil
}

// FindCovering ищет блокировку всего дня или конкретного времени слота
func (r *SlotBlockRepository) FindCovering(ctx context.Context, slot model.Slot) (*model.SlotBlock, error) {
	query := `
		SELECT id, block_date, block_time, reason, created_by, created_at
		FROM slot_blocks
		WHERE block_date = $1 AND (block_time IS NULL OR block_time = $2)
		ORDER BY block_time NULLS FIRST
		LIMIT 1
	`

	b, err := scanSlotBlock(r.db.QueryRow(ctx, query, slot.Date, slot.Time))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find covering slot block: %w", err)
	}

	return b, nil
}

// Delete удаляет блокировку, возвращает число удалённых строк
func (r *SlotBlockRepository) Delete(ctx context.Context, date string, tm *string) (int64, error) {
	affected, err := r.db.ExecAffected(ctx,
		`DELETE FROM slot_blocks WHERE block_date = $1 AND COALESCE(block_time, '') = COALESCE($2, '')`,
		date, tm,
	)
	if err != nil {
		return 0, fmt.Errorf("delete slot block: %w", err)
	}
	return affected, nil
}

// ListBetween получает блокировки в диапазоне дат включительно
func (r *SlotBlockRepository) ListBetween(ctx context.Context, from, to string) ([]*model.SlotBlock, error) {
	query := `
		SELECT id, block_date, block_time, reason, created_by, created_at
		FROM slot_blocks
		WHERE block_date >= $1 AND block_date <= $2
		ORDER BY block_date, block_time NULLS FIRST
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slot blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*model.SlotBlock
	for rows.Next() {
		b, err := scanSlotBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot block: %w", err)
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}
