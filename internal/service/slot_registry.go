package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"go.uber.org/zap"
)

// SlotAvailability answers whether a slot can take a case.
type SlotAvailability struct {
	Available       bool
	ConflictingCase *model.Case
	Block           *model.SlotBlock
}

// ConflictingCaseID returns the holder of the slot, or 0.
func (a *SlotAvailability) ConflictingCaseID() int64 {
	if a.ConflictingCase == nil {
		return 0
	}
	return a.ConflictingCase.ID
}

// unavailableErr turns a negative answer into a conflict error.
func (a *SlotAvailability) unavailableErr(slot model.Slot) error {
	if a.ConflictingCase != nil {
		return apperr.SlotUnavailable(a.ConflictingCase.ID)
	}
	e := apperr.SlotUnavailable(0)
	e.Message = fmt.Sprintf("slot %s is blocked", slot)
	if a.Block != nil && a.Block.Reason != "" {
		e.Message += ": " + a.Block.Reason
	}
	return e
}

// SlotRegistry knows which (date, time) pairs are taken by approved cases or
// closed by administrators. Slots are compared exactly as stored.
type SlotRegistry struct {
	cases       CaseStore
	blocks      SlotBlockStore
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewSlotRegistry(cases CaseStore, blocks SlotBlockStore, broadcaster Broadcaster, logger *zap.Logger) *SlotRegistry {
	return &SlotRegistry{
		cases:       cases,
		blocks:      blocks,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// IsSlotAvailable checks the slot against approved cases and admin blocks.
// excludeCaseID lets a case check its own slot; pass 0 to exclude nothing.
func (r *SlotRegistry) IsSlotAvailable(ctx context.Context, slot model.Slot, excludeCaseID int64) (*SlotAvailability, error) {
	if err := slot.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	holder, err := r.cases.FindApprovedAtSlot(ctx, slot, excludeCaseID)
	if err != nil {
		return nil, fmt.Errorf("find approved case at slot: %w", err)
	}
	if holder != nil {
		return &SlotAvailability{Available: false, ConflictingCase: holder}, nil
	}

	block, err := r.blocks.FindCovering(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("find slot block: %w", err)
	}
	if block != nil {
		return &SlotAvailability{Available: false, Block: block}, nil
	}

	return &SlotAvailability{Available: true}, nil
}

// BlockSlot closes a whole day (tm == nil) or one time on it. Blocking the
// same pair twice returns the existing block.
func (r *SlotRegistry) BlockSlot(ctx context.Context, adminID int64, date string, tm *string, reason string) (*model.SlotBlock, error) {
	if err := validateBlock(date, tm); err != nil {
		return nil, err
	}

	block := &model.SlotBlock{
		Date:      date,
		Time:      tm,
		Reason:    reason,
		CreatedBy: adminID,
	}
	created, err := r.blocks.Create(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("create slot block: %w", err)
	}
	if !created {
		existing, err := r.blocks.GetExact(ctx, date, tm)
		if err != nil {
			return nil, fmt.Errorf("get slot block: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
		// удалили между вставкой и чтением, отдаём то, что собирались создать
		return block, nil
	}

	r.logger.Info("Slot blocked",
		zap.String("date", date),
		zap.String("time", blockTime(tm)),
		zap.Int64("admin_id", adminID),
	)
	r.broadcast(ctx, model.NotificationSlotBlocked, "Trial slot blocked",
		fmt.Sprintf("%s is no longer available for trials. %s", describeBlock(date, tm), reason))

	return block, nil
}

// UnblockSlot reopens a block. Removing a block that does not exist succeeds.
func (r *SlotRegistry) UnblockSlot(ctx context.Context, date string, tm *string) (bool, error) {
	if err := validateBlock(date, tm); err != nil {
		return false, err
	}

	removed, err := r.blocks.Delete(ctx, date, tm)
	if err != nil {
		return false, fmt.Errorf("delete slot block: %w", err)
	}
	if removed == 0 {
		return false, nil
	}

	r.logger.Info("Slot unblocked", zap.String("date", date), zap.String("time", blockTime(tm)))
	r.broadcast(ctx, model.NotificationSlotUnblocked, "Trial slot reopened",
		fmt.Sprintf("%s is available for trials again.", describeBlock(date, tm)))

	return true, nil
}

// ListBlocks returns blocks with from <= date <= to.
func (r *SlotRegistry) ListBlocks(ctx context.Context, from, to string) ([]*model.SlotBlock, error) {
	if err := (model.Slot{Date: from, Time: "00:00"}).Validate(); err != nil {
		return nil, apperr.Validation("from: %s", err.Error())
	}
	if err := (model.Slot{Date: to, Time: "00:00"}).Validate(); err != nil {
		return nil, apperr.Validation("to: %s", err.Error())
	}
	if to < from {
		return nil, apperr.Validation("to must not be before from")
	}

	blocks, err := r.blocks.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slot blocks: %w", err)
	}
	return blocks, nil
}

func (r *SlotRegistry) broadcast(ctx context.Context, typ, title, message string) {
	if r.broadcaster == nil {
		return
	}
	n := model.Notification{Type: typ, Title: title, Message: message}
	if _, err := r.broadcaster.Broadcast(ctx, n, model.UserTypeAttorney, model.UserTypeJuror); err != nil {
		r.logger.Warn("Failed to broadcast slot change", zap.String("type", typ), zap.Error(err))
	}
}

func validateBlock(date string, tm *string) error {
	slot := model.Slot{Date: date, Time: "00:00"}
	if tm != nil {
		slot.Time = *tm
	}
	if err := slot.Validate(); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

func blockTime(tm *string) string {
	if tm == nil {
		return "whole day"
	}
	return *tm
}

func describeBlock(date string, tm *string) string {
	if tm == nil {
		return date
	}
	return date + " " + *tm
}
