package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/casestate"
	"github.com/Freeeeeet/trial_scheduler/internal/lock"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/notify"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"go.uber.org/zap"
)

// transitioner is the only writer of case statuses. Services that move a case
// share one so every move goes through casestate.Decide.
type transitioner struct {
	cases    CaseStore
	notifier notify.Sink
	logger   *zap.Logger
}

func (t *transitioner) loadCase(ctx context.Context, caseID int64) (*model.Case, error) {
	c, err := t.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, apperr.NotFound(apperr.CodeCaseNotFound, "case %d not found", caseID)
	}
	return c, nil
}

// apply decides ev for c, writes the result and returns the decision.
// A refused decision comes back together with an INVALID_TRANSITION error.
func (t *transitioner) apply(ctx context.Context, c *model.Case, ev casestate.Event, facts casestate.Facts) (casestate.Decision, error) {
	d := casestate.Decide(casestate.Of(c), ev, facts)
	if !d.Valid {
		return d, refusal(d)
	}

	casestate.Apply(c, d)
	if err := t.save(ctx, c); err != nil {
		return d, err
	}

	t.logger.Info("Case status changed",
		zap.Int64("case_id", c.ID),
		zap.String("event", string(ev)),
		zap.String("from", string(d.From)),
		zap.String("to", string(d.To)),
	)
	return d, nil
}

// save writes the case, turning a lost slot race into SLOT_UNAVAILABLE.
func (t *transitioner) save(ctx context.Context, c *model.Case) error {
	err := t.cases.Update(ctx, c)
	if err == nil {
		return nil
	}
	if errors.Is(err, base.ErrDuplicate) {
		return t.slotTaken(ctx, c)
	}
	return fmt.Errorf("update case: %w", err)
}

func (t *transitioner) slotTaken(ctx context.Context, c *model.Case) error {
	holder, err := t.cases.FindApprovedAtSlot(ctx, c.Slot(), c.ID)
	if err != nil {
		return fmt.Errorf("find slot holder: %w", err)
	}
	var holderID int64
	if holder != nil {
		holderID = holder.ID
	}
	return apperr.SlotUnavailable(holderID)
}

// announce tells the attorney about an applied transition.
func (t *transitioner) announce(ctx context.Context, c *model.Case, d casestate.Decision, note string) {
	typ := model.NotificationCaseStatusChanged
	title := fmt.Sprintf("Case %q is now %s", c.Title, d.To)
	switch d.To {
	case casestate.StatusWarRoom:
		if d.From == casestate.StatusPending {
			typ = model.NotificationCaseApproved
			title = fmt.Sprintf("Case %q approved", c.Title)
		}
	case casestate.StatusRejected:
		typ = model.NotificationCaseRejected
		title = fmt.Sprintf("Case %q rejected", c.Title)
	case casestate.StatusViewDetails:
		typ = model.NotificationTrialEnded
		title = fmt.Sprintf("Trial for %q has ended", c.Title)
	}

	deliver(ctx, t.notifier, t.logger, notify.ForCase(c.AttorneyID, model.UserTypeAttorney, c.ID, typ, title, note))
}

// closePendingReschedule resolves the case's open request after the case left
// the negotiation some other way. Runs in the caller's transaction.
func closePendingReschedule(ctx context.Context, requests RescheduleStore, caseID, resolvedBy int64, at time.Time) (*model.RescheduleRequest, error) {
	req, err := requests.GetPendingByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get pending reschedule: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	req.Status = model.RequestStatusClosed
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &at
	if err := requests.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("close reschedule request: %w", err)
	}
	return req, nil
}

func refusal(d casestate.Decision) error {
	return apperr.Policy(apperr.CodeInvalidTransition, "%s", d.Message)
}

// deliver sends n and only logs a failure. Notifications never fail the operation.
func deliver(ctx context.Context, sink notify.Sink, logger *zap.Logger, n model.Notification) {
	if sink == nil {
		return
	}
	if err := sink.Notify(ctx, n); err != nil {
		logger.Warn("Failed to deliver notification",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
	}
}

func withLock(ctx context.Context, locker lock.Locker, key string, fn func() error) error {
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer release()
	return fn()
}

// joinWindowOpen reports whether now is at or past start minus lead, where
// start is read in the case's stored offset.
func joinWindowOpen(c *model.Case, now time.Time, lead time.Duration) (bool, error) {
	if !c.HasSchedule() {
		return false, nil
	}
	start, err := c.StartsAt()
	if err != nil {
		return false, err
	}
	return !now.Before(start.Add(-lead)), nil
}

// refreshJoinWindow moves an awaiting_trial case to join_trial once its
// window opened. There is no background clock: reads call this lazily.
func (t *transitioner) refreshJoinWindow(ctx context.Context, c *model.Case, now time.Time, lead time.Duration) error {
	if casestate.Of(c) != casestate.StatusAwaitingTrial {
		return nil
	}
	open, err := joinWindowOpen(c, now, lead)
	if err != nil {
		return fmt.Errorf("resolve case start: %w", err)
	}
	if !open {
		return nil
	}

	d, err := t.apply(ctx, c, casestate.EventOpenJoinWindow, casestate.Facts{JoinWindowOpen: true})
	if err != nil {
		return err
	}
	t.logger.Debug("Join window opened", zap.Int64("case_id", c.ID), zap.String("to", string(d.To)))
	deliver(ctx, t.notifier, t.logger, notify.ForCase(c.AttorneyID, model.UserTypeAttorney, c.ID,
		model.NotificationTrialReady, fmt.Sprintf("Trial for %q can be joined", c.Title),
		"The trial room is open for joining."))
	return nil
}
