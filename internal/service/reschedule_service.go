package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/casestate"
	"github.com/Freeeeeet/trial_scheduler/internal/lock"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/notify"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"go.uber.org/zap"
)

// AlternateCount is how many slots an admin offers after a conflict.
const AlternateCount = 3

type ProposeInput struct {
	Slot             model.Slot
	Reason           string
	AttorneyComments string
}

// MeetingRetirer releases the trial room bound to a case's old slot.
type MeetingRetirer interface {
	RetireMeeting(ctx context.Context, caseID int64) error
}

// RescheduleOutcome is the result of a successful reschedule.
type RescheduleOutcome struct {
	Case           *model.Case              `json:"case"`
	Request        *model.RescheduleRequest `json:"request"`
	PurgedJurorIDs []int64                  `json:"purgedJurorIds"`
	Decision       casestate.Decision       `json:"decision"`
}

// RescheduleService negotiates slot changes. Admins offer three alternates after
// a conflict and the attorney confirms one; attorneys propose a single new slot
// and an admin approves or rejects it. At most one request per case is pending.
type RescheduleService struct {
	tr           *transitioner
	requests     RescheduleStore
	applications ApplicationStore
	meetings     MeetingRetirer
	registry     *SlotRegistry
	users        UserDirectory
	tx           Transactor
	locker       lock.Locker
	logger       *zap.Logger
	now          func() time.Time
}

func NewRescheduleService(
	cases CaseStore,
	requests RescheduleStore,
	applications ApplicationStore,
	meetings MeetingRetirer,
	registry *SlotRegistry,
	users UserDirectory,
	tx Transactor,
	locker lock.Locker,
	notifier notify.Sink,
	logger *zap.Logger,
) *RescheduleService {
	return &RescheduleService{
		tr:           &transitioner{cases: cases, notifier: notifier, logger: logger},
		requests:     requests,
		applications: applications,
		meetings:     meetings,
		registry:     registry,
		users:        users,
		tx:           tx,
		locker:       locker,
		logger:       logger,
		now:          time.Now,
	}
}

// OfferAlternates records three admin-chosen slots for a case whose approval
// hit a conflict. A pending admin offer is replaced in place.
func (s *RescheduleService) OfferAlternates(ctx context.Context, caseID, adminID int64, slots []model.Slot, comments string) (*model.RescheduleRequest, error) {
	if len(slots) != AlternateCount {
		return nil, apperr.Validation("exactly %d alternate slots are required, got %d", AlternateCount, len(slots))
	}
	seen := make(map[model.Slot]bool, len(slots))
	for i, slot := range slots {
		if err := slot.Validate(); err != nil {
			return nil, apperr.Validation("alternate slot %d: %s", i+1, err.Error())
		}
		if seen[slot] {
			return nil, apperr.Validation("alternate slot %s is listed twice", slot)
		}
		seen[slot] = true
	}

	var req *model.RescheduleRequest
	var c *model.Case
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.tr.loadCase(ctx, caseID)
		if err != nil {
			return err
		}
		if status := casestate.Of(c); status != casestate.StatusPending {
			return apperr.Policy(apperr.CodeInvalidTransition, "alternates are offered only for cases pending approval, case is %q", status)
		}

		for _, slot := range slots {
			if slot == c.Slot() {
				return apperr.Validation("alternate slot %s equals the current slot", slot)
			}
			avail, err := s.registry.IsSlotAvailable(ctx, slot, c.ID)
			if err != nil {
				return err
			}
			if !avail.Available {
				return avail.unavailableErr(slot)
			}
		}

		req, err = s.requests.GetPendingByCase(ctx, caseID)
		if err != nil {
			return fmt.Errorf("get pending reschedule: %w", err)
		}

		switch {
		case req != nil && req.Initiator != model.InitiatorAdmin:
			return apperr.Policy(apperr.CodeReschedulePending, "case %d has a pending attorney reschedule request", caseID)
		case req != nil:
			req.InitiatedBy = adminID
			req.AlternateSlots = slots
			req.AdminComments = comments
			req.AttorneyResponse = ""
			if err := s.requests.Update(ctx, req); err != nil {
				return fmt.Errorf("update reschedule offer: %w", err)
			}
		default:
			req = &model.RescheduleRequest{
				CaseID:         caseID,
				Initiator:      model.InitiatorAdmin,
				InitiatedBy:    adminID,
				OriginalSlot:   c.Slot(),
				AlternateSlots: slots,
				Status:         model.RequestStatusPending,
				AdminComments:  comments,
			}
			if err := s.requests.Create(ctx, req); err != nil {
				if errors.Is(err, base.ErrDuplicate) {
					return apperr.Policy(apperr.CodeReschedulePending, "case %d already has a pending reschedule request", caseID)
				}
				return fmt.Errorf("create reschedule offer: %w", err)
			}
		}

		if !c.RescheduleRequired {
			c.RescheduleRequired = true
			return s.tr.save(ctx, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alternate slots offered",
		zap.Int64("case_id", caseID),
		zap.Int64("request_id", req.ID),
		zap.Int64("admin_id", adminID),
	)
	deliver(ctx, s.tr.notifier, s.logger, notify.ForCase(c.AttorneyID, model.UserTypeAttorney, caseID,
		model.NotificationRescheduleOffered, "New trial slots offered", describeSlots(slots)))
	return req, nil
}

// ConfirmSlot accepts one of the offered alternates. The slot is re-checked
// under its lock; if it was taken since the offer the request stays pending
// and SLOT_UNAVAILABLE names the case now holding it.
func (s *RescheduleService) ConfirmSlot(ctx context.Context, caseID, attorneyID int64, slot model.Slot) (*RescheduleOutcome, error) {
	if err := slot.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var out *RescheduleOutcome
	err := withLock(ctx, s.locker, lock.SlotKey(slot.Date, slot.Time), func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			c, err := s.tr.loadCase(ctx, caseID)
			if err != nil {
				return err
			}
			if err := requireOwner(Actor{ID: attorneyID, Type: model.UserTypeAttorney}, c); err != nil {
				return err
			}

			req, err := s.pendingOffer(ctx, caseID)
			if err != nil {
				return err
			}
			if status := casestate.Of(c); status != casestate.StatusPending {
				return apperr.Policy(apperr.CodeInvalidTransition, "offered slots apply only to cases pending approval, case is %q", status)
			}
			if !req.Offers(slot) {
				return apperr.Validation("slot %s was not offered for case %d", slot, caseID)
			}

			out, err = s.reschedule(ctx, c, req, slot, attorneyID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.announceReschedule(ctx, out, "You confirmed the new trial slot.")
	return out, nil
}

// RequestDifferentSlots sends the attorney's message back to the admins. The
// offer stays pending until new alternates arrive.
func (s *RescheduleService) RequestDifferentSlots(ctx context.Context, caseID, attorneyID int64, message string) (*model.RescheduleRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}

	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(Actor{ID: attorneyID, Type: model.UserTypeAttorney}, c); err != nil {
		return nil, err
	}

	req, err := s.pendingOffer(ctx, caseID)
	if err != nil {
		return nil, err
	}
	req.AttorneyResponse = message
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("update reschedule offer: %w", err)
	}

	s.logger.Info("Attorney asked for different slots", zap.Int64("case_id", caseID), zap.Int64("request_id", req.ID))
	s.notifyAdmins(ctx, caseID, model.NotificationDifferentSlotsAsked,
		fmt.Sprintf("Attorney asks for different slots for %q", c.Title), message)
	return req, nil
}

// ProposeReschedule lets the attorney ask to move a scheduled case.
func (s *RescheduleService) ProposeReschedule(ctx context.Context, caseID, attorneyID int64, in ProposeInput) (*model.RescheduleRequest, error) {
	if err := in.Slot.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var req *model.RescheduleRequest
	var c *model.Case
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.tr.loadCase(ctx, caseID)
		if err != nil {
			return err
		}
		if err := requireOwner(Actor{ID: attorneyID, Type: model.UserTypeAttorney}, c); err != nil {
			return err
		}

		switch status := casestate.Of(c); status {
		case casestate.StatusWarRoom, casestate.StatusAwaitingTrial, casestate.StatusJoinTrial:
		default:
			return apperr.Policy(apperr.CodeInvalidTransition, "case in status %q cannot be rescheduled", status)
		}
		if !c.HasSchedule() {
			return apperr.Validation("case %d has no scheduled slot to move", caseID)
		}
		if in.Slot == c.Slot() {
			return apperr.Validation("new slot equals the current slot")
		}

		pending, err := s.requests.GetPendingByCase(ctx, caseID)
		if err != nil {
			return fmt.Errorf("get pending reschedule: %w", err)
		}
		if pending != nil {
			return apperr.Policy(apperr.CodeReschedulePending, "case %d already has a pending reschedule request", caseID)
		}

		slot := in.Slot
		req = &model.RescheduleRequest{
			CaseID:           caseID,
			Initiator:        model.InitiatorAttorney,
			InitiatedBy:      attorneyID,
			OriginalSlot:     c.Slot(),
			ProposedSlot:     &slot,
			Status:           model.RequestStatusPending,
			Reason:           strings.TrimSpace(in.Reason),
			AttorneyComments: strings.TrimSpace(in.AttorneyComments),
		}
		if err := s.requests.Create(ctx, req); err != nil {
			if errors.Is(err, base.ErrDuplicate) {
				return apperr.Policy(apperr.CodeReschedulePending, "case %d already has a pending reschedule request", caseID)
			}
			return fmt.Errorf("create reschedule request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attorney proposed reschedule",
		zap.Int64("case_id", caseID),
		zap.Int64("request_id", req.ID),
		zap.String("slot", in.Slot.String()),
	)
	s.notifyAdmins(ctx, caseID, model.NotificationRescheduleRequested,
		fmt.Sprintf("Reschedule requested for %q", c.Title),
		fmt.Sprintf("From %s to %s. %s", req.OriginalSlot, in.Slot, req.Reason))
	return req, nil
}

// ApproveRequest applies an attorney's proposal with the same effects as a
// confirmed offer.
func (s *RescheduleService) ApproveRequest(ctx context.Context, requestID, adminID int64, comments string) (*RescheduleOutcome, error) {
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Initiator != model.InitiatorAttorney || req.ProposedSlot == nil {
		return nil, apperr.Policy(apperr.CodeInvalidTransition, "admin offers are confirmed by the attorney")
	}
	slot := *req.ProposedSlot

	var out *RescheduleOutcome
	err = withLock(ctx, s.locker, lock.SlotKey(slot.Date, slot.Time), func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			req, err := s.loadRequest(ctx, requestID)
			if err != nil {
				return err
			}
			c, err := s.tr.loadCase(ctx, req.CaseID)
			if err != nil {
				return err
			}

			req.AdminComments = comments
			out, err = s.reschedule(ctx, c, req, slot, adminID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.announceReschedule(ctx, out, "Your reschedule request was approved.")
	return out, nil
}

// RejectRequest closes a pending request. The case is not touched.
func (s *RescheduleService) RejectRequest(ctx context.Context, requestID, adminID int64, reason string) (*model.RescheduleRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	c, err := s.tr.loadCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req.Status = model.RequestStatusRejected
	req.AdminComments = reason
	req.ResolvedBy = &adminID
	req.ResolvedAt = &now
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("reject reschedule request: %w", err)
	}

	s.logger.Info("Reschedule request rejected", zap.Int64("request_id", requestID), zap.Int64("admin_id", adminID))
	deliver(ctx, s.tr.notifier, s.logger, notify.ForCase(c.AttorneyID, model.UserTypeAttorney, c.ID,
		model.NotificationRescheduleRejected, "Reschedule request declined", reason))
	return req, nil
}

func (s *RescheduleService) GetPending(ctx context.Context, caseID int64) (*model.RescheduleRequest, error) {
	req, err := s.requests.GetPendingByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get pending reschedule: %w", err)
	}
	if req == nil {
		return nil, apperr.NotFound(apperr.CodeRequestNotFound, "case %d has no pending reschedule request", caseID)
	}
	return req, nil
}

func (s *RescheduleService) ListPending(ctx context.Context) ([]*model.RescheduleRequest, error) {
	reqs, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending reschedules: %w", err)
	}
	return reqs, nil
}

// reschedule moves c to slot and resolves req. Must run inside a transaction:
// on any error nothing is written and req stays pending.
func (s *RescheduleService) reschedule(ctx context.Context, c *model.Case, req *model.RescheduleRequest, slot model.Slot, resolvedBy int64) (*RescheduleOutcome, error) {
	avail, err := s.registry.IsSlotAvailable(ctx, slot, c.ID)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, avail.unavailableErr(slot)
	}

	facts := casestate.Facts{SlotAvailable: true}
	d := casestate.Decide(casestate.Of(c), casestate.EventReschedule, facts)
	if !d.Valid {
		return nil, refusal(d)
	}

	apps, err := s.applications.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if _, err := s.applications.DeleteByCase(ctx, c.ID); err != nil {
		return nil, fmt.Errorf("purge applications: %w", err)
	}
	jurors := make([]int64, 0, len(apps))
	for _, app := range apps {
		jurors = append(jurors, app.JurorID)
	}

	c.ScheduledDate = slot.Date
	c.ScheduledTime = slot.Time
	c.RescheduleRequired = false
	d, err = s.tr.apply(ctx, c, casestate.EventReschedule, facts)
	if err != nil {
		return nil, err
	}
	if err := s.meetings.RetireMeeting(ctx, c.ID); err != nil {
		return nil, err
	}

	now := s.now()
	selected := slot
	req.SelectedSlot = &selected
	req.Status = model.RequestStatusApproved
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &now
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("resolve reschedule request: %w", err)
	}

	return &RescheduleOutcome{Case: c, Request: req, PurgedJurorIDs: jurors, Decision: d}, nil
}

func (s *RescheduleService) announceReschedule(ctx context.Context, out *RescheduleOutcome, note string) {
	c := out.Case
	s.logger.Info("Case rescheduled",
		zap.Int64("case_id", c.ID),
		zap.Int64("request_id", out.Request.ID),
		zap.String("slot", c.Slot().String()),
		zap.Int("purged_applications", len(out.PurgedJurorIDs)),
	)

	deliver(ctx, s.tr.notifier, s.logger, notify.ForCase(c.AttorneyID, model.UserTypeAttorney, c.ID,
		model.NotificationRescheduleApproved, fmt.Sprintf("Case %q moved to %s", c.Title, c.Slot()), note))
	for _, jurorID := range out.PurgedJurorIDs {
		deliver(ctx, s.tr.notifier, s.logger, notify.ForCase(jurorID, model.UserTypeJuror, c.ID,
			model.NotificationApplicationsReset, fmt.Sprintf("Case %q was rescheduled", c.Title),
			fmt.Sprintf("The trial moved to %s. Please apply again if you are available.", c.Slot())))
	}
}

func (s *RescheduleService) notifyAdmins(ctx context.Context, caseID int64, typ, title, message string) {
	admins, err := s.users.ListActive(ctx, model.UserTypeAdmin)
	if err != nil {
		s.logger.Warn("Failed to list admins for notification", zap.Int64("case_id", caseID), zap.Error(err))
		return
	}
	for _, admin := range admins {
		deliver(ctx, s.tr.notifier, s.logger, notify.ForCase(admin.ID, model.UserTypeAdmin, caseID, typ, title, message))
	}
}

func (s *RescheduleService) pendingOffer(ctx context.Context, caseID int64) (*model.RescheduleRequest, error) {
	req, err := s.requests.GetPendingByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get pending reschedule: %w", err)
	}
	if req == nil || req.Initiator != model.InitiatorAdmin {
		return nil, apperr.NotFound(apperr.CodeRequestNotFound, "case %d has no pending slot offer", caseID)
	}
	return req, nil
}

// loadRequest returns a pending request or a classified error.
func (s *RescheduleService) loadRequest(ctx context.Context, requestID int64) (*model.RescheduleRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get reschedule request: %w", err)
	}
	if req == nil {
		return nil, apperr.NotFound(apperr.CodeRequestNotFound, "reschedule request %d not found", requestID)
	}
	if !req.IsPending() {
		return nil, apperr.Policy(apperr.CodeInvalidTransition, "reschedule request %d is already %s", requestID, req.Status)
	}
	return req, nil
}

func describeSlots(slots []model.Slot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, s.String())
	}
	return "Choose one of: " + strings.Join(parts, ", ")
}
