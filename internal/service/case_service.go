package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/casestate"
	"github.com/Freeeeeet/trial_scheduler/internal/config"
	"github.com/Freeeeeet/trial_scheduler/internal/lock"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/notify"
	"go.uber.org/zap"
)

// MeetingManager is what the case lifecycle needs from the trial session side.
type MeetingManager interface {
	EnsureMeeting(ctx context.Context, caseID int64) (*model.TrialMeeting, bool, error)
	End(ctx context.Context, caseID int64, actor Actor) (*model.Case, error)
}

type SubmitInput struct {
	Title         string `json:"title"`
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
	StateCode     string `json:"stateCode"`
	// TimezoneOffsetMinutes overrides the offset looked up by StateCode.
	TimezoneOffsetMinutes *int `json:"timezoneOffsetMinutes"`
	RequiredJurors        *int `json:"requiredJurors"`
}

type ReviewDecision struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// Next actions offered to an admin whose approval hit an occupied slot.
const (
	ActionOfferAlternates = "offer_alternates"
	ActionReject          = "reject"
)

type SlotConflict struct {
	ConflictingCaseID    int64    `json:"conflictingCaseId,omitempty"`
	ConflictingCaseTitle string   `json:"conflictingCaseTitle,omitempty"`
	Blocked              bool     `json:"blocked,omitempty"`
	BlockReason          string   `json:"blockReason,omitempty"`
	NextActions          []string `json:"nextActions"`
}

type ReviewResult struct {
	Case     *model.Case        `json:"case"`
	Decision casestate.Decision `json:"decision"`
	Conflict *SlotConflict      `json:"conflict,omitempty"`
}

type SlotCheck struct {
	Available            bool   `json:"available"`
	ConflictingCaseID    *int64 `json:"conflictingCaseId,omitempty"`
	ConflictingCaseTitle string `json:"conflictingCaseTitle,omitempty"`
	Blocked              bool   `json:"blocked,omitempty"`
	BlockReason          string `json:"blockReason,omitempty"`
}

type WarRoomResult struct {
	Case    *model.Case         `json:"case"`
	Meeting *model.TrialMeeting `json:"meeting"`
	Created bool                `json:"created"`
}

type TransitionRequest struct {
	To     casestate.Status `json:"status"`
	Reason string           `json:"reason"`
}

type TransitionResult struct {
	Case     *model.Case        `json:"case"`
	Decision casestate.Decision `json:"decision"`
}

// CaseService drives a case from submission to trial through the lifecycle table.
type CaseService struct {
	tr       *transitioner
	requests RescheduleStore
	registry *SlotRegistry
	gate     *CapacityGate
	meetings MeetingManager
	tx       Transactor
	locker   lock.Locker
	policy   config.Policy
	logger   *zap.Logger
	now      func() time.Time
}

func NewCaseService(
	cases CaseStore,
	requests RescheduleStore,
	registry *SlotRegistry,
	gate *CapacityGate,
	meetings MeetingManager,
	tx Transactor,
	locker lock.Locker,
	notifier notify.Sink,
	policy config.Policy,
	logger *zap.Logger,
) *CaseService {
	return &CaseService{
		tr:       &transitioner{cases: cases, notifier: notifier, logger: logger},
		requests: requests,
		registry: registry,
		gate:     gate,
		meetings: meetings,
		tx:       tx,
		locker:   locker,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *CaseService) joinLead() time.Duration {
	return time.Duration(s.policy.JoinLeadMinutes) * time.Minute
}

// Submit creates a case for an attorney. It starts pending admin review.
func (s *CaseService) Submit(ctx context.Context, attorneyID int64, in SubmitInput) (*model.Case, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	slot := model.Slot{Date: in.ScheduledDate, Time: in.ScheduledTime}
	if err := slot.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	required := s.policy.DefaultRequiredJurors
	if in.RequiredJurors != nil {
		required = *in.RequiredJurors
	}
	if required < s.policy.JurorFloor {
		return nil, apperr.Validation("required jurors must be at least %d", s.policy.JurorFloor)
	}
	if required > s.policy.JurorCeiling {
		return nil, apperr.Validation("required jurors must be at most %d", s.policy.JurorCeiling)
	}

	state := strings.ToUpper(strings.TrimSpace(in.StateCode))
	offset := 0
	switch {
	case in.TimezoneOffsetMinutes != nil:
		offset = *in.TimezoneOffsetMinutes
		if offset < -14*60 || offset > 14*60 {
			return nil, apperr.Validation("timezone offset %d is out of range", offset)
		}
	case state != "":
		known, ok := s.policy.TimezoneOffset(state)
		if !ok {
			return nil, apperr.Validation("unknown state code %q", state)
		}
		offset = known
	}

	c := &model.Case{
		AttorneyID:            attorneyID,
		Title:                 title,
		AdminStatus:           model.AdminStatusPending,
		AttorneyStatus:        model.AttorneyStatusPending,
		ScheduledDate:         slot.Date,
		ScheduledTime:         slot.Time,
		TimezoneOffsetMinutes: offset,
		StateCode:             state,
		RequiredJurors:        required,
	}
	if err := s.tr.cases.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.logger.Info("Case submitted",
		zap.Int64("case_id", c.ID),
		zap.Int64("attorney_id", attorneyID),
		zap.String("slot", slot.String()),
	)
	return c, nil
}

// Review approves or rejects a pending case. An approval that finds the slot
// taken leaves the case pending with reschedule_required set and returns the
// conflict instead of an error.
func (s *CaseService) Review(ctx context.Context, caseID, adminID int64, in ReviewDecision) (*ReviewResult, error) {
	if !in.Approve {
		return s.reject(ctx, caseID, adminID, in.Reason)
	}

	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var result *ReviewResult
	err = withLock(ctx, s.locker, lock.SlotKey(c.ScheduledDate, c.ScheduledTime), func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			c, err := s.tr.loadCase(ctx, caseID)
			if err != nil {
				return err
			}
			if casestate.Of(c) != casestate.StatusPending {
				return refusal(casestate.Decide(casestate.Of(c), casestate.EventApprove, casestate.Facts{}))
			}

			avail, err := s.registry.IsSlotAvailable(ctx, c.Slot(), c.ID)
			if err != nil {
				return err
			}

			c.RescheduleRequired = !avail.Available
			d, err := s.tr.apply(ctx, c, casestate.EventApprove, casestate.Facts{SlotAvailable: avail.Available})
			if err == nil {
				result = &ReviewResult{Case: c, Decision: d}
				return s.closeNegotiation(ctx, c.ID, adminID)
			}
			if d.Valid || avail.Available {
				return err
			}

			if err := s.tr.save(ctx, c); err != nil {
				return err
			}
			result = &ReviewResult{Case: c, Decision: d, Conflict: conflictOf(avail)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Conflict != nil {
		s.logger.Info("Case approval hit an occupied slot",
			zap.Int64("case_id", caseID),
			zap.Int64("conflicting_case_id", result.Conflict.ConflictingCaseID),
			zap.Bool("blocked", result.Conflict.Blocked),
		)
		deliver(ctx, s.tr.notifier, s.logger, notify.ForCase(result.Case.AttorneyID, model.UserTypeAttorney, caseID,
			model.NotificationSlotConflict, "Requested slot is taken",
			fmt.Sprintf("%s is no longer available. An administrator will offer alternative slots.", result.Case.Slot())))
		return result, nil
	}

	s.logger.Info("Case approved", zap.Int64("case_id", caseID), zap.Int64("admin_id", adminID))
	s.tr.announce(ctx, result.Case, result.Decision, "Your case was approved. The war room is open.")
	return result, nil
}

func (s *CaseService) reject(ctx context.Context, caseID, adminID int64, reason string) (*ReviewResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	var result *ReviewResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.tr.loadCase(ctx, caseID)
		if err != nil {
			return err
		}
		d, err := s.tr.apply(ctx, c, casestate.EventReject, casestate.Facts{})
		if err != nil {
			return err
		}
		result = &ReviewResult{Case: c, Decision: d}
		return s.closeNegotiation(ctx, caseID, adminID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Case rejected", zap.Int64("case_id", caseID), zap.Int64("admin_id", adminID))
	s.tr.announce(ctx, result.Case, result.Decision, reason)
	return result, nil
}

// closeNegotiation closes a reschedule request the case no longer needs, so
// the stale offer can neither be confirmed nor block a new proposal.
func (s *CaseService) closeNegotiation(ctx context.Context, caseID, actorID int64) error {
	req, err := closePendingReschedule(ctx, s.requests, caseID, actorID, s.now())
	if err != nil {
		return err
	}
	if req != nil {
		s.logger.Info("Pending reschedule closed",
			zap.Int64("case_id", caseID),
			zap.Int64("request_id", req.ID),
			zap.String("initiator", string(req.Initiator)),
		)
	}
	return nil
}

func conflictOf(avail *SlotAvailability) *SlotConflict {
	conflict := &SlotConflict{NextActions: []string{ActionOfferAlternates, ActionReject}}
	if avail.ConflictingCase != nil {
		conflict.ConflictingCaseID = avail.ConflictingCase.ID
		conflict.ConflictingCaseTitle = avail.ConflictingCase.Title
	}
	if avail.Block != nil {
		conflict.Blocked = true
		conflict.BlockReason = avail.Block.Reason
	}
	return conflict
}

// CheckSlotAvailability reports whether the case's own slot is still free.
func (s *CaseService) CheckSlotAvailability(ctx context.Context, caseID int64, actor Actor) (*SlotCheck, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return nil, err
	}
	if !c.HasSchedule() {
		return nil, apperr.Validation("case %d has no scheduled slot", caseID)
	}

	avail, err := s.registry.IsSlotAvailable(ctx, c.Slot(), c.ID)
	if err != nil {
		return nil, err
	}

	check := &SlotCheck{Available: avail.Available}
	if avail.ConflictingCase != nil {
		id := avail.ConflictingCase.ID
		check.ConflictingCaseID = &id
		check.ConflictingCaseTitle = avail.ConflictingCase.Title
	}
	if avail.Block != nil {
		check.Blocked = true
		check.BlockReason = avail.Block.Reason
	}
	return check, nil
}

// SubmitWarRoom closes the war room: the juror count must be within bounds,
// the trial meeting is created and the case moves to awaiting_trial. Calling it
// again on a submitted case returns the existing meeting.
func (s *CaseService) SubmitWarRoom(ctx context.Context, caseID int64, actor Actor) (*WarRoomResult, error) {
	var result *WarRoomResult
	var decision casestate.Decision

	err := withLock(ctx, s.locker, lock.CaseKey(caseID), func() error {
		c, err := s.tr.loadCase(ctx, caseID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(actor, c); err != nil {
			return err
		}

		switch casestate.Of(c) {
		case casestate.StatusAwaitingTrial, casestate.StatusJoinTrial, casestate.StatusInTrial:
			m, created, err := s.meetings.EnsureMeeting(ctx, c.ID)
			if err != nil {
				return err
			}
			result = &WarRoomResult{Case: c, Meeting: m, Created: created}
			return nil
		}

		gate, err := s.gate.CanSubmitForTrial(ctx, c.ID)
		if err != nil {
			return err
		}
		facts := casestate.Facts{
			ApprovedJurors: gate.Approved,
			JurorFloor:     s.policy.JurorFloor,
			JurorCeiling:   s.policy.JurorCeiling,
		}

		d := casestate.Decide(casestate.Of(c), casestate.EventSubmitWarRoom, facts)
		if !d.Valid {
			if !gate.Allowed && d.To != "" {
				return apperr.Policy(gate.Code, "%s", gate.Reason)
			}
			return refusal(d)
		}

		m, created, err := s.meetings.EnsureMeeting(ctx, c.ID)
		if err != nil {
			return err
		}

		decision, err = s.tr.apply(ctx, c, casestate.EventSubmitWarRoom, facts)
		if err != nil {
			return err
		}
		result = &WarRoomResult{Case: c, Meeting: m, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision.Valid {
		s.tr.announce(ctx, result.Case, decision, "Your trial is scheduled. Join opens shortly before the start time.")
	}
	return result, nil
}

// RequestTransition moves a case to the requested status when the lifecycle
// table has an edge for it. Anything else is refused with INVALID_TRANSITION.
func (s *CaseService) RequestTransition(ctx context.Context, caseID int64, actor Actor, req TransitionRequest) (*TransitionResult, error) {
	if !req.To.Valid() {
		return nil, apperr.Validation("unknown status %q", req.To)
	}

	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return nil, err
	}
	if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
		return nil, err
	}

	from := casestate.Of(c)
	ev, ok := casestate.EventFor(from, req.To)
	if !ok {
		d := casestate.Decision{
			Valid:   false,
			From:    from,
			Message: fmt.Sprintf("cannot move case from %q to %q", from, req.To),
		}
		return &TransitionResult{Case: c, Decision: d}, refusal(d)
	}

	accepted := func(c *model.Case) *TransitionResult {
		return &TransitionResult{Case: c, Decision: casestate.Decision{Valid: true, From: from, To: casestate.Of(c)}}
	}

	switch ev {
	case casestate.EventApprove, casestate.EventReject:
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
		res, err := s.Review(ctx, caseID, actor.ID, ReviewDecision{Approve: ev == casestate.EventApprove, Reason: req.Reason})
		if err != nil {
			return nil, err
		}
		if res.Conflict != nil {
			return &TransitionResult{Case: res.Case, Decision: res.Decision}, apperr.SlotUnavailable(res.Conflict.ConflictingCaseID)
		}
		return &TransitionResult{Case: res.Case, Decision: res.Decision}, nil

	case casestate.EventSubmitWarRoom:
		res, err := s.SubmitWarRoom(ctx, caseID, actor)
		if err != nil {
			return nil, err
		}
		return accepted(res.Case), nil

	case casestate.EventOpenJoinWindow:
		open, err := joinWindowOpen(c, s.now(), s.joinLead())
		if err != nil {
			return nil, fmt.Errorf("resolve case start: %w", err)
		}
		return s.applyRequested(ctx, c, ev, casestate.Facts{JoinWindowOpen: open})

	case casestate.EventStartTrial, casestate.EventComplete:
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
		return s.applyRequested(ctx, c, ev, casestate.Facts{})

	case casestate.EventEndTrial:
		ended, err := s.meetings.End(ctx, caseID, actor)
		if err != nil {
			return nil, err
		}
		return accepted(ended), nil

	case casestate.EventCancel:
		cancelled, err := s.Cancel(ctx, caseID, actor)
		if err != nil {
			return nil, err
		}
		return accepted(cancelled), nil
	}

	d := casestate.Decision{
		Valid:   false,
		From:    from,
		To:      req.To,
		Message: "rescheduling goes through a reschedule request",
	}
	return &TransitionResult{Case: c, Decision: d}, refusal(d)
}

func (s *CaseService) applyRequested(ctx context.Context, c *model.Case, ev casestate.Event, facts casestate.Facts) (*TransitionResult, error) {
	d, err := s.tr.apply(ctx, c, ev, facts)
	if err != nil {
		return &TransitionResult{Case: c, Decision: d}, err
	}
	s.tr.announce(ctx, c, d, "")
	return &TransitionResult{Case: c, Decision: d}, nil
}

// RefreshJoinWindow opens the join window of an awaiting_trial case once the
// start time minus the lead has been reached.
func (s *CaseService) RefreshJoinWindow(ctx context.Context, caseID int64) (*model.Case, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel stops a case that has not reached the trial room yet.
func (s *CaseService) Cancel(ctx context.Context, caseID int64, actor Actor) (*model.Case, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return nil, err
	}
	if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
		return nil, err
	}
	if status := casestate.Of(c); !casestate.CanDelete(status) {
		return nil, apperr.Policy(apperr.CodeCaseUndeletable, "case in status %q can no longer be cancelled", status)
	}

	var d casestate.Decision
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.tr.apply(ctx, c, casestate.EventCancel, casestate.Facts{})
		if err != nil {
			return err
		}
		return s.closeNegotiation(ctx, caseID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.tr.announce(ctx, c, d, fmt.Sprintf("Cancelled by %s.", actor.Type))
	return c, nil
}

// Delete soft-deletes a case. Cases that reached the trial room are kept.
func (s *CaseService) Delete(ctx context.Context, caseID int64, actor Actor) error {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return err
	}
	if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
		return err
	}
	if status := casestate.Of(c); !casestate.CanDelete(status) {
		return apperr.Policy(apperr.CodeCaseUndeletable, "case in status %q can no longer be deleted", status)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tr.cases.SoftDelete(ctx, caseID, s.now()); err != nil {
			return fmt.Errorf("delete case: %w", err)
		}
		return s.closeNegotiation(ctx, caseID, actor.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Case deleted",
		zap.Int64("case_id", caseID),
		zap.String("actor_type", string(actor.Type)),
		zap.Int64("actor_id", actor.ID),
	)
	return nil
}

// Get returns the case with its join window refreshed. Jurors may read any
// case, attorneys only their own.
func (s *CaseService) Get(ctx context.Context, caseID int64, actor Actor) (*model.Case, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if actor.Type != model.UserTypeJuror {
		if err := requireOwnerOrAdmin(actor, c); err != nil {
			return nil, err
		}
	}
	if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CaseService) ListForAttorney(ctx context.Context, attorneyID int64) ([]*model.Case, error) {
	cases, err := s.tr.cases.ListByAttorney(ctx, attorneyID)
	if err != nil {
		return nil, fmt.Errorf("list attorney cases: %w", err)
	}

	for _, c := range cases {
		if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
			s.logger.Warn("Failed to refresh join window", zap.Int64("case_id", c.ID), zap.Error(err))
		}
	}
	return cases, nil
}

// ListForJuror returns the cases the juror is seated on.
func (s *CaseService) ListForJuror(ctx context.Context, jurorID int64) ([]*model.Case, error) {
	cases, err := s.tr.cases.ListByJuror(ctx, jurorID)
	if err != nil {
		return nil, fmt.Errorf("list juror cases: %w", err)
	}

	for _, c := range cases {
		if err := s.tr.refreshJoinWindow(ctx, c, s.now(), s.joinLead()); err != nil {
			s.logger.Warn("Failed to refresh join window", zap.Int64("case_id", c.ID), zap.Error(err))
		}
	}
	return cases, nil
}
