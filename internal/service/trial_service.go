package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/casestate"
	"github.com/Freeeeeet/trial_scheduler/internal/comms"
	"github.com/Freeeeeet/trial_scheduler/internal/config"
	"github.com/Freeeeeet/trial_scheduler/internal/lock"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/notify"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"go.uber.org/zap"
)

// JoinResult is what a client needs to connect to the trial room.
type JoinResult struct {
	Token         string    `json:"token"`
	ExpiresOn     time.Time `json:"expiresOn"`
	UserID        string    `json:"userId"`
	RoomID        string    `json:"roomId"`
	ChatThreadID  string    `json:"chatThreadId,omitempty"`
	ParticipantID int64     `json:"participantId"`
	// Degraded is set when the chat could not be attached; video still works.
	Degraded bool `json:"degraded"`
}

type TrialServiceConfig struct {
	Policy          config.Policy
	ProviderTimeout time.Duration
	// RoomTTL is how long after the scheduled start the room stays valid.
	RoomTTL time.Duration
}

// TrialService runs the live session of a case: one meeting per case,
// time-gated joins and at most one active provider identity per user.
type TrialService struct {
	tr           *transitioner
	meetings     MeetingStore
	participants ParticipantStore
	applications ApplicationStore
	provider     comms.Provider
	tx           Transactor
	locker       lock.Locker
	cfg          TrialServiceConfig
	logger       *zap.Logger
	now          func() time.Time
}

func NewTrialService(
	cases CaseStore,
	meetings MeetingStore,
	participants ParticipantStore,
	applications ApplicationStore,
	provider comms.Provider,
	tx Transactor,
	locker lock.Locker,
	notifier notify.Sink,
	cfg TrialServiceConfig,
	logger *zap.Logger,
) *TrialService {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = 24 * time.Hour
	}
	return &TrialService{
		tr:           &transitioner{cases: cases, notifier: notifier, logger: logger},
		meetings:     meetings,
		participants: participants,
		applications: applications,
		provider:     provider,
		tx:           tx,
		locker:       locker,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *TrialService) joinLead() time.Duration {
	return time.Duration(s.cfg.Policy.JoinLeadMinutes) * time.Minute
}

// call runs one provider call under the provider timeout.
func (s *TrialService) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	return fn(ctx)
}

// EnsureMeeting returns the case's meeting, creating it on first call. The room
// is required; the chat thread is best-effort and its absence makes joins
// video-only. A meeting retired by a reschedule, or whose room expires before
// the case's current start, is moved to a fresh room.
func (s *TrialService) EnsureMeeting(ctx context.Context, caseID int64) (*model.TrialMeeting, bool, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.meetings.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, false, fmt.Errorf("get meeting: %w", err)
	}
	if existing != nil && serves(existing, c) {
		return existing, false, nil
	}

	var meeting *model.TrialMeeting
	var created, replaced bool
	var oldRoom string
	err = withLock(ctx, s.locker, lock.MeetingKey(caseID), func() error {
		c, err := s.tr.loadCase(ctx, caseID)
		if err != nil {
			return err
		}
		current, err := s.meetings.GetByCaseID(ctx, caseID)
		if err != nil {
			return fmt.Errorf("get meeting: %w", err)
		}
		if current != nil && serves(current, c) {
			meeting = current
			return nil
		}

		meeting, err = s.createMeeting(ctx, c)
		if err != nil {
			return err
		}

		if current != nil {
			// старые участники остаются в старой комнате
			if _, err := s.participants.CloseAllActive(ctx, current.ID, s.now()); err != nil {
				return fmt.Errorf("close participants of old room: %w", err)
			}
			meeting.ID = current.ID
			if err := s.meetings.ReplaceRoom(ctx, meeting); err != nil {
				return fmt.Errorf("replace meeting room: %w", err)
			}
			oldRoom, created, replaced = current.RoomID, true, true
			return nil
		}

		created, err = s.meetings.Create(ctx, meeting)
		if err != nil {
			return fmt.Errorf("save meeting: %w", err)
		}
		if !created {
			s.logger.Warn("Meeting already created concurrently, dropping new room",
				zap.Int64("case_id", caseID),
				zap.String("room_id", meeting.RoomID),
			)
			meeting, err = s.meetings.GetByCaseID(ctx, caseID)
			if err != nil {
				return fmt.Errorf("get meeting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	switch {
	case replaced:
		s.logger.Info("Trial meeting moved to a new room",
			zap.Int64("case_id", caseID),
			zap.Int64("meeting_id", meeting.ID),
			zap.String("old_room_id", oldRoom),
			zap.String("room_id", meeting.RoomID),
		)
	case created:
		s.logger.Info("Trial meeting created",
			zap.Int64("case_id", caseID),
			zap.Int64("meeting_id", meeting.ID),
			zap.String("room_id", meeting.RoomID),
			zap.Bool("chat", meeting.HasChat()),
		)
	}
	return meeting, created, nil
}

// serves reports whether m can host c at its current slot.
func serves(m *model.TrialMeeting, c *model.Case) bool {
	start, err := c.StartsAt()
	if err != nil {
		return m.Status != model.MeetingStatusRetired
	}
	return m.Serves(start)
}

// RetireMeeting detaches a rescheduled case from its room: active participants
// are closed and the next EnsureMeeting creates a new room. Runs in the
// caller's transaction.
func (s *TrialService) RetireMeeting(ctx context.Context, caseID int64) error {
	m, err := s.meetings.GetByCaseID(ctx, caseID)
	if err != nil {
		return fmt.Errorf("get meeting: %w", err)
	}
	if m == nil || m.Status == model.MeetingStatusRetired {
		return nil
	}

	closed, err := s.participants.CloseAllActive(ctx, m.ID, s.now())
	if err != nil {
		return fmt.Errorf("close participants: %w", err)
	}
	if err := s.meetings.UpdateStatus(ctx, m.ID, model.MeetingStatusRetired); err != nil {
		return fmt.Errorf("retire meeting: %w", err)
	}

	s.logger.Info("Trial meeting retired",
		zap.Int64("case_id", caseID),
		zap.Int64("meeting_id", m.ID),
		zap.String("room_id", m.RoomID),
		zap.Int64("closed_participants", closed),
	)
	return nil
}

func (s *TrialService) createMeeting(ctx context.Context, c *model.Case) (*model.TrialMeeting, error) {
	opts := comms.RoomOptions{ValidFrom: s.now()}
	if start, err := c.StartsAt(); err == nil {
		opts.ValidUntil = start.Add(s.cfg.RoomTTL)
	}

	var roomID string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		roomID, err = s.provider.CreateRoom(ctx, opts)
		return err
	})
	if err != nil {
		return nil, apperr.External("create trial room", err)
	}

	meeting := &model.TrialMeeting{CaseID: c.ID, RoomID: roomID, Status: model.MeetingStatusCreated}
	if !opts.ValidUntil.IsZero() {
		validUntil := opts.ValidUntil
		meeting.ValidUntil = &validUntil
	}

	err = s.call(ctx, func(ctx context.Context) error {
		identity, err := s.provider.CreateIdentity(ctx)
		if err != nil {
			return fmt.Errorf("create chat service identity: %w", err)
		}
		threadID, err := s.provider.CreateChatThread(ctx, c.Title, identity)
		if err != nil {
			return fmt.Errorf("create chat thread: %w", err)
		}
		meeting.ChatServiceIdentity = identity
		meeting.ChatThreadID = threadID
		return nil
	})
	if err != nil {
		s.logger.Warn("Chat thread not created, meeting is video-only",
			zap.Int64("case_id", c.ID),
			zap.Error(err),
		)
	}

	return meeting, nil
}

// authorizeJoin checks the caller may enter this case's room.
func (s *TrialService) authorizeJoin(ctx context.Context, c *model.Case, actor Actor) error {
	switch actor.Type {
	case model.UserTypeAdmin:
		return nil
	case model.UserTypeAttorney:
		return requireOwner(actor, c)
	case model.UserTypeJuror:
		app, err := s.applications.GetByCaseAndJuror(ctx, c.ID, actor.ID)
		if err != nil {
			return fmt.Errorf("get application: %w", err)
		}
		if app == nil || !app.IsApproved() {
			return apperr.Forbidden("juror %d is not seated on case %d", actor.ID, c.ID)
		}
		return nil
	}
	return apperr.Forbidden("unknown user type %q", actor.Type)
}

// Join admits the caller to the trial room with a fresh provider identity. Any
// identity the caller still holds in this meeting is removed first, so a
// rejoin leaves exactly one active participant row.
func (s *TrialService) Join(ctx context.Context, caseID int64, actor Actor) (*JoinResult, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeJoin(ctx, c, actor); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.tr.refreshJoinWindow(ctx, c, now, s.joinLead()); err != nil {
		return nil, err
	}
	switch status := casestate.Of(c); status {
	case casestate.StatusAwaitingTrial, casestate.StatusJoinTrial, casestate.StatusInTrial:
	default:
		return nil, apperr.Policy(apperr.CodeTrialNotOpen, "case in status %q has no open trial", status)
	}
	if !actor.IsAdmin() {
		open, err := joinWindowOpen(c, now, s.joinLead())
		if err != nil {
			return nil, fmt.Errorf("resolve case start: %w", err)
		}
		if !open {
			return nil, apperr.Policy(apperr.CodeTrialNotOpen,
				"trial opens %d minutes before %s", s.cfg.Policy.JoinLeadMinutes, c.Slot())
		}
	}

	meeting, err := s.meetings.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	if meeting == nil || meeting.Status == model.MeetingStatusRetired {
		return nil, apperr.NotFound(apperr.CodeMeetingNotFound, "case %d has no trial meeting", caseID)
	}
	if meeting.Status == model.MeetingStatusCompleted {
		return nil, apperr.Policy(apperr.CodeTrialNotOpen, "trial for case %d has ended", caseID)
	}

	var result *JoinResult
	err = withLock(ctx, s.locker, lock.JoinKey(meeting.ID, string(actor.Type), actor.ID), func() error {
		var err error
		result, err = s.join(ctx, c, meeting, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Participant joined trial",
		zap.Int64("case_id", caseID),
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("user_id", actor.ID),
		zap.String("user_type", string(actor.Type)),
		zap.Bool("degraded", result.Degraded),
	)
	return result, nil
}

func (s *TrialService) join(ctx context.Context, c *model.Case, meeting *model.TrialMeeting, actor Actor) (*JoinResult, error) {
	stale, err := s.participants.GetActive(ctx, meeting.ID, actor.ID, actor.Type)
	if err != nil {
		return nil, fmt.Errorf("get active participant: %w", err)
	}
	if stale != nil {
		s.detach(ctx, meeting, stale)
		if err := s.participants.MarkLeft(ctx, stale.ID, s.now()); err != nil {
			return nil, fmt.Errorf("close stale participant: %w", err)
		}
	}

	var identity string
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.provider.CreateIdentity(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.External("create participant identity", err)
	}

	role := comms.RoleAttendee
	if actor.Type != model.UserTypeJuror {
		role = comms.RolePresenter
	}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.provider.AddParticipantToRoom(ctx, meeting.RoomID, identity, role)
	})
	if err != nil {
		return nil, apperr.External("add participant to room", err)
	}

	var token comms.Token
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		token, err = s.provider.IssueToken(ctx, identity, comms.ScopeVoIP, comms.ScopeChat)
		return err
	})
	if err != nil {
		return nil, apperr.External("issue access token", err)
	}

	degraded := !meeting.HasChat()
	if meeting.HasChat() {
		err = s.call(ctx, func(ctx context.Context) error {
			return s.provider.AddParticipantToChat(ctx, meeting.ChatThreadID, meeting.ChatServiceIdentity, identity, actor.Name)
		})
		if err != nil {
			degraded = true
			s.logger.Warn("Chat attach failed, joining video-only",
				zap.Int64("meeting_id", meeting.ID),
				zap.Int64("user_id", actor.ID),
				zap.Error(err),
			)
		}
	}

	p := &model.Participant{
		MeetingID:        meeting.ID,
		UserID:           actor.ID,
		UserType:         actor.Type,
		DisplayName:      actor.Name,
		ExternalIdentity: identity,
		JoinedAt:         s.now(),
	}

	var started casestate.Decision
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.participants.Create(ctx, p); err != nil {
			if errors.Is(err, base.ErrDuplicate) {
				return apperr.Conflict(apperr.CodeParticipantActive, "user %d already has an active session in this trial", actor.ID)
			}
			return fmt.Errorf("save participant: %w", err)
		}

		if meeting.Status == model.MeetingStatusCreated {
			if _, err := s.meetings.TransitionStatus(ctx, meeting.ID, model.MeetingStatusCreated, model.MeetingStatusActive); err != nil {
				return fmt.Errorf("activate meeting: %w", err)
			}
			meeting.Status = model.MeetingStatusActive
		}

		if casestate.Of(c) == casestate.StatusJoinTrial {
			d, err := s.tr.apply(ctx, c, casestate.EventStartTrial, casestate.Facts{})
			if err != nil {
				return err
			}
			started = d
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if started.Valid {
		s.tr.announce(ctx, c, started, "The trial has started.")
	}

	return &JoinResult{
		Token:         token.Value,
		ExpiresOn:     token.ExpiresOn,
		UserID:        identity,
		RoomID:        meeting.RoomID,
		ChatThreadID:  meeting.ChatThreadID,
		ParticipantID: p.ID,
		Degraded:      degraded,
	}, nil
}

// detach removes an identity from the room and chat. Failures are logged only.
func (s *TrialService) detach(ctx context.Context, meeting *model.TrialMeeting, p *model.Participant) {
	err := s.call(ctx, func(ctx context.Context) error {
		return s.provider.RemoveParticipantFromRoom(ctx, meeting.RoomID, p.ExternalIdentity)
	})
	if err != nil {
		s.logger.Warn("Failed to remove identity from room",
			zap.Int64("participant_id", p.ID),
			zap.String("identity", p.ExternalIdentity),
			zap.Error(err),
		)
	}

	if !meeting.HasChat() {
		return
	}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.provider.RemoveParticipantFromChat(ctx, meeting.ChatThreadID, meeting.ChatServiceIdentity, p.ExternalIdentity)
	})
	if err != nil {
		s.logger.Warn("Failed to remove identity from chat",
			zap.Int64("participant_id", p.ID),
			zap.String("identity", p.ExternalIdentity),
			zap.Error(err),
		)
	}
}

func (s *TrialService) meetingFor(ctx context.Context, caseID int64) (*model.TrialMeeting, error) {
	meeting, err := s.meetings.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	if meeting == nil {
		return nil, apperr.NotFound(apperr.CodeMeetingNotFound, "case %d has no trial meeting", caseID)
	}
	return meeting, nil
}

// Leave closes the caller's active session. Leaving without one succeeds.
func (s *TrialService) Leave(ctx context.Context, caseID int64, actor Actor) error {
	meeting, err := s.meetingFor(ctx, caseID)
	if err != nil {
		return err
	}

	return withLock(ctx, s.locker, lock.JoinKey(meeting.ID, string(actor.Type), actor.ID), func() error {
		p, err := s.participants.GetActive(ctx, meeting.ID, actor.ID, actor.Type)
		if err != nil {
			return fmt.Errorf("get active participant: %w", err)
		}
		if p == nil {
			return nil
		}

		s.detach(ctx, meeting, p)
		if err := s.participants.MarkLeft(ctx, p.ID, s.now()); err != nil {
			return fmt.Errorf("close participant: %w", err)
		}
		s.logger.Info("Participant left trial", zap.Int64("meeting_id", meeting.ID), zap.Int64("user_id", actor.ID))
		return nil
	})
}

// RemoveParticipant is the admin moderation action.
func (s *TrialService) RemoveParticipant(ctx context.Context, caseID int64, admin Actor, userID int64, userType model.UserType) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	if !userType.Valid() {
		return apperr.Validation("unknown user type %q", userType)
	}

	meeting, err := s.meetingFor(ctx, caseID)
	if err != nil {
		return err
	}

	return withLock(ctx, s.locker, lock.JoinKey(meeting.ID, string(userType), userID), func() error {
		p, err := s.participants.GetActive(ctx, meeting.ID, userID, userType)
		if err != nil {
			return fmt.Errorf("get active participant: %w", err)
		}
		if p == nil {
			return apperr.NotFound(apperr.CodeMeetingNotFound, "%s %d is not in the trial", userType, userID)
		}

		s.detach(ctx, meeting, p)
		if err := s.participants.MarkRemoved(ctx, p.ID, s.now()); err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
		s.logger.Info("Participant removed from trial",
			zap.Int64("meeting_id", meeting.ID),
			zap.Int64("user_id", userID),
			zap.Int64("admin_id", admin.ID),
		)
		return nil
	})
}

// End completes the meeting and moves the case to view_details. Connected
// participants are left as they are.
func (s *TrialService) End(ctx context.Context, caseID int64, actor Actor) (*model.Case, error) {
	c, err := s.tr.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return nil, err
	}
	meeting, err := s.meetingFor(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var d casestate.Decision
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.tr.apply(ctx, c, casestate.EventEndTrial, casestate.Facts{})
		if err != nil {
			return err
		}
		if err := s.meetings.UpdateStatus(ctx, meeting.ID, model.MeetingStatusCompleted); err != nil {
			return fmt.Errorf("complete meeting: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trial ended",
		zap.Int64("case_id", caseID),
		zap.Int64("meeting_id", meeting.ID),
		zap.String("actor_type", string(actor.Type)),
	)
	s.tr.announce(ctx, c, d, "Results are available in case details.")
	return c, nil
}

func (s *TrialService) ListActiveParticipants(ctx context.Context, caseID int64) ([]*model.Participant, error) {
	meeting, err := s.meetingFor(ctx, caseID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants.ListActive(ctx, meeting.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// SweepCompletedMeetings closes participant rows left open in ended or
// retired meetings. Meetings with nobody active are not visited.
func (s *TrialService) SweepCompletedMeetings(ctx context.Context) (int64, error) {
	meetings, err := s.meetings.ListWithStaleParticipants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list meetings to sweep: %w", err)
	}

	var closed int64
	for _, m := range meetings {
		n, err := s.participants.CloseAllActive(ctx, m.ID, s.now())
		if err != nil {
			return closed, fmt.Errorf("close participants of meeting %d: %w", m.ID, err)
		}
		closed += n
	}

	if closed > 0 {
		s.logger.Info("Swept participants of ended trials", zap.Int64("closed", closed))
	}
	return closed, nil
}
