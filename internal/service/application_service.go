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

type ApplicationService struct {
	cases        CaseStore
	applications ApplicationStore
	gate         *CapacityGate
	tx           Transactor
	locker       lock.Locker
	notifier     notify.Sink
	logger       *zap.Logger
	now          func() time.Time
}

func NewApplicationService(
	cases CaseStore,
	applications ApplicationStore,
	gate *CapacityGate,
	tx Transactor,
	locker lock.Locker,
	notifier notify.Sink,
	logger *zap.Logger,
) *ApplicationService {
	return &ApplicationService{
		cases:        cases,
		applications: applications,
		gate:         gate,
		tx:           tx,
		locker:       locker,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ApplicationService) loadCase(ctx context.Context, caseID int64) (*model.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, apperr.NotFound(apperr.CodeCaseNotFound, "case %d not found", caseID)
	}
	return c, nil
}

// loadApplication fetches an application and checks it belongs to caseID.
func (s *ApplicationService) loadApplication(ctx context.Context, caseID, applicationID int64) (*model.JurorApplication, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if app == nil || app.CaseID != caseID {
		return nil, apperr.NotFound(apperr.CodeApplicationNotFound, "application %d not found for case %d", applicationID, caseID)
	}
	return app, nil
}

// rosterOpen reports whether jurors may still join or leave the case.
func rosterOpen(c *model.Case) error {
	if casestate.Of(c) != casestate.StatusWarRoom {
		return apperr.Policy(apperr.CodeInvalidTransition, "case %d is not accepting juror changes in status %q", c.ID, casestate.Of(c))
	}
	return nil
}

// Apply files a juror's application. A withdrawn application is reopened.
func (s *ApplicationService) Apply(ctx context.Context, caseID, jurorID int64) (*model.JurorApplication, error) {
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := rosterOpen(c); err != nil {
		return nil, err
	}

	existing, err := s.applications.GetByCaseAndJuror(ctx, caseID, jurorID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if existing != nil {
		if existing.Status != model.ApplicationStatusWithdrawn {
			return nil, apperr.Conflict(apperr.CodeApplicationExists, "juror %d already applied to case %d", jurorID, caseID)
		}
		if err := s.applications.UpdateStatus(ctx, existing.ID, model.ApplicationStatusPending, nil, s.now()); err != nil {
			return nil, fmt.Errorf("reopen application: %w", err)
		}
		existing.Status = model.ApplicationStatusPending
		return existing, nil
	}

	app := &model.JurorApplication{CaseID: caseID, JurorID: jurorID, Status: model.ApplicationStatusPending}
	if err := s.applications.Create(ctx, app); err != nil {
		if errors.Is(err, base.ErrDuplicate) {
			return nil, apperr.Conflict(apperr.CodeApplicationExists, "juror %d already applied to case %d", jurorID, caseID)
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.logger.Info("Juror applied", zap.Int64("case_id", caseID), zap.Int64("juror_id", jurorID))
	return app, nil
}

// Approve admits one pending application if the case has room.
func (s *ApplicationService) Approve(ctx context.Context, caseID, applicationID int64, actor Actor) (*model.JurorApplication, error) {
	approved, err := s.BatchApprove(ctx, caseID, []int64{applicationID}, actor)
	if err != nil {
		return nil, err
	}
	return approved[0], nil
}

// BatchApprove admits all given applications or none of them. When the batch
// does not fit, the error carries how many slots remain.
func (s *ApplicationService) BatchApprove(ctx context.Context, caseID int64, applicationIDs []int64, actor Actor) ([]*model.JurorApplication, error) {
	if len(applicationIDs) == 0 {
		return nil, apperr.Validation("at least one application id is required")
	}
	seen := make(map[int64]bool, len(applicationIDs))
	for _, id := range applicationIDs {
		if seen[id] {
			return nil, apperr.Validation("application %d is listed twice", id)
		}
		seen[id] = true
	}

	var approved []*model.JurorApplication
	err := withLock(ctx, s.locker, lock.CaseKey(caseID), func() error {
		c, err := s.loadCase(ctx, caseID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(actor, c); err != nil {
			return err
		}
		if err := rosterOpen(c); err != nil {
			return err
		}

		apps := make([]*model.JurorApplication, 0, len(applicationIDs))
		for _, id := range applicationIDs {
			app, err := s.loadApplication(ctx, caseID, id)
			if err != nil {
				return err
			}
			if !app.IsPending() {
				return apperr.Validation("application %d is %s, only pending applications can be approved", id, app.Status)
			}
			apps = append(apps, app)
		}

		decision, err := s.gate.CanApproveBatch(ctx, caseID, len(apps))
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return apperr.CapacityExceeded(decision.SlotsRemaining,
				"cannot approve %d jurors, only %d of %d slots remain", len(apps), decision.SlotsRemaining, decision.Ceiling)
		}

		now := s.now()
		reviewer := actor.ID
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			for _, app := range apps {
				if err := s.applications.UpdateStatus(ctx, app.ID, model.ApplicationStatusApproved, &reviewer, now); err != nil {
					return fmt.Errorf("approve application %d: %w", app.ID, err)
				}
				app.Status = model.ApplicationStatusApproved
				app.ReviewedAt = &now
				app.ReviewedBy = &reviewer
			}
			return nil
		})
		if err != nil {
			return err
		}
		approved = apps
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Juror applications approved",
		zap.Int64("case_id", caseID),
		zap.Int("count", len(approved)),
		zap.Int64("reviewer_id", actor.ID),
	)
	for _, app := range approved {
		deliver(ctx, s.notifier, s.logger, notify.ForCase(app.JurorID, model.UserTypeJuror, caseID,
			model.NotificationApplicationApproved, "You were selected as a juror", ""))
	}
	return approved, nil
}

func (s *ApplicationService) Reject(ctx context.Context, caseID, applicationID int64, actor Actor) (*model.JurorApplication, error) {
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return nil, err
	}

	app, err := s.loadApplication(ctx, caseID, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.IsPending() {
		return nil, apperr.Validation("application %d is %s, only pending applications can be rejected", applicationID, app.Status)
	}

	now := s.now()
	reviewer := actor.ID
	if err := s.applications.UpdateStatus(ctx, app.ID, model.ApplicationStatusRejected, &reviewer, now); err != nil {
		return nil, fmt.Errorf("reject application: %w", err)
	}
	app.Status = model.ApplicationStatusRejected
	app.ReviewedAt = &now
	app.ReviewedBy = &reviewer

	deliver(ctx, s.notifier, s.logger, notify.ForCase(app.JurorID, model.UserTypeJuror, caseID,
		model.NotificationApplicationRejected, "Your juror application was declined", ""))
	return app, nil
}

// Withdraw lets a juror leave a case while its roster is still open.
func (s *ApplicationService) Withdraw(ctx context.Context, caseID, applicationID, jurorID int64) (*model.JurorApplication, error) {
	app, err := s.loadApplication(ctx, caseID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.JurorID != jurorID {
		return nil, apperr.Forbidden("application %d belongs to another juror", applicationID)
	}
	if app.Status != model.ApplicationStatusPending && app.Status != model.ApplicationStatusApproved {
		return nil, apperr.Validation("application %d is already %s", applicationID, app.Status)
	}

	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := rosterOpen(c); err != nil {
		return nil, err
	}

	if err := s.applications.UpdateStatus(ctx, app.ID, model.ApplicationStatusWithdrawn, nil, s.now()); err != nil {
		return nil, fmt.Errorf("withdraw application: %w", err)
	}
	app.Status = model.ApplicationStatusWithdrawn

	s.logger.Info("Juror withdrew", zap.Int64("case_id", caseID), zap.Int64("juror_id", jurorID))
	return app, nil
}

// ListForCase returns the applications of a case to its owner or an admin.
func (s *ApplicationService) ListForCase(ctx context.Context, caseID int64, actor Actor) ([]*model.JurorApplication, error) {
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, c); err != nil {
		return nil, err
	}

	apps, err := s.applications.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}
