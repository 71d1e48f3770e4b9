package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
)

// Storage contracts, satisfied by the pgx repositories.

type CaseStore interface {
	Create(ctx context.Context, c *model.Case) error
	GetByID(ctx context.Context, id int64) (*model.Case, error)
	FindApprovedAtSlot(ctx context.Context, slot model.Slot, excludeID int64) (*model.Case, error)
	Update(ctx context.Context, c *model.Case) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	ListByAttorney(ctx context.Context, attorneyID int64) ([]*model.Case, error)
	ListByJuror(ctx context.Context, jurorID int64) ([]*model.Case, error)
}

type SlotBlockStore interface {
	Create(ctx context.Context, b *model.SlotBlock) (bool, error)
	GetExact(ctx context.Context, date string, tm *string) (*model.SlotBlock, error)
	FindCovering(ctx context.Context, slot model.Slot) (*model.SlotBlock, error)
	Delete(ctx context.Context, date string, tm *string) (int64, error)
	ListBetween(ctx context.Context, from, to string) ([]*model.SlotBlock, error)
}

type ApplicationStore interface {
	Create(ctx context.Context, a *model.JurorApplication) error
	GetByID(ctx context.Context, id int64) (*model.JurorApplication, error)
	GetByCaseAndJuror(ctx context.Context, caseID, jurorID int64) (*model.JurorApplication, error)
	CountApproved(ctx context.Context, caseID int64) (int, error)
	ListByCase(ctx context.Context, caseID int64) ([]*model.JurorApplication, error)
	UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus, reviewerID *int64, at time.Time) error
	DeleteByCase(ctx context.Context, caseID int64) (int64, error)
}

type RescheduleStore interface {
	Create(ctx context.Context, req *model.RescheduleRequest) error
	GetByID(ctx context.Context, id int64) (*model.RescheduleRequest, error)
	GetPendingByCase(ctx context.Context, caseID int64) (*model.RescheduleRequest, error)
	Update(ctx context.Context, req *model.RescheduleRequest) error
	ListPending(ctx context.Context) ([]*model.RescheduleRequest, error)
}

type MeetingStore interface {
	Create(ctx context.Context, m *model.TrialMeeting) (bool, error)
	GetByCaseID(ctx context.Context, caseID int64) (*model.TrialMeeting, error)
	TransitionStatus(ctx context.Context, id int64, from, to model.MeetingStatus) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status model.MeetingStatus) error
	ReplaceRoom(ctx context.Context, m *model.TrialMeeting) error
	ListWithStaleParticipants(ctx context.Context) ([]*model.TrialMeeting, error)
}

type ParticipantStore interface {
	Create(ctx context.Context, p *model.Participant) error
	GetActive(ctx context.Context, meetingID, userID int64, userType model.UserType) (*model.Participant, error)
	MarkLeft(ctx context.Context, id int64, at time.Time) error
	MarkRemoved(ctx context.Context, id int64, at time.Time) error
	ListActive(ctx context.Context, meetingID int64) ([]*model.Participant, error)
	CloseAllActive(ctx context.Context, meetingID int64, at time.Time) (int64, error)
}

// UserDirectory resolves recipients such as the active admins.
type UserDirectory interface {
	ListActive(ctx context.Context, types ...model.UserType) ([]*model.User, error)
}

// Transactor runs fn in one store transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, n model.Notification, types ...model.UserType) (int, error)
}
