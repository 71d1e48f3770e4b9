package httpapi

import (
	"context"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"github.com/stretchr/testify/mock"
)

// typed pulls a possibly nil pointer out of mock arguments.
func typed[T any](args mock.Arguments, i int) T {
	var zero T
	v, ok := args.Get(i).(T)
	if !ok {
		return zero
	}
	return v
}

type mockCases struct{ mock.Mock }

func (m *mockCases) Submit(ctx context.Context, attorneyID int64, in service.SubmitInput) (*model.Case, error) {
	args := m.Called(ctx, attorneyID, in)
	return typed[*model.Case](args, 0), args.Error(1)
}

func (m *mockCases) Get(ctx context.Context, caseID int64, actor service.Actor) (*model.Case, error) {
	args := m.Called(ctx, caseID, actor)
	return typed[*model.Case](args, 0), args.Error(1)
}

func (m *mockCases) ListForAttorney(ctx context.Context, attorneyID int64) ([]*model.Case, error) {
	args := m.Called(ctx, attorneyID)
	return typed[[]*model.Case](args, 0), args.Error(1)
}

func (m *mockCases) Delete(ctx context.Context, caseID int64, actor service.Actor) error {
	return m.Called(ctx, caseID, actor).Error(0)
}

func (m *mockCases) Review(ctx context.Context, caseID, adminID int64, in service.ReviewDecision) (*service.ReviewResult, error) {
	args := m.Called(ctx, caseID, adminID, in)
	return typed[*service.ReviewResult](args, 0), args.Error(1)
}

func (m *mockCases) CheckSlotAvailability(ctx context.Context, caseID int64, actor service.Actor) (*service.SlotCheck, error) {
	args := m.Called(ctx, caseID, actor)
	return typed[*service.SlotCheck](args, 0), args.Error(1)
}

func (m *mockCases) SubmitWarRoom(ctx context.Context, caseID int64, actor service.Actor) (*service.WarRoomResult, error) {
	args := m.Called(ctx, caseID, actor)
	return typed[*service.WarRoomResult](args, 0), args.Error(1)
}

func (m *mockCases) RequestTransition(ctx context.Context, caseID int64, actor service.Actor, req service.TransitionRequest) (*service.TransitionResult, error) {
	args := m.Called(ctx, caseID, actor, req)
	return typed[*service.TransitionResult](args, 0), args.Error(1)
}

type mockApplications struct{ mock.Mock }

func (m *mockApplications) Apply(ctx context.Context, caseID, jurorID int64) (*model.JurorApplication, error) {
	args := m.Called(ctx, caseID, jurorID)
	return typed[*model.JurorApplication](args, 0), args.Error(1)
}

func (m *mockApplications) Approve(ctx context.Context, caseID, applicationID int64, actor service.Actor) (*model.JurorApplication, error) {
	args := m.Called(ctx, caseID, applicationID, actor)
	return typed[*model.JurorApplication](args, 0), args.Error(1)
}

func (m *mockApplications) BatchApprove(ctx context.Context, caseID int64, applicationIDs []int64, actor service.Actor) ([]*model.JurorApplication, error) {
	args := m.Called(ctx, caseID, applicationIDs, actor)
	return typed[[]*model.JurorApplication](args, 0), args.Error(1)
}

func (m *mockApplications) Reject(ctx context.Context, caseID, applicationID int64, actor service.Actor) (*model.JurorApplication, error) {
	args := m.Called(ctx, caseID, applicationID, actor)
	return typed[*model.JurorApplication](args, 0), args.Error(1)
}

func (m *mockApplications) Withdraw(ctx context.Context, caseID, applicationID, jurorID int64) (*model.JurorApplication, error) {
	args := m.Called(ctx, caseID, applicationID, jurorID)
	return typed[*model.JurorApplication](args, 0), args.Error(1)
}

func (m *mockApplications) ListForCase(ctx context.Context, caseID int64, actor service.Actor) ([]*model.JurorApplication, error) {
	args := m.Called(ctx, caseID, actor)
	return typed[[]*model.JurorApplication](args, 0), args.Error(1)
}

type mockReschedules struct{ mock.Mock }

func (m *mockReschedules) OfferAlternates(ctx context.Context, caseID, adminID int64, slots []model.Slot, comments string) (*model.RescheduleRequest, error) {
	args := m.Called(ctx, caseID, adminID, slots, comments)
	return typed[*model.RescheduleRequest](args, 0), args.Error(1)
}

func (m *mockReschedules) ConfirmSlot(ctx context.Context, caseID, attorneyID int64, slot model.Slot) (*service.RescheduleOutcome, error) {
	args := m.Called(ctx, caseID, attorneyID, slot)
	return typed[*service.RescheduleOutcome](args, 0), args.Error(1)
}

func (m *mockReschedules) RequestDifferentSlots(ctx context.Context, caseID, attorneyID int64, message string) (*model.RescheduleRequest, error) {
	args := m.Called(ctx, caseID, attorneyID, message)
	return typed[*model.RescheduleRequest](args, 0), args.Error(1)
}

func (m *mockReschedules) ProposeReschedule(ctx context.Context, caseID, attorneyID int64, in service.ProposeInput) (*model.RescheduleRequest, error) {
	args := m.Called(ctx, caseID, attorneyID, in)
	return typed[*model.RescheduleRequest](args, 0), args.Error(1)
}

func (m *mockReschedules) ApproveRequest(ctx context.Context, requestID, adminID int64, comments string) (*service.RescheduleOutcome, error) {
	args := m.Called(ctx, requestID, adminID, comments)
	return typed[*service.RescheduleOutcome](args, 0), args.Error(1)
}

func (m *mockReschedules) RejectRequest(ctx context.Context, requestID, adminID int64, reason string) (*model.RescheduleRequest, error) {
	args := m.Called(ctx, requestID, adminID, reason)
	return typed[*model.RescheduleRequest](args, 0), args.Error(1)
}

func (m *mockReschedules) GetPending(ctx context.Context, caseID int64) (*model.RescheduleRequest, error) {
	args := m.Called(ctx, caseID)
	return typed[*model.RescheduleRequest](args, 0), args.Error(1)
}

func (m *mockReschedules) ListPending(ctx context.Context) ([]*model.RescheduleRequest, error) {
	args := m.Called(ctx)
	return typed[[]*model.RescheduleRequest](args, 0), args.Error(1)
}

type mockTrials struct{ mock.Mock }

func (m *mockTrials) Join(ctx context.Context, caseID int64, actor service.Actor) (*service.JoinResult, error) {
	args := m.Called(ctx, caseID, actor)
	return typed[*service.JoinResult](args, 0), args.Error(1)
}

func (m *mockTrials) Leave(ctx context.Context, caseID int64, actor service.Actor) error {
	return m.Called(ctx, caseID, actor).Error(0)
}

func (m *mockTrials) End(ctx context.Context, caseID int64, actor service.Actor) (*model.Case, error) {
	args := m.Called(ctx, caseID, actor)
	return typed[*model.Case](args, 0), args.Error(1)
}

func (m *mockTrials) RemoveParticipant(ctx context.Context, caseID int64, admin service.Actor, userID int64, userType model.UserType) error {
	return m.Called(ctx, caseID, admin, userID, userType).Error(0)
}

func (m *mockTrials) ListActiveParticipants(ctx context.Context, caseID int64) ([]*model.Participant, error) {
	args := m.Called(ctx, caseID)
	return typed[[]*model.Participant](args, 0), args.Error(1)
}

type mockSlots struct{ mock.Mock }

func (m *mockSlots) BlockSlot(ctx context.Context, adminID int64, date string, tm *string, reason string) (*model.SlotBlock, error) {
	args := m.Called(ctx, adminID, date, tm, reason)
	return typed[*model.SlotBlock](args, 0), args.Error(1)
}

func (m *mockSlots) UnblockSlot(ctx context.Context, date string, tm *string) (bool, error) {
	args := m.Called(ctx, date, tm)
	return args.Bool(0), args.Error(1)
}

func (m *mockSlots) ListBlocks(ctx context.Context, from, to string) ([]*model.SlotBlock, error) {
	args := m.Called(ctx, from, to)
	return typed[[]*model.SlotBlock](args, 0), args.Error(1)
}
