package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func juror(id int64) Actor {
	return Actor{ID: id, Type: model.UserTypeJuror, Name: "Juror"}
}

func (f *fixture) meeting(t *testing.T, caseID int64) *model.TrialMeeting {
	t.Helper()
	m, err := fakeMeetings{db: f.db}.GetByCaseID(context.Background(), caseID)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

// openTrial returns an awaiting case with the clock moved inside its join window.
func openTrial(t *testing.T, f *fixture) *model.Case {
	t.Helper()
	c := f.awaitingTrial(t, "2026-03-10", "10:00")
	f.now = time.Date(2026, 3, 10, 9, 50, 0, 0, time.UTC)
	return c
}

func TestJoinWindowUsesCaseOffset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.cases.Submit(ctx, attorneyID, SubmitInput{
		Title:         "People v. Eastern",
		ScheduledDate: "2026-03-10",
		ScheduledTime: "10:00",
		StateCode:     "NY",
	})
	require.NoError(t, err)
	require.Equal(t, -300, c.TimezoneOffsetMinutes)
	_, err = f.cases.Review(ctx, c.ID, adminID, ReviewDecision{Approve: true})
	require.NoError(t, err)
	f.seatJurors(t, c.ID, 5)
	_, err = f.cases.SubmitWarRoom(ctx, c.ID, attorney)
	require.NoError(t, err)

	// 10:00 in New York is 15:00 UTC, the room opens at 14:45 UTC
	f.now = time.Date(2026, 3, 10, 14, 44, 59, 0, time.UTC)
	_, err = f.trials.Join(ctx, c.ID, attorney)
	assert.True(t, apperr.HasCode(err, apperr.CodeTrialNotOpen))
	_, err = f.trials.Join(ctx, c.ID, juror(5000))
	assert.True(t, apperr.HasCode(err, apperr.CodeTrialNotOpen))

	f.now = time.Date(2026, 3, 10, 14, 45, 0, 0, time.UTC)
	res, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, model.AttorneyStatusInTrial, f.caseRow(t, c.ID).AttorneyStatus)
}

func TestAdminJoinsBeforeWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.awaitingTrial(t, "2026-03-10", "10:00")

	_, err := f.trials.Join(ctx, c.ID, attorney)
	assert.True(t, apperr.HasCode(err, apperr.CodeTrialNotOpen))

	res, err := f.trials.Join(ctx, c.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, f.meeting(t, c.ID).RoomID, res.RoomID)
	assert.Equal(t, model.AttorneyStatusAwaitingTrial, f.caseRow(t, c.ID).AttorneyStatus)
}

func TestJoinRequiresOpenTrial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.approved(t, "2026-03-10", "10:00")

	_, err := f.trials.Join(ctx, c.ID, admin)
	assert.True(t, apperr.HasCode(err, apperr.CodeTrialNotOpen))
}

func TestFirstJoinStartsTrial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)

	res, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)

	m := f.meeting(t, c.ID)
	assert.Equal(t, model.MeetingStatusActive, m.Status)
	assert.Equal(t, model.AttorneyStatusInTrial, f.caseRow(t, c.ID).AttorneyStatus)
	assert.Equal(t, "token-"+res.UserID, res.Token)
	assert.Equal(t, m.ChatThreadID, res.ChatThreadID)
	assert.False(t, res.Degraded)
	assert.Contains(t, f.provider.roomMembers(m.RoomID), res.UserID)
	assert.True(t, f.provider.threadMembers(m.ChatThreadID)[res.UserID])

	jr, err := f.trials.Join(ctx, c.ID, juror(5001))
	require.NoError(t, err)
	assert.Equal(t, "Attendee", string(f.provider.roomMembers(m.RoomID)[jr.UserID]))
	assert.Equal(t, "Presenter", string(f.provider.roomMembers(m.RoomID)[res.UserID]))
}

func TestJoinRejectsUnseatedJuror(t *testing.T) {
	f := newFixture(t)
	c := openTrial(t, f)

	_, err := f.trials.Join(context.Background(), c.ID, juror(4242))
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	_, err = f.trials.Join(context.Background(), c.ID, Actor{ID: 77, Type: model.UserTypeAttorney})
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))
}

func TestRejoinKeepsOneActiveIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)
	m := f.meeting(t, c.ID)

	first, err := f.trials.Join(ctx, c.ID, juror(5002))
	require.NoError(t, err)
	second, err := f.trials.Join(ctx, c.ID, juror(5002))
	require.NoError(t, err)
	assert.NotEqual(t, first.UserID, second.UserID)

	active := f.activeParticipants(m.ID, 5002)
	require.Len(t, active, 1)
	assert.Equal(t, second.UserID, active[0].ExternalIdentity)

	members := f.provider.roomMembers(m.RoomID)
	assert.NotContains(t, members, first.UserID)
	assert.Contains(t, members, second.UserID)
	assert.False(t, f.provider.threadMembers(m.ChatThreadID)[first.UserID])
}

func TestRejoinToleratesStaleCleanupFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)
	m := f.meeting(t, c.ID)

	_, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)

	f.provider.failOn("RemoveParticipantFromRoom", errProvider)
	f.provider.failOn("RemoveParticipantFromChat", errProvider)
	second, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)

	active := f.activeParticipants(m.ID, attorneyID)
	require.Len(t, active, 1)
	assert.Equal(t, second.UserID, active[0].ExternalIdentity)
	assert.Equal(t, 1, f.provider.count("RemoveParticipantFromRoom"))
}

func TestJoinDegradesWithoutChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)

	f.provider.failOn("AddParticipantToChat", errProvider)
	res, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Token)
	assert.Len(t, f.activeParticipants(f.meeting(t, c.ID).ID, attorneyID), 1)
}

func TestMeetingWithoutChatThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.failOn("CreateChatThread", errProvider)
	c := openTrial(t, f)

	m := f.meeting(t, c.ID)
	assert.False(t, m.HasChat())
	assert.NotEmpty(t, m.RoomID)

	res, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.ChatThreadID)
	assert.Zero(t, f.provider.count("AddParticipantToChat"))
}

func TestJoinFailsOnProviderErrors(t *testing.T) {
	for _, op := range []string{"CreateIdentity", "AddParticipantToRoom", "IssueToken"} {
		t.Run(op, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			c := openTrial(t, f)
			m := f.meeting(t, c.ID)

			f.provider.failOn(op, errProvider)
			_, err := f.trials.Join(ctx, c.ID, attorney)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindExternal))
			assert.ErrorIs(t, err, errProvider)
			assert.Empty(t, f.activeParticipants(m.ID, attorneyID))
			assert.Equal(t, model.MeetingStatusCreated, f.meeting(t, c.ID).Status)
		})
	}
}

func TestJoinWithoutMeeting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)

	f.db.mu.Lock()
	for id, m := range f.db.meetings {
		if m.CaseID == c.ID {
			delete(f.db.meetings, id)
		}
	}
	f.db.mu.Unlock()

	_, err := f.trials.Join(ctx, c.ID, attorney)
	assert.True(t, apperr.HasCode(err, apperr.CodeMeetingNotFound))
}

func TestLeaveAndRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)
	m := f.meeting(t, c.ID)

	res, err := f.trials.Join(ctx, c.ID, juror(5003))
	require.NoError(t, err)
	require.NoError(t, f.trials.Leave(ctx, c.ID, juror(5003)))
	assert.Empty(t, f.activeParticipants(m.ID, 5003))
	assert.NotContains(t, f.provider.roomMembers(m.RoomID), res.UserID)
	require.NoError(t, f.trials.Leave(ctx, c.ID, juror(5003)))

	_, err = f.trials.Join(ctx, c.ID, juror(5004))
	require.NoError(t, err)

	err = f.trials.RemoveParticipant(ctx, c.ID, attorney, 5004, model.UserTypeJuror)
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	require.NoError(t, f.trials.RemoveParticipant(ctx, c.ID, admin, 5004, model.UserTypeJuror))
	assert.Empty(t, f.activeParticipants(m.ID, 5004))

	err = f.trials.RemoveParticipant(ctx, c.ID, admin, 5004, model.UserTypeJuror)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	err = f.trials.RemoveParticipant(ctx, c.ID, admin, 5004, model.UserType("guest"))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestEndTrialAndSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := openTrial(t, f)
	m := f.meeting(t, c.ID)

	_, err := f.trials.Join(ctx, c.ID, attorney)
	require.NoError(t, err)
	_, err = f.trials.Join(ctx, c.ID, juror(5000))
	require.NoError(t, err)

	_, err = f.trials.End(ctx, c.ID, juror(5000))
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	ended, err := f.trials.End(ctx, c.ID, attorney)
	require.NoError(t, err)
	assert.Equal(t, model.AttorneyStatusViewDetails, ended.AttorneyStatus)
	assert.Equal(t, model.MeetingStatusCompleted, f.meeting(t, c.ID).Status)
	endedNotes := f.sink.ofType(model.NotificationTrialEnded)
	require.Len(t, endedNotes, 1)
	assert.Contains(t, endedNotes[0].Title, "has ended")
	assert.Equal(t, attorneyID, endedNotes[0].UserID)

	_, err = f.trials.Join(ctx, c.ID, juror(5001))
	assert.True(t, apperr.HasCode(err, apperr.CodeTrialNotOpen))

	active, err := f.trials.ListActiveParticipants(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	closed, err := f.trials.SweepCompletedMeetings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, closed)
	assert.Empty(t, f.activeParticipants(m.ID, attorneyID))

	closed, err = f.trials.SweepCompletedMeetings(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)

	_, err = f.trials.End(ctx, c.ID, admin)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))
}

func TestEnsureMeetingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.approved(t, "2026-03-10", "10:00")

	first, created, err := f.trials.EnsureMeeting(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := f.trials.EnsureMeeting(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, f.provider.count("CreateRoom"))
}
