// Package casestate holds the case lifecycle: the status enum, the events that
// move a case between statuses, and the single transition table with its guards.
// It performs no I/O; services gather Facts and apply the returned Decision.
package casestate

import (
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
)

// Status is the lifecycle position of a case, derived from its admin and attorney statuses.
type Status string

const (
	StatusPending       Status = "pending"
	StatusWarRoom       Status = "war_room"
	StatusAwaitingTrial Status = "awaiting_trial"
	StatusJoinTrial     Status = "join_trial"
	StatusInTrial       Status = "in_trial"
	StatusViewDetails   Status = "view_details"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusRejected      Status = "rejected"
)

type Event string

const (
	EventApprove        Event = "approve"
	EventReject         Event = "reject"
	EventSubmitWarRoom  Event = "submit_war_room"
	EventOpenJoinWindow Event = "open_join_window"
	EventStartTrial     Event = "start_trial"
	EventEndTrial       Event = "end_trial"
	EventComplete       Event = "complete"
	EventReschedule     Event = "reschedule"
	EventCancel         Event = "cancel"
)

// Facts are the guard inputs collected by the caller before deciding.
type Facts struct {
	SlotAvailable  bool
	ApprovedJurors int
	JurorFloor     int
	JurorCeiling   int
	JoinWindowOpen bool
}

// Guard returns an empty string when the transition may proceed, or the refusal message.
type Guard func(Facts) string

type Transition struct {
	From  Status
	Event Event
	To    Status
	// Admin is the admin status written with the transition, empty keeps the current one.
	Admin model.AdminStatus
	Guard Guard
}

// Decision is the structured outcome of a transition attempt.
type Decision struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	From    Status `json:"from"`
	To      Status `json:"to,omitempty"`

	Admin model.AdminStatus `json:"-"`
}

func slotAvailable(f Facts) string {
	if !f.SlotAvailable {
		return "scheduled slot is occupied by another case"
	}
	return ""
}

func jurorsWithinBounds(f Facts) string {
	if f.ApprovedJurors < f.JurorFloor {
		return fmt.Sprintf("at least %d approved jurors are required, have %d", f.JurorFloor, f.ApprovedJurors)
	}
	if f.ApprovedJurors > f.JurorCeiling {
		return fmt.Sprintf("at most %d approved jurors are allowed, have %d", f.JurorCeiling, f.ApprovedJurors)
	}
	return ""
}

func joinWindowOpen(f Facts) string {
	if !f.JoinWindowOpen {
		return "trial join window is not open yet"
	}
	return ""
}

var table = []Transition{
	{From: StatusPending, Event: EventApprove, To: StatusWarRoom, Admin: model.AdminStatusApproved, Guard: slotAvailable},
	{From: StatusPending, Event: EventReject, To: StatusRejected, Admin: model.AdminStatusRejected},
	{From: StatusWarRoom, Event: EventSubmitWarRoom, To: StatusAwaitingTrial, Guard: jurorsWithinBounds},
	{From: StatusAwaitingTrial, Event: EventOpenJoinWindow, To: StatusJoinTrial, Guard: joinWindowOpen},
	{From: StatusJoinTrial, Event: EventStartTrial, To: StatusInTrial},
	{From: StatusJoinTrial, Event: EventEndTrial, To: StatusViewDetails},
	{From: StatusInTrial, Event: EventEndTrial, To: StatusViewDetails},
	{From: StatusViewDetails, Event: EventComplete, To: StatusCompleted},

	// A confirmed admin offer approves a case that was stuck on a conflict.
	{From: StatusPending, Event: EventReschedule, To: StatusWarRoom, Admin: model.AdminStatusApproved, Guard: slotAvailable},
	{From: StatusWarRoom, Event: EventReschedule, To: StatusWarRoom, Admin: model.AdminStatusApproved, Guard: slotAvailable},
	{From: StatusAwaitingTrial, Event: EventReschedule, To: StatusWarRoom, Admin: model.AdminStatusApproved, Guard: slotAvailable},
	{From: StatusJoinTrial, Event: EventReschedule, To: StatusWarRoom, Admin: model.AdminStatusApproved, Guard: slotAvailable},

	{From: StatusPending, Event: EventCancel, To: StatusCancelled, Admin: model.AdminStatusCancelled},
	{From: StatusWarRoom, Event: EventCancel, To: StatusCancelled, Admin: model.AdminStatusCancelled},
	{From: StatusAwaitingTrial, Event: EventCancel, To: StatusCancelled, Admin: model.AdminStatusCancelled},
}

var undeletable = map[Status]bool{
	StatusJoinTrial:   true,
	StatusInTrial:     true,
	StatusViewDetails: true,
	StatusCompleted:   true,
}

// Of derives the lifecycle status of a case.
func Of(c *model.Case) Status {
	switch {
	case c.AdminStatus == model.AdminStatusRejected:
		return StatusRejected
	case c.AdminStatus == model.AdminStatusCancelled, c.AttorneyStatus == model.AttorneyStatusCancelled:
		return StatusCancelled
	case c.AdminStatus == model.AdminStatusPending:
		return StatusPending
	}
	return Status(c.AttorneyStatus)
}

// Decide looks up (from, event) in the table and evaluates its guard.
// A missing entry is a refusal, never a silent success.
func Decide(from Status, event Event, facts Facts) Decision {
	tr, ok := lookup(from, event)
	if !ok {
		return Decision{
			Valid:   false,
			From:    from,
			Message: fmt.Sprintf("transition %q is not allowed from status %q", event, from),
		}
	}
	if tr.Guard != nil {
		if msg := tr.Guard(facts); msg != "" {
			return Decision{Valid: false, From: from, To: tr.To, Message: msg}
		}
	}
	return Decision{Valid: true, From: from, To: tr.To, Admin: tr.Admin}
}

// EventFor finds the event that moves a case from one status to another.
func EventFor(from, to Status) (Event, bool) {
	for _, tr := range table {
		if tr.From == from && tr.To == to {
			return tr.Event, true
		}
	}
	return "", false
}

// Allowed lists the events accepted from a status.
func Allowed(from Status) []Event {
	var events []Event
	for _, tr := range table {
		if tr.From == from {
			events = append(events, tr.Event)
		}
	}
	return events
}

// CanDelete reports whether a case in this status may still be cancelled or deleted.
func CanDelete(s Status) bool {
	return !undeletable[s]
}

// Apply writes an accepted decision onto the case.
func Apply(c *model.Case, d Decision) {
	if !d.Valid {
		return
	}
	if d.Admin != "" {
		c.AdminStatus = d.Admin
	}
	switch d.To {
	case StatusRejected:
		// attorney status stays as submitted
	case StatusCancelled:
		c.AttorneyStatus = model.AttorneyStatusCancelled
	default:
		c.AttorneyStatus = model.AttorneyStatus(d.To)
	}
}

// Valid checks that s names a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWarRoom, StatusAwaitingTrial, StatusJoinTrial, StatusInTrial,
		StatusViewDetails, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

func lookup(from Status, event Event) (Transition, bool) {
	for _, tr := range table {
		if tr.From == from && tr.Event == event {
			return tr, true
		}
	}
	return Transition{}, false
}
