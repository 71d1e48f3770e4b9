package model

import "time"

// Notification types emitted by the scheduling core
const (
	NotificationCaseApproved        = "case_approved"
	NotificationCaseRejected        = "case_rejected"
	NotificationCaseStatusChanged   = "case_status_changed"
	NotificationSlotConflict        = "slot_conflict"
	NotificationRescheduleOffered   = "reschedule_offered"
	NotificationRescheduleRequested = "reschedule_requested"
	NotificationRescheduleApproved  = "reschedule_approved"
	NotificationRescheduleRejected  = "reschedule_rejected"
	NotificationDifferentSlotsAsked = "different_slots_requested"
	NotificationApplicationsReset   = "applications_reset"
	NotificationApplicationApproved = "application_approved"
	NotificationApplicationRejected = "application_rejected"
	NotificationSlotBlocked         = "slot_blocked"
	NotificationSlotUnblocked       = "slot_unblocked"
	NotificationTrialReady          = "trial_ready"
	NotificationTrialEnded          = "trial_ended"
)

type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	UserType  UserType   `json:"user_type"`
	CaseID    *int64     `json:"case_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}
