package model

import "time"

type AdminStatus string

const (
	AdminStatusPending   AdminStatus = "pending"   // Ждёт решения администратора
	AdminStatusApproved  AdminStatus = "approved"  // Одобрено, слот занят
	AdminStatusRejected  AdminStatus = "rejected"  // Отклонено администратором
	AdminStatusCancelled AdminStatus = "cancelled" // Отменено владельцем или админом
)

type AttorneyStatus string

const (
	AttorneyStatusPending       AttorneyStatus = "pending"
	AttorneyStatusWarRoom       AttorneyStatus = "war_room"
	AttorneyStatusAwaitingTrial AttorneyStatus = "awaiting_trial"
	AttorneyStatusJoinTrial     AttorneyStatus = "join_trial"
	AttorneyStatusInTrial       AttorneyStatus = "in_trial"
	AttorneyStatusViewDetails   AttorneyStatus = "view_details"
	AttorneyStatusCompleted     AttorneyStatus = "completed"
	AttorneyStatusCancelled     AttorneyStatus = "cancelled"
)

// Case is a mock trial request submitted by an attorney.
type Case struct {
	ID                    int64          `json:"id"`
	AttorneyID            int64          `json:"attorney_id"`
	Title                 string         `json:"title"`
	AdminStatus           AdminStatus    `json:"admin_status"`
	AttorneyStatus        AttorneyStatus `json:"attorney_status"`
	ScheduledDate         string         `json:"scheduled_date"`          // YYYY-MM-DD
	ScheduledTime         string         `json:"scheduled_time"`          // HH:MM, wall clock
	TimezoneOffsetMinutes int            `json:"timezone_offset_minutes"` // minutes east of UTC
	StateCode             string         `json:"state_code"`
	RequiredJurors        int            `json:"required_jurors"`
	RescheduleRequired    bool           `json:"reschedule_required"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             *time.Time     `json:"deleted_at,omitempty"`
}

// HasSchedule reports whether both the date and time are set
func (c *Case) HasSchedule() bool {
	return c.ScheduledDate != "" && c.ScheduledTime != ""
}

// IsDeleted checks if the case was soft-deleted
func (c *Case) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Slot returns the scheduled slot of the case
func (c *Case) Slot() Slot {
	return Slot{Date: c.ScheduledDate, Time: c.ScheduledTime}
}

// StartsAt returns the scheduled start as an instant, using the offset stored with the case.
func (c *Case) StartsAt() (time.Time, error) {
	return c.Slot().In(c.TimezoneOffsetMinutes)
}
