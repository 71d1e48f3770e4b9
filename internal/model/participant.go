package model

import "time"

// Participant is one attachment of a user to a trial meeting.
// Historical rows are kept; at most one row per (meeting, user, user type) is active.
type Participant struct {
	ID               int64      `json:"id"`
	MeetingID        int64      `json:"meeting_id"`
	UserID           int64      `json:"user_id"`
	UserType         UserType   `json:"user_type"`
	DisplayName      string     `json:"display_name"`
	ExternalIdentity string     `json:"external_identity"`
	JoinedAt         time.Time  `json:"joined_at"`
	LeftAt           *time.Time `json:"left_at"`
	RemovedAt        *time.Time `json:"removed_at"`
}

// IsActive checks that the participant has neither left nor been removed
func (p *Participant) IsActive() bool {
	return p.LeftAt == nil && p.RemovedAt == nil
}
