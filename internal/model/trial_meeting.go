package model

import "time"

type MeetingStatus string

const (
	MeetingStatusCreated   MeetingStatus = "created"
	MeetingStatusActive    MeetingStatus = "active"
	MeetingStatusCompleted MeetingStatus = "completed"
	MeetingStatusRetired   MeetingStatus = "retired" // кейс перенесён, комната старого слота
)

// TrialMeeting is the live-session root for a case
type TrialMeeting struct {
	ID                  int64         `json:"id"`
	CaseID              int64         `json:"case_id"`
	RoomID              string        `json:"room_id"`
	ChatThreadID        string        `json:"chat_thread_id"`        // пусто, если чат не создался
	ChatServiceIdentity string        `json:"chat_service_identity"` // identity, от имени которой создан тред
	Status              MeetingStatus `json:"status"`
	ValidUntil          *time.Time    `json:"valid_until,omitempty"` // до какого момента комната действует у провайдера
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// HasChat checks if the meeting has a chat thread attached
func (m *TrialMeeting) HasChat() bool {
	return m.ChatThreadID != ""
}

// Serves reports whether the room can still host a trial starting at start.
func (m *TrialMeeting) Serves(start time.Time) bool {
	if m.Status == MeetingStatusRetired {
		return false
	}
	return m.ValidUntil == nil || start.Before(*m.ValidUntil)
}
