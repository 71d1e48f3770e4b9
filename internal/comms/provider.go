// Package comms talks to the external real-time communication provider that
// hosts trial rooms (audio/video) and chat threads.
package comms

import (
	"context"
	"time"
)

// RoomRole is the permission level of an identity inside a room.
type RoomRole string

const (
	RolePresenter RoomRole = "Presenter"
	RoleAttendee  RoomRole = "Attendee"
)

// Scope limits what an access token may be used for.
type Scope string

const (
	ScopeVoIP Scope = "voip"
	ScopeChat Scope = "chat"
)

// Token is a short-lived access token for one identity.
type Token struct {
	Value     string    `json:"token"`
	ExpiresOn time.Time `json:"expiresOn"`
}

// RoomOptions bounds when a room accepts connections.
type RoomOptions struct {
	ValidFrom  time.Time
	ValidUntil time.Time
}

// Provider is the contract the trial session manager needs from the provider.
type Provider interface {
	CreateRoom(ctx context.Context, opts RoomOptions) (string, error)
	AddParticipantToRoom(ctx context.Context, roomID, identity string, role RoomRole) error
	RemoveParticipantFromRoom(ctx context.Context, roomID, identity string) error

	CreateChatThread(ctx context.Context, topic, serviceIdentity string) (string, error)
	AddParticipantToChat(ctx context.Context, threadID, serviceIdentity, identity, displayName string) error
	RemoveParticipantFromChat(ctx context.Context, threadID, serviceIdentity, identity string) error

	CreateIdentity(ctx context.Context) (string, error)
	IssueToken(ctx context.Context, identity string, scopes ...Scope) (Token, error)
}
