package service

import (
	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
)

// Actor is the authenticated caller as passed by the gateway.
type Actor struct {
	ID   int64
	Type model.UserType
	Name string
}

func (a Actor) IsAdmin() bool {
	return a.Type == model.UserTypeAdmin
}

func (a Actor) owns(c *model.Case) bool {
	return a.Type == model.UserTypeAttorney && c.AttorneyID == a.ID
}

// requireOwnerOrAdmin allows the owning attorney or any admin.
func requireOwnerOrAdmin(a Actor, c *model.Case) error {
	if a.IsAdmin() || a.owns(c) {
		return nil
	}
	return apperr.Forbidden("case %d is not accessible to %s %d", c.ID, a.Type, a.ID)
}

func requireOwner(a Actor, c *model.Case) error {
	if a.owns(c) {
		return nil
	}
	return apperr.Forbidden("only the owning attorney may do this on case %d", c.ID)
}

func requireAdmin(a Actor) error {
	if a.IsAdmin() {
		return nil
	}
	return apperr.Forbidden("admin role required")
}
