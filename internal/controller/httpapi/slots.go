package httpapi

import (
	"net/http"
	"strings"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
)

func optionalTime(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

func (a *API) blockSlot(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	var body struct {
		Date   string `json:"date"`
		Time   string `json:"time"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}

	block, err := a.Slots.BlockSlot(r.Context(), actor.ID, body.Date, optionalTime(body.Time), body.Reason)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, block)
	return nil
}

func (a *API) unblockSlot(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		return apperr.Validation("date query parameter is required")
	}

	removed, err := a.Slots.UnblockSlot(r.Context(), date, optionalTime(q.Get("time")))
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	return nil
}

func (a *API) listBlocks(w http.ResponseWriter, r *http.Request, _ service.Actor) error {
	q := r.URL.Query()
	blocks, err := a.Slots.ListBlocks(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		return err
	}
	if blocks == nil {
		blocks = []*model.SlotBlock{}
	}
	a.writeJSON(w, http.StatusOK, blocks)
	return nil
}
