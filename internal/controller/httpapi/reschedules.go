package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
)

// rescheduleBody carries both flavors: admins send alternates, attorneys a new slot.
type rescheduleBody struct {
	AlternateSlots   []model.Slot `json:"alternateSlots"`
	AdminComments    string       `json:"adminComments"`
	NewScheduledDate string       `json:"newScheduledDate"`
	NewScheduledTime string       `json:"newScheduledTime"`
	Reason           string       `json:"reason"`
	AttorneyComments string       `json:"attorneyComments"`
}

func (a *API) requestReschedule(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var body rescheduleBody
	if err := decode(r, &body); err != nil {
		return err
	}

	var req *model.RescheduleRequest
	switch actor.Type {
	case model.UserTypeAdmin:
		req, err = a.Reschedules.OfferAlternates(r.Context(), id, actor.ID, body.AlternateSlots, body.AdminComments)
	case model.UserTypeAttorney:
		req, err = a.Reschedules.ProposeReschedule(r.Context(), id, actor.ID, service.ProposeInput{
			Slot:             model.Slot{Date: body.NewScheduledDate, Time: body.NewScheduledTime},
			Reason:           body.Reason,
			AttorneyComments: body.AttorneyComments,
		})
	default:
		err = requireRole(actor, model.UserTypeAttorney)
	}
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusCreated, req)
	return nil
}

func (a *API) confirmReschedule(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAttorney); err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var body struct {
		SelectedSlot model.Slot `json:"selectedSlot"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}

	out, err := a.Reschedules.ConfirmSlot(r.Context(), id, actor.ID, body.SelectedSlot)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, out)
	return nil
}

func (a *API) requestDifferentSlots(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAttorney); err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}

	req, err := a.Reschedules.RequestDifferentSlots(r.Context(), id, actor.ID, body.Message)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, req)
	return nil
}

func (a *API) pendingReschedule(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	// доступ к делу проверяет Get
	if _, err := a.Cases.Get(r.Context(), id, actor); err != nil {
		return err
	}
	req, err := a.Reschedules.GetPending(r.Context(), id)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, req)
	return nil
}

func (a *API) listReschedules(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	reqs, err := a.Reschedules.ListPending(r.Context())
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []*model.RescheduleRequest{}
	}
	a.writeJSON(w, http.StatusOK, reqs)
	return nil
}

func (a *API) approveReschedule(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var body struct {
		Comments string `json:"comments"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}

	out, err := a.Reschedules.ApproveRequest(r.Context(), id, actor.ID, body.Comments)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, out)
	return nil
}

func (a *API) rejectReschedule(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}

	req, err := a.Reschedules.RejectRequest(r.Context(), id, actor.ID, body.Reason)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, req)
	return nil
}
