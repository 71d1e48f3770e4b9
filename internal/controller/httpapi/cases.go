package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
)

func (a *API) submitCase(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAttorney); err != nil {
		return err
	}
	var in service.SubmitInput
	if err := decode(r, &in); err != nil {
		return err
	}

	c, err := a.Cases.Submit(r.Context(), actor.ID, in)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusCreated, c)
	return nil
}

func (a *API) listCases(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAttorney); err != nil {
		return err
	}
	cases, err := a.Cases.ListForAttorney(r.Context(), actor.ID)
	if err != nil {
		return err
	}
	if cases == nil {
		cases = []*model.Case{}
	}
	a.writeJSON(w, http.StatusOK, cases)
	return nil
}

func (a *API) getCase(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	c, err := a.Cases.Get(r.Context(), id, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, c)
	return nil
}

func (a *API) deleteCase(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := a.Cases.Delete(r.Context(), id, actor); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) reviewCase(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var in service.ReviewDecision
	if err := decode(r, &in); err != nil {
		return err
	}

	res, err := a.Cases.Review(r.Context(), id, actor.ID, in)
	if err != nil {
		return err
	}
	// конфликт слота - не ошибка, админ получает варианты действий
	a.writeJSON(w, http.StatusOK, res)
	return nil
}

func (a *API) checkSlot(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	check, err := a.Cases.CheckSlotAvailability(r.Context(), id, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, check)
	return nil
}

func (a *API) submitWarRoom(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	res, err := a.Cases.SubmitWarRoom(r.Context(), id, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, res)
	return nil
}

type refusedTransition struct {
	Valid   bool        `json:"valid"`
	Message string      `json:"message"`
	Error   errorBody   `json:"error"`
	Case    *model.Case `json:"case,omitempty"`
}

// transition answers refused edges with {valid:false,message} next to the error.
func (a *API) transition(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req service.TransitionRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	res, err := a.Cases.RequestTransition(r.Context(), id, actor, req)
	if err != nil {
		appErr, ok := apperr.As(err)
		if !ok || res == nil || res.Decision.Valid {
			return err
		}
		a.writeJSON(w, statusFor(appErr), refusedTransition{
			Valid:   false,
			Message: res.Decision.Message,
			Error:   envelope(appErr).Error,
			Case:    res.Case,
		})
		return nil
	}
	a.writeJSON(w, http.StatusOK, res)
	return nil
}
