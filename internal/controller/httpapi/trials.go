package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"github.com/gorilla/mux"
)

// joinAs serves one of the role-specific join routes.
func (a *API) joinAs(role model.UserType) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
		if err := requireRole(actor, role); err != nil {
			return err
		}
		caseID, err := pathID(r, "caseId")
		if err != nil {
			return err
		}
		res, err := a.Trials.Join(r.Context(), caseID, actor)
		if err != nil {
			return err
		}
		a.writeJSON(w, http.StatusOK, res)
		return nil
	}
}

func (a *API) leave(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	if err := a.Trials.Leave(r.Context(), caseID, actor); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) endTrial(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	c, err := a.Trials.End(r.Context(), caseID, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, c)
	return nil
}

func (a *API) participants(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeAdmin); err != nil {
		return err
	}
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	list, err := a.Trials.ListActiveParticipants(r.Context(), caseID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*model.Participant{}
	}
	a.writeJSON(w, http.StatusOK, list)
	return nil
}

func (a *API) removeParticipant(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		return err
	}
	userType := model.UserType(mux.Vars(r)["userType"])

	if err := a.Trials.RemoveParticipant(r.Context(), caseID, actor, userID, userType); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
