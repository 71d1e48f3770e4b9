package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
)

func (a *API) apply(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeJuror); err != nil {
		return err
	}
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	app, err := a.Applications.Apply(r.Context(), caseID, actor.ID)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusCreated, app)
	return nil
}

func (a *API) listApplications(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	apps, err := a.Applications.ListForCase(r.Context(), caseID, actor)
	if err != nil {
		return err
	}
	if apps == nil {
		apps = []*model.JurorApplication{}
	}
	a.writeJSON(w, http.StatusOK, apps)
	return nil
}

// applicationIDs reads both path ids of an application route.
func applicationIDs(r *http.Request) (int64, int64, error) {
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return 0, 0, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	return caseID, id, nil
}

func (a *API) approveApplication(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, id, err := applicationIDs(r)
	if err != nil {
		return err
	}
	app, err := a.Applications.Approve(r.Context(), caseID, id, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, app)
	return nil
}

func (a *API) rejectApplication(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, id, err := applicationIDs(r)
	if err != nil {
		return err
	}
	app, err := a.Applications.Reject(r.Context(), caseID, id, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, app)
	return nil
}

func (a *API) batchApprove(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	caseID, err := pathID(r, "caseId")
	if err != nil {
		return err
	}
	var body struct {
		ApplicationIDs []int64 `json:"applicationIds"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}

	apps, err := a.Applications.BatchApprove(r.Context(), caseID, body.ApplicationIDs, actor)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"approved": apps})
	return nil
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request, actor service.Actor) error {
	if err := requireRole(actor, model.UserTypeJuror); err != nil {
		return err
	}
	caseID, id, err := applicationIDs(r)
	if err != nil {
		return err
	}
	app, err := a.Applications.Withdraw(r.Context(), caseID, id, actor.ID)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, app)
	return nil
}
