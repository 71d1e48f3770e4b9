// Package httpapi exposes the scheduling core over JSON/REST.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type CaseAPI interface {
	Submit(ctx context.Context, attorneyID int64, in service.SubmitInput) (*model.Case, error)
	Get(ctx context.Context, caseID int64, actor service.Actor) (*model.Case, error)
	ListForAttorney(ctx context.Context, attorneyID int64) ([]*model.Case, error)
	Delete(ctx context.Context, caseID int64, actor service.Actor) error
	Review(ctx context.Context, caseID, adminID int64, in service.ReviewDecision) (*service.ReviewResult, error)
	CheckSlotAvailability(ctx context.Context, caseID int64, actor service.Actor) (*service.SlotCheck, error)
	SubmitWarRoom(ctx context.Context, caseID int64, actor service.Actor) (*service.WarRoomResult, error)
	RequestTransition(ctx context.Context, caseID int64, actor service.Actor, req service.TransitionRequest) (*service.TransitionResult, error)
}

type ApplicationAPI interface {
	Apply(ctx context.Context, caseID, jurorID int64) (*model.JurorApplication, error)
	Approve(ctx context.Context, caseID, applicationID int64, actor service.Actor) (*model.JurorApplication, error)
	BatchApprove(ctx context.Context, caseID int64, applicationIDs []int64, actor service.Actor) ([]*model.JurorApplication, error)
	Reject(ctx context.Context, caseID, applicationID int64, actor service.Actor) (*model.JurorApplication, error)
	Withdraw(ctx context.Context, caseID, applicationID, jurorID int64) (*model.JurorApplication, error)
	ListForCase(ctx context.Context, caseID int64, actor service.Actor) ([]*model.JurorApplication, error)
}

type RescheduleAPI interface {
	OfferAlternates(ctx context.Context, caseID, adminID int64, slots []model.Slot, comments string) (*model.RescheduleRequest, error)
	ConfirmSlot(ctx context.Context, caseID, attorneyID int64, slot model.Slot) (*service.RescheduleOutcome, error)
	RequestDifferentSlots(ctx context.Context, caseID, attorneyID int64, message string) (*model.RescheduleRequest, error)
	ProposeReschedule(ctx context.Context, caseID, attorneyID int64, in service.ProposeInput) (*model.RescheduleRequest, error)
	ApproveRequest(ctx context.Context, requestID, adminID int64, comments string) (*service.RescheduleOutcome, error)
	RejectRequest(ctx context.Context, requestID, adminID int64, reason string) (*model.RescheduleRequest, error)
	GetPending(ctx context.Context, caseID int64) (*model.RescheduleRequest, error)
	ListPending(ctx context.Context) ([]*model.RescheduleRequest, error)
}

type TrialAPI interface {
	Join(ctx context.Context, caseID int64, actor service.Actor) (*service.JoinResult, error)
	Leave(ctx context.Context, caseID int64, actor service.Actor) error
	End(ctx context.Context, caseID int64, actor service.Actor) (*model.Case, error)
	RemoveParticipant(ctx context.Context, caseID int64, admin service.Actor, userID int64, userType model.UserType) error
	ListActiveParticipants(ctx context.Context, caseID int64) ([]*model.Participant, error)
}

type SlotAPI interface {
	BlockSlot(ctx context.Context, adminID int64, date string, tm *string, reason string) (*model.SlotBlock, error)
	UnblockSlot(ctx context.Context, date string, tm *string) (bool, error)
	ListBlocks(ctx context.Context, from, to string) ([]*model.SlotBlock, error)
}

// API holds the collaborators behind the REST surface.
type API struct {
	Cases        CaseAPI
	Applications ApplicationAPI
	Reschedules  RescheduleAPI
	Trials       TrialAPI
	Slots        SlotAPI
	Logger       *zap.Logger
	// RequestTimeout bounds every /api/v1 request; zero means 30s.
	RequestTimeout time.Duration
}

// actorHandler is a handler that runs with an authenticated caller.
type actorHandler func(w http.ResponseWriter, r *http.Request, actor service.Actor) error

func (a *API) handle(h actorHandler) http.Handler {
	return a.principal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		if err := h(w, r, actor); err != nil {
			a.writeError(w, r, err)
		}
	}))
}

// Router builds the mux with every route.
func (a *API) Router() *mux.Router {
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}
	limit := a.RequestTimeout
	if limit <= 0 {
		limit = 30 * time.Second
	}

	r := mux.NewRouter()
	r.Use(requestID, accessLog(a.Logger))

	// liveness, no principal required
	r.HandleFunc("/health", a.healthCheck).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(timeout(limit))

	// Cases
	v1.Handle("/cases", a.handle(a.submitCase)).Methods(http.MethodPost)
	v1.Handle("/cases", a.handle(a.listCases)).Methods(http.MethodGet)
	v1.Handle("/cases/{id}", a.handle(a.getCase)).Methods(http.MethodGet)
	v1.Handle("/cases/{id}", a.handle(a.deleteCase)).Methods(http.MethodDelete)
	v1.Handle("/cases/{id}/review", a.handle(a.reviewCase)).Methods(http.MethodPost)
	v1.Handle("/cases/{id}/check-slot-availability", a.handle(a.checkSlot)).Methods(http.MethodPost)
	v1.Handle("/cases/{id}/submit-war-room", a.handle(a.submitWarRoom)).Methods(http.MethodPost)
	v1.Handle("/cases/{id}/status", a.handle(a.transition)).Methods(http.MethodPut)

	// Reschedules
	v1.Handle("/cases/{id}/request-reschedule", a.handle(a.requestReschedule)).Methods(http.MethodPost)
	v1.Handle("/cases/{id}/confirm-reschedule", a.handle(a.confirmReschedule)).Methods(http.MethodPost)
	v1.Handle("/cases/{id}/request-different-slots", a.handle(a.requestDifferentSlots)).Methods(http.MethodPost)
	v1.Handle("/cases/{id}/reschedule-request", a.handle(a.pendingReschedule)).Methods(http.MethodGet)
	v1.Handle("/reschedule-requests", a.handle(a.listReschedules)).Methods(http.MethodGet)
	v1.Handle("/reschedule-requests/{id}/approve", a.handle(a.approveReschedule)).Methods(http.MethodPost)
	v1.Handle("/reschedule-requests/{id}/reject", a.handle(a.rejectReschedule)).Methods(http.MethodPost)

	// Juror applications
	v1.Handle("/cases/{caseId}/applications", a.handle(a.apply)).Methods(http.MethodPost)
	v1.Handle("/cases/{caseId}/applications", a.handle(a.listApplications)).Methods(http.MethodGet)
	v1.Handle("/cases/{caseId}/applications/batch-approve", a.handle(a.batchApprove)).Methods(http.MethodPost)
	v1.Handle("/cases/{caseId}/applications/{id}/approve", a.handle(a.approveApplication)).Methods(http.MethodPost)
	v1.Handle("/cases/{caseId}/applications/{id}/reject", a.handle(a.rejectApplication)).Methods(http.MethodPost)
	v1.Handle("/cases/{caseId}/applications/{id}/withdraw", a.handle(a.withdraw)).Methods(http.MethodPost)

	// Slot blocks
	v1.Handle("/slot-blocks", a.handle(a.blockSlot)).Methods(http.MethodPost)
	v1.Handle("/slot-blocks", a.handle(a.unblockSlot)).Methods(http.MethodDelete)
	v1.Handle("/slot-blocks", a.handle(a.listBlocks)).Methods(http.MethodGet)

	// Trial sessions
	v1.Handle("/trial/join/{caseId}", a.handle(a.joinAs(model.UserTypeAttorney))).Methods(http.MethodPost)
	v1.Handle("/trial/juror-join/{caseId}", a.handle(a.joinAs(model.UserTypeJuror))).Methods(http.MethodPost)
	v1.Handle("/trial/admin-join/{caseId}", a.handle(a.joinAs(model.UserTypeAdmin))).Methods(http.MethodPost)
	v1.Handle("/trial/leave/{caseId}", a.handle(a.leave)).Methods(http.MethodPost)
	v1.Handle("/trial/end/{caseId}", a.handle(a.endTrial)).Methods(http.MethodPost)
	v1.Handle("/trial/{caseId}/participants", a.handle(a.participants)).Methods(http.MethodGet)
	v1.Handle("/trial/{caseId}/participants/{userType}/{userId}", a.handle(a.removeParticipant)).Methods(http.MethodDelete)

	return r
}

func (a *API) healthCheck(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}
