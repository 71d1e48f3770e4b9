package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const codeUnauthorized = "UNAUTHORIZED"

type errorBody struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	ConflictingCaseID int64  `json:"conflictingCaseId,omitempty"`
	SlotsRemaining    *int   `json:"slotsRemaining,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Error("Failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPolicy:
		if e.Code == apperr.CodeForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExternal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func envelope(e *apperr.Error) errorEnvelope {
	msg := e.Message
	if e.Kind == apperr.KindExternal {
		// детали провайдера наружу не отдаём
		msg = "external service failed: " + e.Message
	}
	return errorEnvelope{Error: errorBody{
		Code:              e.Code,
		Message:           msg,
		ConflictingCaseID: e.ConflictingCaseID,
		SlotsRemaining:    e.SlotsRemaining,
	}}
}

// writeError renders err in the public error shape. Unclassified errors are
// logged and hidden behind a 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		a.Logger.Error("Unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		a.writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		}})
		return
	}

	status := statusFor(appErr)
	if status >= http.StatusInternalServerError {
		a.Logger.Warn("Request failed on a collaborator",
			zap.String("path", r.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(err),
		)
	}
	a.writeJSON(w, status, envelope(appErr))
}

func (a *API) writeUnauthorized(w http.ResponseWriter, msg string) {
	a.writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: errorBody{Code: codeUnauthorized, Message: msg}})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid JSON body: %s", err.Error())
	}
	return nil
}

// pathID reads a numeric mux variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return id, nil
}

func requireRole(actor service.Actor, want model.UserType) error {
	if actor.Type != want {
		return apperr.Forbidden("%s role required", want)
	}
	return nil
}
