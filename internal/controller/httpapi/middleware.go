package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Headers set by the upstream auth gateway.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserType  = "X-User-Type"
	HeaderUserName  = "X-User-Name"
	HeaderRequestID = "X-Request-Id"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

func actorFrom(ctx context.Context) (service.Actor, bool) {
	a, ok := ctx.Value(actorKey).(service.Actor)
	return a, ok
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// principal trusts the gateway headers and puts the caller into the context.
func (a *API) principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		if err != nil || id <= 0 {
			a.writeUnauthorized(w, "missing or invalid "+HeaderUserID)
			return
		}
		userType := model.UserType(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserType))))
		if !userType.Valid() {
			a.writeUnauthorized(w, "missing or invalid "+HeaderUserType)
			return
		}

		actor := service.Actor{ID: id, Type: userType, Name: r.Header.Get(HeaderUserName)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// timeout bounds the request context. Handlers stop at their next blocking call.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestIDFrom(r.Context())),
			)
		})
	}
}
