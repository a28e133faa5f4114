package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/tracklog/apiserver/internal/services"
)

// RequestLogger writes one access log entry per request through the
// zerolog logger that hlog.NewHandler placed on the request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger := hlog.FromRequest(r)
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// RecordAPICalls stores an api_call activity for each authenticated request
// once the handler has finished, plus an error activity for 5xx responses.
// It must run after RequireAuth.
func RecordAPICalls(recorder *services.ActivityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			user, ok := UserFromContext(r.Context())
			if !ok {
				return
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			ctx := context.WithoutCancel(r.Context())
			recorder.RecordAPICall(ctx, user.ID, r.Method, r.URL.Path, status)
			if status >= http.StatusInternalServerError {
				recorder.RecordError(ctx, user.ID, "server_error", fmt.Sprintf("%s %s returned %d", r.Method, r.URL.Path, status))
			}
		})
	}
}
