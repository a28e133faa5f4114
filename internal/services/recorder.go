package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tracklog/apiserver/types"
)

const (
	CategoryLogin   = "login"
	CategoryAPICall = "api_call"
	CategoryError   = "error"
)

// ActivityCreator persists a single activity.
type ActivityCreator interface {
	Create(ctx context.Context, activity types.Activity) (types.Activity, error)
}

// Action describes an activity recorded on a user's behalf.
type Action struct {
	Category    string
	Description string
	Payload     types.Payload
}

// ActivityRecorder writes activities as a side effect of other requests.
// Failures are logged and swallowed so the primary operation is unaffected.
// A nil recorder records nothing.
type ActivityRecorder struct {
	repo   ActivityCreator
	logger zerolog.Logger
}

func NewActivityRecorder(repo ActivityCreator, logger zerolog.Logger) *ActivityRecorder {
	return &ActivityRecorder{
		repo:   repo,
		logger: logger.With().Str("component", "activity_recorder").Logger(),
	}
}

func (r *ActivityRecorder) RecordLogin(ctx context.Context, userID int64, ipAddress, userAgent string) {
	r.Record(ctx, userID, Action{
		Category:    CategoryLogin,
		Description: "User logged in",
		Payload: types.Payload{
			"ip_address": ipAddress,
			"user_agent": userAgent,
		},
	})
}

func (r *ActivityRecorder) RecordAPICall(ctx context.Context, userID int64, method, path string, status int) {
	r.Record(ctx, userID, Action{
		Category:    CategoryAPICall,
		Description: fmt.Sprintf("%s %s", method, path),
		Payload: types.Payload{
			"method":      method,
			"path":        path,
			"status_code": status,
		},
	})
}

func (r *ActivityRecorder) RecordError(ctx context.Context, userID int64, kind, message string) {
	r.Record(ctx, userID, Action{
		Category:    CategoryError,
		Description: message,
		Payload: types.Payload{
			"error_type": kind,
		},
	})
}

// Record stores action for userID. It never returns an error.
func (r *ActivityRecorder) Record(ctx context.Context, userID int64, action Action) {
	if r == nil || r.repo == nil {
		return
	}

	activity := types.Activity{
		UserID:   userID,
		Category: action.Category,
		Payload:  action.Payload,
	}
	if action.Description != "" {
		description := action.Description
		activity.Description = &description
	}

	if _, err := r.repo.Create(ctx, activity); err != nil {
		r.logger.Warn().
			Err(err).
			Int64("user_id", userID).
			Str("category", action.Category).
			Msg("failed to record activity")
	}
}
