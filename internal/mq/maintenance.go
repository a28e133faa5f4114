package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RetentionChannel carries requests to prune expired activities.
const RetentionChannel = "maintenance.retention"

// PruneRequest asks a worker to delete activities older than MaxAgeSeconds.
// Zero means the worker's configured default.
type PruneRequest struct {
	MaxAgeSeconds int64     `json:"max_age_seconds"`
	RequestedAt   time.Time `json:"requested_at"`
}

// MaxAge returns the requested retention window.
func (r PruneRequest) MaxAge() time.Duration {
	return time.Duration(r.MaxAgeSeconds) * time.Second
}

// NewPruneRequest builds a request for maxAge stamped with the current time.
func NewPruneRequest(maxAge time.Duration) PruneRequest {
	return PruneRequest{
		MaxAgeSeconds: int64(maxAge / time.Second),
		RequestedAt:   time.Now().UTC(),
	}
}

// PublishPrune sends req on RetentionChannel and returns the broker message id.
func (m *MQ) PublishPrune(ctx context.Context, req PruneRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode prune request: %w", err)
	}
	return m.Publish(ctx, RetentionChannel, data, map[string]string{
		AttrContentType: "application/json",
	})
}

// DecodePruneRequest parses a message published by PublishPrune. Malformed
// messages yield an error wrapping ErrDiscard.
func DecodePruneRequest(msg Message) (PruneRequest, error) {
	var req PruneRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return PruneRequest{}, fmt.Errorf("%w: decode prune request %s: %v", ErrDiscard, msg.ID, err)
	}
	if req.MaxAgeSeconds < 0 {
		return PruneRequest{}, fmt.Errorf("%w: prune request %s has negative max_age_seconds", ErrDiscard, msg.ID)
	}
	return req, nil
}
