package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tracklog/apiserver/internal/store"
	"github.com/tracklog/apiserver/types"
)

// DefaultRetention is how long activities are kept when no age is given.
const DefaultRetention = 90 * 24 * time.Hour

const archiveContentType = "application/x-ndjson"

// ActivityPruner deletes activities older than a cutoff.
type ActivityPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time, archive store.ArchiveFunc) (int64, error)
}

// ArchiveWriter uploads archived activity batches.
type ArchiveWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// RetentionService removes expired activities, optionally archiving them first.
type RetentionService struct {
	repo       ActivityPruner
	archive    ArchiveWriter
	defaultAge time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRetentionService builds a RetentionService. archive may be nil.
func NewRetentionService(repo ActivityPruner, archive ArchiveWriter, defaultAge time.Duration, logger zerolog.Logger) *RetentionService {
	if defaultAge <= 0 {
		defaultAge = DefaultRetention
	}
	return &RetentionService{
		repo:       repo,
		archive:    archive,
		defaultAge: defaultAge,
		logger:     logger.With().Str("component", "retention").Logger(),
		now:        time.Now,
	}
}

// Prune deletes activities older than maxAge and returns how many were removed.
// A non-positive maxAge uses the service default.
func (s *RetentionService) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = s.defaultAge
	}
	now := s.now().UTC()
	cutoff := now.Add(-maxAge)

	var archive store.ArchiveFunc
	if s.archive != nil {
		archive = func(ctx context.Context, pruned []types.Activity) error {
			return s.writeArchive(ctx, now, pruned)
		}
	}

	count, err := s.repo.PruneOlderThan(ctx, cutoff, archive)
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}

	s.logger.Info().
		Int64("pruned", count).
		Time("cutoff", cutoff).
		Msg("pruned expired activities")
	return count, nil
}

func (s *RetentionService) writeArchive(ctx context.Context, now time.Time, pruned []types.Activity) error {
	if len(pruned) == 0 {
		return nil
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, activity := range pruned {
		if err := encoder.Encode(activity); err != nil {
			return err
		}
	}

	key := ArchiveKey(now, uuid.NewString())
	if err := s.archive.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), archiveContentType); err != nil {
		return err
	}
	s.logger.Info().Str("key", key).Int("activities", len(pruned)).Msg("archived activities")
	return nil
}

// ArchiveKey returns the object key for an archive batch written at t.
func ArchiveKey(t time.Time, id string) string {
	t = t.UTC()
	return path.Join("activities", "archive", t.Format("2006"), t.Format("01"), t.Format("02"), id+".jsonl")
}
