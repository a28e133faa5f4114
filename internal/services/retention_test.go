package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracklog/apiserver/types"
)

type memoryArchive struct {
	objects map[string][]byte
	err     error
}

func (m *memoryArchive) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

var retentionNow = time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC)

func seedRetention(t *testing.T) (fakeActivities, int64) {
	t.Helper()
	db := newMemoryDB()
	user, err := fakeUsers{db: db}.Create(context.Background(), types.User{Username: "alice", Email: "a@example.com"})
	require.NoError(t, err)

	activities := fakeActivities{db: db}
	activities.insert(types.Activity{UserID: user.ID, Category: "old", CreatedAt: retentionNow.Add(-100 * 24 * time.Hour)})
	activities.insert(types.Activity{UserID: user.ID, Category: "old", CreatedAt: retentionNow.Add(-91 * 24 * time.Hour)})
	activities.insert(types.Activity{UserID: user.ID, Category: "fresh", CreatedAt: retentionNow.Add(-89 * 24 * time.Hour)})
	activities.insert(types.Activity{UserID: user.ID, Category: "fresh", CreatedAt: retentionNow.Add(-time.Hour)})
	return activities, user.ID
}

func TestRetentionPrune_DefaultAge(t *testing.T) {
	activities, owner := seedRetention(t)
	svc := NewRetentionService(activities, nil, 0, zerolog.Nop())
	svc.now = func() time.Time { return retentionNow }

	pruned, err := svc.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	remaining, err := activities.ListByOwner(context.Background(), owner, 10, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, activity := range remaining {
		assert.Equal(t, "fresh", activity.Category)
	}
}

func TestRetentionPrune_ExplicitAge(t *testing.T) {
	activities, _ := seedRetention(t)
	svc := NewRetentionService(activities, nil, DefaultRetention, zerolog.Nop())
	svc.now = func() time.Time { return retentionNow }

	pruned, err := svc.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)
	assert.Equal(t, 1, activities.count())
}

func TestRetentionPrune_ArchivesBeforeDelete(t *testing.T) {
	activities, _ := seedRetention(t)
	archive := &memoryArchive{}
	svc := NewRetentionService(activities, archive, DefaultRetention, zerolog.Nop())
	svc.now = func() time.Time { return retentionNow }

	pruned, err := svc.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	require.Len(t, archive.objects, 1)
	for key, data := range archive.objects {
		assert.Regexp(t, `^activities/archive/2026/06/15/[0-9a-f-]{36}\.jsonl$`, key)

		lines := 0
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			var activity types.Activity
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &activity))
			assert.Equal(t, "old", activity.Category)
			lines++
		}
		assert.Equal(t, 2, lines)
	}
}

func TestRetentionPrune_ArchiveFailureKeepsRows(t *testing.T) {
	activities, _ := seedRetention(t)
	archive := &memoryArchive{err: errors.New("bucket unavailable")}
	svc := NewRetentionService(activities, archive, DefaultRetention, zerolog.Nop())
	svc.now = func() time.Time { return retentionNow }

	_, err := svc.Prune(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, 4, activities.count())
}

func TestRetentionPrune_NothingExpiredWritesNoArchive(t *testing.T) {
	activities, _ := seedRetention(t)
	archive := &memoryArchive{}
	svc := NewRetentionService(activities, archive, DefaultRetention, zerolog.Nop())
	svc.now = func() time.Time { return retentionNow }

	pruned, err := svc.Prune(context.Background(), 365*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)
	assert.Empty(t, archive.objects)
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2026, 2, 3, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	assert.Equal(t, "activities/archive/2026/02/04/abc.jsonl", ArchiveKey(at, "abc"))
}
