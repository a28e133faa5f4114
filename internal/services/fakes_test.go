package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tracklog/apiserver/internal/store"
	"github.com/tracklog/apiserver/types"
)

// memoryDB backs the fake repositories so user deletion can cascade.
type memoryDB struct {
	mu         sync.Mutex
	nextUser   int64
	nextAct    int64
	users      map[int64]types.User
	activities map[int64]types.Activity
	now        func() time.Time
	createErr  error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		users:      make(map[int64]types.User),
		activities: make(map[int64]types.Activity),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type fakeUsers struct{ db *memoryDB }

func (f fakeUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	user, ok := f.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f fakeUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Username == username })
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Email == email })
}

func (f fakeUsers) find(match func(types.User) bool) (types.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, user := range f.db.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	f.db.nextUser++
	user.ID = f.db.nextUser
	user.CreatedAt = f.db.now()
	user.UpdatedAt = user.CreatedAt
	f.db.users[user.ID] = user
	return user, nil
}

func (f fakeUsers) Delete(_ context.Context, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.db.users, id)
	for actID, activity := range f.db.activities {
		if activity.UserID == id {
			delete(f.db.activities, actID)
		}
	}
	return nil
}

type fakeActivities struct{ db *memoryDB }

func (f fakeActivities) Create(_ context.Context, activity types.Activity) (types.Activity, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.createErr != nil {
		return types.Activity{}, f.db.createErr
	}
	if _, ok := f.db.users[activity.UserID]; !ok {
		return types.Activity{}, store.ErrNotFound
	}
	f.db.nextAct++
	activity.ID = f.db.nextAct
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = f.db.now()
	}
	f.db.activities[activity.ID] = activity
	return activity, nil
}

// insert stores an activity with a fixed timestamp, bypassing Create.
func (f fakeActivities) insert(activity types.Activity) types.Activity {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.nextAct++
	activity.ID = f.db.nextAct
	f.db.activities[activity.ID] = activity
	return activity
}

func (f fakeActivities) owned(ownerID int64, keep func(types.Activity) bool) []types.Activity {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []types.Activity
	for _, activity := range f.db.activities {
		if activity.UserID == ownerID && keep(activity) {
			out = append(out, activity)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(items []types.Activity, limit, offset int) []types.Activity {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (f fakeActivities) ListByOwner(_ context.Context, ownerID int64, limit, offset int) ([]types.Activity, error) {
	return page(f.owned(ownerID, func(types.Activity) bool { return true }), limit, offset), nil
}

func (f fakeActivities) ListByOwnerAndCategory(_ context.Context, ownerID int64, category string, limit, offset int) ([]types.Activity, error) {
	items := f.owned(ownerID, func(a types.Activity) bool { return a.Category == category })
	return page(items, limit, offset), nil
}

func (f fakeActivities) CountByOwner(_ context.Context, ownerID int64, category string) (int, error) {
	return len(f.owned(ownerID, func(a types.Activity) bool { return category == "" || a.Category == category })), nil
}

func (f fakeActivities) ListInRange(_ context.Context, ownerID int64, start, end *time.Time) ([]types.Activity, error) {
	return f.owned(ownerID, func(a types.Activity) bool {
		if start != nil && a.CreatedAt.Before(*start) {
			return false
		}
		if end != nil && a.CreatedAt.After(*end) {
			return false
		}
		return true
	}), nil
}

func (f fakeActivities) Get(_ context.Context, id int64) (types.Activity, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	activity, ok := f.db.activities[id]
	if !ok {
		return types.Activity{}, store.ErrNotFound
	}
	return activity, nil
}

func (f fakeActivities) Delete(_ context.Context, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.activities[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.db.activities, id)
	return nil
}

func (f fakeActivities) PruneOlderThan(ctx context.Context, cutoff time.Time, archive store.ArchiveFunc) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var expired []types.Activity
	for _, activity := range f.db.activities {
		if activity.CreatedAt.Before(cutoff) {
			expired = append(expired, activity)
		}
	}
	if archive != nil {
		if err := archive(ctx, expired); err != nil {
			return 0, errors.Join(errors.New("archive pruned activities"), err)
		}
	}
	for _, activity := range expired {
		delete(f.db.activities, activity.ID)
	}
	return int64(len(expired)), nil
}

func (f fakeActivities) count() int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.activities)
}
