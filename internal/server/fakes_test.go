package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tracklog/apiserver/internal/store"
	"github.com/tracklog/apiserver/types"
)

// memoryStore is an in-memory stand-in for both repositories.
type memoryStore struct {
	mu         sync.Mutex
	nextID     int64
	users      map[int64]types.User
	activities map[int64]types.Activity
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:      make(map[int64]types.User),
		activities: make(map[int64]types.Activity),
	}
}

type memoryUsers struct{ s *memoryStore }

func (m memoryUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if user, ok := m.s.users[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return m.find(func(u types.User) bool { return u.Username == username })
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	return m.find(func(u types.User) bool { return u.Email == email })
}

func (m memoryUsers) find(match func(types.User) bool) (types.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, user := range m.s.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	m.s.nextID++
	user.ID = m.s.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.s.users[user.ID] = user
	return user, nil
}

func (m memoryUsers) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.s.users, id)
	for activityID, activity := range m.s.activities {
		if activity.UserID == id {
			delete(m.s.activities, activityID)
		}
	}
	return nil
}

type memoryActivities struct{ s *memoryStore }

func (m memoryActivities) Create(_ context.Context, activity types.Activity) (types.Activity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[activity.UserID]; !ok {
		return types.Activity{}, store.ErrNotFound
	}
	m.s.nextID++
	activity.ID = m.s.nextID
	activity.CreatedAt = time.Now().UTC()
	m.s.activities[activity.ID] = activity
	return activity, nil
}

func (m memoryActivities) filter(ownerID int64, keep func(types.Activity) bool) []types.Activity {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []types.Activity
	for _, activity := range m.s.activities {
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

func window(items []types.Activity, limit, offset int) []types.Activity {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func (m memoryActivities) ListByOwner(_ context.Context, ownerID int64, limit, offset int) ([]types.Activity, error) {
	return window(m.filter(ownerID, func(types.Activity) bool { return true }), limit, offset), nil
}

func (m memoryActivities) ListByOwnerAndCategory(_ context.Context, ownerID int64, category string, limit, offset int) ([]types.Activity, error) {
	return window(m.filter(ownerID, func(a types.Activity) bool { return a.Category == category }), limit, offset), nil
}

func (m memoryActivities) CountByOwner(_ context.Context, ownerID int64, category string) (int, error) {
	return len(m.filter(ownerID, func(a types.Activity) bool { return category == "" || a.Category == category })), nil
}

func (m memoryActivities) ListInRange(_ context.Context, ownerID int64, start, end *time.Time) ([]types.Activity, error) {
	return m.filter(ownerID, func(a types.Activity) bool {
		return (start == nil || !a.CreatedAt.Before(*start)) && (end == nil || !a.CreatedAt.After(*end))
	}), nil
}

func (m memoryActivities) Get(_ context.Context, id int64) (types.Activity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if activity, ok := m.s.activities[id]; ok {
		return activity, nil
	}
	return types.Activity{}, store.ErrNotFound
}

func (m memoryActivities) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.activities[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.s.activities, id)
	return nil
}
