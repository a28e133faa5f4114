package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/tracklog/apiserver/internal/store"
	"github.com/tracklog/apiserver/types"
)

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 100
	maxCategoryLength    = 100
)

// ActivityRepository defines persistence operations for activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity types.Activity) (types.Activity, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]types.Activity, error)
	ListByOwnerAndCategory(ctx context.Context, ownerID int64, category string, limit, offset int) ([]types.Activity, error)
	CountByOwner(ctx context.Context, ownerID int64, category string) (int, error)
	ListInRange(ctx context.Context, ownerID int64, start, end *time.Time) ([]types.Activity, error)
	Get(ctx context.Context, id int64) (types.Activity, error)
	Delete(ctx context.Context, id int64) error
}

// CreateActivityInput is the caller-supplied part of a new activity.
type CreateActivityInput struct {
	Category    string
	Description *string
	Payload     types.Payload
}

func (in CreateActivityInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Category, validation.Required, validation.RuneLength(1, maxCategoryLength)),
	)
}

// ListActivitiesInput selects one page of an owner's activities.
type ListActivitiesInput struct {
	Limit    int
	Offset   int
	Category string
}

// ActivityPage is a page of activities plus the unpaged total.
type ActivityPage struct {
	Items  []types.Activity
	Limit  int
	Offset int
	Total  int
}

// ActivityService encapsulates activity use-cases scoped to one owner.
type ActivityService struct {
	repo ActivityRepository
}

func NewActivityService(repo ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Create stores a new activity owned by ownerID.
func (s *ActivityService) Create(ctx context.Context, ownerID int64, in CreateActivityInput) (types.Activity, error) {
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return types.Activity{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := in.Payload.Validate(); err != nil {
		return types.Activity{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	activity, err := s.repo.Create(ctx, types.Activity{
		UserID:      ownerID,
		Category:    in.Category,
		Description: in.Description,
		Payload:     in.Payload,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Activity{}, ErrNotFound
		}
		return types.Activity{}, err
	}
	return activity, nil
}

// List returns a page of the owner's activities, newest first.
func (s *ActivityService) List(ctx context.Context, ownerID int64, in ListActivitiesInput) (ActivityPage, error) {
	limit, offset := clampPage(in.Limit, in.Offset)
	category := strings.TrimSpace(in.Category)

	var (
		items []types.Activity
		err   error
	)
	if category == "" {
		items, err = s.repo.ListByOwner(ctx, ownerID, limit, offset)
	} else {
		items, err = s.repo.ListByOwnerAndCategory(ctx, ownerID, category, limit, offset)
	}
	if err != nil {
		return ActivityPage{}, err
	}

	total, err := s.repo.CountByOwner(ctx, ownerID, category)
	if err != nil {
		return ActivityPage{}, err
	}

	if items == nil {
		items = []types.Activity{}
	}
	return ActivityPage{Items: items, Limit: limit, Offset: offset, Total: total}, nil
}

// Get returns one activity. A missing record wins over a foreign one.
func (s *ActivityService) Get(ctx context.Context, ownerID, id int64) (types.Activity, error) {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Activity{}, ErrNotFound
		}
		return types.Activity{}, err
	}
	if activity.UserID != ownerID {
		return types.Activity{}, ErrForbidden
	}
	return activity, nil
}

// Delete removes one of the owner's activities.
func (s *ActivityService) Delete(ctx context.Context, ownerID, id int64) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Stats aggregates the owner's activities within the optional inclusive range.
func (s *ActivityService) Stats(ctx context.Context, ownerID int64, start, end *time.Time) (types.ActivityStats, error) {
	if start != nil && end != nil && start.After(*end) {
		return types.ActivityStats{}, fmt.Errorf("%w: start_date must not be after end_date", ErrValidation)
	}
	activities, err := s.repo.ListInRange(ctx, ownerID, start, end)
	if err != nil {
		return types.ActivityStats{}, err
	}
	return Aggregate(activities), nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
