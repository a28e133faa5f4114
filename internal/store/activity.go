package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tracklog/apiserver/types"
)

// ArchiveFunc receives the rows removed by a prune before the deletion commits.
// Returning an error rolls the prune back.
type ArchiveFunc func(ctx context.Context, removed []types.Activity) error

// ActivityRepository handles persistence for the append-only activity log.
// Listings are ordered newest first, with id descending as the tiebreaker
// between equal timestamps.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts an activity and assigns its id and creation time. An unknown
// owner surfaces as ErrNotFound.
func (r *ActivityRepository) Create(ctx context.Context, activity types.Activity) (types.Activity, error) {
	activity.CreatedAt = now()

	const query = `
		INSERT INTO activities (user_id, category, description, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		activity.UserID,
		activity.Category,
		activity.Description,
		activity.Payload,
		activity.CreatedAt,
	).Scan(&activity.ID); err != nil {
		return types.Activity{}, classify(err)
	}
	return activity, nil
}

func (r *ActivityRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]types.Activity, error) {
	const query = `
		SELECT id, user_id, category, description, payload, created_at
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, limit, query, ownerID, limit, offset)
}

func (r *ActivityRepository) ListByOwnerAndCategory(ctx context.Context, ownerID int64, category string, limit, offset int) ([]types.Activity, error) {
	const query = `
		SELECT id, user_id, category, description, payload, created_at
		FROM activities
		WHERE user_id = $1 AND category = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	return r.list(ctx, limit, query, ownerID, category, limit, offset)
}

// CountByOwner returns how many activities the owner has, optionally in one category.
func (r *ActivityRepository) CountByOwner(ctx context.Context, ownerID int64, category string) (int, error) {
	const query = `
		SELECT COUNT(1)
		FROM activities
		WHERE user_id = $1 AND ($2 = '' OR category = $2)`
	var total int
	if err := r.db.QueryRowContext(ctx, query, ownerID, category).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListInRange returns every activity of the owner created within the
// inclusive [start, end] window. Nil bounds are open.
func (r *ActivityRepository) ListInRange(ctx context.Context, ownerID int64, start, end *time.Time) ([]types.Activity, error) {
	const query = `
		SELECT id, user_id, category, description, payload, created_at
		FROM activities
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, 0, query, ownerID, nullTime(start), nullTime(end))
}

// Get returns a single activity without any ownership check.
func (r *ActivityRepository) Get(ctx context.Context, id int64) (types.Activity, error) {
	const query = `
		SELECT id, user_id, category, description, payload, created_at
		FROM activities
		WHERE id = $1`
	activity, err := scanActivity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Activity{}, ErrNotFound
		}
		return types.Activity{}, err
	}
	return activity, nil
}

// Delete removes an activity. Deleting a missing id returns ErrNotFound.
func (r *ActivityRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM activities WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneOlderThan deletes every activity created before cutoff, across all
// owners. With an archive the removed rows are handed to it inside the
// transaction; without one a single DELETE runs and only the count is read.
func (r *ActivityRepository) PruneOlderThan(ctx context.Context, cutoff time.Time, archive ArchiveFunc) (int64, error) {
	if archive == nil {
		return r.deleteOlderThan(ctx, cutoff)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		DELETE FROM activities
		WHERE created_at < $1
		RETURNING id, user_id, category, description, payload, created_at`
	rows, err := tx.QueryContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	removed, err := scanActivities(rows, 0)
	if err != nil {
		return 0, err
	}

	if len(removed) > 0 {
		if err := archive(ctx, removed); err != nil {
			return 0, fmt.Errorf("archive pruned activities: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(removed)), nil
}

func (r *ActivityRepository) deleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM activities WHERE created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// now returns the current UTC time at the microsecond precision Postgres keeps,
// so values returned from Create match what a later read scans back.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (r *ActivityRepository) list(ctx context.Context, capacity int, query string, args ...any) ([]types.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanActivities(rows, capacity)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (types.Activity, error) {
	var activity types.Activity
	var description sql.NullString
	if err := row.Scan(
		&activity.ID,
		&activity.UserID,
		&activity.Category,
		&description,
		&activity.Payload,
		&activity.CreatedAt,
	); err != nil {
		return types.Activity{}, err
	}
	if description.Valid {
		activity.Description = &description.String
	}
	activity.CreatedAt = activity.CreatedAt.UTC()
	return activity, nil
}

func scanActivities(rows *sql.Rows, capacity int) ([]types.Activity, error) {
	defer rows.Close()

	activities := make([]types.Activity, 0, capacity)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
