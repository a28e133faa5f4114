package types

import "time"

// Activity is a single, immutable journal entry describing an action taken by a user.
// Activities are only ever created or deleted, never updated.
type Activity struct {
	// ID is the unique identifier of the activity.
	ID int64 `json:"id" db:"id"`

	// UserID references the owning user. Deleting the user deletes the activity.
	UserID int64 `json:"user_id" db:"user_id"`

	// Category is a short label such as "login", "query" or "click".
	Category string `json:"category" db:"category"`

	// Description is an optional free-text explanation.
	Description *string `json:"description" db:"description"`

	// Payload holds optional structured auxiliary data.
	Payload Payload `json:"payload" db:"payload"`

	// CreatedAt is set at insertion time (UTC).
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ActivityStats summarizes a filtered set of activities.
type ActivityStats struct {
	TotalCount         int            `json:"total_count"`
	ByCategory         map[string]int `json:"by_category"`
	ByDay              map[string]int `json:"by_day"`
	MostCommonCategory *string        `json:"most_common_category"`
}

// DayLayout is the key format used for ActivityStats.ByDay.
const DayLayout = "2006-01-02"
