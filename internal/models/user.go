package models

import "time"

// User represents a user preference row. Authentication lives outside this
// service; the row only carries profile preferences that events may track.
type User struct {
	ID                  string    `json:"id" db:"id"`
	Name                *string   `json:"name,omitempty" db:"name"`
	Email               *string   `json:"email,omitempty" db:"email"`
	PreferredCurrencyID *string   `json:"preferredCurrencyId,omitempty" db:"preferred_currency_id"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}
