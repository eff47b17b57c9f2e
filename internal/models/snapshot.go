package models

import (
	"encoding/json"
	"time"
)

// FinancialSnapshot represents a cached materialization of a user's financial
// state as of a point in time. Snapshots are derived data: deleting them loses
// nothing, they can always be regenerated by replaying the event log.
type FinancialSnapshot struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Date      time.Time       `json:"date" db:"snapshot_date"`
	Data      json.RawMessage `json:"data" db:"data"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
