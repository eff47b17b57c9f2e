package models

import (
	"encoding/json"
	"time"

	"github.com/finance-ledger/internal/types"
)

// Event represents one immutable fact in a user's financial history.
// Events are append-only: once stored they are never updated or deleted,
// and there is deliberately no repository operation that could do so.
type Event struct {
	ID            int64            `json:"id" db:"id"`
	Timestamp     time.Time        `json:"timestamp" db:"timestamp"`
	ActionType    types.ActionType `json:"actionType" db:"action_type"`
	EntityType    types.EntityType `json:"entityType" db:"entity_type"`
	EntitySubtype *string          `json:"entitySubtype,omitempty" db:"entity_subtype"`
	BeforeValue   json.RawMessage  `json:"beforeValue,omitempty" db:"before_value"`
	AfterValue    json.RawMessage  `json:"afterValue,omitempty" db:"after_value"`
	UserID        string           `json:"userId" db:"user_id"`
	EntityID      string           `json:"entityId" db:"entity_id"`
}
