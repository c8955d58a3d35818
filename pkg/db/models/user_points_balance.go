package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPointsBalance caches the sum of a user's loyalty transactions. It is
// only ever written in the same transaction as a LoyaltyTransaction insert;
// the ledger stays the source of truth.
type UserPointsBalance struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
