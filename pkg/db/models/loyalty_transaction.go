package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// LoyaltyTransaction is an append-only ledger entry. Positive delta = award,
// negative = redemption. The sum of a user's deltas equals the cached balance
// at all times; a partial unique index on order_id where delta > 0 guarantees
// at most one award per order.
type LoyaltyTransaction struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	Delta     int64               `gorm:"column:delta;not null"`
	Reason    enums.LoyaltyReason `gorm:"column:reason;type:loyalty_reason_enum;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}
