package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscountRedemption is the immutable record of a code applied to an order.
// The (discount_code_id, order_id) pair is the idempotency key; the unique
// constraint ux_discount_redemptions_code_order enforces it at the store.
type DiscountRedemption struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DiscountCodeID uuid.UUID  `gorm:"column:discount_code_id;type:uuid;not null;uniqueIndex:ux_discount_redemptions_code_order"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_discount_redemptions_code_order"`
	UserID         *uuid.UUID `gorm:"column:user_id;type:uuid"`
	AmountCents    int64      `gorm:"column:amount_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
