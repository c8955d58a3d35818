package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// Order is the minimal surface of the checkout collaborator the ledger needs:
// enough to run the paid transition, the first-purchase check, and loyalty
// awards. UserID is nil for guest orders; Email still identifies the buyer.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	Email          string            `gorm:"column:email;not null;index"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null"`
	TotalCents     int64             `gorm:"column:total_cents;not null"`
	Business       bool              `gorm:"column:business;not null;default:false"`
	DiscountCodeID *uuid.UUID        `gorm:"column:discount_code_id;type:uuid"`
	DiscountCents  int64             `gorm:"column:discount_cents;not null;default:0"`
	PaidAt         *time.Time        `gorm:"column:paid_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
