package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/tiendly/tiendly-backend/pkg/db/types"
	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// DiscountCode is the operator-managed definition of a redeemable code.
// Value is a percentage for the percentage kind and an amount in cents for
// the fixed_amount kind. Codes are never physically deleted while redemption
// history references them; operators flip IsActive instead.
type DiscountCode struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex:ux_discount_codes_code"`
	Kind              enums.DiscountKind `gorm:"column:kind;type:discount_kind_enum;not null"`
	Value             decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	MinPurchaseCents  *int64             `gorm:"column:min_purchase_cents"`
	MaxDiscountCents  *int64             `gorm:"column:max_discount_cents"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsageCount        int                `gorm:"column:usage_count;not null;default:0"`
	PerUserLimit      int                `gorm:"column:per_user_limit;not null;default:0"`
	FirstPurchaseOnly bool               `gorm:"column:first_purchase_only;not null;default:false"`
	StartsAt          *time.Time         `gorm:"column:starts_at"`
	ExpiresAt         *time.Time         `gorm:"column:expires_at"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true"`
	ProductIDs        dbtypes.UUIDArray  `gorm:"column:product_ids;type:uuid[]"`
	AllowedUserIDs    dbtypes.UUIDArray  `gorm:"column:allowed_user_ids;type:uuid[]"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
