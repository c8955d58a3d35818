package discounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// Requester identifies who is trying to apply a code. UserID is nil for
// guests; Email may still be present from the checkout form.
type Requester struct {
	UserID *uuid.UUID
	Email  string
}

// CartItem carries the pre-tax subtotal for a single cart line.
type CartItem struct {
	ProductID     uuid.UUID
	SubtotalCents int64
}

// Cart is the monetary snapshot a validation runs against.
type Cart struct {
	TotalCents int64
	Items      []CartItem
}

// ValidateInput bundles everything a validation pass needs.
type ValidateInput struct {
	Code      string
	Requester Requester
	Cart      Cart
}

// ValidationResult reports either the computed discount or the first failed
// check. Reason is empty when Valid is true.
type ValidationResult struct {
	Valid                 bool
	Reason                enums.DiscountReason
	DiscountCents         int64
	EligibleSubtotalCents int64
	Code                  *models.DiscountCode
}

// RedeemInput records a validated discount against a confirmed order.
type RedeemInput struct {
	DiscountCodeID uuid.UUID
	OrderID        uuid.UUID
	UserID         *uuid.UUID
	AmountCents    int64
}

// RedeemResult distinguishes a fresh redemption from an idempotent replay.
type RedeemResult struct {
	AlreadyApplied bool
	Redemption     *models.DiscountRedemption
}

// CreateCodeInput captures the operator-facing fields of a new code.
type CreateCodeInput struct {
	Code              string
	Kind              enums.DiscountKind
	Value             decimal.Decimal
	MinPurchaseCents  *int64
	MaxDiscountCents  *int64
	UsageLimit        *int
	PerUserLimit      int
	FirstPurchaseOnly bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
	IsActive          bool
	ProductIDs        []uuid.UUID
	AllowedUserIDs    []uuid.UUID
}

// UpdateCodeInput applies partial edits; nil fields are left untouched.
type UpdateCodeInput struct {
	Value             *decimal.Decimal
	MinPurchaseCents  *int64
	MaxDiscountCents  *int64
	UsageLimit        *int
	PerUserLimit      *int
	FirstPurchaseOnly *bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
	IsActive          *bool
	ProductIDs        []uuid.UUID
	AllowedUserIDs    []uuid.UUID
}
