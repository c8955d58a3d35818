package discounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	dbtypes "github.com/tiendly/tiendly-backend/pkg/db/types"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/metrics"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

const redemptionConstraint = "ux_discount_redemptions_code_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCounter interface {
	CountCompleted(ctx context.Context, userID *uuid.UUID, email string) (int64, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service validates, redeems, and administers discount codes.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error)
	Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error)
	CreateCode(ctx context.Context, input CreateCodeInput) (*models.DiscountCode, error)
	UpdateCode(ctx context.Context, id uuid.UUID, input UpdateCodeInput) (*models.DiscountCode, error)
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	ListRedemptions(ctx context.Context, codeID uuid.UUID, params pagination.Params) ([]models.DiscountRedemption, string, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	orders  orderCounter
	outbox  outboxPublisher
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService wires the discount engine with its collaborators.
func NewService(
	tx txRunner,
	repo Repository,
	orders orderCounter,
	publisher outboxPublisher,
	ledgerMetrics *metrics.LedgerMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order counter required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		orders:  orders,
		outbox:  publisher,
		metrics: ledgerMetrics,
		now:     time.Now,
	}, nil
}

// Validate runs the ordered rule checks against the cart and requester.
// It is read-only: safe to call on every cart change without consuming usage.
func (s *service) Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error) {
	code, err := s.repo.FindByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return s.reject(enums.DiscountReasonNotFound), nil
	}

	if !code.IsActive {
		return s.reject(enums.DiscountReasonInactive), nil
	}

	now := s.now()
	if code.StartsAt != nil && now.Before(*code.StartsAt) {
		return s.reject(enums.DiscountReasonNotYetActive), nil
	}
	if code.ExpiresAt != nil && now.After(*code.ExpiresAt) {
		return s.reject(enums.DiscountReasonExpired), nil
	}

	if code.UsageLimit != nil && code.UsageCount >= *code.UsageLimit {
		return s.reject(enums.DiscountReasonUsageExhausted), nil
	}

	if code.MinPurchaseCents != nil && input.Cart.TotalCents < *code.MinPurchaseCents {
		return s.reject(enums.DiscountReasonBelowMinimum), nil
	}

	if len(code.AllowedUserIDs) > 0 {
		if input.Requester.UserID == nil {
			return s.reject(enums.DiscountReasonRequiresLogin), nil
		}
		if !code.AllowedUserIDs.Contains(*input.Requester.UserID) {
			return s.reject(enums.DiscountReasonNotAllowed), nil
		}
	}

	if code.FirstPurchaseOnly {
		prior, err := s.orders.CountCompleted(ctx, input.Requester.UserID, input.Requester.Email)
		if err != nil {
			return nil, err
		}
		if prior > 0 {
			return s.reject(enums.DiscountReasonNotFirstPurchase), nil
		}
	}

	if code.PerUserLimit > 0 {
		if input.Requester.UserID == nil {
			return s.reject(enums.DiscountReasonRequiresLogin), nil
		}
		used, err := s.repo.CountRedemptionsByUser(ctx, code.ID, *input.Requester.UserID)
		if err != nil {
			return nil, err
		}
		if used >= int64(code.PerUserLimit) {
			return s.reject(enums.DiscountReasonLimitReached), nil
		}
	}

	eligible := input.Cart.TotalCents
	if len(code.ProductIDs) > 0 {
		eligible = 0
		for _, item := range input.Cart.Items {
			if code.ProductIDs.Contains(item.ProductID) {
				eligible += item.SubtotalCents
			}
		}
		if eligible <= 0 {
			return s.reject(enums.DiscountReasonNoEligibleItems), nil
		}
	}

	amount := computeDiscount(code, eligible)
	if amount <= 0 {
		return s.reject(enums.DiscountReasonInvalidAmount), nil
	}

	return &ValidationResult{
		Valid:                 true,
		DiscountCents:         amount,
		EligibleSubtotalCents: eligible,
		Code:                  code,
	}, nil
}

// computeDiscount dispatches on the code kind. Percentage values floor and
// then clamp to the configured cap; fixed amounts clamp to the eligible
// subtotal so a discount never exceeds what it applies to.
func computeDiscount(code *models.DiscountCode, eligibleCents int64) int64 {
	switch code.Kind {
	case enums.DiscountKindPercentage:
		amount := decimal.NewFromInt(eligibleCents).
			Mul(code.Value).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		if code.MaxDiscountCents != nil && amount > *code.MaxDiscountCents {
			amount = *code.MaxDiscountCents
		}
		return amount
	case enums.DiscountKindFixedAmount:
		amount := code.Value.Floor().IntPart()
		if amount > eligibleCents {
			amount = eligibleCents
		}
		return amount
	}
	return 0
}

func (s *service) reject(reason enums.DiscountReason) *ValidationResult {
	s.metrics.IncDomainRejection("validate_discount", string(reason))
	return &ValidationResult{Valid: false, Reason: reason}
}

// Redeem records the redemption and consumes one usage, atomically. A repeat
// call for the same (code, order) pair is an idempotent no-op: the unique
// constraint is the source of truth for "has this already happened".
func (s *service) Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	if input.DiscountCodeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount applied must be positive")
	}

	var result *RedeemResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindRedemption(ctx, input.DiscountCodeID, input.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &RedeemResult{AlreadyApplied: true, Redemption: existing}
			return nil
		}

		code, err := repo.FindByID(ctx, input.DiscountCodeID)
		if err != nil {
			return err
		}
		if code == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
		}

		redemption := &models.DiscountRedemption{
			DiscountCodeID: input.DiscountCodeID,
			OrderID:        input.OrderID,
			UserID:         input.UserID,
			AmountCents:    input.AmountCents,
		}
		if err := repo.CreateRedemption(ctx, redemption); err != nil {
			return err
		}
		if err := repo.IncrementUsage(ctx, code.ID); err != nil {
			return err
		}

		result = &RedeemResult{Redemption: redemption}

		var actor *outbox.ActorRef
		if input.UserID != nil {
			actor = &outbox.ActorRef{UserID: *input.UserID}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDiscountRedeemed,
			AggregateType: enums.AggregateDiscount,
			AggregateID:   input.DiscountCodeID,
			Actor:         actor,
			Data: map[string]any{
				"order_id":     input.OrderID.String(),
				"amount_cents": input.AmountCents,
			},
			Version: 1,
		})
	})
	if err != nil {
		// A concurrent duplicate hit the unique constraint first. Treat the
		// conflict as success and surface the committed row.
		if dbpkg.IsUniqueViolation(err, redemptionConstraint) {
			existing, findErr := s.repo.FindRedemption(ctx, input.DiscountCodeID, input.OrderID)
			if findErr != nil {
				return nil, findErr
			}
			return &RedeemResult{AlreadyApplied: true, Redemption: existing}, nil
		}
		return nil, err
	}

	if !result.AlreadyApplied {
		s.metrics.IncDiscountRedemption()
	}
	return result, nil
}

func (s *service) CreateCode(ctx context.Context, input CreateCodeInput) (*models.DiscountCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(input.Code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount kind")
	}
	if input.Value.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must be positive")
	}
	if input.Kind == enums.DiscountKindPercentage && input.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage value cannot exceed 100")
	}
	if input.MaxDiscountCents != nil && input.Kind != enums.DiscountKindPercentage {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max discount cap applies to percentage codes only")
	}
	if input.StartsAt != nil && input.ExpiresAt != nil && input.ExpiresAt.Before(*input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be after starts_at")
	}

	code := &models.DiscountCode{
		Code:              normalized,
		Kind:              input.Kind,
		Value:             input.Value,
		MinPurchaseCents:  input.MinPurchaseCents,
		MaxDiscountCents:  input.MaxDiscountCents,
		UsageLimit:        input.UsageLimit,
		PerUserLimit:      input.PerUserLimit,
		FirstPurchaseOnly: input.FirstPurchaseOnly,
		StartsAt:          input.StartsAt,
		ExpiresAt:         input.ExpiresAt,
		IsActive:          input.IsActive,
		ProductIDs:        dbtypes.UUIDArray(input.ProductIDs),
		AllowedUserIDs:    dbtypes.UUIDArray(input.AllowedUserIDs),
	}
	if err := s.repo.Create(ctx, code); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_discount_codes_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "code already exists")
		}
		return nil, err
	}
	return code, nil
}

func (s *service) UpdateCode(ctx context.Context, id uuid.UUID, input UpdateCodeInput) (*models.DiscountCode, error) {
	code, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
	}

	if input.Value != nil {
		if input.Value.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must be positive")
		}
		code.Value = *input.Value
	}
	if input.MinPurchaseCents != nil {
		code.MinPurchaseCents = input.MinPurchaseCents
	}
	if input.MaxDiscountCents != nil {
		code.MaxDiscountCents = input.MaxDiscountCents
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit < code.UsageCount {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit cannot fall below usage count")
		}
		code.UsageLimit = input.UsageLimit
	}
	if input.PerUserLimit != nil {
		code.PerUserLimit = *input.PerUserLimit
	}
	if input.FirstPurchaseOnly != nil {
		code.FirstPurchaseOnly = *input.FirstPurchaseOnly
	}
	if input.StartsAt != nil {
		code.StartsAt = input.StartsAt
	}
	if input.ExpiresAt != nil {
		code.ExpiresAt = input.ExpiresAt
	}
	if input.IsActive != nil {
		code.IsActive = *input.IsActive
	}
	if input.ProductIDs != nil {
		code.ProductIDs = dbtypes.UUIDArray(input.ProductIDs)
	}
	if input.AllowedUserIDs != nil {
		code.AllowedUserIDs = dbtypes.UUIDArray(input.AllowedUserIDs)
	}

	if err := s.repo.Update(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	record, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
	}
	return record, nil
}

func (s *service) ListRedemptions(ctx context.Context, codeID uuid.UUID, params pagination.Params) ([]models.DiscountRedemption, string, error) {
	if codeID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "discount code id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListRedemptions(ctx, codeID, limit+1, cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}
