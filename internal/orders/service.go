package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/internal/discounts"
	"github.com/tiendly/tiendly-backend/internal/loyalty"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type discountRedeemer interface {
	Redeem(ctx context.Context, input discounts.RedeemInput) (*discounts.RedeemResult, error)
}

type pointsAwarder interface {
	AwardPoints(ctx context.Context, input loyalty.AwardInput) (*loyalty.AwardResult, error)
}

// CreateOrderInput captures the checkout snapshot the ledger keeps.
type CreateOrderInput struct {
	UserID         *uuid.UUID
	Email          string
	TotalCents     int64
	Business       bool
	DiscountCodeID *uuid.UUID
	DiscountCents  int64
}

// MarkPaidResult reports what the paid transition triggered. Each leg is
// idempotent, so a retried call reports the already-done flags instead of
// double-applying.
type MarkPaidResult struct {
	AlreadyPaid     bool
	DiscountApplied bool
	PointsAwarded   int64
}

// Service exposes the order collaborator surface: creation, lookups, the
// first-purchase counter, and the paid transition that drives the engines.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CountCompleted(ctx context.Context, userID *uuid.UUID, email string) (int64, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*MarkPaidResult, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	discounts discountRedeemer
	loyalty   pointsAwarder
	outbox    outboxPublisher
}

// NewService wires the order coordinator.
func NewService(
	tx txRunner,
	repo Repository,
	discountSvc discountRedeemer,
	loyaltySvc pointsAwarder,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if discountSvc == nil {
		return nil, fmt.Errorf("discount service required")
	}
	if loyaltySvc == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		discounts: discountSvc,
		loyalty:   loyaltySvc,
		outbox:    publisher,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must be positive")
	}
	if input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}
	if input.DiscountCents > 0 && input.DiscountCodeID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code id required when a discount is applied")
	}

	order := &models.Order{
		UserID:         input.UserID,
		Email:          email,
		Status:         enums.OrderStatusPending,
		TotalCents:     input.TotalCents,
		Business:       input.Business,
		DiscountCodeID: input.DiscountCodeID,
		DiscountCents:  input.DiscountCents,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// CountCompleted counts prior paid orders, by user id when authenticated and
// by email otherwise. The discount engine uses it for first-purchase checks.
func (s *service) CountCompleted(ctx context.Context, userID *uuid.UUID, email string) (int64, error) {
	if userID != nil && *userID != uuid.Nil {
		return s.repo.CountCompletedByUser(ctx, *userID)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return 0, nil
	}
	return s.repo.CountCompletedByEmail(ctx, email)
}

// MarkPaid runs the order-paid business event: flip the status, consume the
// discount, award points. Each leg keys on the order id, so a duplicate
// webhook delivery or a retry after a partial failure converges on the same
// final state.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*MarkPaidResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status == enums.OrderStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is canceled")
	}

	result := &MarkPaidResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transitioned, err := repo.MarkPaid(ctx, orderID)
		if err != nil {
			return err
		}
		if !transitioned {
			result.AlreadyPaid = true
			return nil
		}

		var actor *outbox.ActorRef
		if order.UserID != nil {
			actor = &outbox.ActorRef{UserID: *order.UserID}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data:          map[string]any{"total_cents": order.TotalCents},
			Version:       1,
		})
	})
	if err != nil {
		return nil, err
	}

	if order.DiscountCodeID != nil && order.DiscountCents > 0 {
		redeemed, err := s.discounts.Redeem(ctx, discounts.RedeemInput{
			DiscountCodeID: *order.DiscountCodeID,
			OrderID:        orderID,
			UserID:         order.UserID,
			AmountCents:    order.DiscountCents,
		})
		if err != nil {
			return nil, err
		}
		result.DiscountApplied = !redeemed.AlreadyApplied
	}

	if order.UserID != nil && !order.Business {
		awarded, err := s.loyalty.AwardPoints(ctx, loyalty.AwardInput{
			UserID:     *order.UserID,
			OrderID:    orderID,
			TotalCents: order.TotalCents,
		})
		if err != nil {
			return nil, err
		}
		result.PointsAwarded = awarded.PointsAwarded
	}

	return result, nil
}
