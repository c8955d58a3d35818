package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/metrics"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// ReasonInsufficientBalance rejects a redemption that exceeds the balance.
const ReasonInsufficientBalance = "insufficient_balance"

const awardConstraint = "ux_loyalty_transactions_award_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AwardInput grants points for a completed order.
type AwardInput struct {
	UserID     uuid.UUID
	OrderID    uuid.UUID
	TotalCents int64
}

// AwardResult reports how many points the call granted. AlreadyAwarded means
// a previous call for the same order won; PointsAwarded is then zero.
type AwardResult struct {
	PointsAwarded  int64
	AlreadyAwarded bool
}

// RedeemPointsInput debits points from a user's balance.
type RedeemPointsInput struct {
	UserID  uuid.UUID
	OrderID *uuid.UUID
	Points  int64
}

// RedeemPointsResult reports the outcome; Reason is set when Redeemed is false.
type RedeemPointsResult struct {
	Redeemed bool
	Reason   string
	Balance  int64
}

// Service awards and redeems loyalty points against the append-only ledger.
type Service interface {
	AwardPoints(ctx context.Context, input AwardInput) (*AwardResult, error)
	RedeemPoints(ctx context.Context, input RedeemPointsInput) (*RedeemPointsResult, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LoyaltyTransaction, string, error)
}

type service struct {
	tx             txRunner
	repo           Repository
	outbox         outboxPublisher
	metrics        *metrics.LedgerMetrics
	earnRatioCents int64
}

// NewService wires the loyalty engine. earnRatioCents is the order total that
// earns one point.
func NewService(
	tx txRunner,
	repo Repository,
	publisher outboxPublisher,
	ledgerMetrics *metrics.LedgerMetrics,
	earnRatioCents int64,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if earnRatioCents <= 0 {
		return nil, fmt.Errorf("earn ratio must be positive")
	}
	return &service{
		tx:             tx,
		repo:           repo,
		outbox:         publisher,
		metrics:        ledgerMetrics,
		earnRatioCents: earnRatioCents,
	}, nil
}

// AwardPoints grants floor(total / ratio) points exactly once per order. The
// check and the insert run in the same transaction; the partial unique index
// on order_id settles races between concurrent retries.
func (s *service) AwardPoints(ctx context.Context, input AwardInput) (*AwardResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.TotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}

	points := input.TotalCents / s.earnRatioCents
	if points <= 0 {
		return &AwardResult{PointsAwarded: 0}, nil
	}

	var result *AwardResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindAwardByOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &AwardResult{AlreadyAwarded: true}
			return nil
		}

		orderID := input.OrderID
		transaction := &models.LoyaltyTransaction{
			UserID:  input.UserID,
			OrderID: &orderID,
			Delta:   points,
			Reason:  enums.LoyaltyReasonOrderAward,
		}
		if err := repo.CreateTransaction(ctx, transaction); err != nil {
			return err
		}
		if err := repo.AddToBalance(ctx, input.UserID, points); err != nil {
			return err
		}

		result = &AwardResult{PointsAwarded: points}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsAwarded,
			AggregateType: enums.AggregateUser,
			AggregateID:   input.UserID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: map[string]any{
				"order_id": input.OrderID.String(),
				"points":   points,
			},
			Version: 1,
		})
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, awardConstraint) {
			return &AwardResult{AlreadyAwarded: true}, nil
		}
		return nil, err
	}

	if !result.AlreadyAwarded {
		s.metrics.IncPointsAwarded()
	}
	return result, nil
}

// RedeemPoints debits the balance, re-validating it inside the transaction.
// The balance can never go negative: the deduction only applies when the
// current value covers the request.
func (s *service) RedeemPoints(ctx context.Context, input RedeemPointsInput) (*RedeemPointsResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}

	var result *RedeemPointsResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		deducted, err := repo.DeductFromBalance(ctx, input.UserID, input.Points)
		if err != nil {
			return err
		}
		if !deducted {
			balance, err := repo.GetBalance(ctx, input.UserID)
			if err != nil {
				return err
			}
			result = &RedeemPointsResult{
				Redeemed: false,
				Reason:   ReasonInsufficientBalance,
				Balance:  balance,
			}
			return nil
		}

		transaction := &models.LoyaltyTransaction{
			UserID:  input.UserID,
			OrderID: input.OrderID,
			Delta:   -input.Points,
			Reason:  enums.LoyaltyReasonRedemption,
		}
		if err := repo.CreateTransaction(ctx, transaction); err != nil {
			return err
		}

		balance, err := repo.GetBalance(ctx, input.UserID)
		if err != nil {
			return err
		}
		if balance < 0 {
			return pkgerrors.New(pkgerrors.CodeInvariant, "points balance went negative")
		}

		result = &RedeemPointsResult{Redeemed: true, Balance: balance}

		data := map[string]any{"points": input.Points}
		if input.OrderID != nil {
			data["order_id"] = input.OrderID.String()
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsRedeemed,
			AggregateType: enums.AggregateUser,
			AggregateID:   input.UserID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data:          data,
			Version:       1,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Redeemed {
		s.metrics.IncPointsRedeemed()
	} else {
		s.metrics.IncDomainRejection("redeem_points", result.Reason)
	}
	return result, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.GetBalance(ctx, userID)
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LoyaltyTransaction, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, limit+1, cursor)
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
