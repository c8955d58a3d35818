package loyalty

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/metrics"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	findAwardFn  func(ctx context.Context, orderID uuid.UUID) (*models.LoyaltyTransaction, error)
	createTxFn   func(ctx context.Context, transaction *models.LoyaltyTransaction) error
	addBalanceFn func(ctx context.Context, userID uuid.UUID, delta int64) error
	deductFn     func(ctx context.Context, userID uuid.UUID, points int64) (bool, error)
	getBalanceFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	sumDeltasFn  func(ctx context.Context, userID uuid.UUID) (int64, error)
	listByUserFn func(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LoyaltyTransaction, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindAwardByOrder(ctx context.Context, orderID uuid.UUID) (*models.LoyaltyTransaction, error) {
	if f.findAwardFn != nil {
		return f.findAwardFn(ctx, orderID)
	}
	return nil, nil
}

func (f *fakeRepository) CreateTransaction(ctx context.Context, transaction *models.LoyaltyTransaction) error {
	if f.createTxFn != nil {
		return f.createTxFn(ctx, transaction)
	}
	return nil
}

func (f *fakeRepository) AddToBalance(ctx context.Context, userID uuid.UUID, delta int64) error {
	if f.addBalanceFn != nil {
		return f.addBalanceFn(ctx, userID, delta)
	}
	return nil
}

func (f *fakeRepository) DeductFromBalance(ctx context.Context, userID uuid.UUID, points int64) (bool, error) {
	if f.deductFn != nil {
		return f.deductFn(ctx, userID, points)
	}
	return true, nil
}

func (f *fakeRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.getBalanceFn != nil {
		return f.getBalanceFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.sumDeltasFn != nil {
		return f.sumDeltasFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LoyaltyTransaction, error) {
	if f.listByUserFn != nil {
		return f.listByUserFn(ctx, userID, limit, cursor)
	}
	return nil, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T, repo Repository, publisher *fakeOutbox) Service {
	t.Helper()
	if publisher == nil {
		publisher = &fakeOutbox{}
	}
	svc, err := NewService(fakeTxRunner{}, repo, publisher, metrics.NewLedgerMetrics(nil), 100)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_AwardPointsFloorsRatio(t *testing.T) {
	var created *models.LoyaltyTransaction
	var balanceDelta int64
	repo := &fakeRepository{
		createTxFn: func(ctx context.Context, transaction *models.LoyaltyTransaction) error {
			created = transaction
			return nil
		},
		addBalanceFn: func(ctx context.Context, userID uuid.UUID, delta int64) error {
			balanceDelta = delta
			return nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID:     uuid.New(),
		OrderID:    uuid.New(),
		TotalCents: 25050,
	})
	if err != nil {
		t.Fatalf("AwardPoints error: %v", err)
	}
	if result.PointsAwarded != 250 {
		t.Fatalf("expected 250 points, got %d", result.PointsAwarded)
	}
	if created == nil || created.Delta != 250 || created.Reason != enums.LoyaltyReasonOrderAward {
		t.Fatalf("unexpected transaction: %+v", created)
	}
	if balanceDelta != 250 {
		t.Fatalf("expected balance delta 250, got %d", balanceDelta)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventPointsAwarded {
		t.Fatalf("expected points_awarded event, got %+v", publisher.events)
	}
}

func TestService_AwardPointsZeroForSmallTotal(t *testing.T) {
	repo := &fakeRepository{
		createTxFn: func(ctx context.Context, transaction *models.LoyaltyTransaction) error {
			t.Fatal("no transaction should be written for a zero award")
			return nil
		},
	}
	svc := newTestService(t, repo, nil)

	result, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID:     uuid.New(),
		OrderID:    uuid.New(),
		TotalCents: 99,
	})
	if err != nil {
		t.Fatalf("AwardPoints error: %v", err)
	}
	if result.PointsAwarded != 0 || result.AlreadyAwarded {
		t.Fatalf("expected zero-point result, got %+v", result)
	}
}

func TestService_AwardPointsIdempotent(t *testing.T) {
	existing := &models.LoyaltyTransaction{ID: uuid.New(), Delta: 250}
	repo := &fakeRepository{
		findAwardFn: func(ctx context.Context, orderID uuid.UUID) (*models.LoyaltyTransaction, error) {
			return existing, nil
		},
		createTxFn: func(ctx context.Context, transaction *models.LoyaltyTransaction) error {
			t.Fatal("replay must not insert a second award")
			return nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID:     uuid.New(),
		OrderID:    uuid.New(),
		TotalCents: 25000,
	})
	if err != nil {
		t.Fatalf("AwardPoints error: %v", err)
	}
	if !result.AlreadyAwarded || result.PointsAwarded != 0 {
		t.Fatalf("expected already-awarded result, got %+v", result)
	}
	if len(publisher.events) != 0 {
		t.Fatal("no event should be emitted on replay")
	}
}

func TestService_AwardPointsConcurrentDuplicate(t *testing.T) {
	repo := &fakeRepository{
		createTxFn: func(ctx context.Context, transaction *models.LoyaltyTransaction) error {
			return errors.New(`duplicate key value violates unique constraint "ux_loyalty_transactions_award_order"`)
		},
	}
	svc := newTestService(t, repo, nil)

	result, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID:     uuid.New(),
		OrderID:    uuid.New(),
		TotalCents: 25000,
	})
	if err != nil {
		t.Fatalf("expected conflict treated as success, got %v", err)
	}
	if !result.AlreadyAwarded {
		t.Fatalf("expected already-awarded result, got %+v", result)
	}
}

func TestService_RedeemPointsInsufficientBalance(t *testing.T) {
	repo := &fakeRepository{
		deductFn: func(ctx context.Context, userID uuid.UUID, points int64) (bool, error) {
			return false, nil
		},
		getBalanceFn: func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return 40, nil
		},
		createTxFn: func(ctx context.Context, transaction *models.LoyaltyTransaction) error {
			t.Fatal("rejected redemption must not write a transaction")
			return nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.RedeemPoints(context.Background(), RedeemPointsInput{
		UserID: uuid.New(),
		Points: 100,
	})
	if err != nil {
		t.Fatalf("RedeemPoints error: %v", err)
	}
	if result.Redeemed {
		t.Fatal("expected rejection")
	}
	if result.Reason != ReasonInsufficientBalance {
		t.Fatalf("expected reason %s, got %s", ReasonInsufficientBalance, result.Reason)
	}
	if result.Balance != 40 {
		t.Fatalf("expected untouched balance 40, got %d", result.Balance)
	}
	if len(publisher.events) != 0 {
		t.Fatal("no event should be emitted on rejection")
	}
}

func TestService_RedeemPointsSuccess(t *testing.T) {
	orderID := uuid.New()
	var created *models.LoyaltyTransaction
	repo := &fakeRepository{
		deductFn: func(ctx context.Context, userID uuid.UUID, points int64) (bool, error) {
			return true, nil
		},
		getBalanceFn: func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return 150, nil
		},
		createTxFn: func(ctx context.Context, transaction *models.LoyaltyTransaction) error {
			created = transaction
			return nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.RedeemPoints(context.Background(), RedeemPointsInput{
		UserID:  uuid.New(),
		OrderID: &orderID,
		Points:  100,
	})
	if err != nil {
		t.Fatalf("RedeemPoints error: %v", err)
	}
	if !result.Redeemed || result.Balance != 150 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if created == nil || created.Delta != -100 || created.Reason != enums.LoyaltyReasonRedemption {
		t.Fatalf("unexpected transaction: %+v", created)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventPointsRedeemed {
		t.Fatalf("expected points_redeemed event, got %+v", publisher.events)
	}
}

func TestService_RedeemPointsValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil)

	if _, err := svc.RedeemPoints(context.Background(), RedeemPointsInput{Points: 10}); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, err := svc.RedeemPoints(context.Background(), RedeemPointsInput{UserID: uuid.New(), Points: 0}); err == nil {
		t.Fatal("expected error for non-positive points")
	}
}

func TestNewService_RejectsBadRatio(t *testing.T) {
	_, err := NewService(fakeTxRunner{}, &fakeRepository{}, &fakeOutbox{}, metrics.NewLedgerMetrics(nil), 0)
	if err == nil {
		t.Fatal("expected error for zero earn ratio")
	}
}
