package movements

import (
	"context"
	"testing"
	"time"

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
	createFn        func(ctx context.Context, movement *models.Movement) error
	findByIDFn      func(ctx context.Context, id uuid.UUID) (*models.Movement, error)
	applyGuardFn    func(ctx context.Context, id uuid.UUID, amountCents int64) (bool, error)
	createPaymentFn func(ctx context.Context, payment *models.MovementPayment) error
	sumPaymentsFn   func(ctx context.Context, movementID uuid.UUID) (int64, error)
	setPaidFn       func(ctx context.Context, id uuid.UUID, amountPaidCents int64, status enums.MovementStatus) error
	listPaymentsFn  func(ctx context.Context, movementID uuid.UUID) ([]models.MovementPayment, error)
	listFn          func(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Movement, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, movement *models.Movement) error {
	if f.createFn != nil {
		return f.createFn(ctx, movement)
	}
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRepository) ApplyPaymentGuard(ctx context.Context, id uuid.UUID, amountCents int64) (bool, error) {
	if f.applyGuardFn != nil {
		return f.applyGuardFn(ctx, id, amountCents)
	}
	return true, nil
}

func (f *fakeRepository) CreatePayment(ctx context.Context, payment *models.MovementPayment) error {
	if f.createPaymentFn != nil {
		return f.createPaymentFn(ctx, payment)
	}
	return nil
}

func (f *fakeRepository) SumPayments(ctx context.Context, movementID uuid.UUID) (int64, error) {
	if f.sumPaymentsFn != nil {
		return f.sumPaymentsFn(ctx, movementID)
	}
	return 0, nil
}

func (f *fakeRepository) SetPaidAndStatus(ctx context.Context, id uuid.UUID, amountPaidCents int64, status enums.MovementStatus) error {
	if f.setPaidFn != nil {
		return f.setPaidFn(ctx, id, amountPaidCents, status)
	}
	return nil
}

func (f *fakeRepository) ListPayments(ctx context.Context, movementID uuid.UUID) ([]models.MovementPayment, error) {
	if f.listPaymentsFn != nil {
		return f.listPaymentsFn(ctx, movementID)
	}
	return nil, nil
}

func (f *fakeRepository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Movement, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit, cursor)
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
	svc, err := NewService(fakeTxRunner{}, repo, publisher, metrics.NewLedgerMetrics(nil))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func openMovement(total, paid int64, status enums.MovementStatus) *models.Movement {
	return &models.Movement{
		ID:               uuid.New(),
		Kind:             enums.MovementKindCreditSale,
		CounterpartyName: "Corner Store",
		TotalCents:       total,
		AmountPaidCents:  paid,
		Status:           status,
	}
}

func TestService_CreateMovementInitialStatus(t *testing.T) {
	var created *models.Movement
	repo := &fakeRepository{
		createFn: func(ctx context.Context, movement *models.Movement) error {
			created = movement
			return nil
		},
	}
	svc := newTestService(t, repo, nil)

	_, err := svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:             enums.MovementKindCreditSale,
		CounterpartyName: "Corner Store",
		TotalCents:       10000,
		CreatedBy:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("CreateMovement error: %v", err)
	}
	if created.Status != enums.MovementStatusSold {
		t.Fatalf("expected sold status for credit sale, got %s", created.Status)
	}

	_, err = svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:             enums.MovementKindConsignment,
		CounterpartyName: "Corner Store",
		TotalCents:       10000,
		CreatedBy:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("CreateMovement error: %v", err)
	}
	if created.Status != enums.MovementStatusDelivered {
		t.Fatalf("expected delivered status for consignment, got %s", created.Status)
	}
}

func TestService_RecordPaymentOverpaymentRejected(t *testing.T) {
	movement := openMovement(10000, 5000, enums.MovementStatusPartialPaid)
	var paymentWritten bool
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
			return movement, nil
		},
		applyGuardFn: func(ctx context.Context, id uuid.UUID, amountCents int64) (bool, error) {
			return false, nil
		},
		createPaymentFn: func(ctx context.Context, payment *models.MovementPayment) error {
			paymentWritten = true
			return nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		MovementID:  movement.ID,
		AmountCents: 6000,
		Method:      enums.PaymentMethodCash,
		RecordedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if result.Recorded {
		t.Fatal("expected rejection")
	}
	if result.Reason != ReasonAmountExceedsBalance {
		t.Fatalf("expected reason %s, got %s", ReasonAmountExceedsBalance, result.Reason)
	}
	if result.RemainingBalanceCents != 5000 {
		t.Fatalf("expected remaining 5000, got %d", result.RemainingBalanceCents)
	}
	if paymentWritten {
		t.Fatal("rejected payment must not be written")
	}
	if len(publisher.events) != 0 {
		t.Fatal("no event should be emitted on rejection")
	}
}

func TestService_RecordPaymentPartial(t *testing.T) {
	movement := openMovement(10000, 0, enums.MovementStatusSold)
	var setStatus enums.MovementStatus
	var setPaid int64
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
			return movement, nil
		},
		sumPaymentsFn: func(ctx context.Context, movementID uuid.UUID) (int64, error) {
			return 4000, nil
		},
		setPaidFn: func(ctx context.Context, id uuid.UUID, amountPaidCents int64, status enums.MovementStatus) error {
			setPaid = amountPaidCents
			setStatus = status
			return nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		MovementID:  movement.ID,
		AmountCents: 4000,
		Method:      enums.PaymentMethodTransfer,
		RecordedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if !result.Recorded {
		t.Fatalf("expected recorded payment, got %+v", result)
	}
	if result.AmountPaidCents != 4000 || result.RemainingBalanceCents != 6000 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if result.Status != enums.MovementStatusPartialPaid || setStatus != enums.MovementStatusPartialPaid {
		t.Fatalf("expected partial_paid status, got %s/%s", result.Status, setStatus)
	}
	if setPaid != 4000 {
		t.Fatalf("expected amount paid set to 4000, got %d", setPaid)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventMovementPaymentRecorded {
		t.Fatalf("expected payment_recorded event, got %+v", publisher.events)
	}
}

func TestService_RecordPaymentSettles(t *testing.T) {
	movement := openMovement(10000, 4000, enums.MovementStatusPartialPaid)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
			return movement, nil
		},
		sumPaymentsFn: func(ctx context.Context, movementID uuid.UUID) (int64, error) {
			return 10000, nil
		},
	}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, publisher)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		MovementID:  movement.ID,
		AmountCents: 6000,
		Method:      enums.PaymentMethodCash,
		RecordedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if result.Status != enums.MovementStatusPaid || result.RemainingBalanceCents != 0 {
		t.Fatalf("expected settled movement, got %+v", result)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("expected payment and settled events, got %+v", publisher.events)
	}
	if publisher.events[1].EventType != enums.EventMovementSettled {
		t.Fatalf("expected movement_settled event, got %s", publisher.events[1].EventType)
	}
}

func TestService_RecordPaymentOnSettledMovement(t *testing.T) {
	movement := openMovement(10000, 10000, enums.MovementStatusPaid)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
			return movement, nil
		},
	}
	svc := newTestService(t, repo, nil)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		MovementID:  movement.ID,
		AmountCents: 100,
		Method:      enums.PaymentMethodCash,
		RecordedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if result.Recorded || result.Reason != ReasonAmountExceedsBalance {
		t.Fatalf("expected rejection on settled movement, got %+v", result)
	}
}

func TestService_RecordPaymentInvariantOnSumDrift(t *testing.T) {
	movement := openMovement(10000, 0, enums.MovementStatusSold)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
			return movement, nil
		},
		sumPaymentsFn: func(ctx context.Context, movementID uuid.UUID) (int64, error) {
			return 10001, nil
		},
	}
	svc := newTestService(t, repo, nil)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		MovementID:  movement.ID,
		AmountCents: 4000,
		Method:      enums.PaymentMethodCash,
		RecordedBy:  uuid.New(),
	})
	if err == nil {
		t.Fatal("expected invariant failure when payments exceed the total")
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		movement *models.Movement
		want     bool
	}{
		{name: "nil movement", movement: nil, want: false},
		{
			name:     "no due date",
			movement: &models.Movement{TotalCents: 1000, Status: enums.MovementStatusSold},
			want:     false,
		},
		{
			name: "due in the future",
			movement: &models.Movement{
				TotalCents: 1000, DueDate: &future, Status: enums.MovementStatusSold,
			},
			want: false,
		},
		{
			name: "past due with balance",
			movement: &models.Movement{
				TotalCents: 1000, DueDate: &past, Status: enums.MovementStatusSold,
			},
			want: true,
		},
		{
			name: "past due but settled",
			movement: &models.Movement{
				TotalCents: 1000, AmountPaidCents: 1000,
				DueDate: &past, Status: enums.MovementStatusPaid,
			},
			want: false,
		},
		{
			name: "past due partially paid",
			movement: &models.Movement{
				TotalCents: 1000, AmountPaidCents: 400,
				DueDate: &past, Status: enums.MovementStatusPartialPaid,
			},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOverdue(tc.movement, now); got != tc.want {
				t.Fatalf("IsOverdue = %v, want %v", got, tc.want)
			}
		})
	}
}
