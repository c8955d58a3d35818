package movements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/metrics"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// ReasonAmountExceedsBalance rejects a payment larger than what is owed.
// The admin flow is data-entry driven, so the likely defect is a typo and
// the engine refuses to record it silently.
const ReasonAmountExceedsBalance = "amount_exceeds_balance"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service tracks debts on credit sales and consignments.
type Service interface {
	CreateMovement(ctx context.Context, input CreateMovementInput) (*models.Movement, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error)
	Get(ctx context.Context, id uuid.UUID) (*MovementView, error)
	ListPayments(ctx context.Context, movementID uuid.UUID) ([]models.MovementPayment, error)
	List(ctx context.Context, params pagination.Params) ([]MovementView, string, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	outbox  outboxPublisher
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService wires the debt tracker with its collaborators.
func NewService(
	tx txRunner,
	repo Repository,
	publisher outboxPublisher,
	ledgerMetrics *metrics.LedgerMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		outbox:  publisher,
		metrics: ledgerMetrics,
		now:     time.Now,
	}, nil
}

func (s *service) CreateMovement(ctx context.Context, input CreateMovementInput) (*models.Movement, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement kind")
	}
	if strings.TrimSpace(input.CounterpartyName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counterparty name required")
	}
	if input.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must be positive")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}

	status := enums.MovementStatusSold
	if input.Kind == enums.MovementKindConsignment {
		status = enums.MovementStatusDelivered
	}

	movement := &models.Movement{
		Kind:             input.Kind,
		CounterpartyName: strings.TrimSpace(input.CounterpartyName),
		TotalCents:       input.TotalCents,
		DueDate:          input.DueDate,
		Status:           status,
		Notes:            input.Notes,
		CreatedBy:        input.CreatedBy,
	}
	if err := s.repo.Create(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// RecordPayment inserts the payment and recomputes the paid amount and
// status from the payment sum inside one transaction. Overpayment is
// rejected before anything is written.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error) {
	if input.MovementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.RecordedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recorder id required")
	}

	var result *PaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		movement, err := repo.FindByID(ctx, input.MovementID)
		if err != nil {
			return err
		}
		if movement == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "movement not found")
		}
		if movement.Status == enums.MovementStatusPaid {
			result = &PaymentResult{
				Recorded:        false,
				Reason:          ReasonAmountExceedsBalance,
				AmountPaidCents: movement.AmountPaidCents,
				Status:          movement.Status,
			}
			return nil
		}

		applied, err := repo.ApplyPaymentGuard(ctx, movement.ID, input.AmountCents)
		if err != nil {
			return err
		}
		if !applied {
			result = &PaymentResult{
				Recorded:              false,
				Reason:                ReasonAmountExceedsBalance,
				AmountPaidCents:       movement.AmountPaidCents,
				RemainingBalanceCents: movement.RemainingBalanceCents(),
				Status:                movement.Status,
			}
			return nil
		}

		payment := &models.MovementPayment{
			MovementID:  movement.ID,
			AmountCents: input.AmountCents,
			Method:      input.Method,
			Reference:   input.Reference,
			RecordedBy:  input.RecordedBy,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		// The payment sum is the source of truth; amount_paid_cents is set
		// to it rather than incremented so drift cannot accumulate.
		paid, err := repo.SumPayments(ctx, movement.ID)
		if err != nil {
			return err
		}
		if paid > movement.TotalCents {
			return pkgerrors.New(pkgerrors.CodeInvariant, "payments exceed movement total")
		}

		remaining := movement.TotalCents - paid
		status := movement.Status
		if remaining == 0 {
			status = enums.MovementStatusPaid
		} else if paid > 0 {
			status = enums.MovementStatusPartialPaid
		}
		if err := repo.SetPaidAndStatus(ctx, movement.ID, paid, status); err != nil {
			return err
		}

		result = &PaymentResult{
			Recorded:              true,
			Payment:               payment,
			AmountPaidCents:       paid,
			RemainingBalanceCents: remaining,
			Status:                status,
		}

		actor := &outbox.ActorRef{UserID: input.RecordedBy}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMovementPaymentRecorded,
			AggregateType: enums.AggregateMovement,
			AggregateID:   movement.ID,
			Actor:         actor,
			Data: map[string]any{
				"amount_cents":    input.AmountCents,
				"method":          input.Method,
				"amount_paid":     paid,
				"remaining_cents": remaining,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if status == enums.MovementStatusPaid {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMovementSettled,
				AggregateType: enums.AggregateMovement,
				AggregateID:   movement.ID,
				Actor:         actor,
				Data:          map[string]any{"total_cents": movement.TotalCents},
				Version:       1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Recorded {
		s.metrics.IncMovementPayment(string(input.Method))
	} else {
		s.metrics.IncDomainRejection("record_payment", result.Reason)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*MovementView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id required")
	}
	movement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if movement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "movement not found")
	}
	return &MovementView{
		Movement: *movement,
		Overdue:  IsOverdue(movement, s.now()),
	}, nil
}

func (s *service) ListPayments(ctx context.Context, movementID uuid.UUID) ([]models.MovementPayment, error) {
	if movementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id required")
	}
	return s.repo.ListPayments(ctx, movementID)
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]MovementView, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, limit+1, cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	now := s.now()
	views := make([]MovementView, len(rows))
	for i, movement := range rows {
		views[i] = MovementView{Movement: movement, Overdue: IsOverdue(&movement, now)}
	}
	return views, next, nil
}

// IsOverdue derives the overdue state at read time. It is never persisted,
// so a late payment clears it in the same transaction that settles the
// balance, with no reconciliation step.
func IsOverdue(movement *models.Movement, asOf time.Time) bool {
	if movement == nil || movement.DueDate == nil {
		return false
	}
	return asOf.After(*movement.DueDate) &&
		movement.RemainingBalanceCents() > 0 &&
		movement.Status != enums.MovementStatusPaid
}
