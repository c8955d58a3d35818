package movements

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// CreateMovementInput opens a credit sale or consignment.
type CreateMovementInput struct {
	Kind             enums.MovementKind
	CounterpartyName string
	TotalCents       int64
	DueDate          *time.Time
	Notes            string
	CreatedBy        uuid.UUID
}

// RecordPaymentInput registers money received against a movement.
type RecordPaymentInput struct {
	MovementID  uuid.UUID
	AmountCents int64
	Method      enums.PaymentMethod
	Reference   string
	RecordedBy  uuid.UUID
}

// PaymentResult carries the recomputed totals after a payment attempt.
// Reason is set when Recorded is false.
type PaymentResult struct {
	Recorded              bool
	Reason                string
	Payment               *models.MovementPayment
	AmountPaidCents       int64
	RemainingBalanceCents int64
	Status                enums.MovementStatus
}

// MovementView pairs a movement with its derived overdue flag.
type MovementView struct {
	Movement models.Movement
	Overdue  bool
}
