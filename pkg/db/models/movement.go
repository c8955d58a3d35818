package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// Movement is a credit sale or consignment with an outstanding balance.
// AmountPaidCents is derived: it is recomputed from the payment sum inside
// the same transaction that inserts a payment, never incremented ad hoc.
// Overdue has no column on purpose; it is derived from DueDate at read time.
type Movement struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind             enums.MovementKind   `gorm:"column:kind;type:movement_kind_enum;not null"`
	CounterpartyName string               `gorm:"column:counterparty_name;not null"`
	TotalCents       int64                `gorm:"column:total_cents;not null"`
	AmountPaidCents  int64                `gorm:"column:amount_paid_cents;not null;default:0"`
	DueDate          *time.Time           `gorm:"column:due_date"`
	Status           enums.MovementStatus `gorm:"column:status;type:movement_status_enum;not null"`
	Notes            string               `gorm:"column:notes"`
	CreatedBy        uuid.UUID            `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// RemainingBalanceCents is the derived outstanding amount.
func (m Movement) RemainingBalanceCents() int64 {
	return m.TotalCents - m.AmountPaidCents
}
