package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// MovementPayment is the immutable record of money received against a
// movement. The sum of a movement's payments equals its amount paid and can
// never exceed its total; the tracker validates that before insert.
type MovementPayment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MovementID  uuid.UUID           `gorm:"column:movement_id;type:uuid;not null;index"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Method      enums.PaymentMethod `gorm:"column:method;type:payment_method_enum;not null"`
	Reference   string              `gorm:"column:reference"`
	RecordedBy  uuid.UUID           `gorm:"column:recorded_by;type:uuid;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
