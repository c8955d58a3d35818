package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateMovement OutboxAggregateType = "movement"
	AggregateUser     OutboxAggregateType = "user"
	AggregateDiscount OutboxAggregateType = "discount_code"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateMovement,
	AggregateUser,
	AggregateDiscount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	EventDiscountRedeemed        OutboxEventType = "discount_redeemed"
	EventPointsAwarded           OutboxEventType = "points_awarded"
	EventPointsRedeemed          OutboxEventType = "points_redeemed"
	EventMovementPaymentRecorded OutboxEventType = "movement_payment_recorded"
	EventMovementSettled         OutboxEventType = "movement_settled"
	EventOrderPaid               OutboxEventType = "order_paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDiscountRedeemed,
	EventPointsAwarded,
	EventPointsRedeemed,
	EventMovementPaymentRecorded,
	EventMovementSettled,
	EventOrderPaid,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
