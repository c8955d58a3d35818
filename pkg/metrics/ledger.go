package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records counters for the incentive and debt ledger flows.
// All methods are nil-safe so callers can skip wiring in tests.
type LedgerMetrics struct {
	discountRedemptions prometheus.Counter
	pointsAwarded       prometheus.Counter
	pointsRedeemed      prometheus.Counter
	movementPayments    *prometheus.CounterVec
	domainRejections    *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	discountRedemptions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_discount_redemptions_total",
		Help: "Discount redemptions recorded.",
	})
	pointsAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_points_awarded_total",
		Help: "Loyalty point awards recorded.",
	})
	pointsRedeemed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_points_redeemed_total",
		Help: "Loyalty point redemptions recorded.",
	})
	movementPayments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_movement_payments_total",
		Help: "Movement payments recorded.",
	}, []string{"method"})
	domainRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_domain_rejections_total",
		Help: "Domain rejections by operation and reason.",
	}, []string{"operation", "reason"})
	reg.MustRegister(discountRedemptions, pointsAwarded, pointsRedeemed, movementPayments, domainRejections)
	return &LedgerMetrics{
		discountRedemptions: discountRedemptions,
		pointsAwarded:       pointsAwarded,
		pointsRedeemed:      pointsRedeemed,
		movementPayments:    movementPayments,
		domainRejections:    domainRejections,
	}
}

// IncDiscountRedemption increments the redemption counter.
func (m *LedgerMetrics) IncDiscountRedemption() {
	if m == nil || m.discountRedemptions == nil {
		return
	}
	m.discountRedemptions.Inc()
}

// IncPointsAwarded increments the award counter.
func (m *LedgerMetrics) IncPointsAwarded() {
	if m == nil || m.pointsAwarded == nil {
		return
	}
	m.pointsAwarded.Inc()
}

// IncPointsRedeemed increments the redemption counter.
func (m *LedgerMetrics) IncPointsRedeemed() {
	if m == nil || m.pointsRedeemed == nil {
		return
	}
	m.pointsRedeemed.Inc()
}

// IncMovementPayment increments the payment counter for the given method.
func (m *LedgerMetrics) IncMovementPayment(method string) {
	if m == nil || m.movementPayments == nil {
		return
	}
	m.movementPayments.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncDomainRejection increments the rejection counter for an operation/reason pair.
func (m *LedgerMetrics) IncDomainRejection(operation, reason string) {
	if m == nil || m.domainRejections == nil {
		return
	}
	m.domainRejections.WithLabelValues(normalizeLabel(operation), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
