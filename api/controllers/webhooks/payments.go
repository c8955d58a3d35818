package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	sq "github.com/square/square-go-sdk"

	"github.com/tiendly/tiendly-backend/api/responses"
	internalorders "github.com/tiendly/tiendly-backend/internal/orders"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	pkgredis "github.com/tiendly/tiendly-backend/pkg/redis"
)

const (
	paymentUpdatedEvent = "payment.updated"
	paymentCompleted    = "COMPLETED"
	webhookGuardTTL     = 7 * 24 * time.Hour
)

type paymentEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		ID     string `json:"id"`
		Object struct {
			Payment struct {
				ID string `json:"id"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	SigningSecret() string
}

// EventGuard deduplicates webhook deliveries by event id.
type EventGuard struct {
	store pkgredis.IdempotencyStore
}

func NewEventGuard(store pkgredis.IdempotencyStore) *EventGuard {
	return &EventGuard{store: store}
}

// CheckAndMark returns true when the event was already processed. The mark
// is written first so a concurrent duplicate delivery loses the SetNX race.
func (g *EventGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if g == nil || g.store == nil {
		return false, nil
	}
	key := g.store.IdempotencyKey("webhook", eventID)
	ok, err := g.store.SetNX(ctx, key, "1", webhookGuardTTL)
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return !ok, nil
}

// Delete releases the mark so a failed event can be redelivered.
func (g *EventGuard) Delete(ctx context.Context, eventID string) error {
	if g == nil || g.store == nil {
		return nil
	}
	return g.store.Del(ctx, g.store.IdempotencyKey("webhook", eventID))
}

// SquarePayment turns completed gateway payments into the order-paid
// transition. The payment's reference id carries the ledger order id.
func SquarePayment(ordersSvc internalorders.Service, client paymentFetcher, guard *EventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if ordersSvc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Square-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "square signature missing"))
			return
		}
		if !validateSignature(payload, client.SigningSecret(), sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
			return
		}

		var event paymentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if event.Type != paymentUpdatedEvent {
			responses.WriteSuccess(w, nil)
			return
		}

		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			eventID = event.Data.ID
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := handlePayment(ctx, ordersSvc, client, event.Data.Object.Payment.ID, logg); err != nil {
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

// handlePayment re-reads the payment from the gateway rather than trusting
// the webhook body, then runs the paid transition.
func handlePayment(ctx context.Context, ordersSvc internalorders.Service, client paymentFetcher, paymentID string, logg *logger.Logger) error {
	if strings.TrimSpace(paymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id missing")
	}

	payment, err := client.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment == nil || stringValue(payment.Status) != paymentCompleted {
		// Not completed yet; a later delivery will carry the final state.
		return nil
	}

	reference := stringValue(payment.ReferenceID)
	orderID, err := uuid.Parse(strings.TrimSpace(reference))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment reference is not an order id")
	}

	result, err := ordersSvc.MarkPaid(ctx, orderID)
	if err != nil {
		return err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"order_id":       orderID.String(),
			"payment_id":     paymentID,
			"already_paid":   result.AlreadyPaid,
			"points_awarded": result.PointsAwarded,
		})
		logg.Info(ctx, "square payment processed")
	}
	return nil
}

func validateSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
