package movements

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/api/responses"
	"github.com/tiendly/tiendly-backend/api/validators"
	internalmovements "github.com/tiendly/tiendly-backend/internal/movements"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type createRequest struct {
	Kind             string  `json:"kind" validate:"required,oneof=credit_sale consignment"`
	CounterpartyName string  `json:"counterparty_name" validate:"required,max=160"`
	TotalCents       int64   `json:"total_cents" validate:"required,min=1"`
	DueDate          *string `json:"due_date"`
	Notes            string  `json:"notes" validate:"max=2000"`
}

func Create(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var dueDate *time.Time
		if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
			parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.DueDate))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid due_date"))
				return
			}
			dueDate = &parsed
		}

		movement, err := svc.CreateMovement(r.Context(), internalmovements.CreateMovementInput{
			Kind:             enums.MovementKind(req.Kind),
			CounterpartyName: req.CounterpartyName,
			TotalCents:       req.TotalCents,
			DueDate:          dueDate,
			Notes:            req.Notes,
			CreatedBy:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}

type recordPaymentRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,min=1"`
	Method      string `json:"method" validate:"required,oneof=cash transfer card online"`
	Reference   string `json:"reference" validate:"max=160"`
}

type paymentResponse struct {
	Recorded              bool   `json:"recorded"`
	Reason                string `json:"reason,omitempty"`
	Payment               any    `json:"payment,omitempty"`
	AmountPaidCents       int64  `json:"amount_paid_cents"`
	RemainingBalanceCents int64  `json:"remaining_balance_cents"`
	Status                string `json:"status"`
}

// RecordPayment registers money received. Overpayment comes back as a
// rejected payload so the operator can correct the entry.
func RecordPayment(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementID, err := pathUUID(r, "movementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RecordPayment(r.Context(), internalmovements.RecordPaymentInput{
			MovementID:  movementID,
			AmountCents: req.AmountCents,
			Method:      enums.PaymentMethod(req.Method),
			Reference:   req.Reference,
			RecordedBy:  actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := paymentResponse{
			Recorded:              result.Recorded,
			Reason:                result.Reason,
			AmountPaidCents:       result.AmountPaidCents,
			RemainingBalanceCents: result.RemainingBalanceCents,
			Status:                string(result.Status),
		}
		if result.Payment != nil {
			payload.Payment = result.Payment
		}
		responses.WriteSuccess(w, payload)
	}
}

func Detail(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		movementID, err := pathUUID(r, "movementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), movementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"movement": view.Movement,
			"overdue":  view.Overdue,
		})
	}
}

func ListPayments(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		movementID, err := pathUUID(r, "movementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, err := svc.ListPayments(r.Context(), movementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"payments": payments})
	}
}

func List(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		views, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"movements":   views,
			"next_cursor": next,
		})
	}
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, key+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return id, nil
}
