package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/api/responses"
	"github.com/tiendly/tiendly-backend/api/validators"
	internalorders "github.com/tiendly/tiendly-backend/internal/orders"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
)

type createRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	TotalCents     int64   `json:"total_cents" validate:"required,min=1"`
	Business       bool    `json:"business"`
	DiscountCodeID *string `json:"discount_code_id" validate:"omitempty,uuid"`
	DiscountCents  int64   `json:"discount_cents" validate:"min=0"`
}

// Create records a checkout snapshot. An authenticated caller owns the
// order; anonymous checkouts stay keyed by email.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{
			UserID:        requesterID(r),
			Email:         req.Email,
			TotalCents:    req.TotalCents,
			Business:      req.Business,
			DiscountCents: req.DiscountCents,
		}
		if req.DiscountCodeID != nil {
			codeID, err := uuid.Parse(*req.DiscountCodeID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount code id"))
				return
			}
			input.DiscountCodeID = &codeID
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// MarkPaid runs the paid transition by hand. Operators use it when a
// payment arrives outside the gateway.
func MarkPaid(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MarkPaid(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"already_paid":     result.AlreadyPaid,
			"discount_applied": result.DiscountApplied,
			"points_awarded":   result.PointsAwarded,
		})
	}
}

func requesterID(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
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
