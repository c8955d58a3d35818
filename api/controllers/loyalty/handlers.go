package loyalty

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/api/responses"
	"github.com/tiendly/tiendly-backend/api/validators"
	internalloyalty "github.com/tiendly/tiendly-backend/internal/loyalty"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Balance returns the authenticated user's current point balance.
func Balance(svc internalloyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"balance": balance})
	}
}

func History(svc internalloyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
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

		transactions, next, err := svc.History(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": transactions,
			"next_cursor":  next,
		})
	}
}

type redeemRequest struct {
	Points  int64   `json:"points" validate:"required,min=1"`
	OrderID *string `json:"order_id" validate:"omitempty,uuid"`
}

type redeemResponse struct {
	Redeemed bool   `json:"redeemed"`
	Reason   string `json:"reason,omitempty"`
	Balance  int64  `json:"balance"`
}

// Redeem debits points from the caller's balance. An insufficient balance is
// a payload outcome, not an HTTP error.
func Redeem(svc internalloyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req redeemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalloyalty.RedeemPointsInput{
			UserID: userID,
			Points: req.Points,
		}
		if req.OrderID != nil {
			orderID, err := uuid.Parse(*req.OrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			input.OrderID = &orderID
		}

		result, err := svc.RedeemPoints(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, redeemResponse{
			Redeemed: result.Redeemed,
			Reason:   result.Reason,
			Balance:  result.Balance,
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
