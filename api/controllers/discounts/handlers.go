package discounts

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/api/responses"
	"github.com/tiendly/tiendly-backend/api/validators"
	internaldiscounts "github.com/tiendly/tiendly-backend/internal/discounts"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type cartItemRequest struct {
	ProductID     string `json:"product_id" validate:"required,uuid"`
	SubtotalCents int64  `json:"subtotal_cents" validate:"min=0"`
}

type validateRequest struct {
	Code       string            `json:"code" validate:"required"`
	Email      string            `json:"email" validate:"omitempty,email"`
	TotalCents int64             `json:"total_cents" validate:"min=0"`
	Items      []cartItemRequest `json:"items" validate:"omitempty,dive"`
}

type validateResponse struct {
	Valid                 bool   `json:"valid"`
	Reason                string `json:"reason,omitempty"`
	DiscountCents         int64  `json:"discount_cents,omitempty"`
	EligibleSubtotalCents int64  `json:"eligible_subtotal_cents,omitempty"`
}

// Validate quotes a discount code against a cart. Rejections are part of the
// success payload; only malformed requests or storage failures error.
func Validate(svc internaldiscounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		var req validateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]internaldiscounts.CartItem, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, internaldiscounts.CartItem{
				ProductID:     productID,
				SubtotalCents: item.SubtotalCents,
			})
		}

		input := internaldiscounts.ValidateInput{
			Code: req.Code,
			Requester: internaldiscounts.Requester{
				UserID: requesterID(r),
				Email:  req.Email,
			},
			Cart: internaldiscounts.Cart{
				TotalCents: req.TotalCents,
				Items:      items,
			},
		}

		result, err := svc.Validate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, validateResponse{
			Valid:                 result.Valid,
			Reason:                string(result.Reason),
			DiscountCents:         result.DiscountCents,
			EligibleSubtotalCents: result.EligibleSubtotalCents,
		})
	}
}

type createCodeRequest struct {
	Code              string   `json:"code" validate:"required,max=64"`
	Kind              string   `json:"kind" validate:"required,oneof=percentage fixed_amount"`
	Value             string   `json:"value" validate:"required"`
	MinPurchaseCents  *int64   `json:"min_purchase_cents" validate:"omitempty,min=0"`
	MaxDiscountCents  *int64   `json:"max_discount_cents" validate:"omitempty,min=0"`
	UsageLimit        *int     `json:"usage_limit" validate:"omitempty,min=1"`
	PerUserLimit      int      `json:"per_user_limit" validate:"min=0"`
	FirstPurchaseOnly bool     `json:"first_purchase_only"`
	StartsAt          *string  `json:"starts_at"`
	ExpiresAt         *string  `json:"expires_at"`
	IsActive          bool     `json:"is_active"`
	ProductIDs        []string `json:"product_ids" validate:"omitempty,dive,uuid"`
	AllowedUserIDs    []string `json:"allowed_user_ids" validate:"omitempty,dive,uuid"`
}

func CreateCode(svc internaldiscounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		var req createCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		value, err := decimal.NewFromString(req.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid value"))
			return
		}
		startsAt, err := parseTimePtr(req.StartsAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid starts_at"))
			return
		}
		expiresAt, err := parseTimePtr(req.ExpiresAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expires_at"))
			return
		}
		productIDs, err := parseUUIDs(req.ProductIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		allowedUserIDs, err := parseUUIDs(req.AllowedUserIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		code, err := svc.CreateCode(r.Context(), internaldiscounts.CreateCodeInput{
			Code:              req.Code,
			Kind:              enumsKind(req.Kind),
			Value:             value,
			MinPurchaseCents:  req.MinPurchaseCents,
			MaxDiscountCents:  req.MaxDiscountCents,
			UsageLimit:        req.UsageLimit,
			PerUserLimit:      req.PerUserLimit,
			FirstPurchaseOnly: req.FirstPurchaseOnly,
			StartsAt:          startsAt,
			ExpiresAt:         expiresAt,
			IsActive:          req.IsActive,
			ProductIDs:        productIDs,
			AllowedUserIDs:    allowedUserIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, code)
	}
}

type updateCodeRequest struct {
	Value             *string  `json:"value"`
	MinPurchaseCents  *int64   `json:"min_purchase_cents" validate:"omitempty,min=0"`
	MaxDiscountCents  *int64   `json:"max_discount_cents" validate:"omitempty,min=0"`
	UsageLimit        *int     `json:"usage_limit" validate:"omitempty,min=1"`
	PerUserLimit      *int     `json:"per_user_limit" validate:"omitempty,min=0"`
	FirstPurchaseOnly *bool    `json:"first_purchase_only"`
	StartsAt          *string  `json:"starts_at"`
	ExpiresAt         *string  `json:"expires_at"`
	IsActive          *bool    `json:"is_active"`
	ProductIDs        []string `json:"product_ids" validate:"omitempty,dive,uuid"`
	AllowedUserIDs    []string `json:"allowed_user_ids" validate:"omitempty,dive,uuid"`
}

func UpdateCode(svc internaldiscounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		codeID, err := parsePathUUID(r, "codeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internaldiscounts.UpdateCodeInput{
			MinPurchaseCents:  req.MinPurchaseCents,
			MaxDiscountCents:  req.MaxDiscountCents,
			UsageLimit:        req.UsageLimit,
			PerUserLimit:      req.PerUserLimit,
			FirstPurchaseOnly: req.FirstPurchaseOnly,
			IsActive:          req.IsActive,
		}
		if req.Value != nil {
			value, err := decimal.NewFromString(*req.Value)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid value"))
				return
			}
			input.Value = &value
		}
		if input.StartsAt, err = parseTimePtr(req.StartsAt); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid starts_at"))
			return
		}
		if input.ExpiresAt, err = parseTimePtr(req.ExpiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expires_at"))
			return
		}
		if input.ProductIDs, err = parseUUIDs(req.ProductIDs); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		if input.AllowedUserIDs, err = parseUUIDs(req.AllowedUserIDs); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		code, err := svc.UpdateCode(r.Context(), codeID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, code)
	}
}

func GetCode(svc internaldiscounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "code"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code is required"))
			return
		}

		code, err := svc.GetByCode(r.Context(), raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, code)
	}
}

func ListRedemptions(svc internaldiscounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		codeID, err := parsePathUUID(r, "codeId")
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

		redemptions, next, err := svc.ListRedemptions(r.Context(), codeID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"redemptions": redemptions,
			"next_cursor": next,
		})
	}
}

func enumsKind(raw string) enums.DiscountKind {
	return enums.DiscountKind(strings.ToLower(strings.TrimSpace(raw)))
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

func parsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
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

func parseTimePtr(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
