package discounts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Repository manages persistence for discount codes and redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, code *models.DiscountCode) error
	Update(ctx context.Context, code *models.DiscountCode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error)
	FindByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	CreateRedemption(ctx context.Context, redemption *models.DiscountRedemption) error
	FindRedemption(ctx context.Context, codeID, orderID uuid.UUID) (*models.DiscountRedemption, error)
	CountRedemptionsByUser(ctx context.Context, codeID, userID uuid.UUID) (int64, error)
	ListRedemptions(ctx context.Context, codeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.DiscountRedemption, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discount repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *models.DiscountCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) Update(ctx context.Context, code *models.DiscountCode) error {
	return r.db.WithContext(ctx).Save(code).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	var code models.DiscountCode
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var record models.DiscountCode
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ?", id).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.DiscountRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *repository) FindRedemption(ctx context.Context, codeID, orderID uuid.UUID) (*models.DiscountRedemption, error) {
	var redemption models.DiscountRedemption
	err := r.db.WithContext(ctx).
		Where("discount_code_id = ? AND order_id = ?", codeID, orderID).
		First(&redemption).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) CountRedemptionsByUser(ctx context.Context, codeID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DiscountRedemption{}).
		Where("discount_code_id = ? AND user_id = ?", codeID, userID).
		Count(&count).Error
	return count, err
}

func (r *repository) ListRedemptions(ctx context.Context, codeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.DiscountRedemption, error) {
	query := r.db.WithContext(ctx).
		Where("discount_code_id = ?", codeID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var redemptions []models.DiscountRedemption
	if err := query.Find(&redemptions).Error; err != nil {
		return nil, err
	}
	return redemptions, nil
}
