package movements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Repository manages persistence for movements and their payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.Movement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Movement, error)
	ApplyPaymentGuard(ctx context.Context, id uuid.UUID, amountCents int64) (bool, error)
	CreatePayment(ctx context.Context, payment *models.MovementPayment) error
	SumPayments(ctx context.Context, movementID uuid.UUID) (int64, error)
	SetPaidAndStatus(ctx context.Context, id uuid.UUID, amountPaidCents int64, status enums.MovementStatus) error
	ListPayments(ctx context.Context, movementID uuid.UUID) ([]models.MovementPayment, error)
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Movement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.Movement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Movement, error) {
	var movement models.Movement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&movement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

// ApplyPaymentGuard adds the amount to amount_paid_cents only when the new
// total stays within total_cents. The check and the write share one
// statement, so concurrent payments serialize on the row and the second one
// re-evaluates against the committed value.
func (r *repository) ApplyPaymentGuard(ctx context.Context, id uuid.UUID, amountCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Movement{}).
		Where("id = ? AND amount_paid_cents + ? <= total_cents", id, amountCents).
		Update("amount_paid_cents", gorm.Expr("amount_paid_cents + ?", amountCents))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.MovementPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) SumPayments(ctx context.Context, movementID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.MovementPayment{}).
		Where("movement_id = ?", movementID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *repository) SetPaidAndStatus(ctx context.Context, id uuid.UUID, amountPaidCents int64, status enums.MovementStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Movement{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"amount_paid_cents": amountPaidCents,
			"status":            status,
		}).Error
}

func (r *repository) ListPayments(ctx context.Context, movementID uuid.UUID) ([]models.MovementPayment, error) {
	var payments []models.MovementPayment
	err := r.db.WithContext(ctx).
		Where("movement_id = ?", movementID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Movement, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var movements []models.Movement
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
