package loyalty

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Repository manages persistence for loyalty transactions and balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAwardByOrder(ctx context.Context, orderID uuid.UUID) (*models.LoyaltyTransaction, error)
	CreateTransaction(ctx context.Context, transaction *models.LoyaltyTransaction) error
	AddToBalance(ctx context.Context, userID uuid.UUID, delta int64) error
	DeductFromBalance(ctx context.Context, userID uuid.UUID, points int64) (bool, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LoyaltyTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAwardByOrder(ctx context.Context, orderID uuid.UUID) (*models.LoyaltyTransaction, error) {
	var transaction models.LoyaltyTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND delta > 0", orderID).
		First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) CreateTransaction(ctx context.Context, transaction *models.LoyaltyTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

// AddToBalance upserts the cached balance row, adding delta atomically.
func (r *repository) AddToBalance(ctx context.Context, userID uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance": gorm.Expr("user_points_balances.balance + ?", delta),
			}),
		}).
		Create(&models.UserPointsBalance{UserID: userID, Balance: delta}).Error
}

// DeductFromBalance decrements only when the current balance covers the
// points. The condition runs inside the same statement as the write, which
// is what closes the stale-read race between concurrent redemptions.
func (r *repository) DeductFromBalance(ctx context.Context, userID uuid.UUID, points int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserPointsBalance{}).
		Where("user_id = ? AND balance >= ?", userID, points).
		Update("balance", gorm.Expr("balance - ?", points))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance models.UserPointsBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Balance, nil
}

// SumDeltas replays the ledger. The result must always equal the cached
// balance; audit surfaces use it to detect drift.
func (r *repository) SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.LoyaltyTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LoyaltyTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var transactions []models.LoyaltyTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}
