package loyalty

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
)

func setupLoyaltyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	transactions := `
CREATE TABLE IF NOT EXISTS loyalty_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT,
  delta INTEGER NOT NULL,
  reason TEXT NOT NULL,
  created_at DATETIME
);`
	awardIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_loyalty_transactions_award_order
  ON loyalty_transactions (order_id) WHERE delta > 0;`
	balances := `
CREATE TABLE IF NOT EXISTS user_points_balances (
  user_id TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(transactions).Error)
	require.NoError(t, gdb.Exec(awardIndex).Error)
	require.NoError(t, gdb.Exec(balances).Error)
	return gdb
}

func createTransactionRow(t *testing.T, gdb *gorm.DB, userID uuid.UUID, orderID *uuid.UUID, delta int64, created time.Time) *models.LoyaltyTransaction {
	t.Helper()

	reason := enums.LoyaltyReasonOrderAward
	if delta < 0 {
		reason = enums.LoyaltyReasonRedemption
	}
	transaction := &models.LoyaltyTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		OrderID:   orderID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: created,
	}
	require.NoError(t, gdb.Create(transaction).Error)
	return transaction
}

func TestRepositoryAwardIndex_blocksSecondAward(t *testing.T) {
	gdb := setupLoyaltyTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	orderID := uuid.New()
	createTransactionRow(t, gdb, userID, &orderID, 250, time.Now())

	err := repo.CreateTransaction(ctx, &models.LoyaltyTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		OrderID: &orderID,
		Delta:   250,
		Reason:  enums.LoyaltyReasonOrderAward,
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "ux_loyalty_transactions_award_order"))

	// The index is partial: a redemption against the same order is fine.
	err = repo.CreateTransaction(ctx, &models.LoyaltyTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		OrderID: &orderID,
		Delta:   -100,
		Reason:  enums.LoyaltyReasonRedemption,
	})
	require.NoError(t, err)
}

func TestRepositoryFindAwardByOrder(t *testing.T) {
	gdb := setupLoyaltyTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	orderID := uuid.New()
	createTransactionRow(t, gdb, userID, &orderID, -100, time.Now())

	found, err := repo.FindAwardByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, found, "a redemption row is not an award")

	award := createTransactionRow(t, gdb, userID, &orderID, 250, time.Now())
	found, err = repo.FindAwardByOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, award.ID, found.ID)
}

func TestRepositoryAddToBalance_upserts(t *testing.T) {
	gdb := setupLoyaltyTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()

	require.NoError(t, repo.AddToBalance(ctx, userID, 250))
	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance)

	require.NoError(t, repo.AddToBalance(ctx, userID, 50))
	balance, err = repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestRepositoryDeductFromBalance_boundary(t *testing.T) {
	gdb := setupLoyaltyTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, repo.AddToBalance(ctx, userID, 100))

	deducted, err := repo.DeductFromBalance(ctx, userID, 101)
	require.NoError(t, err)
	assert.False(t, deducted)

	deducted, err = repo.DeductFromBalance(ctx, userID, 100)
	require.NoError(t, err)
	assert.True(t, deducted)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// Unknown users have no row to deduct from.
	deducted, err = repo.DeductFromBalance(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, deducted)
}

func TestRepositorySumDeltas_matchesBalance(t *testing.T) {
	gdb := setupLoyaltyTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now()
	orderA := uuid.New()
	orderB := uuid.New()

	createTransactionRow(t, gdb, userID, &orderA, 250, now)
	createTransactionRow(t, gdb, userID, &orderB, 100, now)
	createTransactionRow(t, gdb, userID, nil, -120, now)
	require.NoError(t, repo.AddToBalance(ctx, userID, 230))

	sum, err := repo.SumDeltas(ctx, userID)
	require.NoError(t, err)
	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, balance, sum)
	assert.Equal(t, int64(230), sum)
}

func TestRepositoryListByUser_newestFirst(t *testing.T) {
	gdb := setupLoyaltyTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	orderA := uuid.New()
	orderB := uuid.New()
	first := createTransactionRow(t, gdb, userID, &orderA, 100, base)
	second := createTransactionRow(t, gdb, userID, &orderB, 200, base.Add(time.Hour))
	createTransactionRow(t, gdb, uuid.New(), nil, 999, base)

	rows, err := repo.ListByUser(ctx, userID, 10, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)
}
