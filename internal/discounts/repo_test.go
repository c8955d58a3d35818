package discounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

func setupDiscountsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	codes := `
CREATE TABLE IF NOT EXISTS discount_codes (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  kind TEXT NOT NULL,
  value TEXT NOT NULL,
  min_purchase_cents INTEGER,
  max_discount_cents INTEGER,
  usage_limit INTEGER,
  usage_count INTEGER NOT NULL DEFAULT 0,
  per_user_limit INTEGER NOT NULL DEFAULT 0,
  first_purchase_only INTEGER NOT NULL DEFAULT 0,
  starts_at DATETIME,
  expires_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  product_ids TEXT,
  allowed_user_ids TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	codeIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_discount_codes_code ON discount_codes (code);`
	redemptions := `
CREATE TABLE IF NOT EXISTS discount_redemptions (
  id TEXT PRIMARY KEY,
  discount_code_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  user_id TEXT,
  amount_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	redemptionIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_discount_redemptions_code_order
  ON discount_redemptions (discount_code_id, order_id);`
	require.NoError(t, gdb.Exec(codes).Error)
	require.NoError(t, gdb.Exec(codeIndex).Error)
	require.NoError(t, gdb.Exec(redemptions).Error)
	require.NoError(t, gdb.Exec(redemptionIndex).Error)
	return gdb
}

func createCode(t *testing.T, gdb *gorm.DB, code string) *models.DiscountCode {
	t.Helper()

	record := &models.DiscountCode{
		ID:       uuid.New(),
		Code:     code,
		Kind:     enums.DiscountKindPercentage,
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	}
	require.NoError(t, gdb.Create(record).Error)
	return record
}

func createRedemption(t *testing.T, gdb *gorm.DB, codeID, orderID uuid.UUID, userID *uuid.UUID, created time.Time) *models.DiscountRedemption {
	t.Helper()

	redemption := &models.DiscountRedemption{
		ID:             uuid.New(),
		DiscountCodeID: codeID,
		OrderID:        orderID,
		UserID:         userID,
		AmountCents:    500,
		CreatedAt:      created,
	}
	require.NoError(t, gdb.Create(redemption).Error)
	return redemption
}

func TestRepositoryFindByCode_normalizes(t *testing.T) {
	gdb := setupDiscountsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	created := createCode(t, gdb, "SUMMER20")

	found, err := repo.FindByCode(ctx, "  summer20 ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := repo.FindByCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryIncrementUsage(t *testing.T) {
	gdb := setupDiscountsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	code := createCode(t, gdb, "COUNTME")
	require.NoError(t, repo.IncrementUsage(ctx, code.ID))
	require.NoError(t, repo.IncrementUsage(ctx, code.ID))

	found, err := repo.FindByID(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.UsageCount)
}

func TestRepositoryCreateRedemption_duplicateOrderConflicts(t *testing.T) {
	gdb := setupDiscountsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	code := createCode(t, gdb, "ONCE")
	orderID := uuid.New()
	createRedemption(t, gdb, code.ID, orderID, nil, time.Now())

	err := repo.CreateRedemption(ctx, &models.DiscountRedemption{
		ID:             uuid.New(),
		DiscountCodeID: code.ID,
		OrderID:        orderID,
		AmountCents:    500,
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "ux_discount_redemptions_code_order"))

	// A different order under the same code is fine.
	err = repo.CreateRedemption(ctx, &models.DiscountRedemption{
		ID:             uuid.New(),
		DiscountCodeID: code.ID,
		OrderID:        uuid.New(),
		AmountCents:    500,
	})
	require.NoError(t, err)
}

func TestRepositoryCountRedemptionsByUser(t *testing.T) {
	gdb := setupDiscountsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	code := createCode(t, gdb, "PERUSER")
	userA := uuid.New()
	userB := uuid.New()
	now := time.Now()

	createRedemption(t, gdb, code.ID, uuid.New(), &userA, now)
	createRedemption(t, gdb, code.ID, uuid.New(), &userA, now)
	createRedemption(t, gdb, code.ID, uuid.New(), &userB, now)
	createRedemption(t, gdb, code.ID, uuid.New(), nil, now)

	count, err := repo.CountRedemptionsByUser(ctx, code.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountRedemptionsByUser(ctx, code.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepositoryListRedemptions_pagination(t *testing.T) {
	gdb := setupDiscountsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	code := createCode(t, gdb, "PAGED")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var all []*models.DiscountRedemption
	for i := 0; i < 5; i++ {
		r := createRedemption(t, gdb, code.ID, uuid.New(), nil, base.Add(time.Duration(i)*time.Minute))
		all = append(all, r)
	}

	page, err := repo.ListRedemptions(ctx, code.ID, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, all[4].ID, page[0].ID)
	assert.Equal(t, all[2].ID, page[2].ID)

	cursor := &pagination.Cursor{CreatedAt: page[2].CreatedAt, ID: page[2].ID}
	rest, err := repo.ListRedemptions(ctx, code.ID, 3, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, all[1].ID, rest[0].ID)
	assert.Equal(t, all[0].ID, rest[1].ID)
}
