package movements

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

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
)

func setupMovementsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	movements := `
CREATE TABLE IF NOT EXISTS movements (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  counterparty_name TEXT NOT NULL,
  total_cents INTEGER NOT NULL,
  amount_paid_cents INTEGER NOT NULL DEFAULT 0,
  due_date DATETIME,
  status TEXT NOT NULL,
  notes TEXT,
  created_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS movement_payments (
  id TEXT PRIMARY KEY,
  movement_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  method TEXT NOT NULL,
  reference TEXT,
  recorded_by TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, gdb.Exec(movements).Error)
	require.NoError(t, gdb.Exec(payments).Error)
	return gdb
}

func createMovementRow(t *testing.T, gdb *gorm.DB, total, paid int64) *models.Movement {
	t.Helper()

	movement := &models.Movement{
		ID:               uuid.New(),
		Kind:             enums.MovementKindCreditSale,
		CounterpartyName: "Corner Store",
		TotalCents:       total,
		AmountPaidCents:  paid,
		Status:           enums.MovementStatusSold,
		CreatedBy:        uuid.New(),
	}
	require.NoError(t, gdb.Create(movement).Error)
	return movement
}

func createPaymentRow(t *testing.T, gdb *gorm.DB, movementID uuid.UUID, amount int64, created time.Time) {
	t.Helper()

	payment := &models.MovementPayment{
		ID:          uuid.New(),
		MovementID:  movementID,
		AmountCents: amount,
		Method:      enums.PaymentMethodCash,
		RecordedBy:  uuid.New(),
		CreatedAt:   created,
	}
	require.NoError(t, gdb.Create(payment).Error)
}

func TestRepositoryApplyPaymentGuard(t *testing.T) {
	gdb := setupMovementsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	movement := createMovementRow(t, gdb, 10000, 5000)

	// An amount over the remaining balance touches no rows.
	applied, err := repo.ApplyPaymentGuard(ctx, movement.ID, 6000)
	require.NoError(t, err)
	assert.False(t, applied)

	found, err := repo.FindByID(ctx, movement.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), found.AmountPaidCents)

	// Exactly the remaining balance is allowed.
	applied, err = repo.ApplyPaymentGuard(ctx, movement.ID, 5000)
	require.NoError(t, err)
	assert.True(t, applied)

	found, err = repo.FindByID(ctx, movement.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), found.AmountPaidCents)

	// Nothing remains, so any further amount is refused.
	applied, err = repo.ApplyPaymentGuard(ctx, movement.ID, 1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRepositorySumPayments(t *testing.T) {
	gdb := setupMovementsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	movement := createMovementRow(t, gdb, 10000, 0)
	other := createMovementRow(t, gdb, 10000, 0)
	now := time.Now()

	sum, err := repo.SumPayments(ctx, movement.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	createPaymentRow(t, gdb, movement.ID, 3000, now)
	createPaymentRow(t, gdb, movement.ID, 2500, now)
	createPaymentRow(t, gdb, other.ID, 9999, now)

	sum, err = repo.SumPayments(ctx, movement.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), sum)
}

func TestRepositorySetPaidAndStatus(t *testing.T) {
	gdb := setupMovementsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	movement := createMovementRow(t, gdb, 10000, 0)
	require.NoError(t, repo.SetPaidAndStatus(ctx, movement.ID, 10000, enums.MovementStatusPaid))

	found, err := repo.FindByID(ctx, movement.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), found.AmountPaidCents)
	assert.Equal(t, enums.MovementStatusPaid, found.Status)
}

func TestRepositoryListPayments_ordered(t *testing.T) {
	gdb := setupMovementsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	movement := createMovementRow(t, gdb, 10000, 0)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	createPaymentRow(t, gdb, movement.ID, 2000, base.Add(2*time.Hour))
	createPaymentRow(t, gdb, movement.ID, 1000, base)

	payments, err := repo.ListPayments(ctx, movement.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, int64(1000), payments[0].AmountCents)
	assert.Equal(t, int64(2000), payments[1].AmountCents)
}
