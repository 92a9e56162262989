package postgres

import (
	"context"
	"testing"
	"time"

	"business-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitCols() []string {
	return []string{"business_account_id", "enabled", "max_transaction_amount", "max_daily_spend",
		"max_monthly_spend", "updated_at", "updated_by"}
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSpendingLimitRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSpendingLimitRepo(mock)
	id := uuid.New()
	admin := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM wallet_spending_limits WHERE business_account_id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(limitCols()).
			AddRow(id, true, (*decimal.Decimal)(nil), decPtr("200"), decPtr("1000"), now, &admin))

	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Enabled)
	assert.Nil(t, p.MaxTransactionAmount)
	assert.True(t, p.MaxDailySpend.Equal(decimal.NewFromInt(200)))
	assert.True(t, p.MaxMonthlySpend.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, admin, *p.UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpendingLimitRepo_Get_NeverSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSpendingLimitRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("FROM wallet_spending_limits").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	p, err := repo.Get(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestSpendingLimitRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSpendingLimitRepo(mock)
	id := uuid.New()
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("FROM wallet_spending_limits WHERE business_account_id .+ FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(limitCols()))

	p, err := repo.GetForUpdate(context.Background(), tx, id)
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpendingLimitRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSpendingLimitRepo(mock)
	admin := uuid.New()
	p := &domain.SpendingLimitPolicy{
		BusinessAccountID: uuid.New(),
		Enabled:           true,
		MaxDailySpend:     decPtr("200"),
		MaxMonthlySpend:   decPtr("1000"),
		UpdatedAt:         time.Now().UTC().Truncate(time.Microsecond),
		UpdatedBy:         &admin,
	}
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO wallet_spending_limits .+ ON CONFLICT").
		WithArgs(p.BusinessAccountID, true, p.MaxTransactionAmount, p.MaxDailySpend, p.MaxMonthlySpend, p.UpdatedAt, p.UpdatedBy).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), tx, p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
