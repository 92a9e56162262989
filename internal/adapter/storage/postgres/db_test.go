package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"business-wallet-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesEmbeddedSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS wallet_accounts").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, Migrate(context.Background(), mock, zerolog.Nop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Failure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	assert.Error(t, Migrate(context.Background(), mock, zerolog.Nop()))
}

func TestSchema_CoversEveryTable(t *testing.T) {
	for _, table := range []string{
		"wallet_accounts", "wallet_spending_limits", "wallet_audit_logs",
		"wallet_transactions", "wallet_idempotency_logs",
	} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schemaSQL, balanceConstraint)
}

func TestIsoLevel(t *testing.T) {
	tests := map[string]pgx.TxIsoLevel{
		"":                pgx.Serializable,
		"serializable":    pgx.Serializable,
		"REPEATABLE_READ": pgx.RepeatableRead,
		"read_committed":  pgx.ReadCommitted,
	}
	for name, want := range tests {
		got, err := IsoLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := IsoLevel("chaos")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: codeSerializationFailure}, domain.ErrVersionConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, domain.ErrVersionConflict},
		{"lock timeout", &pgconn.PgError{Code: codeLockNotAvailable}, domain.ErrVersionConflict},
		{"balance constraint", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: balanceConstraint}, domain.ErrInsufficientFunds},
		{"numeric overflow", &pgconn.PgError{Code: codeNumericOutOfRange}, domain.ErrAmountOutOfRange},
		{"shutdown", &pgconn.PgError{Code: codeAdminShutdown}, domain.ErrStoreUnavailable},
		{"too many connections", &pgconn.PgError{Code: codeTooManyConnections}, domain.ErrStoreUnavailable},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tt.err), tt.want)
		})
	}
}

func TestClassify_KeepsUnknownErrors(t *testing.T) {
	inner := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	err := classify("op", inner)

	assert.ErrorIs(t, err, inner)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	assert.NoError(t, hc.Ping(context.Background()))

	mock.ExpectExec("SELECT 1").WillReturnError(&pgconn.PgError{Code: codeCannotConnectNow})
	assert.ErrorIs(t, hc.Ping(context.Background()), domain.ErrStoreUnavailable)
}
