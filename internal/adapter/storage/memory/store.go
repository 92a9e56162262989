// Package memory is an in-process ledger store for local runs and tests.
// It keeps the same lock-then-write-then-commit contract as the Postgres adapter:
// writes made through a Tx stay invisible until Commit and vanish on Rollback.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"business-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errForeignTx = errors.New("memory: transaction was not opened by this store")
	errNoSQL     = errors.New("memory: raw SQL is not supported")
)

// Store holds committed state plus one lock per wallet.
type Store struct {
	mu       sync.RWMutex
	wallets  map[uuid.UUID]domain.WalletAccount
	policies map[uuid.UUID]domain.SpendingLimitPolicy
	audit    []domain.AuditLogEntry
	txns     []domain.Transaction
	idemp    map[string]domain.IdempotencyLog

	lockMu      sync.Mutex
	locks       map[uuid.UUID]chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty store. A contended wallet lock is given up after
// lockTimeout and reported as domain.ErrVersionConflict; zero waits for ctx only.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		wallets:     make(map[uuid.UUID]domain.WalletAccount),
		policies:    make(map[uuid.UUID]domain.SpendingLimitPolicy),
		idemp:       make(map[string]domain.IdempotencyLog),
		locks:       make(map[uuid.UUID]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    s,
		held:     make(map[uuid.UUID]struct{}),
		wallets:  make(map[uuid.UUID]domain.WalletAccount),
		policies: make(map[uuid.UUID]domain.SpendingLimitPolicy),
		idemp:    make(map[string]domain.IdempotencyLog),
	}, nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// Tx is a pending unit of work. It satisfies pgx.Tx so services can run
// unchanged against either adapter; the SQL methods are unsupported.
type Tx struct {
	store *Store
	held  map[uuid.UUID]struct{}
	done  bool

	wallets  map[uuid.UUID]domain.WalletAccount
	policies map[uuid.UUID]domain.SpendingLimitPolicy
	audit    []domain.AuditLogEntry
	idemp    map[string]domain.IdempotencyLog
}

func asTx(tx pgx.Tx, s *Store) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// acquire takes the wallet lock once per transaction.
func (t *Tx) acquire(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	ch := t.store.lockFor(id)

	var timeout <-chan time.Time
	if t.store.lockTimeout > 0 {
		timer := time.NewTimer(t.store.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		t.held[id] = struct{}{}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("lock wallet %s: %w", id, domain.ErrVersionConflict)
	}
}

func (t *Tx) release() {
	for id := range t.held {
		<-t.store.lockFor(id)
	}
	t.held = nil
	t.done = true
}

// wallet reads through the pending overlay.
func (t *Tx) wallet(id uuid.UUID) (domain.WalletAccount, bool) {
	if w, ok := t.wallets[id]; ok {
		return w, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	w, ok := t.store.wallets[id]
	return w, ok
}

func (t *Tx) policy(id uuid.UUID) (domain.SpendingLimitPolicy, bool) {
	if p, ok := t.policies[id]; ok {
		return p, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.policies[id]
	return p, ok
}

// Commit publishes every pending write at once. An expired ctx discards them.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	defer t.release()
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range t.idemp {
		if _, exists := s.idemp[key]; exists {
			return fmt.Errorf("idempotency key %q: %w", key, domain.ErrVersionConflict)
		}
	}
	for id, w := range t.wallets {
		s.wallets[id] = w
	}
	for id, p := range t.policies {
		s.policies[id] = p
	}
	for key, l := range t.idemp {
		s.idemp[key] = l
	}
	s.audit = append(s.audit, t.audit...)
	return nil
}

// Rollback discards pending writes and releases the locks.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) Begin(_ context.Context) (pgx.Tx, error) { return nil, errNoSQL }
func (t *Tx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}
func (t *Tx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *Tx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}
func (t *Tx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errNoSQL
}
func (t *Tx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return nil, errNoSQL }
func (t *Tx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row       { return errRow{} }
func (t *Tx) Conn() *pgx.Conn                                               { return nil }

type errRow struct{}

func (errRow) Scan(_ ...any) error { return errNoSQL }
