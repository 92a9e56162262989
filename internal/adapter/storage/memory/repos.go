package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Wallet Repo ---

type walletRepo struct{ s *Store }

// NewWalletRepository returns the store's ports.WalletRepository.
func NewWalletRepository(s *Store) ports.WalletRepository { return &walletRepo{s: s} }

func (r *walletRepo) Create(_ context.Context, w *domain.WalletAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[w.BusinessAccountID]; ok {
		return domain.ErrWalletExists
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	r.s.wallets[w.BusinessAccountID] = *w
	return nil
}

func (r *walletRepo) GetByBusinessID(_ context.Context, id uuid.UUID) (*domain.WalletAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *walletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletAccount, error) {
	t, err := asTx(tx, r.s)
	if err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, id); err != nil {
		return nil, err
	}
	w, ok := t.wallet(id)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *walletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.WalletAccount, error) {
	t, err := asTx(tx, r.s)
	if err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, id); err != nil {
		return nil, err
	}
	w, ok := t.wallet(id)
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	if w.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if err := w.CanApply(delta); err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(delta)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	t.wallets[id] = w
	return &w, nil
}

func (r *walletRepo) SetFrozen(ctx context.Context, tx pgx.Tx, req ports.SetFrozenParams) (*domain.WalletAccount, error) {
	t, err := asTx(tx, r.s)
	if err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, req.BusinessAccountID); err != nil {
		return nil, err
	}
	w, ok := t.wallet(req.BusinessAccountID)
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	if w.Version != req.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}

	now := time.Now().UTC()
	switch {
	case req.Frozen && !w.Frozen:
		reason, adminID := req.Reason, req.AdminID
		w.FrozenAt, w.FrozenReason, w.FrozenBy = &now, &reason, &adminID
	case !req.Frozen:
		w.FrozenAt, w.FrozenReason, w.FrozenBy = nil, nil, nil
	}
	w.Frozen = req.Frozen
	w.Version++
	w.UpdatedAt = now
	t.wallets[req.BusinessAccountID] = w
	return &w, nil
}

// --- Spending Limit Repo ---

type limitRepo struct{ s *Store }

// NewSpendingLimitRepository returns the store's ports.SpendingLimitRepository.
func NewSpendingLimitRepository(s *Store) ports.SpendingLimitRepository { return &limitRepo{s: s} }

func (r *limitRepo) Get(_ context.Context, id uuid.UUID) (*domain.SpendingLimitPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *limitRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.SpendingLimitPolicy, error) {
	t, err := asTx(tx, r.s)
	if err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, id); err != nil {
		return nil, err
	}
	p, ok := t.policy(id)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *limitRepo) Upsert(ctx context.Context, tx pgx.Tx, p *domain.SpendingLimitPolicy) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	if err := t.acquire(ctx, p.BusinessAccountID); err != nil {
		return err
	}
	t.policies[p.BusinessAccountID] = *p
	return nil
}

// --- Audit Repo ---

type auditRepo struct{ s *Store }

// NewAuditRepository returns the store's ports.AuditRepository.
func NewAuditRepository(s *Store) ports.AuditRepository { return &auditRepo{s: s} }

func (r *auditRepo) Append(_ context.Context, tx pgx.Tx, e *domain.AuditLogEntry) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	if !e.Action.Valid() {
		return fmt.Errorf("append audit: unknown action %q", e.Action)
	}
	t.audit = append(t.audit, *e)
	return nil
}

func (r *auditRepo) Query(_ context.Context, p ports.AuditQueryParams) ([]domain.AuditLogEntry, int64, error) {
	r.s.mu.RLock()
	matched := make([]domain.AuditLogEntry, 0)
	for _, e := range r.s.audit {
		if e.BusinessAccountID != p.BusinessAccountID {
			continue
		}
		if p.StartDate != nil && e.CreatedAt.Before(*p.StartDate) {
			continue
		}
		if p.EndDate != nil && !e.CreatedAt.Before(*p.EndDate) {
			continue
		}
		if len(p.ActionTypes) > 0 && !containsAction(p.ActionTypes, e.Action) {
			continue
		}
		matched = append(matched, e)
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return strings.Compare(matched[i].ID.String(), matched[j].ID.String()) > 0
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	if p.After != nil {
		start := len(matched)
		for i, e := range matched {
			if p.After.Continues(e) {
				start = i
				break
			}
		}
		matched = matched[start:]
	}

	if p.Offset >= len(matched) {
		return []domain.AuditLogEntry{}, total, nil
	}
	end := p.Offset + p.Limit + 1
	if p.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[p.Offset:end], total, nil
}

func containsAction(actions []domain.AuditAction, a domain.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

// --- Transaction Repo (external ledger, read-only to the engine) ---

type transactionRepo struct{ s *Store }

// NewTransactionRepository returns the store's ports.TransactionRepository.
func NewTransactionRepository(s *Store) ports.TransactionRepository {
	return &transactionRepo{s: s}
}

// SeedTransaction records an external booking or spend. It stands in for the
// booking system that owns these rows.
func (s *Store) SeedTransaction(t domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.txns = append(s.txns, t)
}

func (r *transactionRepo) SumDebits(_ context.Context, id uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range r.s.txns {
		if t.BusinessAccountID != id || !t.IsDebit() {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		sum = sum.Add(t.Amount.Abs())
	}
	return sum, nil
}

func (r *transactionRepo) ListRecent(_ context.Context, id uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	result := make([]domain.Transaction, 0)
	for _, t := range r.s.txns {
		if t.BusinessAccountID == id {
			result = append(result, t)
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *transactionRepo) GetStats(_ context.Context, id uuid.UUID, from time.Time) (*domain.TransactionStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stats := &domain.TransactionStats{TotalCredits: decimal.Zero, TotalDebits: decimal.Zero}
	for _, t := range r.s.txns {
		if t.BusinessAccountID != id || t.CreatedAt.Before(from) {
			continue
		}
		if t.IsDebit() {
			stats.DebitCount++
			stats.TotalDebits = stats.TotalDebits.Add(t.Amount.Abs())
		} else {
			stats.CreditCount++
			stats.TotalCredits = stats.TotalCredits.Add(t.Amount)
		}
	}
	return stats, nil
}

// --- Idempotency Repo ---

type idempotencyRepo struct{ s *Store }

// NewIdempotencyRepository returns the store's ports.IdempotencyRepository.
func NewIdempotencyRepository(s *Store) ports.IdempotencyRepository { return &idempotencyRepo{s: s} }

func (r *idempotencyRepo) Create(_ context.Context, tx pgx.Tx, l *domain.IdempotencyLog) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	if _, ok := t.idemp[l.Key]; ok {
		return fmt.Errorf("idempotency key %q: %w", l.Key, domain.ErrVersionConflict)
	}
	r.s.mu.RLock()
	_, exists := r.s.idemp[l.Key]
	r.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("idempotency key %q: %w", l.Key, domain.ErrVersionConflict)
	}
	t.idemp[l.Key] = *l
	return nil
}

func (r *idempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.idemp[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}
