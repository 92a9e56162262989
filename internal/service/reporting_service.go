package service

import (
	"context"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReportingSettings tunes the snapshot facade.
type ReportingSettings struct {
	SnapshotTTL        time.Duration
	RecentTransactions int
	StatsWindow        time.Duration
	Location           *time.Location
}

// reportingService implements ports.ReportingService.
type reportingService struct {
	walletRepo ports.WalletRepository
	limitRepo  ports.SpendingLimitRepository
	txRepo     ports.TransactionRepository
	evaluator  ports.SpendingLimitEvaluator
	cache      ports.SnapshotCache
	settings   ReportingSettings
	log        zerolog.Logger
	now        func() time.Time
}

// NewReportingService creates a new reporting service. cache may be nil.
func NewReportingService(
	walletRepo ports.WalletRepository,
	limitRepo ports.SpendingLimitRepository,
	txRepo ports.TransactionRepository,
	evaluator ports.SpendingLimitEvaluator,
	cache ports.SnapshotCache,
	settings ReportingSettings,
	log zerolog.Logger,
) ports.ReportingService {
	return newReportingService(walletRepo, limitRepo, txRepo, evaluator, cache, settings, log, time.Now)
}

func newReportingService(
	walletRepo ports.WalletRepository,
	limitRepo ports.SpendingLimitRepository,
	txRepo ports.TransactionRepository,
	evaluator ports.SpendingLimitEvaluator,
	cache ports.SnapshotCache,
	settings ReportingSettings,
	log zerolog.Logger,
	now func() time.Time,
) *reportingService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.RecentTransactions <= 0 {
		settings.RecentTransactions = 10
	}
	if settings.StatsWindow <= 0 {
		settings.StatsWindow = 30 * 24 * time.Hour
	}
	return &reportingService{
		walletRepo: walletRepo,
		limitRepo:  limitRepo,
		txRepo:     txRepo,
		evaluator:  evaluator,
		cache:      cache,
		settings:   settings,
		log:        log,
		now:        now,
	}
}

// GetWalletSnapshot assembles the dashboard view without taking any lock.
func (s *reportingService) GetWalletSnapshot(ctx context.Context, businessAccountID uuid.UUID) (*domain.WalletSnapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, businessAccountID)
		if err != nil {
			s.log.Warn().Err(err).Str("business_account_id", businessAccountID.String()).Msg("snapshot cache read failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	wallet, err := s.walletRepo.GetByBusinessID(ctx, businessAccountID)
	if err != nil {
		return nil, storeError("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	policy, err := s.loadPolicy(ctx, businessAccountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	usage, err := s.evaluator.CurrentSpend(ctx, businessAccountID, wallet.Location(s.settings.Location), now)
	if err != nil {
		return nil, storeError("current spend", err)
	}

	recent, err := s.txRepo.ListRecent(ctx, businessAccountID, s.settings.RecentTransactions)
	if err != nil {
		return nil, storeError("recent transactions", err)
	}
	if recent == nil {
		recent = []domain.Transaction{}
	}

	stats, err := s.txRepo.GetStats(ctx, businessAccountID, now.Add(-s.settings.StatsWindow))
	if err != nil {
		return nil, storeError("transaction stats", err)
	}

	snapshot := &domain.WalletSnapshot{
		Wallet:             wallet,
		Policy:             policy,
		CurrentSpend:       usage,
		RecentTransactions: recent,
		Stats30d:           *stats,
		GeneratedAt:        now.UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshot, s.settings.SnapshotTTL); err != nil {
			s.log.Warn().Err(err).Str("business_account_id", businessAccountID.String()).Msg("snapshot cache write failed")
		}
	}

	return snapshot, nil
}

// CheckSpend decides a customer-initiated debit. Unlike admin adjustments it cannot be overridden.
func (s *reportingService) CheckSpend(ctx context.Context, businessAccountID uuid.UUID, amount decimal.Decimal) (*domain.LimitDecision, error) {
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	if !domain.HasMoneyScale(amount) {
		return nil, apperror.Validation("amount allows at most two decimal places")
	}
	if !domain.WithinMoneyRange(amount) {
		return nil, apperror.Validation("amount exceeds the largest storable value")
	}

	wallet, err := s.walletRepo.GetByBusinessID(ctx, businessAccountID)
	if err != nil {
		return nil, storeError("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if wallet.Frozen {
		decision := domain.Deny(domain.LimitFrozen, domain.ReasonFrozen, nil, nil)
		return &decision, nil
	}
	if wallet.Balance.LessThan(amount) {
		balance := wallet.Balance
		decision := domain.Deny(domain.LimitBalance, domain.ReasonInsufficient, &balance, nil)
		return &decision, nil
	}

	policy, err := s.loadPolicy(ctx, businessAccountID)
	if err != nil {
		return nil, err
	}

	decision, err := s.evaluator.Evaluate(ctx, policy, amount, businessAccountID, wallet.Location(s.settings.Location), s.now())
	if err != nil {
		return nil, storeError("evaluate spending limits", err)
	}
	return &decision, nil
}

func (s *reportingService) loadPolicy(ctx context.Context, businessAccountID uuid.UUID) (*domain.SpendingLimitPolicy, error) {
	policy, err := s.limitRepo.Get(ctx, businessAccountID)
	if err != nil {
		return nil, storeError("get spending limits", err)
	}
	if policy == nil {
		return domain.DisabledPolicy(businessAccountID), nil
	}
	return policy, nil
}
