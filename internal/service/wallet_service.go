package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultRemoveLimitsReason = "Spending limits removed"

// WalletSettings carries the tunables of WalletServiceImpl.
type WalletSettings struct {
	StoreTimeout   time.Duration
	IdempotencyTTL time.Duration
	Location       *time.Location // calendar for limit windows when a wallet has no timezone
}

// WalletServiceImpl implements ports.WalletService.
// Every mutation locks the wallet row, writes its audit entry in the same
// transaction and commits both or neither.
type WalletServiceImpl struct {
	walletRepo    ports.WalletRepository
	limitRepo     ports.SpendingLimitRepository
	auditRepo     ports.AuditRepository
	idempRepo     ports.IdempotencyRepository
	idempCache    ports.IdempotencyCache
	snapshotCache ports.SnapshotCache
	evaluator     ports.SpendingLimitEvaluator
	transactor    ports.DBTransactor
	settings      WalletSettings
	log           zerolog.Logger
	now           func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
// idempCache and snapshotCache may be nil when Redis is disabled.
func NewWalletService(
	walletRepo ports.WalletRepository,
	limitRepo ports.SpendingLimitRepository,
	auditRepo ports.AuditRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	snapshotCache ports.SnapshotCache,
	evaluator ports.SpendingLimitEvaluator,
	transactor ports.DBTransactor,
	settings WalletSettings,
	log zerolog.Logger,
) *WalletServiceImpl {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &WalletServiceImpl{
		walletRepo:    walletRepo,
		limitRepo:     limitRepo,
		auditRepo:     auditRepo,
		idempRepo:     idempRepo,
		idempCache:    idempCache,
		snapshotCache: snapshotCache,
		evaluator:     evaluator,
		transactor:    transactor,
		settings:      settings,
		log:           log,
		now:           time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *WalletServiceImpl) WithClock(now func() time.Time) *WalletServiceImpl {
	s.now = now
	return s
}

// AdjustBalance credits or debits a wallet.
func (s *WalletServiceImpl) AdjustBalance(ctx context.Context, req ports.AdjustBalanceRequest) (*domain.WalletAccount, error) {
	if !req.Principal.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	if req.Amount.IsZero() {
		return nil, apperror.Validation("amount must not be zero")
	}
	if !domain.HasMoneyScale(req.Amount) {
		return nil, apperror.Validation("amount allows at most two decimal places")
	}
	if !domain.WithinMoneyRange(req.Amount) {
		return nil, apperror.Validation("amount exceeds the largest storable value")
	}
	action := domain.AuditActionManualCredit
	if req.Amount.IsNegative() {
		action = domain.AuditActionManualDebit
	}
	reason := strings.TrimSpace(req.Reason)
	if err := checkReason(action, reason); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	var idempKey string
	fingerprint := domain.AdjustmentFingerprint(req.Amount, req.OverrideLimits)
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.BusinessAccountID, req.IdempotencyKey)

		// Layer 1: Redis idempotency check
		if s.idempCache != nil {
			cached, err := s.idempCache.Get(opCtx, idempKey)
			if err != nil {
				s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
			}
			if cached != nil {
				return s.replayAdjustment(cached, fingerprint)
			}
		}
	}

	dbTx, err := s.transactor.Begin(opCtx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(opCtx) //nolint:errcheck

	wallet, err := s.lockWallet(opCtx, dbTx, req.BusinessAccountID)
	if err != nil {
		return nil, err
	}

	// Layer 2: DB idempotency check, under the wallet lock so a concurrent retry sees the first commit
	if idempKey != "" {
		idempLog, err := s.idempRepo.Get(opCtx, idempKey)
		if err != nil {
			return nil, storeError("db idempotency check", err)
		}
		if idempLog != nil {
			return s.replayAdjustment(idempLog.ResponseJSON, fingerprint)
		}
	}

	if req.Currency != "" && !strings.EqualFold(req.Currency, wallet.Currency) {
		return nil, apperror.Validation(fmt.Sprintf("currency %s does not match wallet currency %s", req.Currency, wallet.Currency))
	}

	// Business rules: frozen wallets and overdrafts reject debits before any write
	if err := wallet.CanApply(req.Amount); err != nil {
		return nil, storeError("check balance", err)
	}

	amount := req.Amount.Abs()
	var overridden *domain.LimitDecision
	if action == domain.AuditActionManualDebit {
		policy, err := s.limitRepo.GetForUpdate(opCtx, dbTx, req.BusinessAccountID)
		if err != nil {
			return nil, storeError("load spending limits", err)
		}
		decision, err := s.evaluator.Evaluate(opCtx, policy, amount, req.BusinessAccountID, wallet.Location(s.settings.Location), s.now())
		if err != nil {
			return nil, storeError("evaluate spending limits", err)
		}
		if !decision.Allowed {
			if !req.OverrideLimits {
				return nil, apperror.ErrSpendingLimitExceeded(decision.Reason)
			}
			overridden = &decision
		}
	}

	updated, err := s.walletRepo.ApplyDelta(opCtx, dbTx, req.BusinessAccountID, req.Amount, wallet.Version)
	if err != nil {
		return nil, storeError("apply delta", err)
	}

	now := s.now().UTC()
	if overridden != nil {
		if err := s.auditRepo.Append(opCtx, dbTx, &domain.AuditLogEntry{
			ID:                uuid.New(),
			BusinessAccountID: req.BusinessAccountID,
			AdminID:           req.Principal.ID,
			Action:            domain.AuditActionOverrideLimit,
			Amount:            &amount,
			Currency:          wallet.Currency,
			Reason:            reason,
			PreviousBalance:   wallet.Balance,
			NewBalance:        updated.Balance,
			Metadata: domain.LimitOverrideMetadata{
				DeniedReason: overridden.Reason,
				Limit:        overridden.Limit,
				LimitValue:   overridden.LimitValue,
				Used:         overridden.Used,
			},
			CreatedAt: now,
		}); err != nil {
			return nil, storeError("append override audit", err)
		}
	}

	if err := s.auditRepo.Append(opCtx, dbTx, &domain.AuditLogEntry{
		ID:                uuid.New(),
		BusinessAccountID: req.BusinessAccountID,
		AdminID:           req.Principal.ID,
		Action:            action,
		Amount:            &amount,
		Currency:          wallet.Currency,
		Reason:            reason,
		PreviousBalance:   wallet.Balance,
		NewBalance:        updated.Balance,
		Metadata: domain.BalanceAdjustmentMetadata{
			OverrideLimits: overridden != nil,
			IdempotencyKey: req.IdempotencyKey,
		},
		CreatedAt: now,
	}); err != nil {
		return nil, storeError("append audit", err)
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(domain.AdjustmentReplay{Fingerprint: fingerprint, Wallet: updated})
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		if err := s.idempRepo.Create(opCtx, dbTx, &domain.IdempotencyLog{
			Key:               idempKey,
			BusinessAccountID: req.BusinessAccountID,
			ResponseJSON:      respJSON,
			CreatedAt:         now,
		}); err != nil {
			return nil, storeError("save idempotency log", err)
		}
	}

	if err := dbTx.Commit(opCtx); err != nil {
		return nil, storeError("commit tx", err)
	}

	postCtx := context.WithoutCancel(ctx)
	s.invalidateSnapshot(postCtx, req.BusinessAccountID)
	if respJSON != nil && s.idempCache != nil {
		if err := s.idempCache.Set(postCtx, idempKey, respJSON, s.settings.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("business_account_id", req.BusinessAccountID.String()).
		Str("admin_id", req.Principal.ID.String()).
		Str("action", string(action)).
		Str("amount", amount.StringFixed(domain.MoneyScale)).
		Str("new_balance", updated.Balance.StringFixed(domain.MoneyScale)).
		Bool("override_limits", overridden != nil).
		Msg("wallet balance adjusted")

	return updated, nil
}

// SetFrozen freezes or unfreezes a wallet. Every call is audited, including repeats.
func (s *WalletServiceImpl) SetFrozen(ctx context.Context, req ports.FreezeRequest) (*domain.WalletAccount, error) {
	if !req.Principal.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	action := domain.AuditActionUnfreezeWallet
	if req.Frozen {
		action = domain.AuditActionFreezeWallet
	}
	reason := strings.TrimSpace(req.Reason)
	if err := checkReason(action, reason); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	dbTx, err := s.transactor.Begin(opCtx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(opCtx) //nolint:errcheck

	wallet, err := s.lockWallet(opCtx, dbTx, req.BusinessAccountID)
	if err != nil {
		return nil, err
	}

	updated, err := s.walletRepo.SetFrozen(opCtx, dbTx, ports.SetFrozenParams{
		BusinessAccountID: req.BusinessAccountID,
		Frozen:            req.Frozen,
		Reason:            reason,
		AdminID:           req.Principal.ID,
		ExpectedVersion:   wallet.Version,
	})
	if err != nil {
		return nil, storeError("set frozen", err)
	}

	if err := s.auditRepo.Append(opCtx, dbTx, &domain.AuditLogEntry{
		ID:                uuid.New(),
		BusinessAccountID: req.BusinessAccountID,
		AdminID:           req.Principal.ID,
		Action:            action,
		Currency:          wallet.Currency,
		Reason:            reason,
		PreviousBalance:   wallet.Balance,
		NewBalance:        updated.Balance,
		Metadata: domain.FreezeMetadata{
			PreviouslyFrozen: wallet.Frozen,
			PreviousReason:   wallet.FrozenReason,
		},
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, storeError("append audit", err)
	}

	if err := dbTx.Commit(opCtx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.invalidateSnapshot(context.WithoutCancel(ctx), req.BusinessAccountID)

	s.log.Info().
		Str("business_account_id", req.BusinessAccountID.String()).
		Str("admin_id", req.Principal.ID.String()).
		Str("action", string(action)).
		Bool("previously_frozen", wallet.Frozen).
		Msg("wallet freeze state set")

	return updated, nil
}

// SetSpendingLimits replaces the wallet's policy after validating it.
func (s *WalletServiceImpl) SetSpendingLimits(ctx context.Context, req ports.SetLimitsRequest) (*domain.SpendingLimitPolicy, error) {
	if !req.Principal.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	reason := strings.TrimSpace(req.Reason)
	if err := checkReason(domain.AuditActionSetSpendingLimits, reason); err != nil {
		return nil, err
	}
	policy := req.Policy
	if err := policy.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	return s.writePolicy(ctx, req.Principal, req.BusinessAccountID, &policy, domain.AuditActionSetSpendingLimits, reason)
}

// RemoveSpendingLimits clears all caps and disables the policy.
func (s *WalletServiceImpl) RemoveSpendingLimits(ctx context.Context, req ports.RemoveLimitsRequest) (*domain.SpendingLimitPolicy, error) {
	if !req.Principal.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultRemoveLimitsReason
	}

	policy := domain.DisabledPolicy(req.BusinessAccountID)
	return s.writePolicy(ctx, req.Principal, req.BusinessAccountID, policy, domain.AuditActionRemoveSpendingLimits, reason)
}

func (s *WalletServiceImpl) writePolicy(
	ctx context.Context,
	principal domain.AdminPrincipal,
	businessAccountID uuid.UUID,
	policy *domain.SpendingLimitPolicy,
	action domain.AuditAction,
	reason string,
) (*domain.SpendingLimitPolicy, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	dbTx, err := s.transactor.Begin(opCtx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(opCtx) //nolint:errcheck

	// The wallet lock serialises policy changes with debits on the same account
	wallet, err := s.lockWallet(opCtx, dbTx, businessAccountID)
	if err != nil {
		return nil, err
	}

	previous, err := s.limitRepo.GetForUpdate(opCtx, dbTx, businessAccountID)
	if err != nil {
		return nil, storeError("load spending limits", err)
	}

	now := s.now().UTC()
	adminID := principal.ID
	policy.BusinessAccountID = businessAccountID
	policy.UpdatedAt = now
	policy.UpdatedBy = &adminID

	if err := s.limitRepo.Upsert(opCtx, dbTx, policy); err != nil {
		return nil, storeError("save spending limits", err)
	}

	if err := s.auditRepo.Append(opCtx, dbTx, &domain.AuditLogEntry{
		ID:                uuid.New(),
		BusinessAccountID: businessAccountID,
		AdminID:           principal.ID,
		Action:            action,
		Currency:          wallet.Currency,
		Reason:            reason,
		PreviousBalance:   wallet.Balance,
		NewBalance:        wallet.Balance,
		Metadata: domain.SpendingLimitMetadata{
			Previous: previous,
			Current:  policy,
		},
		CreatedAt: now,
	}); err != nil {
		return nil, storeError("append audit", err)
	}

	if err := dbTx.Commit(opCtx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.invalidateSnapshot(context.WithoutCancel(ctx), businessAccountID)

	s.log.Info().
		Str("business_account_id", businessAccountID.String()).
		Str("admin_id", principal.ID.String()).
		Str("action", string(action)).
		Bool("enabled", policy.Enabled).
		Msg("spending limits updated")

	return policy, nil
}

// lockWallet takes the row lock and maps a missing wallet to NotFound.
func (s *WalletServiceImpl) lockWallet(ctx context.Context, tx pgx.Tx, businessAccountID uuid.UUID) (*domain.WalletAccount, error) {
	wallet, err := s.walletRepo.GetForUpdate(ctx, tx, businessAccountID)
	if err != nil {
		return nil, storeError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

func (s *WalletServiceImpl) invalidateSnapshot(ctx context.Context, businessAccountID uuid.UUID) {
	if s.snapshotCache == nil {
		return
	}
	if err := s.snapshotCache.Invalidate(ctx, businessAccountID); err != nil {
		s.log.Warn().Err(err).Str("business_account_id", businessAccountID.String()).Msg("failed to invalidate wallet snapshot")
	}
}

// replayAdjustment returns the stored result of a keyed adjustment. A key reused
// for a different amount or override flag is rejected rather than replayed.
func (s *WalletServiceImpl) replayAdjustment(data []byte, fingerprint string) (*domain.WalletAccount, error) {
	var replay domain.AdjustmentReplay
	if err := json.Unmarshal(data, &replay); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached adjustment: %w", err))
	}
	if replay.Wallet == nil {
		return nil, apperror.InternalError(fmt.Errorf("cached adjustment has no wallet"))
	}
	if replay.Fingerprint != fingerprint {
		return nil, apperror.Validation("idempotency key was already used for a different adjustment")
	}
	return replay.Wallet, nil
}

var _ ports.WalletService = (*WalletServiceImpl)(nil)
