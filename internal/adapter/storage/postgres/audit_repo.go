package postgres

import (
	"context"
	"fmt"
	"strings"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, business_account_id, admin_id, action_type, amount, currency, reason,
	previous_balance, new_balance, metadata, created_at`

// AuditRepo implements ports.AuditRepository. Rows are never updated or deleted.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append inserts an entry within the caller's transaction.
func (r *AuditRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.AuditLogEntry) error {
	metadata, err := domain.EncodeMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	query := `INSERT INTO wallet_audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.BusinessAccountID, e.AdminID, string(e.Action), e.Amount, e.Currency, e.Reason,
		e.PreviousBalance, e.NewBalance, metadata, e.CreatedAt,
	)
	if err != nil {
		return classify("insert audit entry", err)
	}
	return nil
}

// Query fetches one page of entries, newest first, plus the filtered total.
// The total ignores the cursor so it stays stable while paging.
func (r *AuditRepo) Query(ctx context.Context, params ports.AuditQueryParams) ([]domain.AuditLogEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("business_account_id = $%d", argIdx))
	args = append(args, params.BusinessAccountID)
	argIdx++

	if params.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.StartDate)
		argIdx++
	}
	if params.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIdx))
		args = append(args, *params.EndDate)
		argIdx++
	}
	if len(params.ActionTypes) > 0 {
		actions := make([]string, len(params.ActionTypes))
		for i, a := range params.ActionTypes {
			actions[i] = string(a)
		}
		conditions = append(conditions, fmt.Sprintf("action_type = ANY($%d)", argIdx))
		args = append(args, actions)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM wallet_audit_logs %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, classify("count audit entries", err)
	}

	if params.After != nil {
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, params.After.CreatedAt, params.After.ID)
		argIdx += 2
	}

	// Fetch one extra row so the caller can tell whether another page exists
	dataQuery := fmt.Sprintf(`SELECT %s FROM wallet_audit_logs %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, auditColumns, where, argIdx, argIdx+1)
	args = append(args, params.Limit+1, params.Offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, classify("query audit entries", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var (
			e        domain.AuditLogEntry
			action   string
			metadata []byte
		)
		err := rows.Scan(
			&e.ID, &e.BusinessAccountID, &e.AdminID, &action, &e.Amount, &e.Currency, &e.Reason,
			&e.PreviousBalance, &e.NewBalance, &metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit row: %w", err)
		}
		e.Action = domain.AuditAction(action)
		if e.Metadata, err = domain.DecodeMetadata(e.Action, metadata); err != nil {
			return nil, 0, fmt.Errorf("decode audit metadata for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate audit rows", err)
	}
	return entries, total, nil
}

var _ ports.AuditRepository = (*AuditRepo)(nil)
