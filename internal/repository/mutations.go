package repository

import (
	"context"
	"fmt"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
)

const mutationColumns = `
	id,
	item_id,
	kind,
	quantity,
	balance_before,
	balance_after,
	reference_kind,
	reference_id,
	note,
	created_by,
	created_at
`

func scanMutation(row pgx.Row) (domain.StockMutation, error) {
	var m domain.StockMutation
	if err := row.Scan(
		&m.ID,
		&m.ItemID,
		&m.Kind,
		&m.Quantity,
		&m.BalanceBefore,
		&m.BalanceAfter,
		&m.ReferenceKind,
		&m.ReferenceID,
		&m.Note,
		&m.CreatedBy,
		&m.CreatedAt,
	); err != nil {
		return domain.StockMutation{}, fmt.Errorf("scan stock mutation: %w", err)
	}
	return m, nil
}

// ListMutations returns ledger entries newest first.
func (r *Repository) ListMutations(ctx context.Context, filter domain.MutationListFilter) ([]domain.StockMutation, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	query := `SELECT ` + mutationColumns + ` FROM stock_mutations WHERE 1 = 1`
	args := make([]any, 0, 7)
	argIndex := 1
	if filter.ItemID != nil {
		query += fmt.Sprintf(" AND item_id = $%d", argIndex)
		args = append(args, *filter.ItemID)
		argIndex++
	}
	if filter.ReferenceKind != "" {
		query += fmt.Sprintf(" AND reference_kind = $%d", argIndex)
		args = append(args, filter.ReferenceKind)
		argIndex++
	}
	if filter.ReferenceID != nil {
		query += fmt.Sprintf(" AND reference_id = $%d", argIndex)
		args = append(args, *filter.ReferenceID)
		argIndex++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock mutations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StockMutation, 0, limit)
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock mutations: %w", err)
	}
	return result, nil
}

// ItemLedger returns the full chain of an item, oldest first.
func (r *Repository) ItemLedger(ctx context.Context, itemID int64) ([]domain.StockMutation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mutationColumns+`
		FROM stock_mutations
		WHERE item_id = $1
		ORDER BY id ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("load ledger of item %d: %w", itemID, err)
	}
	defer rows.Close()

	result := make([]domain.StockMutation, 0)
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger of item %d: %w", itemID, err)
	}
	return result, nil
}
