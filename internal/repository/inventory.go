package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
)

func (r *Repository) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	return getItem(ctx, r.pool, id, false)
}

func (r *Repository) ListItems(ctx context.Context, filter domain.ItemListFilter) ([]domain.Item, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)

	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%')
			AND ($2 = '' OR kind = $2)
	`
	args := []any{search, string(filter.Kind)}
	argIndex := 3
	if filter.LowStock {
		query += fmt.Sprintf(" AND quantity <= CASE WHEN min_stock > 0 THEN min_stock ELSE $%d END", argIndex)
		args = append(args, filter.Threshold)
		argIndex++
	}
	query += fmt.Sprintf(" ORDER BY code ASC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// ItemsByKind returns every item of kind, or all items when kind is empty,
// ordered by code.
func (r *Repository) ItemsByKind(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE ($1 = '' OR kind = $1)
		ORDER BY code ASC
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list items by kind: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items by kind: %w", err)
	}
	return items, nil
}

func (r *Repository) ItemsByCode(ctx context.Context, codes []string) (map[string]domain.Item, error) {
	result := make(map[string]domain.Item, len(codes))
	if len(codes) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE code = ANY($1)
	`, codes)
	if err != nil {
		return nil, fmt.Errorf("load items by code: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		result[item.Code] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items by code: %w", err)
	}
	return result, nil
}

// LowStock lists items at or below their reorder point. Items without a
// minimum use threshold. Needed tops the item up to max(max_stock, reorder
// point).
func (r *Repository) LowStock(ctx context.Context, threshold int) ([]domain.LowStockRow, error) {
	if threshold < 0 {
		threshold = 0
	}
	rows, err := r.pool.Query(ctx, `
		WITH reorder AS (
			SELECT
				id,
				code,
				name,
				kind,
				unit,
				quantity,
				min_stock,
				max_stock,
				CASE WHEN min_stock > 0 THEN min_stock ELSE $1 END AS point
			FROM items
		)
		SELECT
			id,
			code,
			name,
			kind,
			unit,
			quantity,
			min_stock,
			max_stock,
			GREATEST(max_stock, point) - quantity AS needed
		FROM reorder
		WHERE quantity <= point
		ORDER BY needed DESC, code ASC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("get low stock: %w", err)
	}
	defer rows.Close()

	result := make([]domain.LowStockRow, 0)
	for rows.Next() {
		var row domain.LowStockRow
		if err := rows.Scan(
			&row.ItemID,
			&row.Code,
			&row.Name,
			&row.Kind,
			&row.Unit,
			&row.Quantity,
			&row.MinStock,
			&row.MaxStock,
			&row.Needed,
		); err != nil {
			return nil, fmt.Errorf("scan low stock row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate low stock rows: %w", err)
	}
	return result, nil
}

func (r *Repository) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	var summary domain.InventorySummary
	if err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(quantity), 0),
			COALESCE(SUM(quantity * avg_price), 0)
		FROM items
	`).Scan(&summary.TotalItems, &summary.TotalQuantity, &summary.InventoryValue); err != nil {
		return domain.InventorySummary{}, fmt.Errorf("get inventory summary: %w", err)
	}
	return summary, nil
}
