package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
)

const purchaseColumns = `
	id,
	number,
	supplier_name,
	purchase_date,
	total_value,
	status,
	note,
	created_by,
	received_at,
	completed_at,
	created_at,
	updated_at
`

func scanPurchase(row pgx.Row) (domain.Purchase, error) {
	var p domain.Purchase
	if err := row.Scan(
		&p.ID,
		&p.Number,
		&p.SupplierName,
		&p.PurchaseDate,
		&p.TotalValue,
		&p.Status,
		&p.Note,
		&p.CreatedBy,
		&p.ReceivedAt,
		&p.CompletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Purchase{}, err
	}
	return p, nil
}

func loadPurchase(ctx context.Context, q querier, id int64, lock bool) (domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanPurchase(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Purchase{}, domain.NotFound("purchase", id)
		}
		return domain.Purchase{}, fmt.Errorf("get purchase %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, purchase_id, item_id, quantity, received_quantity, unit_price, subtotal
		FROM purchase_lines
		WHERE purchase_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("get lines of purchase %d: %w", id, err)
	}
	defer rows.Close()

	p.Lines = make([]domain.PurchaseLine, 0)
	for rows.Next() {
		var line domain.PurchaseLine
		if err := rows.Scan(
			&line.ID,
			&line.PurchaseID,
			&line.ItemID,
			&line.Quantity,
			&line.ReceivedQuantity,
			&line.UnitPrice,
			&line.Subtotal,
		); err != nil {
			return domain.Purchase{}, fmt.Errorf("scan purchase line: %w", err)
		}
		p.Lines = append(p.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Purchase{}, fmt.Errorf("iterate lines of purchase %d: %w", id, err)
	}
	return p, nil
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO purchases (
			number,
			supplier_name,
			purchase_date,
			total_value,
			status,
			note,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		p.Number,
		p.SupplierName,
		p.PurchaseDate,
		p.TotalValue,
		p.Status,
		p.Note,
		p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}

	for i := range p.Lines {
		line := &p.Lines[i]
		line.PurchaseID = p.ID
		if err := t.tx.QueryRow(ctx, `
			INSERT INTO purchase_lines (purchase_id, item_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, p.ID, line.ItemID, line.Quantity, line.UnitPrice, line.Subtotal).Scan(&line.ID); err != nil {
			return fmt.Errorf("insert purchase line for item %d: %w", line.ItemID, err)
		}
	}
	return nil
}

func (t *pgTx) LockPurchase(ctx context.Context, id int64) (domain.Purchase, error) {
	return loadPurchase(ctx, t.tx, id, true)
}

func (t *pgTx) SetPurchaseLineReceived(ctx context.Context, lineID int64, quantity int) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE purchase_lines SET received_quantity = $2 WHERE id = $1
	`, lineID, quantity); err != nil {
		return fmt.Errorf("set received quantity of purchase line %d: %w", lineID, err)
	}
	return nil
}

func (t *pgTx) UpdatePurchaseState(ctx context.Context, p domain.Purchase) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE purchases
		SET
			status = $2,
			received_at = $3,
			completed_at = $4,
			updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Status, p.ReceivedAt, p.CompletedAt); err != nil {
		return fmt.Errorf("update purchase %d: %w", p.ID, err)
	}
	return nil
}

func (t *pgTx) DeletePurchase(ctx context.Context, id int64) error {
	return deleteByID(ctx, t.tx, "purchases", "purchase", id)
}

func (r *Repository) GetPurchase(ctx context.Context, id int64) (domain.Purchase, error) {
	return loadPurchase(ctx, r.pool, id, false)
}

// ListPurchases returns headers only, newest first.
func (r *Repository) ListPurchases(ctx context.Context, filter domain.PurchaseListFilter) ([]domain.Purchase, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE ($1 = '' OR status = $1)
		ORDER BY purchase_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return result, nil
}
