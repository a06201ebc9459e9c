package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
)

const opnameColumns = `
	id,
	number,
	count_date,
	period,
	status,
	note,
	created_by,
	submitted_at,
	approved_by,
	approved_at,
	created_at,
	updated_at
`

func scanOpname(row pgx.Row) (domain.StockOpname, error) {
	var o domain.StockOpname
	if err := row.Scan(
		&o.ID,
		&o.Number,
		&o.CountDate,
		&o.Period,
		&o.Status,
		&o.Note,
		&o.CreatedBy,
		&o.SubmittedAt,
		&o.ApprovedBy,
		&o.ApprovedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return domain.StockOpname{}, err
	}
	return o, nil
}

func loadOpname(ctx context.Context, q querier, id int64, lock bool) (domain.StockOpname, error) {
	query := `SELECT ` + opnameColumns + ` FROM stock_opnames WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	o, err := scanOpname(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StockOpname{}, domain.NotFound("stock opname", id)
		}
		return domain.StockOpname{}, fmt.Errorf("get stock opname %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, opname_id, item_id, system_quantity, physical_quantity, note, photos
		FROM stock_opname_lines
		WHERE opname_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return domain.StockOpname{}, fmt.Errorf("get lines of stock opname %d: %w", id, err)
	}
	defer rows.Close()

	o.Lines = make([]domain.StockOpnameLine, 0)
	for rows.Next() {
		var line domain.StockOpnameLine
		if err := rows.Scan(
			&line.ID,
			&line.OpnameID,
			&line.ItemID,
			&line.SystemQuantity,
			&line.PhysicalQuantity,
			&line.Note,
			&line.Photos,
		); err != nil {
			return domain.StockOpname{}, fmt.Errorf("scan stock opname line: %w", err)
		}
		o.Lines = append(o.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.StockOpname{}, fmt.Errorf("iterate lines of stock opname %d: %w", id, err)
	}
	return o, nil
}

func photos(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func (t *pgTx) InsertOpname(ctx context.Context, o *domain.StockOpname) error {
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_opnames (number, count_date, period, status, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, o.Number, o.CountDate, o.Period, o.Status, o.Note, o.CreatedBy).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("insert stock opname: %w", err)
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OpnameID = o.ID
		if err := t.tx.QueryRow(ctx, `
			INSERT INTO stock_opname_lines (opname_id, item_id, system_quantity, physical_quantity, note, photos)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, o.ID, line.ItemID, line.SystemQuantity, line.PhysicalQuantity, line.Note, photos(line.Photos)).Scan(&line.ID); err != nil {
			return fmt.Errorf("insert stock opname line for item %d: %w", line.ItemID, err)
		}
	}
	return nil
}

func (t *pgTx) LockOpname(ctx context.Context, id int64) (domain.StockOpname, error) {
	return loadOpname(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateOpnameLine(ctx context.Context, line domain.StockOpnameLine) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE stock_opname_lines
		SET system_quantity = $2, physical_quantity = $3, note = $4, photos = $5
		WHERE id = $1
	`, line.ID, line.SystemQuantity, line.PhysicalQuantity, line.Note, photos(line.Photos)); err != nil {
		return fmt.Errorf("update stock opname line %d: %w", line.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateOpnameState(ctx context.Context, o domain.StockOpname) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE stock_opnames
		SET
			status = $2,
			submitted_at = $3,
			approved_by = $4,
			approved_at = $5,
			updated_at = NOW()
		WHERE id = $1
	`, o.ID, o.Status, o.SubmittedAt, o.ApprovedBy, o.ApprovedAt); err != nil {
		return fmt.Errorf("update stock opname %d: %w", o.ID, err)
	}
	return nil
}

func (t *pgTx) DeleteOpname(ctx context.Context, id int64) error {
	return deleteByID(ctx, t.tx, "stock_opnames", "stock opname", id)
}

func (r *Repository) GetOpname(ctx context.Context, id int64) (domain.StockOpname, error) {
	return loadOpname(ctx, r.pool, id, false)
}

// ListOpnames returns headers only, newest count first.
func (r *Repository) ListOpnames(ctx context.Context, filter domain.OpnameListFilter) ([]domain.StockOpname, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	rows, err := r.pool.Query(ctx, `
		SELECT `+opnameColumns+`
		FROM stock_opnames
		WHERE ($1 = '' OR status = $1)
		ORDER BY count_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stock opnames: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StockOpname, 0, limit)
	for rows.Next() {
		o, err := scanOpname(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock opname: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock opnames: %w", err)
	}
	return result, nil
}
