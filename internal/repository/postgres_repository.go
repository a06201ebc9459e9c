package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/workflow"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both the pool and an open transaction, so reads
// and locked reads share their SQL.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// InTx runs fn inside one transaction and commits only when fn succeeds.
func (r *Repository) InTx(ctx context.Context, op string, fn func(tx workflow.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return classify(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(op, fmt.Errorf("commit %s tx: %w", op, err))
	}
	return nil
}

// classify maps PostgreSQL failures onto domain errors. Domain errors raised
// by the workflow pass through untouched.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return &domain.ConcurrencyError{Op: op, Err: err}
	case "23505":
		return domain.Invalid(constraintField(pgErr), "already exists")
	case "23503":
		return domain.Invalid(constraintField(pgErr), "references a missing or still referenced row")
	case "23514":
		return domain.Invalid(constraintField(pgErr), "violates %s", pgErr.ConstraintName)
	}
	return err
}

func constraintField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	name := strings.TrimSuffix(strings.TrimSuffix(pgErr.ConstraintName, "_key"), "_check")
	if i := strings.Index(name, "_"); i >= 0 {
		return name[i+1:]
	}
	return name
}

type pgTx struct {
	tx pgx.Tx
}

var _ workflow.Tx = (*pgTx)(nil)

const itemColumns = `
	id,
	code,
	name,
	kind,
	unit,
	category,
	description,
	quantity,
	min_stock,
	max_stock,
	last_price,
	avg_price,
	created_at,
	updated_at
`

func scanItem(row pgx.Row) (domain.Item, error) {
	var item domain.Item
	if err := row.Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&item.Kind,
		&item.Unit,
		&item.Category,
		&item.Description,
		&item.Quantity,
		&item.MinStock,
		&item.MaxStock,
		&item.LastPrice,
		&item.AvgPrice,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func getItem(ctx context.Context, q querier, id int64, lock bool) (domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	item, err := scanItem(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Item{}, domain.NotFound("item", id)
		}
		return domain.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

func (t *pgTx) LockItem(ctx context.Context, id int64) (domain.Item, error) {
	return getItem(ctx, t.tx, id, true)
}

func (t *pgTx) SetItemQuantity(ctx context.Context, id int64, quantity int) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE items SET quantity = $2, updated_at = NOW() WHERE id = $1
	`, id, quantity); err != nil {
		return fmt.Errorf("set quantity of item %d: %w", id, err)
	}
	return nil
}

func (t *pgTx) InsertMutation(ctx context.Context, m *domain.StockMutation) error {
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_mutations (
			item_id,
			kind,
			quantity,
			balance_before,
			balance_after,
			reference_kind,
			reference_id,
			note,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`,
		m.ItemID,
		m.Kind,
		m.Quantity,
		m.BalanceBefore,
		m.BalanceAfter,
		m.ReferenceKind,
		m.ReferenceID,
		m.Note,
		m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert stock mutation: %w", err)
	}
	return nil
}

func (t *pgTx) InsertItem(ctx context.Context, item *domain.Item) error {
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO items (
			code,
			name,
			kind,
			unit,
			category,
			description,
			min_stock,
			max_stock,
			last_price,
			avg_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, quantity, created_at, updated_at
	`,
		item.Code,
		item.Name,
		item.Kind,
		item.Unit,
		item.Category,
		item.Description,
		item.MinStock,
		item.MaxStock,
		item.LastPrice,
		item.AvgPrice,
	).Scan(&item.ID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("insert item %q: %w", item.Code, err)
	}
	return nil
}

func (t *pgTx) UpdateItemDetails(ctx context.Context, item domain.Item) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE items
		SET
			name = $2,
			unit = $3,
			category = $4,
			description = $5,
			min_stock = $6,
			max_stock = $7,
			updated_at = NOW()
		WHERE id = $1
	`, item.ID, item.Name, item.Unit, item.Category, item.Description, item.MinStock, item.MaxStock); err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

func (t *pgTx) SetItemCost(ctx context.Context, id int64, lastPrice, avgPrice decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE items SET last_price = $2, avg_price = $3, updated_at = NOW() WHERE id = $1
	`, id, lastPrice, avgPrice); err != nil {
		return fmt.Errorf("set cost of item %d: %w", id, err)
	}
	return nil
}

func (t *pgTx) ItemHasMutations(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM stock_mutations WHERE item_id = $1)",
		id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check mutations of item %d: %w", id, err)
	}
	return exists, nil
}

func (t *pgTx) DeleteItem(ctx context.Context, id int64) error {
	return deleteByID(ctx, t.tx, "items", "item", id)
}

// deleteByID removes one row; table is always a package constant.
func deleteByID(ctx context.Context, q querier, table, entity string, id int64) error {
	tag, err := q.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
