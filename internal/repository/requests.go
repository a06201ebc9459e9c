package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `
	id,
	number,
	variant,
	requester_id,
	department,
	purpose,
	status,
	level1_by,
	level1_at,
	level2_by,
	level2_at,
	level3_by,
	level3_at,
	approved_by,
	approved_at,
	distributed_by,
	distributed_at,
	received_at,
	rejected_by,
	rejected_at,
	rejection_reason,
	created_at,
	updated_at
`

func scanRequest(row pgx.Row) (domain.Request, error) {
	var r domain.Request
	if err := row.Scan(
		&r.ID,
		&r.Number,
		&r.Variant,
		&r.RequesterID,
		&r.Department,
		&r.Purpose,
		&r.Status,
		&r.Level1By,
		&r.Level1At,
		&r.Level2By,
		&r.Level2At,
		&r.Level3By,
		&r.Level3At,
		&r.ApprovedBy,
		&r.ApprovedAt,
		&r.DistributedBy,
		&r.DistributedAt,
		&r.ReceivedAt,
		&r.RejectedBy,
		&r.RejectedAt,
		&r.RejectionReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return domain.Request{}, err
	}
	return r, nil
}

func loadRequest(ctx context.Context, q querier, id int64, lock bool) (domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	req, err := scanRequest(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.NotFound("request", id)
		}
		return domain.Request{}, fmt.Errorf("get request %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, request_id, item_id, requested_quantity, approved_quantity, given_quantity, note
		FROM request_lines
		WHERE request_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return domain.Request{}, fmt.Errorf("get lines of request %d: %w", id, err)
	}
	defer rows.Close()

	req.Lines = make([]domain.RequestLine, 0)
	for rows.Next() {
		var line domain.RequestLine
		if err := rows.Scan(
			&line.ID,
			&line.RequestID,
			&line.ItemID,
			&line.RequestedQuantity,
			&line.ApprovedQuantity,
			&line.GivenQuantity,
			&line.Note,
		); err != nil {
			return domain.Request{}, fmt.Errorf("scan request line: %w", err)
		}
		req.Lines = append(req.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Request{}, fmt.Errorf("iterate lines of request %d: %w", id, err)
	}
	return req, nil
}

func (t *pgTx) InsertRequest(ctx context.Context, r *domain.Request) error {
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO requests (number, variant, requester_id, department, purpose, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.Number, r.Variant, r.RequesterID, r.Department, r.Purpose, r.Status).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	for i := range r.Lines {
		line := &r.Lines[i]
		line.RequestID = r.ID
		if err := t.tx.QueryRow(ctx, `
			INSERT INTO request_lines (request_id, item_id, requested_quantity, note)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, r.ID, line.ItemID, line.RequestedQuantity, line.Note).Scan(&line.ID); err != nil {
			return fmt.Errorf("insert request line for item %d: %w", line.ItemID, err)
		}
	}
	return nil
}

func (t *pgTx) LockRequest(ctx context.Context, id int64) (domain.Request, error) {
	return loadRequest(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateRequestLine(ctx context.Context, line domain.RequestLine) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE request_lines
		SET approved_quantity = $2, given_quantity = $3
		WHERE id = $1
	`, line.ID, line.ApprovedQuantity, line.GivenQuantity); err != nil {
		return fmt.Errorf("update request line %d: %w", line.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateRequestState(ctx context.Context, r domain.Request) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE requests
		SET
			status = $2,
			level1_by = $3,
			level1_at = $4,
			level2_by = $5,
			level2_at = $6,
			level3_by = $7,
			level3_at = $8,
			approved_by = $9,
			approved_at = $10,
			distributed_by = $11,
			distributed_at = $12,
			received_at = $13,
			rejected_by = $14,
			rejected_at = $15,
			rejection_reason = $16,
			updated_at = NOW()
		WHERE id = $1
	`,
		r.ID,
		r.Status,
		r.Level1By,
		r.Level1At,
		r.Level2By,
		r.Level2At,
		r.Level3By,
		r.Level3At,
		r.ApprovedBy,
		r.ApprovedAt,
		r.DistributedBy,
		r.DistributedAt,
		r.ReceivedAt,
		r.RejectedBy,
		r.RejectedAt,
		r.RejectionReason,
	); err != nil {
		return fmt.Errorf("update request %d: %w", r.ID, err)
	}
	return nil
}

func (t *pgTx) DeleteRequest(ctx context.Context, id int64) error {
	return deleteByID(ctx, t.tx, "requests", "request", id)
}

func (r *Repository) GetRequest(ctx context.Context, id int64) (domain.Request, error) {
	return loadRequest(ctx, r.pool, id, false)
}

// ListRequests returns headers only, newest first.
func (r *Repository) ListRequests(ctx context.Context, filter domain.RequestListFilter) ([]domain.Request, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE ($1 = '' OR status = $1)
			AND ($2 = '' OR variant = $2)
			AND ($3::BIGINT IS NULL OR requester_id = $3)
		ORDER BY id DESC
		LIMIT $4 OFFSET $5
	`, string(filter.Status), string(filter.Variant), filter.RequesterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Request, 0, limit)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return result, nil
}
