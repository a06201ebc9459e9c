package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
)

const assetColumns = `
	id,
	code,
	nup,
	name,
	brand,
	acquisition_date,
	acquisition_value,
	condition,
	location,
	holder,
	note,
	created_at,
	updated_at
`

func scanAsset(row pgx.Row) (domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(
		&a.ID,
		&a.Code,
		&a.NUP,
		&a.Name,
		&a.Brand,
		&a.AcquisitionDate,
		&a.AcquisitionValue,
		&a.Condition,
		&a.Location,
		&a.Holder,
		&a.Note,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

func (r *Repository) ListAssets(ctx context.Context, filter domain.AssetListFilter) ([]domain.Asset, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)

	rows, err := r.pool.Query(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%' OR holder ILIKE '%' || $1 || '%')
			AND ($2 = '' OR condition = $2)
		ORDER BY code ASC, nup ASC
		LIMIT $3 OFFSET $4
	`, search, string(filter.Condition), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Asset, 0, limit)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return result, nil
}

func (r *Repository) GetAsset(ctx context.Context, id int64) (domain.Asset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, domain.NotFound("asset", id)
		}
		return domain.Asset{}, fmt.Errorf("get asset %d: %w", id, err)
	}
	return a, nil
}

func (r *Repository) CreateAsset(ctx context.Context, input domain.AssetCreateInput) (domain.Asset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx, `
		INSERT INTO assets (
			code,
			nup,
			name,
			brand,
			acquisition_date,
			acquisition_value,
			condition,
			location,
			holder,
			note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+assetColumns,
		input.Code,
		input.NUP,
		input.Name,
		input.Brand,
		input.AcquisitionDate,
		input.AcquisitionValue,
		input.Condition,
		input.Location,
		input.Holder,
		input.Note,
	))
	if err != nil {
		return domain.Asset{}, classify("create asset", fmt.Errorf("create asset: %w", err))
	}
	return a, nil
}

func (r *Repository) PatchAsset(ctx context.Context, id int64, input domain.AssetPatchInput) (domain.Asset, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("begin patch asset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanAsset(tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, domain.NotFound("asset", id)
		}
		return domain.Asset{}, fmt.Errorf("load asset %d for patch: %w", id, err)
	}

	if input.Name != nil {
		current.Name = strings.TrimSpace(*input.Name)
	}
	if input.Brand != nil {
		current.Brand = input.Brand
	}
	if input.Condition != nil {
		current.Condition = *input.Condition
	}
	if input.Location != nil {
		current.Location = input.Location
	}
	if input.Holder != nil {
		current.Holder = input.Holder
	}
	if input.Note != nil {
		current.Note = input.Note
	}

	updated, err := scanAsset(tx.QueryRow(ctx, `
		UPDATE assets
		SET
			name = $2,
			brand = $3,
			condition = $4,
			location = $5,
			holder = $6,
			note = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+assetColumns,
		id,
		current.Name,
		current.Brand,
		current.Condition,
		current.Location,
		current.Holder,
		current.Note,
	))
	if err != nil {
		return domain.Asset{}, classify("patch asset", fmt.Errorf("patch asset %d: %w", id, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Asset{}, fmt.Errorf("commit patch asset tx: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.pool, "assets", "asset", id)
}
