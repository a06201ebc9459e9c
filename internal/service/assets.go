package service

import (
	"context"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
)

func (s *Service) ListAssets(ctx context.Context, filter domain.AssetListFilter) ([]domain.Asset, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Condition != "" && !filter.Condition.Valid() {
		return nil, domain.Invalid("condition", "unknown condition %q", filter.Condition)
	}
	return s.store.ListAssets(ctx, filter)
}

func (s *Service) GetAsset(ctx context.Context, id int64) (domain.Asset, error) {
	return s.store.GetAsset(ctx, id)
}

func (s *Service) CreateAsset(ctx context.Context, actor authz.Actor, input domain.AssetCreateInput) (domain.Asset, error) {
	if err := authz.Require(actor, authz.ManageAssets); err != nil {
		return domain.Asset{}, err
	}
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Condition == "" {
		input.Condition = domain.AssetGood
	}
	switch {
	case input.Code == "":
		return domain.Asset{}, domain.Invalid("code", "required")
	case input.NUP <= 0:
		return domain.Asset{}, domain.Invalid("nup", "must be positive")
	case input.Name == "":
		return domain.Asset{}, domain.Invalid("name", "required")
	case !input.Condition.Valid():
		return domain.Asset{}, domain.Invalid("condition", "unknown condition %q", input.Condition)
	case input.AcquisitionValue.IsNegative():
		return domain.Asset{}, domain.Invalid("acquisition_value", "cannot be negative")
	}
	input.Brand = trimmed(input.Brand)
	input.Location = trimmed(input.Location)
	input.Holder = trimmed(input.Holder)
	input.Note = trimmed(input.Note)

	asset, err := s.store.CreateAsset(ctx, input)
	if err != nil {
		return domain.Asset{}, err
	}
	s.log.WithField("actor", actor.UserID).WithField("asset_id", asset.ID).Info("asset registered")
	return asset, nil
}

func (s *Service) PatchAsset(ctx context.Context, actor authz.Actor, id int64, input domain.AssetPatchInput) (domain.Asset, error) {
	if err := authz.Require(actor, authz.ManageAssets); err != nil {
		return domain.Asset{}, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return domain.Asset{}, domain.Invalid("name", "cannot be empty")
		}
		input.Name = &name
	}
	if input.Condition != nil && !input.Condition.Valid() {
		return domain.Asset{}, domain.Invalid("condition", "unknown condition %q", *input.Condition)
	}
	return s.store.PatchAsset(ctx, id, input)
}

func (s *Service) DeleteAsset(ctx context.Context, actor authz.Actor, id int64) error {
	if err := authz.Require(actor, authz.ManageAssets); err != nil {
		return err
	}
	return s.store.DeleteAsset(ctx, id)
}
