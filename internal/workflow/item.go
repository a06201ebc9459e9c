package workflow

import (
	"context"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
)

// CreateItem registers an item at quantity zero; a positive opening quantity
// enters through the ledger in the same transaction.
func (e *Engine) CreateItem(ctx context.Context, actor authz.Actor, in domain.ItemCreateInput) (domain.Item, []domain.StockMutation, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := validateItem(in); err != nil {
		return domain.Item{}, nil, err
	}

	var (
		item      domain.Item
		mutations []domain.StockMutation
	)
	err := e.run(ctx, "item.create", actor, authz.ManageItems, func(ctx context.Context, tx Tx) error {
		item = domain.Item{
			Code:        in.Code,
			Name:        in.Name,
			Kind:        in.Kind,
			Unit:        in.Unit,
			Category:    strings.TrimSpace(in.Category),
			Description: in.Description,
			MinStock:    in.MinStock,
			MaxStock:    in.MaxStock,
			LastPrice:   in.OpeningPrice,
			AvgPrice:    in.OpeningPrice,
		}
		if err := tx.InsertItem(ctx, &item); err != nil {
			return err
		}
		if in.OpeningQuantity == 0 {
			return nil
		}
		m, err := ledger.Record(ctx, tx, ledger.Entry{
			ItemID:        item.ID,
			Kind:          domain.MutationIn,
			Quantity:      in.OpeningQuantity,
			ReferenceKind: domain.ReferenceOpening,
			ReferenceID:   item.ID,
			Note:          "opening balance",
			Actor:         actor.UserID,
		})
		if err != nil {
			return err
		}
		item.Quantity = m.BalanceAfter
		mutations = append(mutations, m)
		return nil
	})
	if err != nil {
		return domain.Item{}, nil, err
	}
	e.logged("item", "create", item.ID, actor).WithField("opening", in.OpeningQuantity).Info("item created")
	return item, mutations, nil
}

func validateItem(in domain.ItemCreateInput) error {
	switch {
	case in.Code == "":
		return domain.Invalid("code", "required")
	case in.Name == "":
		return domain.Invalid("name", "required")
	case !in.Kind.Valid():
		return domain.Invalid("kind", "must be atk or office, got %q", in.Kind)
	case in.Unit == "":
		return domain.Invalid("unit", "required")
	case in.OpeningQuantity < 0:
		return domain.Invalid("opening_quantity", "cannot be negative")
	case in.OpeningPrice.IsNegative():
		return domain.Invalid("opening_price", "cannot be negative")
	}
	return validateLimits(in.MinStock, in.MaxStock)
}

func validateLimits(minStock, maxStock int) error {
	if minStock < 0 || maxStock < 0 {
		return domain.Invalid("min_stock", "reorder limits cannot be negative")
	}
	if maxStock > 0 && maxStock < minStock {
		return domain.Invalid("max_stock", "must be at least min_stock (%d)", minStock)
	}
	return nil
}

// UpdateItem edits descriptive fields and reorder limits. Quantity and prices
// are owned by the ledger and purchase completion.
func (e *Engine) UpdateItem(ctx context.Context, actor authz.Actor, id int64, patch domain.ItemPatchInput) (domain.Item, error) {
	var item domain.Item
	err := e.run(ctx, "item.update", actor, authz.ManageItems, func(ctx context.Context, tx Tx) error {
		var err error
		item, err = tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return domain.Invalid("name", "cannot be blank")
			}
			item.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Unit != nil {
			if strings.TrimSpace(*patch.Unit) == "" {
				return domain.Invalid("unit", "cannot be blank")
			}
			item.Unit = strings.TrimSpace(*patch.Unit)
		}
		if patch.Category != nil {
			item.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Description != nil {
			item.Description = patch.Description
		}
		if patch.MinStock != nil {
			item.MinStock = *patch.MinStock
		}
		if patch.MaxStock != nil {
			item.MaxStock = *patch.MaxStock
		}
		if err := validateLimits(item.MinStock, item.MaxStock); err != nil {
			return err
		}
		return tx.UpdateItemDetails(ctx, item)
	})
	if err != nil {
		return domain.Item{}, err
	}
	e.logged("item", "update", id, actor).Info("item updated")
	return item, nil
}

// DeleteItem removes an item that never entered the ledger.
func (e *Engine) DeleteItem(ctx context.Context, actor authz.Actor, id int64) error {
	err := e.run(ctx, "item.delete", actor, authz.ManageItems, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockItem(ctx, id); err != nil {
			return err
		}
		used, err := tx.ItemHasMutations(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return domain.InvalidState("item", id, "has_mutations", "delete")
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logged("item", "delete", id, actor).Info("item deleted")
	return nil
}
