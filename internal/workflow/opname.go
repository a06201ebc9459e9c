package workflow

import (
	"context"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
)

const opnameEntity = "stock opname"

// CreateOpname snapshots the registry quantity of every counted item next to
// its physical count.
func (e *Engine) CreateOpname(ctx context.Context, actor authz.Actor, in domain.OpnameCreateInput) (domain.StockOpname, error) {
	if in.CountDate.IsZero() {
		return domain.StockOpname{}, domain.Invalid("count_date", "required")
	}
	in.Period = strings.TrimSpace(in.Period)
	if in.Period == "" {
		return domain.StockOpname{}, domain.Invalid("period", "required")
	}
	if len(in.Lines) == 0 {
		return domain.StockOpname{}, domain.Invalid("lines", "at least one line is required")
	}
	if err := validateCounts(in.Lines); err != nil {
		return domain.StockOpname{}, err
	}

	var o domain.StockOpname
	err := e.run(ctx, "opname.create", actor, authz.ManageOpname, func(ctx context.Context, tx Tx) error {
		o = domain.StockOpname{
			Number:    documentNumber("SO", e.now()),
			CountDate: in.CountDate,
			Period:    in.Period,
			Status:    domain.OpnameDraft,
			Note:      in.Note,
			CreatedBy: actor.UserID,
		}
		for _, count := range in.Lines {
			item, err := tx.LockItem(ctx, count.ItemID)
			if err != nil {
				return err
			}
			o.Lines = append(o.Lines, domain.StockOpnameLine{
				ItemID:           item.ID,
				SystemQuantity:   item.Quantity,
				PhysicalQuantity: count.PhysicalQuantity,
				Note:             count.Note,
				Photos:           count.Photos,
			})
		}
		return tx.InsertOpname(ctx, &o)
	})
	if err != nil {
		return domain.StockOpname{}, err
	}
	e.logged("opname", "create", o.ID, actor).WithField("lines", len(o.Lines)).Info("stock opname created")
	return o, nil
}

func validateCounts(counts []domain.OpnameCountInput) error {
	seen := make(map[int64]bool, len(counts))
	for _, count := range counts {
		if count.PhysicalQuantity < 0 {
			return domain.Invalid("physical_quantity", "item %d: cannot be negative", count.ItemID)
		}
		if seen[count.ItemID] {
			return domain.Invalid("lines", "item %d counted more than once", count.ItemID)
		}
		seen[count.ItemID] = true
	}
	return nil
}

// UpdateCounts replaces physical counts, notes and photos of lines still in
// draft. System snapshots are left alone.
func (e *Engine) UpdateCounts(ctx context.Context, actor authz.Actor, id int64, counts []domain.OpnameCountInput) (domain.StockOpname, error) {
	if err := validateCounts(counts); err != nil {
		return domain.StockOpname{}, err
	}

	var o domain.StockOpname
	err := e.run(ctx, "opname.update_counts", actor, authz.ManageOpname, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOpname(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanEdit() {
			return domain.InvalidState(opnameEntity, id, string(o.Status), "update counts of")
		}
		byItem := make(map[int64]int, len(o.Lines))
		for i, line := range o.Lines {
			byItem[line.ItemID] = i
		}
		for _, count := range counts {
			i, ok := byItem[count.ItemID]
			if !ok {
				return domain.Invalid("item_id", "item %d is not part of %s", count.ItemID, o.Number)
			}
			line := &o.Lines[i]
			line.PhysicalQuantity = count.PhysicalQuantity
			line.Note = count.Note
			line.Photos = count.Photos
			if err := tx.UpdateOpnameLine(ctx, *line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.StockOpname{}, err
	}
	e.logged("opname", "update_counts", id, actor).WithField("lines", len(counts)).Info("stock opname counts updated")
	return o, nil
}

// SubmitOpname marks the count ready for approval.
func (e *Engine) SubmitOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error) {
	var o domain.StockOpname
	err := e.run(ctx, "opname.submit", actor, authz.ManageOpname, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOpname(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanSubmit() {
			return domain.InvalidState(opnameEntity, id, string(o.Status), "submit")
		}
		o.Status = domain.OpnameCompleted
		o.SubmittedAt = timePtr(e.now())
		return tx.UpdateOpnameState(ctx, o)
	})
	if err != nil {
		return domain.StockOpname{}, err
	}
	e.logged("opname", "submit", id, actor).Info("stock opname submitted")
	return o, nil
}

// ReopenOpname sends a submitted count back to draft and refreshes every
// system snapshot from the registry, so the counts can be corrected against
// stock that moved after the opname was opened.
func (e *Engine) ReopenOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error) {
	var o domain.StockOpname
	err := e.run(ctx, "opname.reopen", actor, authz.ManageOpname, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOpname(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanReopen() {
			return domain.InvalidState(opnameEntity, id, string(o.Status), "reopen")
		}
		for i := range o.Lines {
			line := &o.Lines[i]
			item, err := tx.LockItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.Quantity == line.SystemQuantity {
				continue
			}
			line.SystemQuantity = item.Quantity
			if err := tx.UpdateOpnameLine(ctx, *line); err != nil {
				return err
			}
		}
		o.Status = domain.OpnameDraft
		o.SubmittedAt = nil
		return tx.UpdateOpnameState(ctx, o)
	})
	if err != nil {
		return domain.StockOpname{}, err
	}
	e.logged("opname", "reopen", id, actor).Info("stock opname reopened")
	return o, nil
}

// ApproveOpname books one adjustment per line whose count differs from its
// snapshot. The registry moves by the variance, not to the counted value.
func (e *Engine) ApproveOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, []domain.StockMutation, error) {
	var (
		o         domain.StockOpname
		mutations []domain.StockMutation
	)
	err := e.run(ctx, "opname.approve", actor, authz.ApproveOpname, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOpname(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanApprove() {
			return domain.InvalidState(opnameEntity, id, string(o.Status), "approve")
		}

		mutations = mutations[:0]
		for _, line := range o.Lines {
			variance := line.Variance()
			if variance == 0 {
				continue
			}
			m, err := ledger.Record(ctx, tx, ledger.Entry{
				ItemID:        line.ItemID,
				Kind:          domain.MutationAdjustment,
				Quantity:      variance,
				ReferenceKind: domain.ReferenceOpname,
				ReferenceID:   o.ID,
				Note:          "stock opname " + o.Number,
				Actor:         actor.UserID,
			})
			if err != nil {
				return err
			}
			mutations = append(mutations, m)
		}

		o.Status = domain.OpnameApproved
		o.ApprovedBy = int64Ptr(actor.UserID)
		o.ApprovedAt = timePtr(e.now())
		return tx.UpdateOpnameState(ctx, o)
	})
	if err != nil {
		return domain.StockOpname{}, nil, err
	}
	e.logged("opname", "approve", id, actor).WithField("mutations", len(mutations)).Info("stock opname approved")
	return o, mutations, nil
}

// DeleteOpname discards a draft count.
func (e *Engine) DeleteOpname(ctx context.Context, actor authz.Actor, id int64) error {
	err := e.run(ctx, "opname.delete", actor, authz.ManageOpname, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOpname(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanEdit() {
			return domain.InvalidState(opnameEntity, id, string(o.Status), "delete")
		}
		return tx.DeleteOpname(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logged("opname", "delete", id, actor).Info("stock opname deleted")
	return nil
}
