package workflow

import (
	"context"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
	"github.com/shopspring/decimal"
)

const purchaseEntity = "purchase"

// CreatePurchase stores a draft purchase. The header total is the sum of the
// line subtotals and is not recomputed afterwards.
func (e *Engine) CreatePurchase(ctx context.Context, actor authz.Actor, in domain.PurchaseCreateInput) (domain.Purchase, error) {
	in.SupplierName = strings.TrimSpace(in.SupplierName)
	if in.SupplierName == "" {
		return domain.Purchase{}, domain.Invalid("supplier_name", "required")
	}
	if in.PurchaseDate.IsZero() {
		return domain.Purchase{}, domain.Invalid("purchase_date", "required")
	}
	if len(in.Lines) == 0 {
		return domain.Purchase{}, domain.Invalid("lines", "at least one line is required")
	}
	seen := make(map[int64]bool, len(in.Lines))
	for i, line := range in.Lines {
		if line.Quantity <= 0 {
			return domain.Purchase{}, domain.Invalid("quantity", "line %d: must be positive", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return domain.Purchase{}, domain.Invalid("unit_price", "line %d: cannot be negative", i+1)
		}
		if seen[line.ItemID] {
			return domain.Purchase{}, domain.Invalid("lines", "item %d appears more than once", line.ItemID)
		}
		seen[line.ItemID] = true
	}

	var p domain.Purchase
	err := e.run(ctx, "purchase.create", actor, authz.ManagePurchases, func(ctx context.Context, tx Tx) error {
		now := e.now()
		p = domain.Purchase{
			Number:       documentNumber("PB", now),
			SupplierName: in.SupplierName,
			PurchaseDate: in.PurchaseDate,
			Status:       domain.PurchaseDraft,
			Note:         in.Note,
			CreatedBy:    actor.UserID,
			TotalValue:   decimal.Zero,
		}
		for _, line := range in.Lines {
			if _, err := tx.LockItem(ctx, line.ItemID); err != nil {
				return err
			}
			subtotal := ledger.Subtotal(line.Quantity, line.UnitPrice)
			p.Lines = append(p.Lines, domain.PurchaseLine{
				ItemID:    line.ItemID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				Subtotal:  subtotal,
			})
			p.TotalValue = p.TotalValue.Add(subtotal)
		}
		return tx.InsertPurchase(ctx, &p)
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	e.logged(purchaseEntity, "create", p.ID, actor).WithField("number", p.Number).Info("purchase created")
	return p, nil
}

// ReceivePurchase records delivered quantities without touching stock. With no
// quantities given every line is taken as fully delivered; otherwise only the
// listed lines change. Calling it again before completion overwrites counts.
func (e *Engine) ReceivePurchase(ctx context.Context, actor authz.Actor, id int64, received []domain.ReceivedQuantity) (domain.Purchase, error) {
	entries := make([]domain.LineQuantity, 0, len(received))
	for _, r := range received {
		entries = append(entries, domain.LineQuantity{LineID: r.LineID, Quantity: r.Quantity})
	}
	counts, err := quantityMap(entries)
	if err != nil {
		return domain.Purchase{}, err
	}

	var p domain.Purchase
	err = e.run(ctx, "purchase.receive", actor, authz.ManagePurchases, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.LockPurchase(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanReceive() {
			return domain.InvalidState(purchaseEntity, id, string(p.Status), "receive")
		}
		if err := checkPurchaseLines(p, counts); err != nil {
			return err
		}

		for i := range p.Lines {
			line := &p.Lines[i]
			qty, listed := counts[line.ID]
			if len(counts) == 0 {
				qty, listed = line.Quantity, true
			}
			if !listed {
				continue
			}
			if err := tx.SetPurchaseLineReceived(ctx, line.ID, qty); err != nil {
				return err
			}
			line.ReceivedQuantity = intPtr(qty)
		}

		p.Status = domain.PurchaseReceived
		p.ReceivedAt = timePtr(e.now())
		return tx.UpdatePurchaseState(ctx, p)
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	e.logged(purchaseEntity, "receive", id, actor).Info("purchase received")
	return p, nil
}

func checkPurchaseLines(p domain.Purchase, counts map[int64]int) error {
	ordered := make(map[int64]int, len(p.Lines))
	for _, line := range p.Lines {
		ordered[line.ID] = line.Quantity
	}
	for lineID, qty := range counts {
		limit, ok := ordered[lineID]
		if !ok {
			return domain.NotFound("purchase line", lineID)
		}
		if qty > limit {
			return domain.Invalid("received_quantity", "line %d: received %d exceeds the %d ordered", lineID, qty, limit)
		}
	}
	return nil
}

// CompletePurchase posts every received line to the ledger, sets the item's
// last purchase price and recomputes its weighted-average price. Lines with
// nothing received are skipped.
func (e *Engine) CompletePurchase(ctx context.Context, actor authz.Actor, id int64) (domain.Purchase, []domain.StockMutation, error) {
	var (
		p         domain.Purchase
		mutations []domain.StockMutation
	)
	err := e.run(ctx, "purchase.complete", actor, authz.ManagePurchases, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.LockPurchase(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanComplete() {
			return domain.InvalidState(purchaseEntity, id, string(p.Status), "complete")
		}

		mutations = mutations[:0]
		for _, line := range p.Lines {
			if line.ReceivedQuantity == nil || *line.ReceivedQuantity <= 0 {
				continue
			}
			qty := *line.ReceivedQuantity

			item, err := tx.LockItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			m, err := ledger.RecordLocked(ctx, tx, item, ledger.Entry{
				ItemID:        line.ItemID,
				Kind:          domain.MutationIn,
				Quantity:      qty,
				ReferenceKind: domain.ReferencePurchase,
				ReferenceID:   p.ID,
				Note:          "purchase " + p.Number,
				Actor:         actor.UserID,
			})
			if err != nil {
				return err
			}
			avg := ledger.WeightedAverage(m.BalanceBefore, item.AvgPrice, qty, line.UnitPrice)
			if err := tx.SetItemCost(ctx, line.ItemID, line.UnitPrice, avg); err != nil {
				return err
			}
			mutations = append(mutations, m)
		}

		p.Status = domain.PurchaseCompleted
		p.CompletedAt = timePtr(e.now())
		return tx.UpdatePurchaseState(ctx, p)
	})
	if err != nil {
		return domain.Purchase{}, nil, err
	}
	e.logged(purchaseEntity, "complete", id, actor).WithField("mutations", len(mutations)).Info("purchase completed")
	return p, mutations, nil
}

// DeletePurchase removes a draft purchase together with its lines.
func (e *Engine) DeletePurchase(ctx context.Context, actor authz.Actor, id int64) error {
	err := e.run(ctx, "purchase.delete", actor, authz.ManagePurchases, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPurchase(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanDelete() {
			return domain.InvalidState(purchaseEntity, id, string(p.Status), "delete")
		}
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logged(purchaseEntity, "delete", id, actor).Info("purchase deleted")
	return nil
}
