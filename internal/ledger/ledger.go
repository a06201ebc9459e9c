// Package ledger owns every change to an item's on-hand quantity. Workflows
// call Record inside their transaction; nothing else writes the registry
// quantity.
package ledger

import (
	"context"
	"fmt"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
)

// Store is the transactional surface the ledger writes through. LockItem must
// hold the item row for the rest of the enclosing transaction.
type Store interface {
	LockItem(ctx context.Context, id int64) (domain.Item, error)
	SetItemQuantity(ctx context.Context, id int64, quantity int) error
	InsertMutation(ctx context.Context, m *domain.StockMutation) error
}

// Entry is one requested stock movement. Quantity is a positive magnitude for
// in and out, and the signed delta for adjustment.
type Entry struct {
	ItemID        int64
	Kind          domain.MutationKind
	Quantity      int
	ReferenceKind domain.ReferenceKind
	ReferenceID   int64
	Note          string
	Actor         int64
}

// SignedDelta turns a mutation kind and quantity into the change applied to
// the balance. in/out take a positive magnitude, adjustment takes the signed
// delta itself.
func SignedDelta(kind domain.MutationKind, quantity int) (int, error) {
	switch kind {
	case domain.MutationIn:
		if quantity <= 0 {
			return 0, domain.Invalid("quantity", "in mutation needs a positive quantity, got %d", quantity)
		}
		return quantity, nil
	case domain.MutationOut:
		if quantity <= 0 {
			return 0, domain.Invalid("quantity", "out mutation needs a positive quantity, got %d", quantity)
		}
		return -quantity, nil
	case domain.MutationAdjustment:
		if quantity == 0 {
			return 0, domain.Invalid("quantity", "adjustment cannot be zero")
		}
		return quantity, nil
	}
	return 0, domain.Invalid("kind", "unknown mutation kind %q", kind)
}

// Apply computes the balance after a mutation. A result below zero is refused;
// callers clamp out quantities to the available stock before recording.
func Apply(before int, kind domain.MutationKind, quantity int) (int, error) {
	delta, err := SignedDelta(kind, quantity)
	if err != nil {
		return 0, err
	}
	after := before + delta
	if after < 0 {
		return 0, domain.Invalid("quantity", "%s of %d on balance %d would go negative", kind, quantity, before)
	}
	return after, nil
}

// Record appends one mutation and moves the registry quantity to its
// balance_after. Both writes go through s and therefore share its transaction.
func Record(ctx context.Context, s Store, e Entry) (domain.StockMutation, error) {
	item, err := s.LockItem(ctx, e.ItemID)
	if err != nil {
		return domain.StockMutation{}, err
	}
	return RecordLocked(ctx, s, item, e)
}

// RecordLocked is Record for a caller that already holds the item row locked
// in the same transaction. item must be the row LockItem returned.
func RecordLocked(ctx context.Context, s Store, item domain.Item, e Entry) (domain.StockMutation, error) {
	if item.ID != e.ItemID {
		return domain.StockMutation{}, fmt.Errorf("entry for item %d recorded against item %d", e.ItemID, item.ID)
	}

	after, err := Apply(item.Quantity, e.Kind, e.Quantity)
	if err != nil {
		return domain.StockMutation{}, fmt.Errorf("item %s: %w", item.Code, err)
	}

	m := domain.StockMutation{
		ItemID:        item.ID,
		Kind:          e.Kind,
		Quantity:      e.Quantity,
		BalanceBefore: item.Quantity,
		BalanceAfter:  after,
		ReferenceKind: e.ReferenceKind,
		ReferenceID:   e.ReferenceID,
		Note:          e.Note,
		CreatedBy:     e.Actor,
	}
	if err := s.InsertMutation(ctx, &m); err != nil {
		return domain.StockMutation{}, fmt.Errorf("insert mutation for item %d: %w", item.ID, err)
	}
	if err := s.SetItemQuantity(ctx, item.ID, after); err != nil {
		return domain.StockMutation{}, fmt.Errorf("update quantity for item %d: %w", item.ID, err)
	}
	return m, nil
}
