package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
)

const requestEntity = "request"

// CreateRequest opens a pending request. Direct requests draw office items,
// multi-level requests draw ATK items.
func (e *Engine) CreateRequest(ctx context.Context, actor authz.Actor, in domain.RequestCreateInput) (domain.Request, error) {
	if !in.Variant.Valid() {
		return domain.Request{}, domain.Invalid("variant", "must be direct or multilevel, got %q", in.Variant)
	}
	in.Department = strings.TrimSpace(in.Department)
	if in.Department == "" {
		return domain.Request{}, domain.Invalid("department", "required")
	}
	if len(in.Lines) == 0 {
		return domain.Request{}, domain.Invalid("lines", "at least one line is required")
	}
	seen := make(map[int64]bool, len(in.Lines))
	for i, line := range in.Lines {
		if line.Quantity <= 0 {
			return domain.Request{}, domain.Invalid("quantity", "line %d: must be positive", i+1)
		}
		if seen[line.ItemID] {
			return domain.Request{}, domain.Invalid("lines", "item %d appears more than once", line.ItemID)
		}
		seen[line.ItemID] = true
	}

	var r domain.Request
	err := e.run(ctx, "request.create", actor, authz.CreateRequest, func(ctx context.Context, tx Tx) error {
		want := in.Variant.ItemKind()
		r = domain.Request{
			Number:      documentNumber("RQ", e.now()),
			Variant:     in.Variant,
			RequesterID: actor.UserID,
			Department:  in.Department,
			Purpose:     in.Purpose,
			Status:      domain.RequestPending,
		}
		for _, line := range in.Lines {
			item, err := tx.LockItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.Kind != want {
				return domain.Invalid("lines", "item %s is %s, %s requests take %s items", item.Code, item.Kind, in.Variant, want)
			}
			r.Lines = append(r.Lines, domain.RequestLine{
				ItemID:            line.ItemID,
				RequestedQuantity: line.Quantity,
				Note:              strings.TrimSpace(line.Note),
			})
		}
		return tx.InsertRequest(ctx, &r)
	})
	if err != nil {
		return domain.Request{}, err
	}
	e.logged(requestEntity, "create", r.ID, actor).WithField("variant", r.Variant).Info("request created")
	return r, nil
}

// ApproveDirect settles a direct request in one step: each line is given as
// much of the requested quantity as is on hand.
func (e *Engine) ApproveDirect(ctx context.Context, actor authz.Actor, id int64) (domain.Request, []domain.StockMutation, error) {
	var (
		r         domain.Request
		mutations []domain.StockMutation
	)
	err := e.run(ctx, "request.approve", actor, authz.ApproveDirect, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if r.Variant != domain.RequestDirect {
			return domain.Invalid("variant", "request %s goes through multi-level approval", r.Number)
		}
		if r.Status != domain.RequestPending {
			return domain.InvalidState(requestEntity, id, string(r.Status), "approve")
		}

		mutations = mutations[:0]
		for i := range r.Lines {
			line := &r.Lines[i]
			item, err := tx.LockItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			given := min(line.RequestedQuantity, item.Quantity)
			line.ApprovedQuantity = intPtr(line.RequestedQuantity)
			line.GivenQuantity = intPtr(given)
			if given > 0 {
				m, err := e.issue(ctx, tx, r, line.ItemID, given, actor)
				if err != nil {
					return err
				}
				mutations = append(mutations, m)
			}
			if err := tx.UpdateRequestLine(ctx, *line); err != nil {
				return err
			}
		}

		r.Status = domain.RequestCompleted
		r.ApprovedBy = int64Ptr(actor.UserID)
		r.ApprovedAt = timePtr(e.now())
		return tx.UpdateRequestState(ctx, r)
	})
	if err != nil {
		return domain.Request{}, nil, err
	}
	e.logged(requestEntity, "approve", id, actor).WithField("mutations", len(mutations)).Info("direct request approved")
	return r, mutations, nil
}

// ApproveLevel signs off one level of a multi-level request. Level 1 seeds the
// approved quantities from the requested ones; any level may lower them.
func (e *Engine) ApproveLevel(ctx context.Context, actor authz.Actor, id int64, level domain.ApprovalLevel, adjust []domain.LineQuantity) (domain.Request, error) {
	if !level.Valid() {
		return domain.Request{}, domain.Invalid("level", "must be 1, 2 or 3, got %d", level)
	}
	approved, err := quantityMap(adjust)
	if err != nil {
		return domain.Request{}, err
	}

	op := fmt.Sprintf("approve level %d", level)
	var r domain.Request
	err = e.run(ctx, fmt.Sprintf("request.approve_level%d", level), actor, authz.ApproveLevel(level), func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if r.Variant != domain.RequestMultiLevel {
			return domain.Invalid("variant", "request %s is approved directly", r.Number)
		}
		if r.Status != level.From() {
			return domain.InvalidState(requestEntity, id, string(r.Status), op)
		}
		if err := checkRequestLines(r, approved); err != nil {
			return err
		}

		for i := range r.Lines {
			line := &r.Lines[i]
			current := line.RequestedQuantity
			if line.ApprovedQuantity != nil {
				current = *line.ApprovedQuantity
			}
			qty, adjusted := approved[line.ID]
			if adjusted && qty > current {
				return domain.Invalid("approved_quantity", "line %d: %d exceeds %d", line.ID, qty, current)
			}
			if !adjusted {
				qty = current
			}
			if line.ApprovedQuantity != nil && *line.ApprovedQuantity == qty {
				continue
			}
			line.ApprovedQuantity = intPtr(qty)
			if err := tx.UpdateRequestLine(ctx, *line); err != nil {
				return err
			}
		}

		at := timePtr(e.now())
		by := int64Ptr(actor.UserID)
		switch level {
		case domain.Level1:
			r.Level1By, r.Level1At = by, at
		case domain.Level2:
			r.Level2By, r.Level2At = by, at
		case domain.Level3:
			r.Level3By, r.Level3At = by, at
		}
		r.Status = level.To()
		return tx.UpdateRequestState(ctx, r)
	})
	if err != nil {
		return domain.Request{}, err
	}
	e.logged(requestEntity, op, id, actor).Info("request approved")
	return r, nil
}

// Distribute hands out goods for a fully approved request. A given quantity
// above the approved one is refused; one above the stock on hand is cut down
// to what is available. Lines left out receive their approved quantity.
func (e *Engine) Distribute(ctx context.Context, actor authz.Actor, id int64, given []domain.LineQuantity) (domain.Request, []domain.StockMutation, error) {
	quantities, err := quantityMap(given)
	if err != nil {
		return domain.Request{}, nil, err
	}

	var (
		r         domain.Request
		mutations []domain.StockMutation
	)
	err = e.run(ctx, "request.distribute", actor, authz.Distribute, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if r.Variant != domain.RequestMultiLevel {
			return domain.Invalid("variant", "request %s is approved directly", r.Number)
		}
		if r.Status != domain.RequestLevel3Approved {
			return domain.InvalidState(requestEntity, id, string(r.Status), "distribute")
		}
		if err := checkRequestLines(r, quantities); err != nil {
			return err
		}

		mutations = mutations[:0]
		for i := range r.Lines {
			line := &r.Lines[i]
			approved := line.RequestedQuantity
			if line.ApprovedQuantity != nil {
				approved = *line.ApprovedQuantity
			}
			qty, listed := quantities[line.ID]
			if !listed {
				qty = approved
			}
			if qty > approved {
				return domain.Invalid("given_quantity", "line %d: %d exceeds approved %d", line.ID, qty, approved)
			}

			item, err := tx.LockItem(ctx, line.ItemID)
			if err != nil {
				return err
			}
			qty = min(qty, item.Quantity)
			line.GivenQuantity = intPtr(qty)
			if qty > 0 {
				m, err := e.issue(ctx, tx, r, line.ItemID, qty, actor)
				if err != nil {
					return err
				}
				mutations = append(mutations, m)
			}
			if err := tx.UpdateRequestLine(ctx, *line); err != nil {
				return err
			}
		}

		r.Status = domain.RequestDistributed
		r.DistributedBy = int64Ptr(actor.UserID)
		r.DistributedAt = timePtr(e.now())
		return tx.UpdateRequestState(ctx, r)
	})
	if err != nil {
		return domain.Request{}, nil, err
	}
	e.logged(requestEntity, "distribute", id, actor).WithField("mutations", len(mutations)).Info("request distributed")
	return r, mutations, nil
}

// ConfirmReceive acknowledges delivery; only the requester (or a super admin)
// may confirm.
func (e *Engine) ConfirmReceive(ctx context.Context, actor authz.Actor, id int64) (domain.Request, error) {
	var r domain.Request
	err := e.run(ctx, "request.confirm_receive", actor, authz.ConfirmReceive, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := ownRequest(actor, r); err != nil {
			return err
		}
		if r.Status != domain.RequestDistributed {
			return domain.InvalidState(requestEntity, id, string(r.Status), "confirm receipt of")
		}
		r.Status = domain.RequestReceived
		r.ReceivedAt = timePtr(e.now())
		return tx.UpdateRequestState(ctx, r)
	})
	if err != nil {
		return domain.Request{}, err
	}
	e.logged(requestEntity, "confirm_receive", id, actor).Info("request received")
	return r, nil
}

// RejectRequest closes a request without touching stock. A multi-level request
// can no longer be rejected once level 3 has signed off.
func (e *Engine) RejectRequest(ctx context.Context, actor authz.Actor, id int64, reason string) (domain.Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Request{}, domain.Invalid("reason", "required")
	}

	var r domain.Request
	err := e.run(ctx, "request.reject", actor, authz.RejectRequest, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanReject(r.Variant, r.Status) {
			return domain.InvalidState(requestEntity, id, string(r.Status), "reject")
		}
		r.Status = domain.RequestRejected
		r.RejectedBy = int64Ptr(actor.UserID)
		r.RejectedAt = timePtr(e.now())
		r.RejectionReason = &reason
		return tx.UpdateRequestState(ctx, r)
	})
	if err != nil {
		return domain.Request{}, err
	}
	e.logged(requestEntity, "reject", id, actor).Info("request rejected")
	return r, nil
}

// DeleteRequest withdraws a pending request.
func (e *Engine) DeleteRequest(ctx context.Context, actor authz.Actor, id int64) error {
	err := e.run(ctx, "request.delete", actor, authz.CreateRequest, func(ctx context.Context, tx Tx) error {
		r, err := tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := ownRequest(actor, r); err != nil {
			return err
		}
		if !r.Status.CanDelete() {
			return domain.InvalidState(requestEntity, id, string(r.Status), "delete")
		}
		return tx.DeleteRequest(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logged(requestEntity, "delete", id, actor).Info("request deleted")
	return nil
}

func (e *Engine) issue(ctx context.Context, tx Tx, r domain.Request, itemID int64, qty int, actor authz.Actor) (domain.StockMutation, error) {
	return ledger.Record(ctx, tx, ledger.Entry{
		ItemID:        itemID,
		Kind:          domain.MutationOut,
		Quantity:      qty,
		ReferenceKind: domain.ReferenceRequest,
		ReferenceID:   r.ID,
		Note:          "request " + r.Number,
		Actor:         actor.UserID,
	})
}

func ownRequest(actor authz.Actor, r domain.Request) error {
	if actor.Role == authz.RoleSuperAdmin || actor.UserID == r.RequesterID {
		return nil
	}
	return &domain.PermissionError{
		Capability: "act on request " + r.Number,
		Reason:     "only the requester may do this",
	}
}

func checkRequestLines(r domain.Request, quantities map[int64]int) error {
	owned := make(map[int64]bool, len(r.Lines))
	for _, line := range r.Lines {
		owned[line.ID] = true
	}
	for lineID := range quantities {
		if !owned[lineID] {
			return domain.NotFound("request line", lineID)
		}
	}
	return nil
}
