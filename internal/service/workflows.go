package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/excel"
	"github.com/backuppapnj/simbara-new-sub003/internal/notify"
)

func (s *Service) ListPurchases(ctx context.Context, actor authz.Actor, filter domain.PurchaseListFilter) ([]domain.Purchase, error) {
	if err := authz.Require(actor, authz.ViewLedger); err != nil {
		return nil, err
	}
	return s.store.ListPurchases(ctx, filter)
}

func (s *Service) GetPurchase(ctx context.Context, actor authz.Actor, id int64) (domain.Purchase, error) {
	if err := authz.Require(actor, authz.ViewLedger); err != nil {
		return domain.Purchase{}, err
	}
	return s.store.GetPurchase(ctx, id)
}

func (s *Service) CreatePurchase(ctx context.Context, actor authz.Actor, in domain.PurchaseCreateInput) (domain.Purchase, error) {
	in.Note = trimmed(in.Note)
	return s.flows.CreatePurchase(ctx, actor, in)
}

func (s *Service) ReceivePurchase(ctx context.Context, actor authz.Actor, id int64, received []domain.ReceivedQuantity) (domain.Purchase, error) {
	return s.flows.ReceivePurchase(ctx, actor, id, received)
}

func (s *Service) CompletePurchase(ctx context.Context, actor authz.Actor, id int64) (domain.Purchase, error) {
	p, mutations, err := s.flows.CompletePurchase(ctx, actor, id)
	if err != nil {
		return domain.Purchase{}, err
	}
	s.publish(ctx, notify.NewEvent(notify.PurchaseCompleted, "purchase", p.ID, actor.UserID, map[string]any{
		"number":      p.Number,
		"total_value": p.TotalValue,
		"mutations":   len(mutations),
	}))
	s.stockChanged(ctx, actor, mutations)
	return p, nil
}

func (s *Service) DeletePurchase(ctx context.Context, actor authz.Actor, id int64) error {
	return s.flows.DeletePurchase(ctx, actor, id)
}

// ListRequests shows every request to actors who may view the ledger and only
// their own requests to everyone else.
func (s *Service) ListRequests(ctx context.Context, actor authz.Actor, filter domain.RequestListFilter) ([]domain.Request, error) {
	if !authz.Decide(actor, authz.ViewLedger).Allowed {
		if err := authz.Require(actor, authz.CreateRequest); err != nil {
			return nil, err
		}
		own := actor.UserID
		filter.RequesterID = &own
	}
	return s.store.ListRequests(ctx, filter)
}

func (s *Service) GetRequest(ctx context.Context, actor authz.Actor, id int64) (domain.Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return domain.Request{}, err
	}
	if r.RequesterID != actor.UserID && !authz.Decide(actor, authz.ViewLedger).Allowed {
		return domain.Request{}, &domain.PermissionError{
			Capability: string(authz.ViewLedger),
			Reason:     fmt.Sprintf("request %d belongs to another user", id),
		}
	}
	return r, nil
}

func (s *Service) CreateRequest(ctx context.Context, actor authz.Actor, in domain.RequestCreateInput) (domain.Request, error) {
	in.Purpose = trimmed(in.Purpose)
	r, err := s.flows.CreateRequest(ctx, actor, in)
	if err != nil {
		return domain.Request{}, err
	}
	s.publish(ctx, notify.NewEvent(notify.RequestCreated, "request", r.ID, actor.UserID, requestPayload(r)))
	return r, nil
}

func (s *Service) ApproveDirect(ctx context.Context, actor authz.Actor, id int64) (domain.Request, error) {
	r, mutations, err := s.flows.ApproveDirect(ctx, actor, id)
	if err != nil {
		return domain.Request{}, err
	}
	s.publish(ctx, notify.NewEvent(notify.RequestApproved, "request", r.ID, actor.UserID, requestPayload(r)))
	s.stockChanged(ctx, actor, mutations)
	return r, nil
}

func (s *Service) ApproveLevel(ctx context.Context, actor authz.Actor, id int64, level domain.ApprovalLevel, adjust []domain.LineQuantity) (domain.Request, error) {
	r, err := s.flows.ApproveLevel(ctx, actor, id, level, adjust)
	if err != nil {
		return domain.Request{}, err
	}
	payload := requestPayload(r)
	payload["level"] = int(level)
	s.publish(ctx, notify.NewEvent(notify.RequestApproved, "request", r.ID, actor.UserID, payload))
	return r, nil
}

func (s *Service) Distribute(ctx context.Context, actor authz.Actor, id int64, given []domain.LineQuantity) (domain.Request, error) {
	r, mutations, err := s.flows.Distribute(ctx, actor, id, given)
	if err != nil {
		return domain.Request{}, err
	}
	s.publish(ctx, notify.NewEvent(notify.RequestDistributed, "request", r.ID, actor.UserID, requestPayload(r)))
	s.stockChanged(ctx, actor, mutations)
	return r, nil
}

func (s *Service) ConfirmReceive(ctx context.Context, actor authz.Actor, id int64) (domain.Request, error) {
	return s.flows.ConfirmReceive(ctx, actor, id)
}

func (s *Service) RejectRequest(ctx context.Context, actor authz.Actor, id int64, reason string) (domain.Request, error) {
	r, err := s.flows.RejectRequest(ctx, actor, id, reason)
	if err != nil {
		return domain.Request{}, err
	}
	payload := requestPayload(r)
	payload["reason"] = reason
	s.publish(ctx, notify.NewEvent(notify.RequestRejected, "request", r.ID, actor.UserID, payload))
	return r, nil
}

func (s *Service) DeleteRequest(ctx context.Context, actor authz.Actor, id int64) error {
	return s.flows.DeleteRequest(ctx, actor, id)
}

func requestPayload(r domain.Request) map[string]any {
	return map[string]any{
		"number":       r.Number,
		"variant":      r.Variant,
		"status":       r.Status,
		"requester_id": r.RequesterID,
		"department":   r.Department,
	}
}

func (s *Service) ListOpnames(ctx context.Context, actor authz.Actor, filter domain.OpnameListFilter) ([]domain.StockOpname, error) {
	if err := authz.Require(actor, authz.ViewLedger); err != nil {
		return nil, err
	}
	return s.store.ListOpnames(ctx, filter)
}

func (s *Service) GetOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error) {
	if err := authz.Require(actor, authz.ViewLedger); err != nil {
		return domain.StockOpname{}, err
	}
	return s.store.GetOpname(ctx, id)
}

func (s *Service) CreateOpname(ctx context.Context, actor authz.Actor, in domain.OpnameCreateInput) (domain.StockOpname, error) {
	in.Note = trimmed(in.Note)
	return s.flows.CreateOpname(ctx, actor, in)
}

// CreateOpnameFromSheet resolves the item codes of a parsed count sheet and
// opens a draft opname with those counts.
func (s *Service) CreateOpnameFromSheet(ctx context.Context, actor authz.Actor, countDate time.Time, period string, note *string, rows []domain.OpnameCountRow) (domain.StockOpname, error) {
	if len(rows) == 0 {
		return domain.StockOpname{}, domain.Invalid("rows", "count sheet has no counted rows")
	}
	if err := authz.Require(actor, authz.ManageOpname); err != nil {
		return domain.StockOpname{}, err
	}

	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.ItemCode)
	}
	items, err := s.store.ItemsByCode(ctx, codes)
	if err != nil {
		return domain.StockOpname{}, err
	}

	counts := make([]domain.OpnameCountInput, 0, len(rows))
	for _, row := range rows {
		item, ok := items[row.ItemCode]
		if !ok {
			return domain.StockOpname{}, domain.Invalid("item_code", "unknown item code %s", row.ItemCode)
		}
		counts = append(counts, domain.OpnameCountInput{
			ItemID:           item.ID,
			PhysicalQuantity: row.PhysicalQuantity,
			Note:             row.Note,
		})
	}

	return s.CreateOpname(ctx, actor, domain.OpnameCreateInput{
		CountDate: countDate,
		Period:    period,
		Note:      note,
		Lines:     counts,
	})
}

// ImportOpnameExcel parses a filled count sheet and opens a draft opname.
func (s *Service) ImportOpnameExcel(ctx context.Context, actor authz.Actor, r io.Reader, countDate time.Time, period string, note *string) (domain.StockOpname, error) {
	rows, err := excel.ParseCountSheet(r)
	if err != nil {
		return domain.StockOpname{}, domain.Invalid("file", "%v", err)
	}
	return s.CreateOpnameFromSheet(ctx, actor, countDate, period, note, rows)
}

func (s *Service) UpdateCounts(ctx context.Context, actor authz.Actor, id int64, counts []domain.OpnameCountInput) (domain.StockOpname, error) {
	return s.flows.UpdateCounts(ctx, actor, id, counts)
}

func (s *Service) SubmitOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error) {
	return s.flows.SubmitOpname(ctx, actor, id)
}

func (s *Service) ReopenOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error) {
	return s.flows.ReopenOpname(ctx, actor, id)
}

func (s *Service) ApproveOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error) {
	o, mutations, err := s.flows.ApproveOpname(ctx, actor, id)
	if err != nil {
		return domain.StockOpname{}, err
	}
	s.publish(ctx, notify.NewEvent(notify.OpnameApproved, "stock_opname", o.ID, actor.UserID, map[string]any{
		"number":      o.Number,
		"period":      o.Period,
		"adjustments": len(mutations),
	}))
	s.stockChanged(ctx, actor, mutations)
	return o, nil
}

func (s *Service) DeleteOpname(ctx context.Context, actor authz.Actor, id int64) error {
	return s.flows.DeleteOpname(ctx, actor, id)
}
