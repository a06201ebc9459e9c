// Package service is the application facade used by the HTTP layer and the
// import command. Writes go through the workflow engine; reads go straight to
// the store. After a commit the service refreshes caches and publishes
// events, neither of which can fail the call.
package service

import (
	"context"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/cache"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/notify"
	"github.com/sirupsen/logrus"
)

// Store is the read side of the repository plus the asset CRUD, which has no
// workflow.
type Store interface {
	Ping(ctx context.Context) error

	GetItem(ctx context.Context, id int64) (domain.Item, error)
	ListItems(ctx context.Context, filter domain.ItemListFilter) ([]domain.Item, error)
	ItemsByKind(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error)
	ItemsByCode(ctx context.Context, codes []string) (map[string]domain.Item, error)
	LowStock(ctx context.Context, threshold int) ([]domain.LowStockRow, error)
	InventorySummary(ctx context.Context) (domain.InventorySummary, error)

	ListMutations(ctx context.Context, filter domain.MutationListFilter) ([]domain.StockMutation, error)
	ItemLedger(ctx context.Context, itemID int64) ([]domain.StockMutation, error)

	GetPurchase(ctx context.Context, id int64) (domain.Purchase, error)
	ListPurchases(ctx context.Context, filter domain.PurchaseListFilter) ([]domain.Purchase, error)
	GetRequest(ctx context.Context, id int64) (domain.Request, error)
	ListRequests(ctx context.Context, filter domain.RequestListFilter) ([]domain.Request, error)
	GetOpname(ctx context.Context, id int64) (domain.StockOpname, error)
	ListOpnames(ctx context.Context, filter domain.OpnameListFilter) ([]domain.StockOpname, error)

	ListAssets(ctx context.Context, filter domain.AssetListFilter) ([]domain.Asset, error)
	GetAsset(ctx context.Context, id int64) (domain.Asset, error)
	CreateAsset(ctx context.Context, input domain.AssetCreateInput) (domain.Asset, error)
	PatchAsset(ctx context.Context, id int64, input domain.AssetPatchInput) (domain.Asset, error)
	DeleteAsset(ctx context.Context, id int64) error
}

// Workflows is implemented by *workflow.Engine.
type Workflows interface {
	CreateItem(ctx context.Context, actor authz.Actor, in domain.ItemCreateInput) (domain.Item, []domain.StockMutation, error)
	UpdateItem(ctx context.Context, actor authz.Actor, id int64, patch domain.ItemPatchInput) (domain.Item, error)
	DeleteItem(ctx context.Context, actor authz.Actor, id int64) error

	CreatePurchase(ctx context.Context, actor authz.Actor, in domain.PurchaseCreateInput) (domain.Purchase, error)
	ReceivePurchase(ctx context.Context, actor authz.Actor, id int64, received []domain.ReceivedQuantity) (domain.Purchase, error)
	CompletePurchase(ctx context.Context, actor authz.Actor, id int64) (domain.Purchase, []domain.StockMutation, error)
	DeletePurchase(ctx context.Context, actor authz.Actor, id int64) error

	CreateRequest(ctx context.Context, actor authz.Actor, in domain.RequestCreateInput) (domain.Request, error)
	ApproveDirect(ctx context.Context, actor authz.Actor, id int64) (domain.Request, []domain.StockMutation, error)
	ApproveLevel(ctx context.Context, actor authz.Actor, id int64, level domain.ApprovalLevel, adjust []domain.LineQuantity) (domain.Request, error)
	Distribute(ctx context.Context, actor authz.Actor, id int64, given []domain.LineQuantity) (domain.Request, []domain.StockMutation, error)
	ConfirmReceive(ctx context.Context, actor authz.Actor, id int64) (domain.Request, error)
	RejectRequest(ctx context.Context, actor authz.Actor, id int64, reason string) (domain.Request, error)
	DeleteRequest(ctx context.Context, actor authz.Actor, id int64) error

	CreateOpname(ctx context.Context, actor authz.Actor, in domain.OpnameCreateInput) (domain.StockOpname, error)
	UpdateCounts(ctx context.Context, actor authz.Actor, id int64, counts []domain.OpnameCountInput) (domain.StockOpname, error)
	SubmitOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error)
	ReopenOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, error)
	ApproveOpname(ctx context.Context, actor authz.Actor, id int64) (domain.StockOpname, []domain.StockMutation, error)
	DeleteOpname(ctx context.Context, actor authz.Actor, id int64) error
}

type Options struct {
	Cache  *cache.Cache
	Events notify.Publisher
	Log    *logrus.Logger
	// ReorderThreshold applies to items whose MinStock is zero.
	ReorderThreshold int
}

type Service struct {
	store            Store
	flows            Workflows
	cache            *cache.Cache
	events           notify.Publisher
	log              *logrus.Logger
	reorderThreshold int
}

func New(store Store, flows Workflows, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Events == nil {
		opts.Events = notify.NewLogPublisher(opts.Log)
	}
	if opts.ReorderThreshold < 0 {
		opts.ReorderThreshold = 0
	}
	return &Service{
		store:            store,
		flows:            flows,
		cache:            opts.Cache,
		events:           opts.Events,
		log:              opts.Log,
		reorderThreshold: opts.ReorderThreshold,
	}
}

func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// stockChanged drops the cached aggregates and raises stock.low for every
// touched item that ended at or below its reorder point.
func (s *Service) stockChanged(ctx context.Context, actor authz.Actor, mutations []domain.StockMutation) {
	s.cache.Delete(ctx, cache.KeyInventorySummary, cache.KeyLowStock)

	latest := make(map[int64]domain.StockMutation, len(mutations))
	order := make([]int64, 0, len(mutations))
	for _, m := range mutations {
		if _, seen := latest[m.ItemID]; !seen {
			order = append(order, m.ItemID)
		}
		latest[m.ItemID] = m
	}

	for _, itemID := range order {
		item, err := s.store.GetItem(ctx, itemID)
		if err != nil {
			s.log.WithError(err).WithField("item_id", itemID).Warn("low-stock check skipped")
			continue
		}
		point := item.ReorderPoint(s.reorderThreshold)
		if item.Quantity > point {
			continue
		}
		s.publish(ctx, notify.NewEvent(notify.StockLow, "item", item.ID, actor.UserID, map[string]any{
			"code":          item.Code,
			"quantity":      item.Quantity,
			"reorder_point": point,
			"mutation_id":   latest[itemID].ID,
		}))
	}
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	s.events.Publish(ctx, event)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
