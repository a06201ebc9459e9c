package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/cache"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/excel"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
	"github.com/sirupsen/logrus"
)

const importLockTTL = 10 * time.Minute

func (s *Service) ListItems(ctx context.Context, filter domain.ItemListFilter) ([]domain.Item, error) {
	filter.Threshold = s.reorderThreshold
	return s.store.ListItems(ctx, filter)
}

func (s *Service) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	return s.store.GetItem(ctx, id)
}

func (s *Service) CreateItem(ctx context.Context, actor authz.Actor, in domain.ItemCreateInput) (domain.Item, error) {
	in.Description = trimmed(in.Description)
	item, mutations, err := s.flows.CreateItem(ctx, actor, in)
	if err != nil {
		return domain.Item{}, err
	}
	s.stockChanged(ctx, actor, mutations)
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, actor authz.Actor, id int64, patch domain.ItemPatchInput) (domain.Item, error) {
	item, err := s.flows.UpdateItem(ctx, actor, id, patch)
	if err != nil {
		return domain.Item{}, err
	}
	// Reorder limits feed the low-stock list.
	s.cache.Delete(ctx, cache.KeyLowStock)
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, actor authz.Actor, id int64) error {
	if err := s.flows.DeleteItem(ctx, actor, id); err != nil {
		return err
	}
	s.cache.Delete(ctx, cache.KeyInventorySummary, cache.KeyLowStock)
	return nil
}

// ImportItems applies registry rows one transaction per row. Known codes get
// their descriptive fields and limits updated; unknown codes are created with
// their opening quantity. The counts so far are returned with the first error.
// A second import started while one runs fails with a ConcurrencyError.
func (s *Service) ImportItems(ctx context.Context, actor authz.Actor, rows []domain.ItemImportRow) (domain.ItemImportResult, error) {
	var result domain.ItemImportResult
	if len(rows) == 0 {
		return result, domain.Invalid("rows", "import file has no data rows")
	}
	if err := authz.Require(actor, authz.ManageItems); err != nil {
		return result, err
	}
	release, err := s.cache.Obtain(ctx, cache.KeyItemImportLock, importLockTTL)
	if err != nil {
		return result, &domain.ConcurrencyError{Op: "item.import", Err: err}
	}
	defer release()

	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}
	existing, err := s.store.ItemsByCode(ctx, codes)
	if err != nil {
		return result, err
	}

	var touched []domain.StockMutation
	defer func() {
		if result.Created+result.Updated > 0 {
			s.stockChanged(ctx, actor, touched)
		}
	}()

	for i, row := range rows {
		if item, ok := existing[row.Code]; ok {
			name, unit, category := row.Name, row.Unit, row.Category
			minStock, maxStock := row.MinStock, row.MaxStock
			if _, err := s.flows.UpdateItem(ctx, actor, item.ID, domain.ItemPatchInput{
				Name:     &name,
				Unit:     &unit,
				Category: &category,
				MinStock: &minStock,
				MaxStock: &maxStock,
			}); err != nil {
				return result, fmt.Errorf("row %d (%s): %w", i+1, row.Code, err)
			}
			result.Updated++
			continue
		}

		_, mutations, err := s.flows.CreateItem(ctx, actor, domain.ItemCreateInput{
			Code:            row.Code,
			Name:            row.Name,
			Kind:            row.Kind,
			Unit:            row.Unit,
			Category:        row.Category,
			MinStock:        row.MinStock,
			MaxStock:        row.MaxStock,
			OpeningQuantity: row.OpeningQuantity,
			OpeningPrice:    row.Price,
		})
		if err != nil {
			return result, fmt.Errorf("row %d (%s): %w", i+1, row.Code, err)
		}
		touched = append(touched, mutations...)
		result.Created++
	}

	s.log.WithFields(logrus.Fields{
		"actor":   actor.UserID,
		"created": result.Created,
		"updated": result.Updated,
	}).Info("item import finished")
	return result, nil
}

// ImportItemsExcel parses an item workbook and imports it.
func (s *Service) ImportItemsExcel(ctx context.Context, actor authz.Actor, r io.Reader, defaultKind domain.ItemKind) (domain.ItemImportResult, error) {
	rows, err := excel.ParseItemRows(r, defaultKind)
	if err != nil {
		return domain.ItemImportResult{}, domain.Invalid("file", "%v", err)
	}
	return s.ImportItems(ctx, actor, rows)
}

func (s *Service) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	var summary domain.InventorySummary
	if s.cache.GetJSON(ctx, cache.KeyInventorySummary, &summary) {
		return summary, nil
	}
	summary, err := s.store.InventorySummary(ctx)
	if err != nil {
		return domain.InventorySummary{}, err
	}
	s.cache.SetJSON(ctx, cache.KeyInventorySummary, summary)
	return summary, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockRow, error) {
	var rows []domain.LowStockRow
	if s.cache.GetJSON(ctx, cache.KeyLowStock, &rows) {
		return rows, nil
	}
	rows, err := s.store.LowStock(ctx, s.reorderThreshold)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, cache.KeyLowStock, rows)
	return rows, nil
}

func (s *Service) ListMutations(ctx context.Context, actor authz.Actor, filter domain.MutationListFilter) ([]domain.StockMutation, error) {
	if err := authz.Require(actor, authz.ViewLedger); err != nil {
		return nil, err
	}
	return s.store.ListMutations(ctx, filter)
}

// VerifyItemLedger replays the item's mutation chain against its registry
// quantity.
func (s *Service) VerifyItemLedger(ctx context.Context, actor authz.Actor, itemID int64) (domain.LedgerCheck, error) {
	if err := authz.Require(actor, authz.ViewLedger); err != nil {
		return domain.LedgerCheck{}, err
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return domain.LedgerCheck{}, err
	}
	entries, err := s.store.ItemLedger(ctx, itemID)
	if err != nil {
		return domain.LedgerCheck{}, err
	}
	check := ledger.Verify(item, entries)
	if !check.Consistent {
		s.log.WithFields(logrus.Fields{
			"item_id": itemID,
			"problem": check.Problem,
		}).Error("ledger verification failed")
	}
	return check, nil
}

// ExportCountSheet writes a count workbook for items of kind, or every item
// when kind is empty.
func (s *Service) ExportCountSheet(ctx context.Context, actor authz.Actor, kind domain.ItemKind, w io.Writer) error {
	if err := authz.Require(actor, authz.ManageOpname); err != nil {
		return err
	}
	if kind != "" && !kind.Valid() {
		return domain.Invalid("kind", "must be atk or office, got %q", kind)
	}
	items, err := s.store.ItemsByKind(ctx, kind)
	if err != nil {
		return err
	}
	return excel.WriteCountSheet(w, items, time.Now())
}
