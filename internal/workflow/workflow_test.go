package workflow

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	operator   = authz.Actor{UserID: 10, Name: "Operator", Role: authz.RoleOperator}
	kasubag    = authz.Actor{UserID: 20, Name: "Kasubag", Role: authz.RoleKasubag}
	sekretaris = authz.Actor{UserID: 30, Name: "Sekretaris", Role: authz.RoleSekretaris}
	pegawai    = authz.Actor{UserID: 40, Name: "Pegawai", Role: authz.RolePegawai}
)

func newTestEngine(t *testing.T) (*Engine, *fakeDB) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	db := newFakeDB()
	engine := New(db, log)
	engine.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return engine, db
}

func seedItem(t *testing.T, e *Engine, code string, kind domain.ItemKind, qty int, price string) domain.Item {
	t.Helper()
	item, _, err := e.CreateItem(context.Background(), operator, domain.ItemCreateInput{
		Code:            code,
		Name:            "Item " + code,
		Kind:            kind,
		Unit:            "pcs",
		OpeningQuantity: qty,
		OpeningPrice:    decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
	return item
}

// assertLedger checks every entry's arithmetic and that each item's quantity
// equals its latest balance_after.
func assertLedger(t *testing.T, db *fakeDB) {
	t.Helper()
	byItem := make(map[int64][]domain.StockMutation)
	for _, m := range db.mutations() {
		byItem[m.ItemID] = append(byItem[m.ItemID], m)
	}
	for id, entries := range byItem {
		check := ledger.Verify(db.item(id), entries)
		if !check.Consistent {
			t.Fatalf("item %d ledger inconsistent: %s", id, check.Problem)
		}
	}
}

func approveAllLevels(t *testing.T, e *Engine, id int64, level1 []domain.LineQuantity) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.ApproveLevel(ctx, operator, id, domain.Level1, level1); err != nil {
		t.Fatalf("level 1: %v", err)
	}
	if _, err := e.ApproveLevel(ctx, kasubag, id, domain.Level2, nil); err != nil {
		t.Fatalf("level 2: %v", err)
	}
	if _, err := e.ApproveLevel(ctx, sekretaris, id, domain.Level3, nil); err != nil {
		t.Fatalf("level 3: %v", err)
	}
}

func TestCreateItemOpeningGoesThroughLedger(t *testing.T) {
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 12, "2500")

	if item.Quantity != 12 {
		t.Fatalf("quantity = %d, want 12", item.Quantity)
	}
	mutations := db.mutations()
	if len(mutations) != 1 || mutations[0].ReferenceKind != domain.ReferenceOpening || mutations[0].Kind != domain.MutationIn {
		t.Fatalf("unexpected opening mutations %+v", mutations)
	}
	assertLedger(t, db)

	_, _, err := e.CreateItem(context.Background(), operator, domain.ItemCreateInput{
		Code: "ATK-002", Name: "Pen", Kind: domain.ItemKindATK, Unit: "pcs", MinStock: 10, MaxStock: 5,
	})
	if !domain.IsValidation(err) {
		t.Fatalf("max below min: err = %v, want validation error", err)
	}
}

func TestPurchaseCompletionWeightedAverage(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 10, "100")

	p, err := e.CreatePurchase(ctx, operator, domain.PurchaseCreateInput{
		SupplierName: "CV Sumber Makmur",
		PurchaseDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		Lines:        []domain.PurchaseLineInput{{ItemID: item.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(130)}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if !p.TotalValue.Equal(decimal.NewFromInt(650)) {
		t.Fatalf("total = %s, want 650", p.TotalValue)
	}
	if _, err := e.ReceivePurchase(ctx, operator, p.ID, nil); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, mutations, err := e.CompletePurchase(ctx, operator, p.ID); err != nil || len(mutations) != 1 {
		t.Fatalf("complete: mutations %d, err %v", len(mutations), err)
	}

	got := db.item(item.ID)
	if got.Quantity != 15 {
		t.Fatalf("quantity = %d, want 15", got.Quantity)
	}
	if !got.AvgPrice.Equal(decimal.NewFromInt(110)) || !got.LastPrice.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("avg %s last %s, want 110 and 130", got.AvgPrice, got.LastPrice)
	}
	assertLedger(t, db)
}

func TestCompletePurchaseTwice(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 10, "100")

	p, err := e.CreatePurchase(ctx, operator, domain.PurchaseCreateInput{
		SupplierName: "CV Sumber Makmur",
		PurchaseDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		Lines:        []domain.PurchaseLineInput{{ItemID: item.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(130)}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if _, _, err := e.CompletePurchase(ctx, operator, p.ID); !domain.IsState(err) {
		t.Fatalf("complete draft: err = %v, want state error", err)
	}
	if _, err := e.ReceivePurchase(ctx, operator, p.ID, nil); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, _, err := e.CompletePurchase(ctx, operator, p.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	before := db.item(item.ID)

	if _, _, err := e.CompletePurchase(ctx, operator, p.ID); !domain.IsState(err) {
		t.Fatalf("second complete: err = %v, want state error", err)
	}
	if _, err := e.ReceivePurchase(ctx, operator, p.ID, nil); !domain.IsState(err) {
		t.Fatalf("receive after completion: err = %v, want state error", err)
	}
	after := db.item(item.ID)
	if after.Quantity != before.Quantity || !after.AvgPrice.Equal(before.AvgPrice) {
		t.Fatalf("second complete changed item: %+v -> %+v", before, after)
	}
	if n := len(db.mutations()); n != 2 {
		t.Fatalf("mutations = %d, want opening + one purchase entry", n)
	}
}

func TestReceiveSkipsUndeliveredLines(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	paper := seedItem(t, e, "ATK-001", domain.ItemKindATK, 0, "0")
	toner := seedItem(t, e, "ATK-002", domain.ItemKindATK, 0, "0")

	p, err := e.CreatePurchase(ctx, operator, domain.PurchaseCreateInput{
		SupplierName: "PT Kertas",
		PurchaseDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		Lines: []domain.PurchaseLineInput{
			{ItemID: paper.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(45000)},
			{ItemID: toner.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(350000)},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if _, err := e.ReceivePurchase(ctx, operator, p.ID, []domain.ReceivedQuantity{{LineID: 999, Quantity: 1}}); !domain.IsNotFound(err) {
		t.Fatalf("foreign line: err = %v, want not found", err)
	}
	received := []domain.ReceivedQuantity{
		{LineID: p.Lines[0].ID, Quantity: 4},
		{LineID: p.Lines[1].ID, Quantity: 0},
	}
	if _, err := e.ReceivePurchase(ctx, operator, p.ID, received); err != nil {
		t.Fatalf("receive: %v", err)
	}
	_, mutations, err := e.CompletePurchase(ctx, operator, p.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(mutations) != 1 || mutations[0].ItemID != paper.ID || mutations[0].Quantity != 4 {
		t.Fatalf("unexpected mutations %+v", mutations)
	}
	if got := db.item(toner.ID); got.Quantity != 0 || !got.LastPrice.IsZero() {
		t.Fatalf("undelivered line touched toner: %+v", got)
	}
	assertLedger(t, db)
}

func TestReceiveCannotExceedOrdered(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 0, "0")

	p, err := e.CreatePurchase(ctx, operator, domain.PurchaseCreateInput{
		SupplierName: "PT Kertas",
		PurchaseDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		Lines:        []domain.PurchaseLineInput{{ItemID: item.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(45000)}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	lineID := p.Lines[0].ID
	if _, err := e.ReceivePurchase(ctx, operator, p.ID, []domain.ReceivedQuantity{{LineID: lineID, Quantity: 500}}); !domain.IsValidation(err) {
		t.Fatalf("receive 500 of 2: err = %v, want validation error", err)
	}
	if _, _, err := e.CompletePurchase(ctx, operator, p.ID); !domain.IsState(err) {
		t.Fatalf("complete after refused receipt: err = %v, want state error", err)
	}

	if _, err := e.ReceivePurchase(ctx, operator, p.ID, []domain.ReceivedQuantity{{LineID: lineID, Quantity: 2}}); err != nil {
		t.Fatalf("receive full line: %v", err)
	}
	if _, _, err := e.CompletePurchase(ctx, operator, p.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := db.item(item.ID).Quantity; got != 2 {
		t.Fatalf("quantity = %d, want 2", got)
	}
	assertLedger(t, db)
}

func TestDirectApprovalClampsToStock(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "KTR-001", domain.ItemKindOffice, 3, "15000")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestDirect,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, _, err := e.ApproveDirect(ctx, pegawai, r.ID); !domain.IsPermission(err) {
		t.Fatalf("pegawai approving: err = %v, want permission error", err)
	}

	approved, mutations, err := e.ApproveDirect(ctx, operator, r.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.RequestCompleted || approved.ApprovedBy == nil || *approved.ApprovedBy != operator.UserID {
		t.Fatalf("unexpected header %+v", approved)
	}
	line := approved.Lines[0]
	if *line.GivenQuantity != 3 || *line.ApprovedQuantity != 5 {
		t.Fatalf("line approved %d given %d, want 5 and 3", *line.ApprovedQuantity, *line.GivenQuantity)
	}
	if len(mutations) != 1 || mutations[0].Kind != domain.MutationOut || mutations[0].Quantity != 3 {
		t.Fatalf("unexpected mutations %+v", mutations)
	}
	if got := db.item(item.ID).Quantity; got != 0 {
		t.Fatalf("quantity = %d, want 0", got)
	}
	assertLedger(t, db)

	if _, _, err := e.ApproveDirect(ctx, operator, r.ID); !domain.IsState(err) {
		t.Fatalf("second approve: err = %v, want state error", err)
	}
}

func TestDirectApprovalWithoutStock(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "KTR-001", domain.ItemKindOffice, 0, "0")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestDirect,
		Department: "Kesekretariatan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	approved, mutations, err := e.ApproveDirect(ctx, operator, r.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(mutations) != 0 || *approved.Lines[0].GivenQuantity != 0 {
		t.Fatalf("nothing on hand must give 0 without a ledger entry, got %+v", mutations)
	}
	if n := len(db.mutations()); n != 0 {
		t.Fatalf("ledger has %d entries, want 0", n)
	}
}

func TestRequestItemKindMustMatchVariant(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	office := seedItem(t, e, "KTR-001", domain.ItemKindOffice, 1, "0")

	_, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: office.ID, Quantity: 1}},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDistributeClampsToApproved(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 20, "3000")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	lineID := r.Lines[0].ID
	approveAllLevels(t, e, r.ID, []domain.LineQuantity{{LineID: lineID, Quantity: 6}})

	if _, _, err := e.Distribute(ctx, operator, r.ID, []domain.LineQuantity{{LineID: lineID, Quantity: 8}}); !domain.IsValidation(err) {
		t.Fatalf("given above approved: err = %v, want validation error", err)
	}
	if got := db.request(r.ID).Status; got != domain.RequestLevel3Approved {
		t.Fatalf("status after refused distribution = %s", got)
	}
	if got := db.item(item.ID).Quantity; got != 20 {
		t.Fatalf("refused distribution moved stock to %d", got)
	}

	distributed, mutations, err := e.Distribute(ctx, operator, r.ID, []domain.LineQuantity{{LineID: lineID, Quantity: 6}})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if distributed.Status != domain.RequestDistributed || len(mutations) != 1 {
		t.Fatalf("status %s, mutations %d", distributed.Status, len(mutations))
	}
	if got := db.item(item.ID).Quantity; got != 14 {
		t.Fatalf("quantity = %d, want 14", got)
	}
	assertLedger(t, db)

	if _, err := e.ConfirmReceive(ctx, pegawai, r.ID); err != nil {
		t.Fatalf("confirm receive: %v", err)
	}
	if got := db.request(r.ID).Status; got != domain.RequestReceived {
		t.Fatalf("status = %s, want received", got)
	}
}

func TestDistributeCutsToStockOnHand(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 4, "3000")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	approveAllLevels(t, e, r.ID, nil)

	distributed, _, err := e.Distribute(ctx, operator, r.ID, nil)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	line := distributed.Lines[0]
	if *line.ApprovedQuantity != 10 || *line.GivenQuantity != 4 {
		t.Fatalf("approved %d given %d, want 10 and 4", *line.ApprovedQuantity, *line.GivenQuantity)
	}
	if got := db.item(item.ID).Quantity; got != 0 {
		t.Fatalf("quantity = %d, want 0", got)
	}
}

func TestDistributeRollsBackEarlierLines(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	first := seedItem(t, e, "ATK-001", domain.ItemKindATK, 10, "0")
	second := seedItem(t, e, "ATK-002", domain.ItemKindATK, 10, "0")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines: []domain.RequestLineInput{
			{ItemID: first.ID, Quantity: 3},
			{ItemID: second.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	approveAllLevels(t, e, r.ID, nil)
	entries := len(db.mutations())

	given := []domain.LineQuantity{
		{LineID: r.Lines[0].ID, Quantity: 3},
		{LineID: r.Lines[1].ID, Quantity: 5},
	}
	if _, _, err := e.Distribute(ctx, operator, r.ID, given); !domain.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got := db.item(first.ID).Quantity; got != 10 {
		t.Fatalf("first line kept its deduction: quantity %d", got)
	}
	if got := len(db.mutations()); got != entries {
		t.Fatalf("ledger grew from %d to %d on a failed call", entries, got)
	}
}

func TestApprovalLevelsInOrder(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 5, "0")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := e.ApproveLevel(ctx, kasubag, r.ID, domain.Level2, nil); !domain.IsState(err) {
		t.Fatalf("level 2 before level 1: err = %v, want state error", err)
	}
	if _, err := e.ApproveLevel(ctx, kasubag, r.ID, domain.Level1, nil); !domain.IsPermission(err) {
		t.Fatalf("kasubag on level 1: err = %v, want permission error", err)
	}
	if _, err := e.ApproveLevel(ctx, operator, r.ID, domain.Level1, []domain.LineQuantity{{LineID: r.Lines[0].ID, Quantity: 3}}); !domain.IsValidation(err) {
		t.Fatalf("raising approved quantity: err = %v, want validation error", err)
	}
	approved, err := e.ApproveLevel(ctx, operator, r.ID, domain.Level1, nil)
	if err != nil {
		t.Fatalf("level 1: %v", err)
	}
	if approved.Level1By == nil || *approved.Level1By != operator.UserID || *approved.Lines[0].ApprovedQuantity != 2 {
		t.Fatalf("level 1 stamp or seeded quantity missing: %+v", approved)
	}
	if _, _, err := e.ApproveDirect(ctx, operator, r.ID); !domain.IsValidation(err) {
		t.Fatalf("direct approval of multi-level request: err = %v, want validation error", err)
	}
}

func TestRejectAfterDistribution(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 5, "0")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	approveAllLevels(t, e, r.ID, nil)

	if _, err := e.RejectRequest(ctx, kasubag, r.ID, "anggaran habis"); !domain.IsState(err) {
		t.Fatalf("reject after level 3: err = %v, want state error", err)
	}
	if _, _, err := e.Distribute(ctx, operator, r.ID, nil); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if _, err := e.RejectRequest(ctx, kasubag, r.ID, "anggaran habis"); !domain.IsState(err) {
		t.Fatalf("reject after distribution: err = %v, want state error", err)
	}
	if got := db.request(r.ID).Status; got != domain.RequestDistributed {
		t.Fatalf("status = %s, want distributed", got)
	}
}

func TestRejectPendingRequest(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 5, "0")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := e.RejectRequest(ctx, kasubag, r.ID, " "); !domain.IsValidation(err) {
		t.Fatalf("blank reason: err = %v, want validation error", err)
	}
	rejected, err := e.RejectRequest(ctx, kasubag, r.ID, "stok cukup di ruangan")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.RequestRejected || *rejected.RejectionReason != "stok cukup di ruangan" {
		t.Fatalf("unexpected header %+v", rejected)
	}
	if got := db.item(item.ID).Quantity; got != 5 {
		t.Fatalf("rejection moved stock to %d", got)
	}
	if err := e.DeleteRequest(ctx, pegawai, r.ID); !domain.IsState(err) {
		t.Fatalf("delete rejected request: err = %v, want state error", err)
	}
}

func TestConfirmReceiveByOtherUser(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 5, "0")

	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestMultiLevel,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	approveAllLevels(t, e, r.ID, nil)
	if _, _, err := e.Distribute(ctx, operator, r.ID, nil); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	colleague := authz.Actor{UserID: 41, Role: authz.RolePegawai}
	if _, err := e.ConfirmReceive(ctx, colleague, r.ID); !domain.IsPermission(err) {
		t.Fatalf("err = %v, want permission error", err)
	}
}

func TestOpnameApprovalSkipsZeroVariance(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	steady := seedItem(t, e, "ATK-001", domain.ItemKindATK, 10, "0")
	short := seedItem(t, e, "ATK-002", domain.ItemKindATK, 8, "0")

	o, err := e.CreateOpname(ctx, operator, domain.OpnameCreateInput{
		CountDate: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Period:    "2026-02",
		Lines: []domain.OpnameCountInput{
			{ItemID: steady.ID, PhysicalQuantity: 10},
			{ItemID: short.ID, PhysicalQuantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("create opname: %v", err)
	}
	if o.Lines[1].SystemQuantity != 8 || o.Lines[1].Variance() != -3 {
		t.Fatalf("snapshot %d variance %d", o.Lines[1].SystemQuantity, o.Lines[1].Variance())
	}
	if _, _, err := e.ApproveOpname(ctx, kasubag, o.ID); !domain.IsState(err) {
		t.Fatalf("approve draft: err = %v, want state error", err)
	}
	if _, err := e.SubmitOpname(ctx, operator, o.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.UpdateCounts(ctx, operator, o.ID, []domain.OpnameCountInput{{ItemID: short.ID, PhysicalQuantity: 1}}); !domain.IsState(err) {
		t.Fatalf("edit after submit: err = %v, want state error", err)
	}
	if _, _, err := e.ApproveOpname(ctx, operator, o.ID); !domain.IsPermission(err) {
		t.Fatalf("operator approving: err = %v, want permission error", err)
	}

	entries := len(db.mutations())
	approved, mutations, err := e.ApproveOpname(ctx, kasubag, o.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.OpnameApproved || approved.ApprovedBy == nil {
		t.Fatalf("unexpected header %+v", approved)
	}
	if len(mutations) != 1 || mutations[0].ItemID != short.ID || mutations[0].Quantity != -3 || mutations[0].Kind != domain.MutationAdjustment {
		t.Fatalf("unexpected mutations %+v", mutations)
	}
	if got := len(db.mutations()); got != entries+1 {
		t.Fatalf("ledger grew by %d, want 1", got-entries)
	}
	if db.item(short.ID).Quantity != 5 || db.item(steady.ID).Quantity != 10 {
		t.Fatalf("quantities %d/%d, want 10/5", db.item(steady.ID).Quantity, db.item(short.ID).Quantity)
	}
	assertLedger(t, db)
}

func TestReopenOpnameAfterStockMoved(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)
	item := seedItem(t, e, "KTR-001", domain.ItemKindOffice, 8, "0")

	o, err := e.CreateOpname(ctx, operator, domain.OpnameCreateInput{
		CountDate: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Period:    "2026-02",
		Lines:     []domain.OpnameCountInput{{ItemID: item.ID, PhysicalQuantity: 5}},
	})
	if err != nil {
		t.Fatalf("create opname: %v", err)
	}
	r, err := e.CreateRequest(ctx, pegawai, domain.RequestCreateInput{
		Variant:    domain.RequestDirect,
		Department: "Kepaniteraan",
		Lines:      []domain.RequestLineInput{{ItemID: item.ID, Quantity: 7}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, _, err := e.ApproveDirect(ctx, operator, r.ID); err != nil {
		t.Fatalf("approve request: %v", err)
	}
	if _, err := e.SubmitOpname(ctx, operator, o.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := e.ApproveOpname(ctx, kasubag, o.ID); !domain.IsValidation(err) {
		t.Fatalf("approve with variance below stock: err = %v, want validation error", err)
	}
	if _, err := e.ReopenOpname(ctx, pegawai, o.ID); !domain.IsPermission(err) {
		t.Fatalf("pegawai reopening: err = %v, want permission error", err)
	}

	reopened, err := e.ReopenOpname(ctx, operator, o.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != domain.OpnameDraft || reopened.SubmittedAt != nil {
		t.Fatalf("unexpected header %+v", reopened)
	}
	if got := reopened.Lines[0].SystemQuantity; got != 1 {
		t.Fatalf("system snapshot = %d, want 1", got)
	}
	if _, err := e.ReopenOpname(ctx, operator, o.ID); !domain.IsState(err) {
		t.Fatalf("reopen draft: err = %v, want state error", err)
	}

	if _, err := e.UpdateCounts(ctx, operator, o.ID, []domain.OpnameCountInput{{ItemID: item.ID, PhysicalQuantity: 0}}); err != nil {
		t.Fatalf("recount: %v", err)
	}
	if _, err := e.SubmitOpname(ctx, operator, o.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	_, mutations, err := e.ApproveOpname(ctx, kasubag, o.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(mutations) != 1 || mutations[0].Quantity != -1 {
		t.Fatalf("unexpected mutations %+v", mutations)
	}
	if got := db.item(item.ID).Quantity; got != 0 {
		t.Fatalf("quantity = %d, want 0", got)
	}
	assertLedger(t, db)
}

func TestUpdateCountsInDraft(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	item := seedItem(t, e, "ATK-001", domain.ItemKindATK, 10, "0")
	other := seedItem(t, e, "ATK-002", domain.ItemKindATK, 1, "0")

	o, err := e.CreateOpname(ctx, operator, domain.OpnameCreateInput{
		CountDate: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Period:    "2026-02",
		Lines:     []domain.OpnameCountInput{{ItemID: item.ID, PhysicalQuantity: 10}},
	})
	if err != nil {
		t.Fatalf("create opname: %v", err)
	}
	note := "dus rusak"
	updated, err := e.UpdateCounts(ctx, operator, o.ID, []domain.OpnameCountInput{
		{ItemID: item.ID, PhysicalQuantity: 7, Note: &note, Photos: []string{"https://files.example/opname/1.jpg"}},
	})
	if err != nil {
		t.Fatalf("update counts: %v", err)
	}
	if updated.Lines[0].Variance() != -3 || len(updated.Lines[0].Photos) != 1 {
		t.Fatalf("unexpected line %+v", updated.Lines[0])
	}
	if _, err := e.UpdateCounts(ctx, operator, o.ID, []domain.OpnameCountInput{{ItemID: other.ID, PhysicalQuantity: 1}}); !domain.IsValidation(err) {
		t.Fatalf("count for item outside opname: err = %v, want validation error", err)
	}
	if err := e.DeleteOpname(ctx, operator, o.ID); err != nil {
		t.Fatalf("delete draft opname: %v", err)
	}
}

func TestDeleteItemWithLedgerHistory(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	used := seedItem(t, e, "ATK-001", domain.ItemKindATK, 3, "0")
	fresh := seedItem(t, e, "ATK-002", domain.ItemKindATK, 0, "0")

	if err := e.DeleteItem(ctx, operator, used.ID); !domain.IsState(err) {
		t.Fatalf("delete item with ledger entries: err = %v, want state error", err)
	}
	if err := e.DeleteItem(ctx, operator, fresh.ID); err != nil {
		t.Fatalf("delete unused item: %v", err)
	}
	if err := e.DeleteItem(ctx, operator, fresh.ID); !domain.IsNotFound(err) {
		t.Fatalf("delete twice: err = %v, want not found", err)
	}
}

func TestDocumentNumber(t *testing.T) {
	got := documentNumber("PB", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if len(got) != len("PB-20260301-")+8 || got[:12] != "PB-20260301-" {
		t.Fatalf("unexpected number %q", got)
	}
}
