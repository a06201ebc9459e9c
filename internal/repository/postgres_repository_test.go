package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/db"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
	"github.com/backuppapnj/simbara-new-sub003/internal/workflow"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code  string
		check func(error) bool
	}{
		{"40001", domain.IsConcurrency},
		{"40P01", domain.IsConcurrency},
		{"55P03", domain.IsConcurrency},
		{"23505", domain.IsValidation},
		{"23514", domain.IsValidation},
	}
	for _, tc := range cases {
		err := fmt.Errorf("commit: %w", &pgconn.PgError{Code: tc.code, ConstraintName: "items_code_key"})
		if got := classify("purchase.complete", err); !tc.check(got) {
			t.Fatalf("code %s classified as %T (%v)", tc.code, got, got)
		}
	}

	plain := errors.New("connection reset")
	if got := classify("op", plain); got != plain {
		t.Fatalf("non-postgres error must pass through, got %v", got)
	}
	state := domain.InvalidState("purchase", 1, "draft", "complete")
	if got := classify("op", state); !domain.IsState(got) {
		t.Fatalf("domain error must pass through, got %v", got)
	}
}

func TestConstraintField(t *testing.T) {
	if got := constraintField(&pgconn.PgError{ConstraintName: "items_code_key"}); got != "code" {
		t.Fatalf("field = %q, want code", got)
	}
	if got := constraintField(&pgconn.PgError{ColumnName: "quantity", ConstraintName: "x"}); got != "quantity" {
		t.Fatalf("field = %q, want quantity", got)
	}
}

func TestNormalizePaging(t *testing.T) {
	if normalizeLimit(0) != 200 || normalizeLimit(5000) != 1000 || normalizeLimit(50) != 50 {
		t.Fatalf("unexpected limit normalization")
	}
	if normalizeOffset(-3) != 0 || normalizeOffset(7) != 7 {
		t.Fatalf("unexpected offset normalization")
	}
}

func openIntegrationRepo(t *testing.T) *Repository {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and DATABASE_URL to run against PostgreSQL")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, db.PoolOptions{LockTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)
	if _, err := db.RunMigrations(ctx, pool, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(pool)
}

func TestPurchaseFlowAgainstPostgres(t *testing.T) {
	repo := openIntegrationRepo(t)
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	engine := workflow.New(repo, log)
	actor := authz.Actor{UserID: 1, Role: authz.RoleSuperAdmin}

	code := fmt.Sprintf("IT-%d", time.Now().UnixNano())
	item, _, err := engine.CreateItem(ctx, actor, domain.ItemCreateInput{
		Code:            code,
		Name:            "Kertas HVS A4",
		Kind:            domain.ItemKindATK,
		Unit:            "rim",
		OpeningQuantity: 10,
		OpeningPrice:    decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	p, err := engine.CreatePurchase(ctx, actor, domain.PurchaseCreateInput{
		SupplierName: "CV Integrasi",
		PurchaseDate: time.Now().UTC().Truncate(24 * time.Hour),
		Lines:        []domain.PurchaseLineInput{{ItemID: item.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(130)}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if _, err := engine.ReceivePurchase(ctx, actor, p.ID, nil); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, _, err := engine.CompletePurchase(ctx, actor, p.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, _, err := engine.CompletePurchase(ctx, actor, p.ID); !domain.IsState(err) {
		t.Fatalf("second complete: err = %v, want state error", err)
	}

	got, err := repo.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Quantity != 15 || !got.AvgPrice.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("quantity %d avg %s, want 15 and 110", got.Quantity, got.AvgPrice)
	}

	entries, err := repo.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if check := ledger.Verify(got, entries); !check.Consistent {
		t.Fatalf("ledger inconsistent: %+v", check)
	}

	if _, err := repo.pool.Exec(ctx, "DELETE FROM stock_mutations WHERE item_id = $1", item.ID); err == nil {
		t.Fatalf("ledger rows must not be deletable")
	}
}

func TestDuplicateItemCodeAgainstPostgres(t *testing.T) {
	repo := openIntegrationRepo(t)
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	engine := workflow.New(repo, log)
	actor := authz.Actor{UserID: 1, Role: authz.RoleSuperAdmin}

	input := domain.ItemCreateInput{
		Code: fmt.Sprintf("DUP-%d", time.Now().UnixNano()),
		Name: "Map Plastik",
		Kind: domain.ItemKindOffice,
		Unit: "pcs",
	}
	if _, _, err := engine.CreateItem(ctx, actor, input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, _, err := engine.CreateItem(ctx, actor, input); !domain.IsValidation(err) {
		t.Fatalf("duplicate code: err = %v, want validation error", err)
	}
}
