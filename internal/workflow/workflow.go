// Package workflow runs the purchase, request, opname and item-opening state
// machines. Every call checks the actor's capability, opens one transaction,
// locks the header and item rows it touches, and writes stock only through
// the ledger.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tx is the write surface of one workflow transaction. Lock* methods hold the
// row (and, for headers, return the lines) until the transaction ends.
type Tx interface {
	ledger.Store

	InsertItem(ctx context.Context, item *domain.Item) error
	UpdateItemDetails(ctx context.Context, item domain.Item) error
	SetItemCost(ctx context.Context, id int64, lastPrice, avgPrice decimal.Decimal) error
	ItemHasMutations(ctx context.Context, id int64) (bool, error)
	DeleteItem(ctx context.Context, id int64) error

	InsertPurchase(ctx context.Context, p *domain.Purchase) error
	LockPurchase(ctx context.Context, id int64) (domain.Purchase, error)
	SetPurchaseLineReceived(ctx context.Context, lineID int64, quantity int) error
	UpdatePurchaseState(ctx context.Context, p domain.Purchase) error
	DeletePurchase(ctx context.Context, id int64) error

	InsertRequest(ctx context.Context, r *domain.Request) error
	LockRequest(ctx context.Context, id int64) (domain.Request, error)
	UpdateRequestLine(ctx context.Context, line domain.RequestLine) error
	UpdateRequestState(ctx context.Context, r domain.Request) error
	DeleteRequest(ctx context.Context, id int64) error

	InsertOpname(ctx context.Context, o *domain.StockOpname) error
	LockOpname(ctx context.Context, id int64) (domain.StockOpname, error)
	UpdateOpnameLine(ctx context.Context, line domain.StockOpnameLine) error
	UpdateOpnameState(ctx context.Context, o domain.StockOpname) error
	DeleteOpname(ctx context.Context, id int64) error
}

// Runner commits fn's writes atomically or not at all. op names the call in
// errors the store raises when it cannot serialize the transaction.
type Runner interface {
	InTx(ctx context.Context, op string, fn func(tx Tx) error) error
}

type Engine struct {
	runner Runner
	log    *logrus.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func New(runner Runner, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		runner: runner,
		log:    log,
		tracer: otel.Tracer("simbara/workflow"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) run(ctx context.Context, op string, actor authz.Actor, c authz.Capability, fn func(ctx context.Context, tx Tx) error) error {
	if err := authz.Require(actor, c); err != nil {
		return err
	}

	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int64("actor.id", actor.UserID),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	err := e.runner.InTx(ctx, op, func(tx Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (e *Engine) logged(workflow, op string, id int64, actor authz.Actor) *logrus.Entry {
	return e.log.WithFields(logrus.Fields{
		"workflow": workflow,
		"op":       op,
		"id":       id,
		"actor":    actor.UserID,
	})
}

// documentNumber renders PREFIX-YYYYMMDD-XXXXXXXX.
func documentNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}

func timePtr(t time.Time) *time.Time { return &t }

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }

func quantityMap(entries []domain.LineQuantity) (map[int64]int, error) {
	out := make(map[int64]int, len(entries))
	for _, entry := range entries {
		if _, dup := out[entry.LineID]; dup {
			return nil, domain.Invalid("lines", "line %d given more than once", entry.LineID)
		}
		if entry.Quantity < 0 {
			return nil, domain.Invalid("quantity", "line %d: quantity cannot be negative", entry.LineID)
		}
		out[entry.LineID] = entry.Quantity
	}
	return out, nil
}
