package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

// fakeDB is a transactional in-memory store: each InTx works on a copy that
// replaces the committed state only when fn succeeds.
type fakeDB struct {
	mu    sync.Mutex
	state *fakeState
}

func newFakeDB() *fakeDB {
	return &fakeDB{state: &fakeState{
		items:     make(map[int64]domain.Item),
		purchases: make(map[int64]domain.Purchase),
		requests:  make(map[int64]domain.Request),
		opnames:   make(map[int64]domain.StockOpname),
	}}
}

func (db *fakeDB) InTx(_ context.Context, _ string, fn func(tx Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	db.state = work
	return nil
}

func (db *fakeDB) item(id int64) domain.Item {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.items[id]
}

func (db *fakeDB) mutations() []domain.StockMutation {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.StockMutation(nil), db.state.mutations...)
}

func (db *fakeDB) request(id int64) domain.Request {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.requests[id]
}

type fakeState struct {
	nextID    int64
	items     map[int64]domain.Item
	mutations []domain.StockMutation
	purchases map[int64]domain.Purchase
	requests  map[int64]domain.Request
	opnames   map[int64]domain.StockOpname
}

func (s *fakeState) clone() *fakeState {
	out := &fakeState{
		nextID:    s.nextID,
		items:     make(map[int64]domain.Item, len(s.items)),
		mutations: append([]domain.StockMutation(nil), s.mutations...),
		purchases: make(map[int64]domain.Purchase, len(s.purchases)),
		requests:  make(map[int64]domain.Request, len(s.requests)),
		opnames:   make(map[int64]domain.StockOpname, len(s.opnames)),
	}
	for id, item := range s.items {
		out.items[id] = item
	}
	for id, p := range s.purchases {
		p.Lines = append([]domain.PurchaseLine(nil), p.Lines...)
		out.purchases[id] = p
	}
	for id, r := range s.requests {
		r.Lines = append([]domain.RequestLine(nil), r.Lines...)
		out.requests[id] = r
	}
	for id, o := range s.opnames {
		o.Lines = append([]domain.StockOpnameLine(nil), o.Lines...)
		out.opnames[id] = o
	}
	return out
}

func (s *fakeState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeState) LockItem(_ context.Context, id int64) (domain.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, domain.NotFound("item", id)
	}
	return item, nil
}

func (s *fakeState) SetItemQuantity(_ context.Context, id int64, quantity int) error {
	item := s.items[id]
	item.Quantity = quantity
	s.items[id] = item
	return nil
}

func (s *fakeState) InsertMutation(_ context.Context, m *domain.StockMutation) error {
	m.ID = s.id()
	m.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.mutations = append(s.mutations, *m)
	return nil
}

func (s *fakeState) InsertItem(_ context.Context, item *domain.Item) error {
	for _, existing := range s.items {
		if existing.Code == item.Code {
			return domain.Invalid("code", "%s already exists", item.Code)
		}
	}
	item.ID = s.id()
	s.items[item.ID] = *item
	return nil
}

func (s *fakeState) UpdateItemDetails(_ context.Context, item domain.Item) error {
	stored := s.items[item.ID]
	item.Quantity = stored.Quantity
	s.items[item.ID] = item
	return nil
}

func (s *fakeState) SetItemCost(_ context.Context, id int64, lastPrice, avgPrice decimal.Decimal) error {
	item := s.items[id]
	item.LastPrice = lastPrice
	item.AvgPrice = avgPrice
	s.items[id] = item
	return nil
}

func (s *fakeState) ItemHasMutations(_ context.Context, id int64) (bool, error) {
	for _, m := range s.mutations {
		if m.ItemID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeState) DeleteItem(_ context.Context, id int64) error {
	delete(s.items, id)
	return nil
}

func (s *fakeState) InsertPurchase(_ context.Context, p *domain.Purchase) error {
	p.ID = s.id()
	for i := range p.Lines {
		p.Lines[i].ID = s.id()
		p.Lines[i].PurchaseID = p.ID
	}
	stored := *p
	stored.Lines = append([]domain.PurchaseLine(nil), p.Lines...)
	s.purchases[p.ID] = stored
	return nil
}

func (s *fakeState) LockPurchase(_ context.Context, id int64) (domain.Purchase, error) {
	p, ok := s.purchases[id]
	if !ok {
		return domain.Purchase{}, domain.NotFound("purchase", id)
	}
	p.Lines = append([]domain.PurchaseLine(nil), p.Lines...)
	return p, nil
}

func (s *fakeState) SetPurchaseLineReceived(_ context.Context, lineID int64, quantity int) error {
	for id, p := range s.purchases {
		for i := range p.Lines {
			if p.Lines[i].ID == lineID {
				q := quantity
				p.Lines[i].ReceivedQuantity = &q
				s.purchases[id] = p
				return nil
			}
		}
	}
	return domain.NotFound("purchase line", lineID)
}

func (s *fakeState) UpdatePurchaseState(_ context.Context, p domain.Purchase) error {
	p.Lines = s.purchases[p.ID].Lines
	s.purchases[p.ID] = p
	return nil
}

func (s *fakeState) DeletePurchase(_ context.Context, id int64) error {
	delete(s.purchases, id)
	return nil
}

func (s *fakeState) InsertRequest(_ context.Context, r *domain.Request) error {
	r.ID = s.id()
	for i := range r.Lines {
		r.Lines[i].ID = s.id()
		r.Lines[i].RequestID = r.ID
	}
	stored := *r
	stored.Lines = append([]domain.RequestLine(nil), r.Lines...)
	s.requests[r.ID] = stored
	return nil
}

func (s *fakeState) LockRequest(_ context.Context, id int64) (domain.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return domain.Request{}, domain.NotFound("request", id)
	}
	r.Lines = append([]domain.RequestLine(nil), r.Lines...)
	return r, nil
}

func (s *fakeState) UpdateRequestLine(_ context.Context, line domain.RequestLine) error {
	r := s.requests[line.RequestID]
	for i := range r.Lines {
		if r.Lines[i].ID == line.ID {
			r.Lines[i] = line
			s.requests[r.ID] = r
			return nil
		}
	}
	return domain.NotFound("request line", line.ID)
}

func (s *fakeState) UpdateRequestState(_ context.Context, r domain.Request) error {
	r.Lines = s.requests[r.ID].Lines
	s.requests[r.ID] = r
	return nil
}

func (s *fakeState) DeleteRequest(_ context.Context, id int64) error {
	delete(s.requests, id)
	return nil
}

func (s *fakeState) InsertOpname(_ context.Context, o *domain.StockOpname) error {
	o.ID = s.id()
	for i := range o.Lines {
		o.Lines[i].ID = s.id()
		o.Lines[i].OpnameID = o.ID
	}
	stored := *o
	stored.Lines = append([]domain.StockOpnameLine(nil), o.Lines...)
	s.opnames[o.ID] = stored
	return nil
}

func (s *fakeState) LockOpname(_ context.Context, id int64) (domain.StockOpname, error) {
	o, ok := s.opnames[id]
	if !ok {
		return domain.StockOpname{}, domain.NotFound("stock opname", id)
	}
	o.Lines = append([]domain.StockOpnameLine(nil), o.Lines...)
	return o, nil
}

func (s *fakeState) UpdateOpnameLine(_ context.Context, line domain.StockOpnameLine) error {
	o := s.opnames[line.OpnameID]
	for i := range o.Lines {
		if o.Lines[i].ID == line.ID {
			o.Lines[i] = line
			s.opnames[o.ID] = o
			return nil
		}
	}
	return domain.NotFound("stock opname line", line.ID)
}

func (s *fakeState) UpdateOpnameState(_ context.Context, o domain.StockOpname) error {
	o.Lines = s.opnames[o.ID].Lines
	s.opnames[o.ID] = o
	return nil
}

func (s *fakeState) DeleteOpname(_ context.Context, id int64) error {
	delete(s.opnames, id)
	return nil
}
