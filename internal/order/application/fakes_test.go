package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

var errBadToken = errors.New("token rejected")

type fakeAuth struct {
	mu     sync.Mutex
	tokens map[string]AuthContext
	calls  int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: map[string]AuthContext{
		"buyer":    {UserID: 7, Email: "buyer@example.com", Role: RoleEndUser},
		"other":    {UserID: 8, Email: "other@example.com", Role: RoleEndUser},
		"merchant": {UserID: 9, Email: "shop@example.com", Role: "MERCHANT"},
		"lower":    {UserID: 7, Email: "buyer@example.com", Role: "end_user"},
	}}
}

func (a *fakeAuth) Validate(_ context.Context, token string) (AuthContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	ac, ok := a.tokens[token]
	if !ok {
		return AuthContext{}, errBadToken
	}
	return ac, nil
}

type stockKey struct {
	product  string
	merchant int64
}

type fakeInventory struct {
	mu        sync.Mutex
	stock     map[stockKey]int
	price     map[stockKey]decimal.Decimal
	malformed map[string]bool
	ledger    map[string]bool
	getErr    error
	decErr    error
	getCalls  int
	decCalls  int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		stock:     map[stockKey]int{},
		price:     map[stockKey]decimal.Decimal{},
		malformed: map[string]bool{},
		ledger:    map[string]bool{},
	}
}

func (f *fakeInventory) set(product string, merchant int64, stock int, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := stockKey{product, merchant}
	f.stock[k] = stock
	f.price[k] = decimal.RequireFromString(price)
}

func (f *fakeInventory) level(product string, merchant int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[stockKey{product, merchant}]
}

func (f *fakeInventory) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.decCalls
}

func (f *fakeInventory) GetStock(_ context.Context, productID string) ([]MerchantStock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.malformed[productID] {
		return nil, ErrMalformedListing
	}
	var out []MerchantStock
	for k, v := range f.stock {
		if k.product == productID {
			out = append(out, MerchantStock{MerchantID: k.merchant, Stock: v, Price: f.price[k]})
		}
	}
	if len(out) == 0 {
		return nil, ErrProductNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantID < out[j].MerchantID })
	return out, nil
}

func (f *fakeInventory) Decrement(_ context.Context, req DecrementRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decCalls++
	if f.decErr != nil {
		return f.decErr
	}
	if f.ledger[req.IdempotencyKey] {
		return nil
	}
	k := stockKey{req.ProductID, req.MerchantID}
	have, ok := f.stock[k]
	if !ok {
		return ErrProductNotFound
	}
	if have < req.Quantity {
		return ErrInsufficientStock
	}
	f.stock[k] = have - req.Quantity
	f.ledger[req.IdempotencyKey] = true
	return nil
}

type cartKey struct {
	user     int64
	product  string
	merchant int64
}

type fakeCarts struct {
	mu     sync.Mutex
	items  map[cartKey]domain.CartItem
	nextID int64
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{items: map[cartKey]domain.CartItem{}}
}

func (c *fakeCarts) Upsert(_ context.Context, item domain.CartItem) (domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cartKey{item.UserID, item.ProductID, item.MerchantID}
	if cur, ok := c.items[k]; ok {
		cur.Quantity += item.Quantity
		c.items[k] = cur
		return cur, nil
	}
	c.nextID++
	item.ID = c.nextID
	c.items[k] = item
	return item, nil
}

func (c *fakeCarts) Find(_ context.Context, userID int64, productID string, merchantID int64) (domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[cartKey{userID, productID, merchantID}]
	if !ok {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	return item, nil
}

func (c *fakeCarts) ListByUser(_ context.Context, userID int64) ([]domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.CartItem
	for k, v := range c.items {
		if k.user == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *fakeCarts) SetQuantity(_ context.Context, item domain.CartItem) (domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cartKey{item.UserID, item.ProductID, item.MerchantID}
	cur, ok := c.items[k]
	if !ok {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	cur.Quantity = item.Quantity
	c.items[k] = cur
	return cur, nil
}

func (c *fakeCarts) Remove(_ context.Context, userID int64, productID string, merchantID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cartKey{userID, productID, merchantID}
	if _, ok := c.items[k]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(c.items, k)
	return nil
}

func (c *fakeCarts) DeleteAllForUser(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if k.user == userID {
			delete(c.items, k)
		}
	}
	return nil
}

func (c *fakeCarts) count(userID int64) int {
	items, _ := c.ListByUser(context.Background(), userID)
	return len(items)
}

type fakeOrders struct {
	mu         sync.Mutex
	carts      *fakeCarts
	nextID     int64
	orders     map[int64]domain.Order
	placeErr   error
	finishErr  error
	placeCalls int
	synced     map[int64][]int
}

func newFakeOrders(carts *fakeCarts) *fakeOrders {
	return &fakeOrders{carts: carts, nextID: 100, orders: map[int64]domain.Order{}, synced: map[int64][]int{}}
}

func (s *fakeOrders) PlaceOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	s.mu.Lock()
	s.placeCalls++
	if s.placeErr != nil {
		s.mu.Unlock()
		return domain.Order{}, s.placeErr
	}
	s.nextID++
	o.ID = s.nextID
	s.orders[o.ID] = o
	s.mu.Unlock()
	_ = s.carts.DeleteAllForUser(ctx, o.UserID)
	return o, nil
}

func (s *fakeOrders) MarkItemSynced(_ context.Context, orderID int64, line int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[orderID]
	for i := range o.Items {
		if o.Items[i].Line == line {
			o.Items[i].StockSynced = true
		}
	}
	s.orders[orderID] = o
	s.synced[orderID] = append(s.synced[orderID], line)
	return nil
}

func (s *fakeOrders) FinishStockSync(_ context.Context, o domain.Order, status domain.StockSyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishErr != nil {
		return s.finishErr
	}
	cur := s.orders[o.ID]
	cur.StockSync = status
	s.orders[o.ID] = cur
	return nil
}

func (s *fakeOrders) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOrders) ListStockSyncPending(_ context.Context, before time.Time, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.StockSync == domain.StockSyncPending && o.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOrders) get(id int64) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *fakeOrders) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
	to   []string
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, o domain.Order, email string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, o.ID)
	n.to = append(n.to, email)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
