package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"inventra-api/internal/model"
	"inventra-api/internal/repository"

	"github.com/shopspring/decimal"
)

// memStore is a transactional in-memory catalog. A unit of work holds the
// store lock for its whole duration and is rolled back from a snapshot on error.
type memStore struct {
	mu sync.Mutex

	nextID     uint
	products   map[uint]model.Product
	categories map[uint]model.Category
	customers  map[string]model.Customer
	orders     map[uint]model.Order
	items      []model.OrderItem
	movements  []model.StockMovement

	// fail makes the named operation return the error
	fail map[string]error
	once map[string]error
}

type memSnapshot struct {
	nextID     uint
	products   map[uint]model.Product
	categories map[uint]model.Category
	customers  map[string]model.Customer
	orders     map[uint]model.Order
	items      []model.OrderItem
	movements  []model.StockMovement
}

type memTxKey struct{}

var (
	errExplicitID = errors.New("insert with explicit id bypasses the sequence")
	// errSerialization stands in for a 40001 the transaction manager retries
	errSerialization = errors.New("could not serialize access")
)

// retryingTx re-runs the unit once when it fails with errSerialization
type retryingTx struct{ memTx }

func (t retryingTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := t.memTx.WithTransaction(ctx, fn)
	if errors.Is(err, errSerialization) {
		err = t.memTx.WithTransaction(ctx, fn)
	}
	return err
}

// failOnce makes op fail with err on its next call only
func (m *memStore) failOnce(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.once == nil {
		m.once = map[string]error{}
	}
	m.once[op] = err
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     1,
		products:   map[uint]model.Product{},
		categories: map[uint]model.Category{},
		customers:  map[string]model.Customer{},
		orders:     map[uint]model.Order{},
		fail:       map[string]error{},
	}
}

func inMemTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

func (m *memStore) lock(ctx context.Context) func() {
	if inMemTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) failure(op string) error {
	if err, ok := m.once[op]; ok {
		delete(m.once, op)
		return err
	}
	return m.fail[op]
}

func (m *memStore) id() uint {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		nextID:     m.nextID,
		products:   make(map[uint]model.Product, len(m.products)),
		categories: make(map[uint]model.Category, len(m.categories)),
		customers:  make(map[string]model.Customer, len(m.customers)),
		orders:     make(map[uint]model.Order, len(m.orders)),
		items:      append([]model.OrderItem(nil), m.items...),
		movements:  append([]model.StockMovement(nil), m.movements...),
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.categories {
		s.categories[k] = v
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.nextID = s.nextID
	m.products = s.products
	m.categories = s.categories
	m.customers = s.customers
	m.orders = s.orders
	m.items = s.items
	m.movements = s.movements
}

// seed inserts a product directly and returns it
func (m *memStore) seed(code, name, price string, qty int) model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Product{ID: m.id(), Code: code, Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
	m.products[p.ID] = p
	return p
}

func (m *memStore) quantity(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Code == code {
			return p.Quantity
		}
	}
	return -1
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) status(id uint) model.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *memStore) itemsOf(orderID uint) []model.OrderItem {
	var out []model.OrderItem
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out
}

func (m *memStore) withItems(o model.Order) model.Order {
	o.Items = nil
	for _, it := range m.itemsOf(o.ID) {
		if p, ok := m.products[it.ProductID]; ok {
			p := p
			it.Product = &p
		}
		o.Items = append(o.Items, it)
	}
	if o.CustomerID != nil {
		for _, c := range m.customers {
			if c.ID == *o.CustomerID {
				c := c
				o.Customer = &c
			}
		}
	}
	return o
}

// ---- TxManager ----

type memTx struct{ *memStore }

func (t memTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return repository.ErrTransient
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.restore(snap)
		return err
	}
	return nil
}

// ---- ProductRepository ----

type memProducts struct{ *memStore }

func (r memProducts) Create(ctx context.Context, p *model.Product) error {
	defer r.lock(ctx)()
	if err := r.failure("products.Create"); err != nil {
		return err
	}
	// ids come from the sequence only, like a serial column
	if p.ID != 0 {
		return errExplicitID
	}
	for _, existing := range r.products {
		if existing.Code == p.Code {
			return repository.ErrDuplicate
		}
	}
	p.ID = r.id()
	r.products[p.ID] = *p
	return nil
}

func (r memProducts) FindAll(ctx context.Context) ([]model.Product, error) {
	defer r.lock(ctx)()
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memProducts) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	defer r.lock(ctx)()
	for _, p := range r.products {
		if p.Code == code {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memProducts) FindByCodeForUpdate(ctx context.Context, code string) (*model.Product, error) {
	return r.FindByCode(ctx, code)
}

func (r memProducts) FindByCodesForUpdate(ctx context.Context, codes []string) ([]model.Product, error) {
	defer r.lock(ctx)()
	if err := r.failure("products.FindByCodesForUpdate"); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, c := range codes {
		want[c] = true
	}
	var out []model.Product
	for _, p := range r.products {
		if want[p.Code] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memProducts) Update(ctx context.Context, p *model.Product) error {
	defer r.lock(ctx)()
	if _, ok := r.products[p.ID]; !ok {
		return repository.ErrNotFound
	}
	r.products[p.ID] = *p
	return nil
}

func (r memProducts) DeleteByCode(ctx context.Context, code string) error {
	defer r.lock(ctx)()
	for id, p := range r.products {
		if p.Code != code {
			continue
		}
		for _, it := range r.items {
			if it.ProductID == id {
				return repository.ErrReferenced
			}
		}
		delete(r.products, id)
		return nil
	}
	return repository.ErrNotFound
}

func (r memProducts) DecrementStock(ctx context.Context, id uint, qty int) error {
	defer r.lock(ctx)()
	p, ok := r.products[id]
	if !ok || p.Quantity < qty {
		return repository.ErrInsufficientStock
	}
	p.Quantity -= qty
	r.products[id] = p
	return nil
}

func (r memProducts) IncrementStock(ctx context.Context, id uint, qty int) error {
	defer r.lock(ctx)()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Quantity += qty
	r.products[id] = p
	return nil
}

func (r memProducts) FindLowStock(ctx context.Context, threshold, limit int) ([]model.Product, error) {
	defer r.lock(ctx)()
	var out []model.Product
	for _, p := range r.products {
		if p.Quantity < threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity < out[j].Quantity
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memProducts) Count(ctx context.Context) (int64, error) {
	defer r.lock(ctx)()
	return int64(len(r.products)), nil
}

func (r memProducts) Valuation(ctx context.Context) (decimal.Decimal, error) {
	defer r.lock(ctx)()
	total := decimal.Zero
	for _, p := range r.products {
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total, nil
}

// ---- CategoryRepository ----

type memCategories struct{ *memStore }

func (r memCategories) Create(ctx context.Context, c *model.Category) error {
	defer r.lock(ctx)()
	for _, existing := range r.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return repository.ErrDuplicate
		}
	}
	c.ID = r.id()
	r.categories[c.ID] = *c
	return nil
}

func (r memCategories) FindAll(ctx context.Context) ([]model.Category, error) {
	defer r.lock(ctx)()
	var out []model.Category
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCategories) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	defer r.lock(ctx)()
	c, ok := r.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

// ---- CustomerRepository ----

type memCustomers struct{ *memStore }

func (r memCustomers) FindOrCreateByPhone(ctx context.Context, phone, name string) (*model.Customer, error) {
	defer r.lock(ctx)()
	if c, ok := r.customers[phone]; ok {
		return &c, nil
	}
	c := model.Customer{ID: r.id(), PhoneNumber: phone, Name: name}
	r.customers[phone] = c
	return &c, nil
}

// ---- OrderRepository ----

type memOrders struct{ *memStore }

func (r memOrders) Create(ctx context.Context, o *model.Order) error {
	defer r.lock(ctx)()
	if err := r.failure("orders.Create"); err != nil {
		return err
	}
	o.ID = r.id()
	header := *o
	header.Items = nil
	r.orders[o.ID] = header
	return nil
}

func (r memOrders) CreateItems(ctx context.Context, items []model.OrderItem) error {
	defer r.lock(ctx)()
	if err := r.failure("orders.CreateItems"); err != nil {
		return err
	}
	for i := range items {
		items[i].ID = r.id()
		r.items = append(r.items, items[i])
	}
	return nil
}

func (r memOrders) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	defer r.lock(ctx)()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	o = r.withItems(o)
	return &o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	defer r.lock(ctx)()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	o.Items = r.itemsOf(id)
	return &o, nil
}

func (r memOrders) UpdateStatus(ctx context.Context, id uint, from, to model.OrderStatus) error {
	defer r.lock(ctx)()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return repository.ErrStaleState
	}
	o.Status = to
	r.orders[id] = o
	return nil
}

func (r memOrders) sorted(desc bool) []model.Order {
	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, r.withItems(o))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OrderDate.Equal(b.OrderDate) {
			if desc {
				return a.OrderDate.After(b.OrderDate)
			}
			return a.OrderDate.Before(b.OrderDate)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out
}

func (r memOrders) FindAll(ctx context.Context) ([]model.Order, error) {
	defer r.lock(ctx)()
	return r.sorted(true), nil
}

func (r memOrders) FindRecent(ctx context.Context, limit int) ([]model.Order, error) {
	defer r.lock(ctx)()
	out := r.sorted(true)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memOrders) Count(ctx context.Context) (int64, error) {
	defer r.lock(ctx)()
	return int64(len(r.orders)), nil
}

func (r memOrders) FindByDateRange(ctx context.Context, from, to time.Time, statuses ...model.OrderStatus) ([]model.Order, error) {
	defer r.lock(ctx)()
	var out []model.Order
	for _, o := range r.sorted(false) {
		if o.OrderDate.Before(from) || o.OrderDate.After(to) {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if o.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, o)
	}
	return out, nil
}

// ---- StockMovementRepository ----

type memMovements struct{ *memStore }

func (r memMovements) Create(ctx context.Context, mv *model.StockMovement) error {
	defer r.lock(ctx)()
	if err := r.failure("movements.Create"); err != nil {
		return err
	}
	mv.ID = r.id()
	r.movements = append(r.movements, *mv)
	return nil
}

func (r memMovements) GetDailyMovement(ctx context.Context, startDate, endDate time.Time, loc *time.Location) ([]repository.StockMovementData, error) {
	defer r.lock(ctx)()
	byDay := map[string]*repository.StockMovementData{}
	var keys []string
	for _, mv := range r.movements {
		if mv.CreatedAt.Before(startDate) || mv.CreatedAt.After(endDate) {
			continue
		}
		key := mv.CreatedAt.In(loc).Format(dateLayout)
		d, ok := byDay[key]
		if !ok {
			d = &repository.StockMovementData{Date: key}
			byDay[key] = d
			keys = append(keys, key)
		}
		if mv.Type == model.MovementIn {
			d.Inbound += mv.Quantity
		} else {
			d.Outbound += mv.Quantity
		}
	}
	sort.Strings(keys)
	var out []repository.StockMovementData
	for _, k := range keys {
		out = append(out, *byDay[k])
	}
	return out, nil
}

func (r memMovements) FindByProduct(ctx context.Context, productID uint, limit int) ([]model.StockMovement, error) {
	defer r.lock(ctx)()
	var out []model.StockMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].ProductID == productID {
			out = append(out, r.movements[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) movementsOf(productID uint) []model.StockMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StockMovement
	for _, mv := range m.movements {
		if mv.ProductID == productID {
			out = append(out, mv)
		}
	}
	return out
}

var (
	_ repository.TxManager               = memTx{}
	_ repository.ProductRepository       = memProducts{}
	_ repository.CategoryRepository      = memCategories{}
	_ repository.CustomerRepository      = memCustomers{}
	_ repository.OrderRepository         = memOrders{}
	_ repository.StockMovementRepository = memMovements{}
)
