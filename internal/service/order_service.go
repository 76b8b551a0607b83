package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventra-api/internal/events"
	"inventra-api/internal/model"
	"inventra-api/internal/repository"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

// Metrics receives one call per order operation
type Metrics interface {
	RecordOrderOperation(operation string, success bool)
}

type noMetrics struct{}

func (noMetrics) RecordOrderOperation(string, bool) {}

type OrderService interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest, actor Actor) (*model.Order, error)
	CompleteOrder(ctx context.Context, orderID uint, actor Actor) error
	CancelOrder(ctx context.Context, orderID uint, actor Actor) error
	GetAllOrders(ctx context.Context) ([]OrderView, error)
	GetOrder(ctx context.Context, orderID uint) (*OrderView, error)
}

type OrderLine struct {
	Code     string `json:"code" validate:"required,product_code"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type PlaceOrderRequest struct {
	Name       string           `json:"name" validate:"max=255"`
	PhoneNo    string           `json:"phone_no" validate:"omitempty,max=20"`
	TotalPrice *decimal.Decimal `json:"total_price"`
	Products   []OrderLine      `json:"products" validate:"dive"`
}

type OrderCustomerView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

type OrderItemView struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderView is the shape the order desk renders
type OrderView struct {
	OrderID    uint               `json:"order_id"`
	OrderDate  time.Time          `json:"order_date"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Status     model.OrderStatus  `json:"status"`
	Customer   *OrderCustomerView `json:"customer"`
	Items      []OrderItemView    `json:"items"`
}

type OrderDeps struct {
	Tx        repository.TxManager
	Orders    repository.OrderRepository
	Products  repository.ProductRepository
	Customers repository.CustomerRepository
	Movements repository.StockMovementRepository
	Events    events.Publisher
	Metrics   Metrics
	Timeout   time.Duration
	Now       func() time.Time
}

type orderService struct {
	tx        repository.TxManager
	orders    repository.OrderRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	movements repository.StockMovementRepository
	events    events.Publisher
	metrics   Metrics
	timeout   time.Duration
	now       func() time.Time
}

func NewOrderService(d OrderDeps) OrderService {
	s := &orderService{
		tx:        d.Tx,
		orders:    d.Orders,
		products:  d.Products,
		customers: d.Customers,
		movements: d.Movements,
		events:    d.Events,
		metrics:   d.Metrics,
		timeout:   d.Timeout,
		now:       d.Now,
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	if s.metrics == nil {
		s.metrics = noMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *orderService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// mergeLines validates each line and folds repeated codes into one
func mergeLines(lines []OrderLine) ([]OrderLine, error) {
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		code := strings.ToUpper(strings.TrimSpace(l.Code))
		if code == "" {
			return nil, invalid("product code is required")
		}
		if l.Quantity <= 0 {
			return nil, invalid("quantity for product %s must be greater than zero", code)
		}
		if i, ok := index[code]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[code] = len(merged)
		merged = append(merged, OrderLine{Code: code, Quantity: l.Quantity})
	}
	return merged, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest, actor Actor) (order *model.Order, err error) {
	defer func() { s.metrics.RecordOrderOperation("order_create", err == nil) }()

	// 1. Validasi request
	if req == nil || len(req.Products) == 0 {
		return nil, ErrEmptyCart
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.TotalPrice == nil {
		return nil, invalid("total_price is required")
	}
	if req.TotalPrice.IsNegative() {
		return nil, invalid("total_price must not be negative")
	}
	lines, err := mergeLines(req.Products)
	if err != nil {
		return nil, err
	}
	declared := *req.TotalPrice
	phone := strings.TrimSpace(req.PhoneNo)

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var stockAfter []model.Product
	err = s.tx.WithTransaction(tctx, func(ctx context.Context) error {
		stockAfter = stockAfter[:0]
		codes := make([]string, len(lines))
		for i, l := range lines {
			codes[i] = l.Code
		}

		// 2. Lock semua produk yang diminta
		locked, err := s.products.FindByCodesForUpdate(ctx, codes)
		if err != nil {
			return err
		}
		byCode := make(map[string]model.Product, len(locked))
		for _, p := range locked {
			byCode[p.Code] = p
		}

		// 3. Cek stok dan hitung total dari harga katalog
		total := decimal.Zero
		for _, l := range lines {
			p, ok := byCode[l.Code]
			if !ok {
				return &ProductNotFoundError{Code: l.Code}
			}
			if l.Quantity > p.Quantity {
				return &InsufficientStockError{Code: l.Code, Available: p.Quantity, Requested: l.Quantity}
			}
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		// 4. Total dari client harus sama persis dengan total katalog
		total = total.Round(2)
		if !total.Equal(declared) {
			return &PriceMismatchError{Expected: total, Declared: declared}
		}

		// 5. Customer (optional)
		var customerID *uint
		if phone != "" {
			customer, err := s.customers.FindOrCreateByPhone(ctx, phone, strings.TrimSpace(req.Name))
			if err != nil {
				return fmt.Errorf("resolve customer: %w", err)
			}
			customerID = &customer.ID
		}

		// 6. Header dan item
		order = &model.Order{
			CustomerID: customerID,
			Status:     model.OrderPending,
			TotalPrice: total,
			OrderDate:  s.now(),
			CreatedBy:  actor.ID,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		items := make([]model.OrderItem, len(lines))
		for i, l := range lines {
			p := byCode[l.Code]
			items[i] = model.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  l.Quantity,
				UnitPrice: p.Price,
			}
		}
		if err := s.orders.CreateItems(ctx, items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		order.Items = items

		// 7. Kurangi stok, hanya kalau masih cukup
		for _, l := range lines {
			p := byCode[l.Code]
			if err := s.products.DecrementStock(ctx, p.ID, l.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &InsufficientStockError{Code: l.Code, Available: p.Quantity, Requested: l.Quantity}
				}
				return fmt.Errorf("decrement stock for %s: %w", l.Code, err)
			}
			if err := s.movements.Create(ctx, &model.StockMovement{
				ProductID: p.ID,
				Type:      model.MovementOut,
				Quantity:  l.Quantity,
				Reason:    model.ReasonOrderPlaced,
				OrderID:   &order.ID,
				CreatedBy: actor.ID,
			}); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
			p.Quantity -= l.Quantity
			stockAfter = append(stockAfter, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("order %d placed by %s: %d lines, total %s", order.ID, actor.Email, len(lines), order.TotalPrice.StringFixed(2))
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:    events.OrderCreated,
		Action:  "order_created",
		Data:    map[string]interface{}{"order_id": order.ID, "total_price": order.TotalPrice, "items": order.ItemCount()},
		User:    actorRef(actor),
		Message: fmt.Sprintf("%s placed order #%d", actorName(actor), order.ID),
	})
	s.emitStock(ctx, actor, "order_placed", stockAfter)
	return order, nil
}

func (s *orderService) CompleteOrder(ctx context.Context, orderID uint, actor Actor) (err error) {
	defer func() { s.metrics.RecordOrderOperation("order_complete", err == nil) }()

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.tx.WithTransaction(tctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if err := order.Status.TransitionTo(model.OrderCompleted); err != nil {
			return err
		}
		// Stock already left the shelf at placement
		return s.orders.UpdateStatus(ctx, order.ID, order.Status, model.OrderCompleted)
	})
	if err != nil {
		return err
	}

	log.Infof("order %d completed by %s", orderID, actor.Email)
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:    events.OrderCompleted,
		Action:  "order_completed",
		Data:    map[string]interface{}{"order_id": orderID},
		User:    actorRef(actor),
		Message: fmt.Sprintf("%s completed order #%d", actorName(actor), orderID),
	})
	return nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID uint, actor Actor) (err error) {
	defer func() { s.metrics.RecordOrderOperation("order_cancel", err == nil) }()

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var restored []model.OrderItem
	err = s.tx.WithTransaction(tctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if err := order.Status.TransitionTo(model.OrderCancelled); err != nil {
			return err
		}

		// Kembalikan stok per item, increment atomik di database
		for _, item := range order.Items {
			if err := s.products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%w: id %d", ErrProductNotFound, item.ProductID)
				}
				return fmt.Errorf("restore stock for product %d: %w", item.ProductID, err)
			}
			if err := s.movements.Create(ctx, &model.StockMovement{
				ProductID: item.ProductID,
				Type:      model.MovementIn,
				Quantity:  item.Quantity,
				Reason:    model.ReasonOrderCancelled,
				OrderID:   &order.ID,
				CreatedBy: actor.ID,
			}); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}
		restored = order.Items

		return s.orders.UpdateStatus(ctx, order.ID, order.Status, model.OrderCancelled)
	})
	if err != nil {
		return err
	}

	log.Infof("order %d cancelled by %s, %d lines restocked", orderID, actor.Email, len(restored))
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:    events.OrderCancelled,
		Action:  "order_cancelled",
		Data:    map[string]interface{}{"order_id": orderID},
		User:    actorRef(actor),
		Message: fmt.Sprintf("%s cancelled order #%d", actorName(actor), orderID),
	})

	changes := make([]map[string]interface{}, len(restored))
	for i, it := range restored {
		changes[i] = map[string]interface{}{"product_id": it.ProductID, "restored": it.Quantity}
	}
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:   events.StockUpdated,
		Action: "order_cancelled",
		Data:   changes,
		User:   actorRef(actor),
	})
	return nil
}

func (s *orderService) GetAllOrders(ctx context.Context) ([]OrderView, error) {
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orders, err := s.orders.FindAll(tctx)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, len(orders))
	for i := range orders {
		views[i] = toOrderView(&orders[i])
	}
	return views, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uint) (*OrderView, error) {
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.orders.FindByID(tctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	view := toOrderView(order)
	return &view, nil
}

func (s *orderService) emitStock(ctx context.Context, actor Actor, action string, products []model.Product) {
	if len(products) == 0 {
		return
	}
	changes := make([]map[string]interface{}, len(products))
	for i, p := range products {
		changes[i] = map[string]interface{}{"code": p.Code, "name": p.Name, "quantity": p.Quantity}
	}
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:   events.StockUpdated,
		Action: action,
		Data:   changes,
		User:   actorRef(actor),
	})
}

func toOrderView(o *model.Order) OrderView {
	v := OrderView{
		OrderID:    o.ID,
		OrderDate:  o.OrderDate,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		Items:      make([]OrderItemView, 0, len(o.Items)),
	}
	if o.Customer != nil {
		v.Customer = &OrderCustomerView{
			ID:          o.Customer.ID,
			Name:        o.Customer.Name,
			PhoneNumber: o.Customer.PhoneNumber,
		}
	}
	for _, it := range o.Items {
		iv := OrderItemView{
			ProductID: it.ProductID,
			Price:     it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		}
		if it.Product != nil {
			iv.Name = it.Product.Name
			iv.Code = it.Product.Code
			iv.ImageURL = it.Product.ImageURL
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func actorRef(a Actor) *Actor {
	if a.ID == "" {
		return nil
	}
	return &a
}

func actorName(a Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return "Someone"
}
