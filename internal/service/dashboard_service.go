package service

import (
	"context"
	"time"

	"inventra-api/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	recentOrdersLimit   = 5
	dashboardLowLimit   = 5
	maxStockMovementDay = 366
)

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

type DashboardCounts struct {
	TotalProducts  int64           `json:"totalProducts"`
	TotalOrders    int64           `json:"totalOrders"`
	InventoryValue decimal.Decimal `json:"inventoryValue"`
}

type RecentOrder struct {
	ID       string          `json:"id"`
	Customer string          `json:"customer"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Time     string          `json:"time"`
}

type DashboardLowStock struct {
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

type DashboardStats struct {
	Stats         DashboardCounts     `json:"stats"`
	RecentOrders  []RecentOrder       `json:"recentOrders"`
	LowStockItems []DashboardLowStock `json:"lowStockItems"`
}

type DashboardDeps struct {
	Orders            repository.OrderRepository
	Products          repository.ProductRepository
	Movements         repository.StockMovementRepository
	LowStockThreshold int
	// Location sets the day boundaries of the stock movement chart
	Location *time.Location
	Timeout  time.Duration
	Now      func() time.Time
}

type dashboardService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	threshold int
	loc       *time.Location
	timeout   time.Duration
	now       func() time.Time
}

func NewDashboardService(d DashboardDeps) DashboardService {
	s := &dashboardService{
		orders:    d.Orders,
		products:  d.Products,
		movements: d.Movements,
		threshold: d.LowStockThreshold,
		loc:       d.Location,
		timeout:   d.Timeout,
		now:       d.Now,
	}
	if s.threshold <= 0 {
		s.threshold = 10
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

func (s *dashboardService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxStockMovementDay {
		days = maxStockMovementDay
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	endDate := s.now()
	startDate := endDate.AddDate(0, 0, -days)
	data, err := s.movements.GetDailyMovement(ctx, startDate, endDate, s.loc)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []repository.StockMovementData{}
	}
	return data, nil
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	totalProducts, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalOrders, err := s.orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	value, err := s.products.Valuation(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.orders.FindRecent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, err
	}
	low, err := s.products.FindLowStock(ctx, s.threshold, dashboardLowLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &DashboardStats{
		Stats: DashboardCounts{
			TotalProducts:  totalProducts,
			TotalOrders:    totalOrders,
			InventoryValue: value,
		},
		RecentOrders:  make([]RecentOrder, len(recent)),
		LowStockItems: make([]DashboardLowStock, len(low)),
	}
	for i, o := range recent {
		customer := "Anonymous"
		if o.Customer != nil && o.Customer.Name != "" {
			customer = o.Customer.Name
		}
		stats.RecentOrders[i] = RecentOrder{
			ID:       orderRef(o.ID),
			Customer: customer,
			Status:   string(o.Status),
			Amount:   o.TotalPrice,
			Time:     timeAgo(now, o.OrderDate),
		}
	}
	for i, p := range low {
		stats.LowStockItems[i] = DashboardLowStock{Name: p.Name, Stock: p.Quantity, Threshold: s.threshold}
	}
	return stats, nil
}
