package service

import (
	"context"
	"time"

	"inventra-api/internal/model"
	"inventra-api/internal/repository"
)

const (
	topProductsLimit = 3
	weekDays         = 7
)

type ReportService interface {
	LowStock(ctx context.Context) (*LowStockReport, error)
	TodayStats(ctx context.Context) (*SalesTotals, error)
	TopProducts(ctx context.Context) (*TopProductsReport, error)
	WeeklyRevenue(ctx context.Context) ([]DailyRevenue, error)
	WeeklyProductsSold(ctx context.Context) ([]DailyProductsSold, error)
	SalesReport(ctx context.Context, fromDate, toDate string) (*SalesReport, error)
}

type ReportDeps struct {
	Orders            repository.OrderRepository
	Products          repository.ProductRepository
	LowStockThreshold int
	Location          *time.Location
	Timeout           time.Duration
	Now               func() time.Time
}

type reportService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	threshold int
	loc       *time.Location
	timeout   time.Duration
	now       func() time.Time
}

func NewReportService(d ReportDeps) ReportService {
	s := &reportService{
		orders:    d.Orders,
		products:  d.Products,
		threshold: d.LowStockThreshold,
		loc:       d.Location,
		timeout:   d.Timeout,
		now:       d.Now,
	}
	if s.threshold <= 0 {
		s.threshold = 5
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *reportService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *reportService) completedSince(ctx context.Context, days int) ([]model.Order, error) {
	now := s.now()
	from := startOfDay(now, s.loc).AddDate(0, 0, -(days - 1))
	return s.orders.FindByDateRange(ctx, from, endOfDay(now, s.loc), model.OrderCompleted)
}

func (s *reportService) LowStock(ctx context.Context) (*LowStockReport, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	products, err := s.products.FindLowStock(ctx, s.threshold, 0)
	if err != nil {
		return nil, err
	}
	return toLowStock(products), nil
}

func (s *reportService) TodayStats(ctx context.Context) (*SalesTotals, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orders, err := s.completedSince(ctx, 1)
	if err != nil {
		return nil, err
	}
	totals := summarizeCompleted(orders)
	return &totals, nil
}

func (s *reportService) TopProducts(ctx context.Context) (*TopProductsReport, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	week, err := s.completedSince(ctx, weekDays)
	if err != nil {
		return nil, err
	}

	todayKey := dateKey(s.now(), s.loc)
	var today []model.Order
	for _, o := range week {
		if dateKey(o.OrderDate, s.loc) == todayKey {
			today = append(today, o)
		}
	}

	return &TopProductsReport{
		TopToday: rankProducts(today, topProductsLimit),
		TopWeek:  rankProducts(week, topProductsLimit),
	}, nil
}

func (s *reportService) WeeklyRevenue(ctx context.Context) ([]DailyRevenue, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orders, err := s.completedSince(ctx, weekDays)
	if err != nil {
		return nil, err
	}
	revenue, _ := dailySeries(orders, s.now(), weekDays, s.loc)
	return revenue, nil
}

func (s *reportService) WeeklyProductsSold(ctx context.Context) ([]DailyProductsSold, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orders, err := s.completedSince(ctx, weekDays)
	if err != nil {
		return nil, err
	}
	_, sold := dailySeries(orders, s.now(), weekDays, s.loc)
	return sold, nil
}

func (s *reportService) SalesReport(ctx context.Context, fromDate, toDate string) (*SalesReport, error) {
	from, to, err := parseDateRange(fromDate, toDate, s.loc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orders, err := s.orders.FindByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return buildSalesReport(orders, fromDate, toDate, s.loc), nil
}
