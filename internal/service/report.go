package service

import (
	"fmt"
	"sort"
	"time"

	"inventra-api/internal/model"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// SalesTotals covers completed orders only
type SalesTotals struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalOrders       int             `json:"totalOrders"`
	TotalProductsSold int             `json:"totalProductsSold"`
}

type TopProduct struct {
	ProductID         uint   `json:"-"`
	Code              string `json:"code"`
	Name              string `json:"name"`
	TotalQuantitySold int    `json:"totalQuantitySold"`
}

type TopProductsReport struct {
	TopToday []TopProduct `json:"topToday"`
	TopWeek  []TopProduct `json:"topWeek"`
}

type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type DailyProductsSold struct {
	Date              string `json:"date"`
	TotalProductsSold int    `json:"totalProductsSold"`
}

type DailyBreakdown struct {
	Date        string          `json:"date"`
	Revenue     decimal.Decimal `json:"revenue"`
	TotalOrders int             `json:"totalOrders"`
}

type SalesReport struct {
	FromDate             string           `json:"fromDate"`
	ToDate               string           `json:"toDate"`
	TotalRevenue         decimal.Decimal  `json:"totalRevenue"`
	TotalCompletedOrders int              `json:"totalCompletedOrders"`
	TotalCancelledOrders int              `json:"totalCancelledOrders"`
	TotalProductsSold    int              `json:"totalProductsSold"`
	DailyBreakdown       []DailyBreakdown `json:"dailyBreakdown"`
}

type LowStockItem struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type LowStockReport struct {
	Count int            `json:"count"`
	Items []LowStockItem `json:"items"`
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// endOfDay is the last instant Postgres can store on the same calendar day
func endOfDay(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Microsecond)
}

func dateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// parseDateRange turns two YYYY-MM-DD strings into whole days in loc
func parseDateRange(fromDate, toDate string, loc *time.Location) (time.Time, time.Time, error) {
	if fromDate == "" || toDate == "" {
		return time.Time{}, time.Time{}, invalid("fromDate and toDate are required")
	}
	from, err := time.ParseInLocation(dateLayout, fromDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("fromDate must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(dateLayout, toDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("toDate must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, invalid("fromDate must not be after toDate")
	}
	return from, endOfDay(to, loc), nil
}

func summarizeCompleted(orders []model.Order) SalesTotals {
	totals := SalesTotals{TotalRevenue: decimal.Zero}
	for _, o := range orders {
		if o.Status != model.OrderCompleted {
			continue
		}
		totals.TotalRevenue = totals.TotalRevenue.Add(o.TotalPrice)
		totals.TotalOrders++
		totals.TotalProductsSold += o.ItemCount()
	}
	return totals
}

// rankProducts sums completed quantities per product, highest first,
// ties broken by product id ascending.
func rankProducts(orders []model.Order, limit int) []TopProduct {
	byID := make(map[uint]*TopProduct)
	for _, o := range orders {
		if o.Status != model.OrderCompleted {
			continue
		}
		for _, it := range o.Items {
			tp, ok := byID[it.ProductID]
			if !ok {
				tp = &TopProduct{ProductID: it.ProductID}
				if it.Product != nil {
					tp.Code = it.Product.Code
					tp.Name = it.Product.Name
				}
				byID[it.ProductID] = tp
			}
			tp.TotalQuantitySold += it.Quantity
		}
	}

	ranked := make([]TopProduct, 0, len(byID))
	for _, tp := range byID {
		ranked = append(ranked, *tp)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalQuantitySold != ranked[j].TotalQuantitySold {
			return ranked[i].TotalQuantitySold > ranked[j].TotalQuantitySold
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// dailySeries buckets completed orders into the days days ending on today, zero-filled
func dailySeries(orders []model.Order, today time.Time, days int, loc *time.Location) ([]DailyRevenue, []DailyProductsSold) {
	first := startOfDay(today, loc).AddDate(0, 0, -(days - 1))
	revenue := make([]DailyRevenue, days)
	sold := make([]DailyProductsSold, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := first.AddDate(0, 0, i).Format(dateLayout)
		revenue[i] = DailyRevenue{Date: key, Revenue: decimal.Zero}
		sold[i] = DailyProductsSold{Date: key}
		index[key] = i
	}

	for _, o := range orders {
		if o.Status != model.OrderCompleted {
			continue
		}
		i, ok := index[dateKey(o.OrderDate, loc)]
		if !ok {
			continue
		}
		revenue[i].Revenue = revenue[i].Revenue.Add(o.TotalPrice)
		sold[i].TotalProductsSold += o.ItemCount()
	}
	return revenue, sold
}

// buildSalesReport keys days by each order's recorded order_date. A day
// appears once it has any order; revenue and counts cover completed orders.
func buildSalesReport(orders []model.Order, fromDate, toDate string, loc *time.Location) *SalesReport {
	report := &SalesReport{
		FromDate:       fromDate,
		ToDate:         toDate,
		TotalRevenue:   decimal.Zero,
		DailyBreakdown: []DailyBreakdown{},
	}
	daily := make(map[string]*DailyBreakdown)
	var keys []string

	for _, o := range orders {
		key := dateKey(o.OrderDate, loc)
		day, ok := daily[key]
		if !ok {
			day = &DailyBreakdown{Date: key, Revenue: decimal.Zero}
			daily[key] = day
			keys = append(keys, key)
		}

		switch o.Status {
		case model.OrderCompleted:
			report.TotalRevenue = report.TotalRevenue.Add(o.TotalPrice)
			report.TotalCompletedOrders++
			report.TotalProductsSold += o.ItemCount()
			day.Revenue = day.Revenue.Add(o.TotalPrice)
			day.TotalOrders++
		case model.OrderCancelled:
			report.TotalCancelledOrders++
		}
	}

	sort.Strings(keys)
	for _, k := range keys {
		report.DailyBreakdown = append(report.DailyBreakdown, *daily[k])
	}
	return report
}

func toLowStock(products []model.Product) *LowStockReport {
	items := make([]LowStockItem, len(products))
	for i, p := range products {
		items[i] = LowStockItem{Code: p.Code, Name: p.Name, Quantity: p.Quantity}
	}
	return &LowStockReport{Count: len(items), Items: items}
}

// timeAgo renders the coarse relative times the dashboard shows
func timeAgo(now, then time.Time) string {
	hours := int(now.Sub(then).Hours())
	days := hours / 24
	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	default:
		return "Just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// orderRef formats an order id the way receipts print it, e.g. #ORD007
func orderRef(id uint) string {
	return fmt.Sprintf("#ORD%03d", id)
}
