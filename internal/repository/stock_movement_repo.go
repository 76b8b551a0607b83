package repository

import (
	"context"
	"time"

	"inventra-api/internal/model"

	"gorm.io/gorm"
)

type StockMovementRepository interface {
	Create(ctx context.Context, movement *model.StockMovement) error
	GetDailyMovement(ctx context.Context, startDate, endDate time.Time, loc *time.Location) ([]StockMovementData, error)
	FindByProduct(ctx context.Context, productID uint, limit int) ([]model.StockMovement, error)
}

// StockMovementData for chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type stockMovementRepo struct {
	db *gorm.DB
}

func NewStockMovementRepo(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db}
}

func (r *stockMovementRepo) Create(ctx context.Context, movement *model.StockMovement) error {
	return translate(conn(ctx, r.db).Omit("Product").Create(movement).Error)
}

// GetDailyMovement aggregates movements per calendar day in loc (UTC when nil).
// loc must carry an IANA name Postgres knows, as time.LoadLocation returns.
func (r *stockMovementRepo) GetDailyMovement(ctx context.Context, startDate, endDate time.Time, loc *time.Location) ([]StockMovementData, error) {
	var results []StockMovementData
	if loc == nil {
		loc = time.UTC
	}

	// Aggregate movements per day
	rows, err := conn(ctx, r.db).Model(&model.StockMovement{}).
		Select(`
			TO_CHAR(DATE(created_at AT TIME ZONE ?), 'YYYY-MM-DD') as date,
			COALESCE(SUM(CASE WHEN type = 'IN' THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = 'OUT' THEN quantity ELSE 0 END), 0) as outbound
		`, loc.String()).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("1").
		Order("1 ASC").
		Rows()
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, translate(err)
		}
		results = append(results, data)
	}

	return results, translate(rows.Err())
}

func (r *stockMovementRepo) FindByProduct(ctx context.Context, productID uint, limit int) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	q := conn(ctx, r.db).Where("product_id = ?", productID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&movements).Error
	return movements, translate(err)
}
