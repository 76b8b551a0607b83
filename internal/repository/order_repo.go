package repository

import (
	"context"
	"time"

	"inventra-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	// Create inserts the order header only; items go through CreateItems
	Create(ctx context.Context, order *model.Order) error
	CreateItems(ctx context.Context, items []model.OrderItem) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	// FindByIDForUpdate locks the header row and loads the line items
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error)
	// UpdateStatus only succeeds while the row is still in status from
	UpdateStatus(ctx context.Context, id uint, from, to model.OrderStatus) error
	FindAll(ctx context.Context) ([]model.Order, error)
	FindRecent(ctx context.Context, limit int) ([]model.Order, error)
	Count(ctx context.Context) (int64, error)
	// FindByDateRange returns orders whose order_date falls in [from, to], items and products preloaded
	FindByDateRange(ctx context.Context, from, to time.Time, statuses ...model.OrderStatus) ([]model.Order, error)
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id ASC")
}

func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	return translate(conn(ctx, r.db).Omit(clause.Associations).Create(order).Error)
}

func (r *orderRepo) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return translate(conn(ctx, r.db).Omit(clause.Associations).Create(&items).Error)
}

func (r *orderRepo) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).
		Preload("Customer").
		Preload("Items", orderedItems).
		Preload("Items.Product").
		First(&order, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	db := conn(ctx, r.db)

	var order model.Order
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Where("order_id = ?", id).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uint, from, to model.OrderStatus) error {
	res := conn(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *orderRepo) FindAll(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := conn(ctx, r.db).
		Preload("Customer").
		Preload("Items", orderedItems).
		Preload("Items.Product").
		Order("order_date DESC, id DESC").
		Find(&orders).Error
	return orders, translate(err)
}

func (r *orderRepo) FindRecent(ctx context.Context, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := conn(ctx, r.db).
		Preload("Customer").
		Order("order_date DESC, id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, translate(err)
}

func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&model.Order{}).Count(&n).Error
	return n, translate(err)
}

func (r *orderRepo) FindByDateRange(ctx context.Context, from, to time.Time, statuses ...model.OrderStatus) ([]model.Order, error) {
	var orders []model.Order
	q := conn(ctx, r.db).
		Preload("Items", orderedItems).
		Preload("Items.Product").
		Where("order_date BETWEEN ? AND ?", from, to)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("order_date ASC, id ASC").Find(&orders).Error
	return orders, translate(err)
}
