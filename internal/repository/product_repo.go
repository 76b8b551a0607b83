package repository

import (
	"context"

	"inventra-api/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context) ([]model.Product, error)
	FindByCode(ctx context.Context, code string) (*model.Product, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*model.Product, error)
	FindByCodesForUpdate(ctx context.Context, codes []string) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	DeleteByCode(ctx context.Context, code string) error

	// DecrementStock subtracts qty only if enough stock is left, otherwise ErrInsufficientStock
	DecrementStock(ctx context.Context, id uint, qty int) error
	// IncrementStock adds qty in place, no read-modify-write
	IncrementStock(ctx context.Context, id uint, qty int) error

	FindLowStock(ctx context.Context, threshold, limit int) ([]model.Product, error)
	Count(ctx context.Context) (int64, error)
	Valuation(ctx context.Context) (decimal.Decimal, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return translate(conn(ctx, r.db).Omit(clause.Associations).Create(product).Error)
}

func (r *productRepo) FindAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := conn(ctx, r.db).Preload("Category").Order("id ASC").Find(&products).Error
	return products, translate(err)
}

func (r *productRepo) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	var product model.Product
	if err := conn(ctx, r.db).Preload("Category").First(&product, "code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *productRepo) FindByCodeForUpdate(ctx context.Context, code string) (*model.Product, error) {
	var product model.Product
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "code = ?", code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// FindByCodesForUpdate locks the rows in id order so two orders touching the
// same products cannot deadlock on each other.
func (r *productRepo) FindByCodesForUpdate(ctx context.Context, codes []string) ([]model.Product, error) {
	var products []model.Product
	if len(codes) == 0 {
		return products, nil
	}
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code IN ?", codes).
		Order("id ASC").
		Find(&products).Error
	return products, translate(err)
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return translate(conn(ctx, r.db).Omit(clause.Associations).Save(product).Error)
}

func (r *productRepo) DeleteByCode(ctx context.Context, code string) error {
	res := conn(ctx, r.db).Where("code = ?", code).Delete(&model.Product{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) DecrementStock(ctx context.Context, id uint, qty int) error {
	res := conn(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *productRepo) IncrementStock(ctx context.Context, id uint, qty int) error {
	res := conn(ctx, r.db).Model(&model.Product{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) FindLowStock(ctx context.Context, threshold, limit int) ([]model.Product, error) {
	var products []model.Product
	q := conn(ctx, r.db).
		Where("quantity < ?", threshold).
		Order("quantity ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&products).Error
	return products, translate(err)
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&model.Product{}).Count(&n).Error
	return n, translate(err)
}

// Valuation is SUM(quantity * price) over the whole catalog
func (r *productRepo) Valuation(ctx context.Context) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := conn(ctx, r.db).Model(&model.Product{}).
		Select("COALESCE(SUM(quantity * price), 0) AS total").
		Scan(&row).Error
	return row.Total, translate(err)
}
