package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category groups products on the catalog page
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name" validate:"required,max=100"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog row. Code is the public SKU, ID stays internal.
// Quantity is the live stock level and never goes below zero.
type Product struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Code       string          `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Quantity   int             `gorm:"not null;default:0;check:chk_products_quantity_non_negative,quantity >= 0" json:"quantity" validate:"gte=0"`
	CategoryID *uint           `gorm:"index" json:"category_id"`
	Category   *Category       `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	ImageURL   string          `gorm:"type:text" json:"image_url"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Audit
}

// NewProductCode returns an 8 character upper-case hex SKU
func NewProductCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
