package model

import "time"

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

type MovementReason string

const (
	ReasonOrderPlaced      MovementReason = "order_placed"
	ReasonOrderCancelled   MovementReason = "order_cancelled"
	ReasonManualAdjustment MovementReason = "manual_adjustment"
	ReasonInitialStock     MovementReason = "initial_stock"
)

// StockMovement is the stock ledger. Every quantity change is written here
// in the same transaction that changes Product.Quantity.
type StockMovement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProductID uint           `gorm:"not null;index" json:"product_id"`
	Product   *Product       `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Type      MovementType   `gorm:"type:varchar(10);not null" json:"type"`
	Quantity  int            `gorm:"not null" json:"quantity"`
	Reason    MovementReason `gorm:"type:varchar(32);not null" json:"reason"`
	OrderID   *uint          `gorm:"index" json:"order_id,omitempty"`
	CreatedBy string         `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}
