package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var (
	ErrOrderAlreadyCompleted   = errors.New("order already marked as completed")
	ErrOrderAlreadyCancelled   = errors.New("order is already cancelled")
	ErrCancelledNotCompletable = errors.New("cannot complete a cancelled order")
	ErrCompletedNotCancellable = errors.New("completed orders cannot be cancelled")
	ErrInvalidTransition       = errors.New("invalid order status transition")
)

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// TransitionTo is the single place that decides which status changes are legal.
// Only pending orders move, and only to completed or cancelled.
func (s OrderStatus) TransitionTo(next OrderStatus) error {
	switch s {
	case OrderPending:
		if next == OrderCompleted || next == OrderCancelled {
			return nil
		}
	case OrderCompleted:
		switch next {
		case OrderCompleted:
			return ErrOrderAlreadyCompleted
		case OrderCancelled:
			return ErrCompletedNotCancellable
		}
	case OrderCancelled:
		switch next {
		case OrderCancelled:
			return ErrOrderAlreadyCancelled
		case OrderCompleted:
			return ErrCancelledNotCompletable
		}
	}
	return ErrInvalidTransition
}

type Order struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CustomerID *uint           `gorm:"index" json:"customer_id"`
	Customer   *Customer       `gorm:"constraint:OnDelete:SET NULL" json:"customer,omitempty"`
	Status     OrderStatus     `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	OrderDate  time.Time       `gorm:"not null;index" json:"order_date"`
	Items      []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedBy  string          `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OrderItem keeps the unit price the customer was charged, independent of later catalog edits
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Product   *Product        `gorm:"constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity  int             `gorm:"not null;check:chk_order_items_quantity_positive,quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
}

// LineTotal is unit price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemCount sums the quantities of all lines
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
