package model

import "time"

// Customer is created lazily the first time a phone number places an order
type Customer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PhoneNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone_number"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}
