package repository

import (
	"context"

	"inventra-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	// FindOrCreateByPhone is idempotent: concurrent callers with the same
	// phone number end up with the same row.
	FindOrCreateByPhone(ctx context.Context, phone, name string) (*model.Customer, error)
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepository {
	return &customerRepo{db}
}

func (r *customerRepo) FindOrCreateByPhone(ctx context.Context, phone, name string) (*model.Customer, error) {
	db := conn(ctx, r.db)

	customer := model.Customer{PhoneNumber: phone, Name: name}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_number"}},
		DoNothing: true,
	}).Create(&customer).Error
	if err != nil {
		return nil, translate(err)
	}

	// Conflict: the row already existed and nothing was returned
	if customer.ID == 0 {
		if err := db.Where("phone_number = ?", phone).First(&customer).Error; err != nil {
			return nil, translate(err)
		}
	}
	return &customer, nil
}
