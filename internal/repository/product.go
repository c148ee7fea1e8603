package repository

import (
	"context"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultProductID = "premium_lifetime"

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: DefaultProductID, Name: "Ocus Job Hunter Premium", Description: "Lifetime premium access for the Chrome extension", Price: decimal.RequireFromString("29.99"), Currency: "USD", Type: model.ProductTypeLifetime},
		{ID: "premium_team", Name: "Ocus Job Hunter Team", Description: "Premium access for a team of up to five seats", Price: decimal.RequireFromString("99.00"), Currency: "USD", Type: model.ProductTypeTeam},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Order("price ASC").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
