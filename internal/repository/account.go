package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository maintains the premium projection duplicated on the
// customers and users tables.
type AccountRepository interface {
	ApplyCompletedOrder(ctx context.Context, tx *gorm.DB, email, name string, amount decimal.Decimal, at time.Time) (*model.Customer, error)
	FindCustomerByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.Customer, error)
	FindUserByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	ReplaceProjection(ctx context.Context, tx *gorm.DB, email string, projection model.PremiumProjection) error
}

type accountRepoImpl struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepoImpl{
		db: db,
	}
}

// ApplyCompletedOrder folds one completed order into both projections.
// The customer row is created on first purchase; the user row is only
// updated when the buyer has a registered account.
func (r *accountRepoImpl) ApplyCompletedOrder(ctx context.Context, tx *gorm.DB, email, name string, amount decimal.Decimal, at time.Time) (*model.Customer, error) {
	db := conn(ctx, r.db, tx)
	premium := amount.IsPositive()

	customer := &model.Customer{
		Email: email,
		Name:  name,
		PremiumProjection: model.PremiumProjection{
			IsPremium:          premium,
			ExtensionActivated: true,
			TotalSpent:         amount,
			TotalOrders:        1,
		},
	}
	if premium {
		customer.PremiumActivatedAt = &at
	}

	customerUpdates := map[string]interface{}{
		"extension_activated": true,
		"total_spent":         gorm.Expr("customers.total_spent + ?", amount),
		"total_orders":        gorm.Expr("customers.total_orders + ?", 1),
		"updated_at":          at,
	}
	if premium {
		customerUpdates["is_premium"] = true
		customerUpdates["premium_activated_at"] = gorm.Expr("COALESCE(customers.premium_activated_at, ?)", at)
	}
	if name != "" {
		customerUpdates["name"] = gorm.Expr("CASE WHEN customers.name = '' THEN ? ELSE customers.name END", name)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(customerUpdates),
	}).Create(customer).Error
	if err != nil {
		return nil, err
	}

	userUpdates := map[string]interface{}{
		"extension_activated": true,
		"total_spent":         gorm.Expr("total_spent + ?", amount),
		"total_orders":        gorm.Expr("total_orders + ?", 1),
		"updated_at":          at,
	}
	if premium {
		userUpdates["is_premium"] = true
		userUpdates["premium_activated_at"] = gorm.Expr("COALESCE(premium_activated_at, ?)", at)
	}

	err = db.Model(&model.User{}).
		Where("email = ?", email).
		Updates(userUpdates).Error
	if err != nil {
		return nil, err
	}

	return r.FindCustomerByEmail(ctx, tx, email)
}

func (r *accountRepoImpl) FindCustomerByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.Customer, error) {
	var customer model.Customer
	err := conn(ctx, r.db, tx).
		Where("email = ?", email).
		First(&customer).Error

	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *accountRepoImpl) FindUserByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.User, error) {
	var user model.User
	err := conn(ctx, r.db, tx).
		Where("email = ?", email).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *accountRepoImpl) CreateUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// ReplaceProjection overwrites both projections with values recomputed
// from orders. Missing rows are skipped.
func (r *accountRepoImpl) ReplaceProjection(ctx context.Context, tx *gorm.DB, email string, projection model.PremiumProjection) error {
	updates := map[string]interface{}{
		"is_premium":           projection.IsPremium,
		"extension_activated":  projection.ExtensionActivated,
		"premium_activated_at": projection.PremiumActivatedAt,
		"total_spent":          projection.TotalSpent,
		"total_orders":         projection.TotalOrders,
	}

	db := conn(ctx, r.db, tx)
	if err := db.Model(&model.Customer{}).Where("email = ?", email).Updates(updates).Error; err != nil {
		return err
	}
	if err := db.Model(&model.User{}).Where("email = ?", email).Updates(updates).Error; err != nil {
		return err
	}

	return nil
}

// IsNotFound reports whether err is a missing-row error from gorm.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
