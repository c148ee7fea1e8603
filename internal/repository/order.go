package repository

import (
	"context"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, order *model.Order) (bool, error)
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error)
	FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Order, error)
	FindByTransactionIDForUpdate(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Order, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, completedAt time.Time) (bool, error)
	MarkUnpaid(ctx context.Context, transactionID string, status model.OrderStatus) (bool, error)
	SetFulfillment(ctx context.Context, tx *gorm.DB, id uint, customerID uint, codeID uint) error
	ListCompletedByEmail(ctx context.Context, tx *gorm.DB, email string) ([]*model.Order, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return conn(ctx, r.db, tx).Create(order).Error
}

// InsertIfAbsent inserts order unless a row with the same provider
// transaction id already exists. The unique index arbitrates concurrent
// inserts for the same payment.
func (r *orderRepoImpl) InsertIfAbsent(ctx context.Context, tx *gorm.DB, order *model.Order) (bool, error) {
	result := conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_transaction_id"}},
		DoNothing: true,
	}).Create(order)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db, tx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db, tx).
		Where("provider_transaction_id = ?", transactionID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// FindByTransactionIDForUpdate is a locking read. Under MySQL's repeatable
// read it sees rows committed after the transaction's snapshot, which a plain
// read would miss. sqlite drops the FOR UPDATE clause.
func (r *orderRepoImpl) FindByTransactionIDForUpdate(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_transaction_id = ?", transactionID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// MarkCompleted is a compare-and-swap: only the caller that moves the row
// out of a non-completed status gets true.
func (r *orderRepoImpl) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, completedAt time.Time) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where(`
			id = ?
			AND status <> ?
		`,
			id,
			model.OrderStatusCompleted,
		).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// MarkUnpaid moves a pending order to failed or canceled. Completed
// orders are never touched.
func (r *orderRepoImpl) MarkUnpaid(ctx context.Context, transactionID string, status model.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("provider_transaction_id = ? AND status = ?", transactionID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *orderRepoImpl) SetFulfillment(ctx context.Context, tx *gorm.DB, id uint, customerID uint, codeID uint) error {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"customer_id":        customerID,
			"activation_code_id": codeID,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) ListCompletedByEmail(ctx context.Context, tx *gorm.DB, email string) ([]*model.Order, error) {
	var orders []*model.Order
	err := conn(ctx, r.db, tx).
		Where("customer_email = ? AND status = ?", email, model.OrderStatusCompleted).
		Order("completed_at ASC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// ListPendingBefore returns provider orders still pending that were created
// before the cutoff, oldest first.
func (r *orderRepoImpl) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND provider_transaction_id IS NOT NULL", model.OrderStatusPending, before).
		Where("payment_method IN ?", []model.PaymentMethod{model.PaymentMethodStripe, model.PaymentMethodPaypal}).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}
