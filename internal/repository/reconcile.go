package repository

import (
	"context"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// ReconcileRepository runs the read-only consistency scans used by the
// repair routine.
type ReconcileRepository interface {
	CompletedOrdersWithoutInvoice(ctx context.Context, limit int) ([]uint, error)
}

type reconcileRepoImpl struct {
	db *sqlx.DB
}

// NewReconcileRepository shares gorm's connection pool.
func NewReconcileRepository(db *gorm.DB) (ReconcileRepository, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	driverName := "mysql"
	if db.Dialector.Name() == "sqlite" {
		driverName = "sqlite3"
	}

	return &reconcileRepoImpl{
		db: sqlx.NewDb(sqlDB, driverName),
	}, nil
}

func (r *reconcileRepoImpl) CompletedOrdersWithoutInvoice(ctx context.Context, limit int) ([]uint, error) {
	const q = `
		SELECT o.id
		FROM orders o
		LEFT JOIN invoices i ON i.order_id = o.id
		WHERE o.status = ? AND i.id IS NULL
		ORDER BY o.id
		LIMIT ?`

	var ids []uint
	if err := r.db.SelectContext(ctx, &ids, q, model.OrderStatusCompleted, limit); err != nil {
		return nil, err
	}

	return ids, nil
}
