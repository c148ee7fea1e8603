package repository

import (
	"context"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository interface {
	CreateWithItems(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.Invoice, error)
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Invoice, error)
	CountByNumberPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error)
	MarkPaid(ctx context.Context, id uint, at time.Time) (bool, error)
}

type invoiceRepoImpl struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepoImpl{
		db: db,
	}
}

// CreateWithItems inserts the invoice and its items. It returns false,
// writing nothing, when the invoice number or order already has an invoice.
// Callers should pass a transaction so items never exist without a header.
func (r *invoiceRepoImpl) CreateWithItems(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) (bool, error) {
	db := conn(ctx, r.db, tx)

	result := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	if len(invoice.Items) == 0 {
		return true, nil
	}

	for i := range invoice.Items {
		invoice.Items[i].InvoiceID = invoice.ID
	}
	if err := db.Create(&invoice.Items).Error; err != nil {
		return false, err
	}

	return true, nil
}

func (r *invoiceRepoImpl) FindByID(ctx context.Context, id uint) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&invoice).Error

	if err != nil {
		return nil, err
	}

	return &invoice, nil
}

func (r *invoiceRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Invoice, error) {
	var invoice model.Invoice
	err := conn(ctx, r.db, tx).
		Preload("Items").
		Where("order_id = ?", orderID).
		First(&invoice).Error

	if err != nil {
		return nil, err
	}

	return &invoice, nil
}

func (r *invoiceRepoImpl) CountByNumberPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error) {
	var count int64
	err := conn(ctx, r.db, tx).Model(&model.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Count(&count).Error

	return count, err
}

func (r *invoiceRepoImpl) MarkPaid(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ? AND status IN ?", id, []model.InvoiceStatus{model.InvoiceStatusIssued, model.InvoiceStatusOverdue}).
		Updates(map[string]interface{}{
			"status":     model.InvoiceStatusPaid,
			"paid_at":    at,
			"updated_at": at,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
