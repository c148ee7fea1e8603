package repository

import (
	"context"
	"strings"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"gorm.io/gorm"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, code string) (bool, error)
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{
		db: db,
	}
}

func (r *couponRepoImpl) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *couponRepoImpl) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error

	if err != nil {
		return nil, err
	}

	return &coupon, nil
}

// IncrementUsage records one redemption unless the usage limit is reached.
func (r *couponRepoImpl) IncrementUsage(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Coupon{}).
		Where("code = ? AND (usage_limit = 0 OR used_count < usage_limit)", strings.ToUpper(strings.TrimSpace(code))).
		Update("used_count", gorm.Expr("used_count + ?", 1))

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
