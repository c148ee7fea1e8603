package repository

import (
	"context"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, code *model.ActivationCode) (bool, error)
	FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.ActivationCode, error)
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.ActivationCode, error)
	Bind(ctx context.Context, tx *gorm.DB, id uint, installationID, deviceID string, at time.Time) (bool, error)
	IncrementDailyCount(ctx context.Context, tx *gorm.DB, codeID uint, day string) (int, error)
	Revoke(ctx context.Context, code string, at time.Time) (bool, error)
}

type activationRepoImpl struct {
	db *gorm.DB
}

func NewActivationRepository(db *gorm.DB) ActivationRepository {
	return &activationRepoImpl{
		db: db,
	}
}

// Create returns false when the code string is already taken.
func (r *activationRepoImpl) Create(ctx context.Context, tx *gorm.DB, code *model.ActivationCode) (bool, error) {
	result := conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(code)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *activationRepoImpl) FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.ActivationCode, error) {
	var activation model.ActivationCode
	err := conn(ctx, r.db, tx).
		Where("code = ?", code).
		First(&activation).Error

	if err != nil {
		return nil, err
	}

	return &activation, nil
}

func (r *activationRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.ActivationCode, error) {
	var activation model.ActivationCode
	err := conn(ctx, r.db, tx).
		Where("id = ?", id).
		First(&activation).Error

	if err != nil {
		return nil, err
	}

	return &activation, nil
}

// Bind consumes one activation for installationID. The WHERE clause
// re-checks every redemption rule so a concurrent redeem cannot overshoot
// max_activations or steal the binding.
func (r *activationRepoImpl) Bind(ctx context.Context, tx *gorm.DB, id uint, installationID, deviceID string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"activation_count": gorm.Expr("activation_count + ?", 1),
		"installation_id":  installationID,
		"bound_at":         gorm.Expr("COALESCE(bound_at, ?)", at),
		"updated_at":       at,
	}
	if deviceID != "" {
		updates["device_id"] = deviceID
	}

	result := conn(ctx, r.db, tx).Model(&model.ActivationCode{}).
		Where(`
			id = ?
			AND is_active = ?
			AND is_revoked = ?
			AND activation_count < max_activations
			AND (installation_id = '' OR installation_id = ?)
			AND (expires_at IS NULL OR expires_at >= ?)
		`,
			id, true, false, installationID, at,
		).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// IncrementDailyCount bumps the per-day counter and returns the new value.
func (r *activationRepoImpl) IncrementDailyCount(ctx context.Context, tx *gorm.DB, codeID uint, day string) (int, error) {
	db := conn(ctx, r.db, tx)
	now := time.Now()

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "activation_code_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("activation_validations.count + ?", 1),
			"updated_at": now,
		}),
	}).Create(&model.ActivationValidation{
		ActivationCodeID: codeID,
		Day:              day,
		Count:            1,
		UpdatedAt:        now,
	}).Error
	if err != nil {
		return 0, err
	}

	var counter model.ActivationValidation
	err = db.Where("activation_code_id = ? AND day = ?", codeID, day).
		First(&counter).Error
	if err != nil {
		return 0, err
	}

	return counter.Count, nil
}

func (r *activationRepoImpl) Revoke(ctx context.Context, code string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ActivationCode{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"is_revoked": true,
			"is_active":  false,
			"revoked_at": gorm.Expr("COALESCE(revoked_at, ?)", at),
			"updated_at": at,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
