package coupons

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/internal/repo"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
	"github.com/storefronthq/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
)

// Repository reads coupons and records their consumption. ConsumeUse is the
// only write path; it must run inside the checkout transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ConsumeUse(ctx context.Context, id uuid.UUID, now time.Time) error
}

type repository struct {
	base repo.Base
}

// NewRepository builds a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Rebind(tx)}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.base.DB(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ConsumeUse increments used_count while the usage cap still has room. The
// guard in the WHERE clause makes concurrent checkouts race safely: the loser
// sees zero rows affected and the coupon is rejected.
func (r *repository) ConsumeUse(ctx context.Context, id uuid.UUID, now time.Time) error {
	result := r.base.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", id).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "failed to consume coupon use")
	}
	if result.RowsAffected == 0 {
		var coupon models.Coupon
		err := r.base.DB(ctx).Where("id = ?", id).First(&coupon).Error
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return rejectError("", enums.CouponRejectNotFound)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load coupon after guard miss")
		}
		return rejectError(coupon.Code, enums.CouponRejectUsageLimitReached)
	}
	return nil
}
