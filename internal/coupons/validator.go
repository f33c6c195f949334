package coupons

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/pkg/db/models"
	"github.com/storefronthq/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
)

// Applied is the outcome of a successful validation: everything pricing needs
// to compute the discount, without exposing the stored coupon row.
type Applied struct {
	CouponID uuid.UUID
	Code     string
	Kind     enums.DiscountKind
	Value    int64
}

// RejectDetails is attached to coupon rejection errors so the API layer can
// surface the machine-readable reason.
type RejectDetails struct {
	Code   string                   `json:"code"`
	Reason enums.CouponRejectReason `json:"reason"`
}

// Validator checks a coupon code against a cart subtotal at a point in time.
type Validator interface {
	Validate(ctx context.Context, code string, subtotalCents int64, now time.Time) (*Applied, error)
	ConsumeUse(ctx context.Context, id uuid.UUID, now time.Time) error
	WithTx(tx *gorm.DB) Validator
}

type validator struct {
	repo Repository
}

// NewValidator wires a Validator over the coupon repository.
func NewValidator(repo Repository) (Validator, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon repository is required")
	}
	return &validator{repo: repo}, nil
}

func (v *validator) WithTx(tx *gorm.DB) Validator {
	if tx == nil {
		return v
	}
	return &validator{repo: v.repo.WithTx(tx)}
}

// NormalizeCode canonicalizes user-supplied coupon codes. Codes are stored and
// matched upper-case, so SAVE10 and save10 name the same coupon.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (v *validator) Validate(ctx context.Context, code string, subtotalCents int64, now time.Time) (*Applied, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	coupon, err := v.repo.FindByCode(ctx, code)
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, rejectError(code, enums.CouponRejectNotFound)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load coupon")
	}

	if reason, ok := rejectionFor(coupon, subtotalCents, now); !ok {
		return nil, rejectError(code, reason)
	}

	return &Applied{
		CouponID: coupon.ID,
		Code:     coupon.Code,
		Kind:     coupon.Kind,
		Value:    coupon.Value,
	}, nil
}

func (v *validator) ConsumeUse(ctx context.Context, id uuid.UUID, now time.Time) error {
	return v.repo.ConsumeUse(ctx, id, now)
}

// rejectionFor applies the eligibility rules in order. The first failing rule
// names the reason; ok is true only when every rule passes.
func rejectionFor(coupon *models.Coupon, subtotalCents int64, now time.Time) (enums.CouponRejectReason, bool) {
	if !coupon.Active {
		return enums.CouponRejectInactive, false
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return enums.CouponRejectNotStarted, false
	}
	if coupon.EndsAt != nil && !now.Before(*coupon.EndsAt) {
		return enums.CouponRejectExpired, false
	}
	if subtotalCents < coupon.MinSubtotalCents {
		return enums.CouponRejectBelowMinimum, false
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return enums.CouponRejectUsageLimitReached, false
	}
	return "", true
}

func rejectError(code string, reason enums.CouponRejectReason) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeCouponReject, "coupon "+string(reason)).
		WithDetails(RejectDetails{Code: code, Reason: reason})
}
