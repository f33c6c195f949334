package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/pkg/db/models"
	"github.com/storefronthq/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:coupons_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Coupon{}); err != nil {
		t.Fatalf("migrate coupons: %v", err)
	}
	return db
}

func newTestValidator(t *testing.T, db *gorm.DB) Validator {
	t.Helper()
	v, err := NewValidator(NewRepository(db))
	if err != nil {
		t.Fatalf("build validator: %v", err)
	}
	return v
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon models.Coupon) models.Coupon {
	t.Helper()
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func assertRejected(t *testing.T, err error, reason enums.CouponRejectReason) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCouponReject {
		t.Fatalf("expected coupon rejection, got %v", err)
	}
	details, ok := typed.Details().(RejectDetails)
	if !ok {
		t.Fatalf("expected reject details, got %T", typed.Details())
	}
	if details.Reason != reason {
		t.Fatalf("expected reason %s, got %s", reason, details.Reason)
	}
}

func TestValidateAcceptsEligibleCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	v := newTestValidator(t, db)
	now := time.Now().UTC()

	starts := now.Add(-time.Hour)
	ends := now.Add(time.Hour)
	maxUses := 5
	coupon := seedCoupon(t, db, models.Coupon{
		Code:             "SAVE10",
		Kind:             enums.DiscountKindPercentage,
		Value:            10,
		MinSubtotalCents: 1000,
		StartsAt:         &starts,
		EndsAt:           &ends,
		MaxUses:          &maxUses,
		UsedCount:        4,
		Active:           true,
	})

	applied, err := v.Validate(context.Background(), "  save10 ", 5500, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if applied.CouponID != coupon.ID || applied.Code != "SAVE10" {
		t.Fatalf("unexpected applied coupon: %+v", applied)
	}
	if applied.Kind != enums.DiscountKindPercentage || applied.Value != 10 {
		t.Fatalf("unexpected discount terms: %+v", applied)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	v := newTestValidator(t, db)
	now := time.Now().UTC()
	ctx := context.Background()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	exhausted := 2

	seedCoupon(t, db, models.Coupon{Code: "DEAD", Kind: enums.DiscountKindFixed, Value: 500, Active: false})
	seedCoupon(t, db, models.Coupon{Code: "SOON", Kind: enums.DiscountKindFixed, Value: 500, StartsAt: &future, Active: true})
	seedCoupon(t, db, models.Coupon{Code: "GONE", Kind: enums.DiscountKindFixed, Value: 500, EndsAt: &past, Active: true})
	seedCoupon(t, db, models.Coupon{Code: "BIGCART", Kind: enums.DiscountKindFixed, Value: 500, MinSubtotalCents: 10000, Active: true})
	seedCoupon(t, db, models.Coupon{Code: "CAPPED", Kind: enums.DiscountKindFixed, Value: 500, MaxUses: &exhausted, UsedCount: 2, Active: true})

	cases := []struct {
		code   string
		reason enums.CouponRejectReason
	}{
		{"NOPE", enums.CouponRejectNotFound},
		{"DEAD", enums.CouponRejectInactive},
		{"SOON", enums.CouponRejectNotStarted},
		{"GONE", enums.CouponRejectExpired},
		{"BIGCART", enums.CouponRejectBelowMinimum},
		{"CAPPED", enums.CouponRejectUsageLimitReached},
	}
	for _, tc := range cases {
		_, err := v.Validate(ctx, tc.code, 5000, now)
		assertRejected(t, err, tc.reason)
	}
}

func TestValidateExpiryBoundaryIsExclusive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	v := newTestValidator(t, db)
	now := time.Now().UTC().Truncate(time.Second)

	ends := now
	seedCoupon(t, db, models.Coupon{Code: "EDGE", Kind: enums.DiscountKindFixed, Value: 100, EndsAt: &ends, Active: true})

	_, err := v.Validate(context.Background(), "EDGE", 5000, now)
	assertRejected(t, err, enums.CouponRejectExpired)
}

func TestConsumeUseGuardsTheCap(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	v := newTestValidator(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	maxUses := 1
	coupon := seedCoupon(t, db, models.Coupon{Code: "ONCE", Kind: enums.DiscountKindFixed, Value: 100, MaxUses: &maxUses, Active: true})

	if err := v.ConsumeUse(ctx, coupon.ID, now); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	err := v.ConsumeUse(ctx, coupon.ID, now)
	assertRejected(t, err, enums.CouponRejectUsageLimitReached)

	var stored models.Coupon
	if err := db.First(&stored, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if stored.UsedCount != 1 {
		t.Fatalf("expected used_count 1, got %d", stored.UsedCount)
	}
}

func TestConsumeUseUnlimitedCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	v := newTestValidator(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	coupon := seedCoupon(t, db, models.Coupon{Code: "FOREVER", Kind: enums.DiscountKindPercentage, Value: 5, Active: true})
	for i := 0; i < 3; i++ {
		if err := v.ConsumeUse(ctx, coupon.ID, now); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	var stored models.Coupon
	if err := db.First(&stored, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if stored.UsedCount != 3 {
		t.Fatalf("expected used_count 3, got %d", stored.UsedCount)
	}
}

func TestConsumeUseMissingCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	v := newTestValidator(t, db)

	err := v.ConsumeUse(context.Background(), uuid.New(), time.Now().UTC())
	assertRejected(t, err, enums.CouponRejectNotFound)
}
