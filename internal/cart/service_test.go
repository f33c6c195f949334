package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/internal/catalog"
	"github.com/storefronthq/storefront-backend/internal/coupons"
	"github.com/storefronthq/storefront-backend/internal/pricing"
	"github.com/storefronthq/storefront-backend/pkg/config"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
	"github.com/storefronthq/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
	"github.com/storefronthq/storefront-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.InventoryItem{},
		&models.CartItem{},
		&models.CartRecord{},
		&models.Coupon{},
	)
	if err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	validator, err := coupons.NewValidator(coupons.NewRepository(db))
	if err != nil {
		t.Fatalf("build validator: %v", err)
	}
	engine := pricing.NewEngine(config.PricingConfig{
		FreeShippingThresholdCents: 200000,
		ShippingFeeCents:           100,
	})
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db), validator, engine, gormTxRunner{db: db})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, priceCents int64, available int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + uuid.NewString()[:8],
		Name:       "Product",
		PriceCents: priceCents,
		TrackStock: true,
		Active:     true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Create(&models.InventoryItem{ProductID: product.ID, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product.ID
}

func TestAddItemCreatesThenIncrements(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1500, 10)
	attrs := types.AttributeSet{"size": "m", "color": "red"}

	first, err := svc.AddItem(ctx, "guest-1", productID, attrs, 2)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if first.Item.Qty != 2 || first.Truncated {
		t.Fatalf("unexpected first add: %+v", first)
	}

	second, err := svc.AddItem(ctx, "guest-1", productID, types.AttributeSet{"color": "red", "size": "m"}, 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if second.Item.ID != first.Item.ID {
		t.Fatal("expected same line for identical attributes regardless of key order")
	}
	if second.Item.Qty != 5 {
		t.Fatalf("expected qty 5, got %d", second.Item.Qty)
	}

	var count int64
	if err := db.Model(&models.CartItem{}).Where("owner_id = ?", "guest-1").Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 line, got %d", count)
	}
}

func TestAddItemDistinctAttributesMakeDistinctLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1500, 10)

	if _, err := svc.AddItem(ctx, "guest-1", productID, types.AttributeSet{"size": "m"}, 1); err != nil {
		t.Fatalf("add m: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", productID, types.AttributeSet{"size": "l"}, 1); err != nil {
		t.Fatalf("add l: %v", err)
	}

	var count int64
	if err := db.Model(&models.CartItem{}).Where("owner_id = ?", "guest-1").Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 lines, got %d", count)
	}
}

func TestAddItemClampsToStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1000, 4)

	result, err := svc.AddItem(ctx, "guest-1", productID, nil, 9)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !result.Truncated || result.Item.Qty != 4 {
		t.Fatalf("expected clamp to 4 with truncation, got %+v", result)
	}

	// Stock leaves no room beyond what the cart already holds.
	_, err = svc.AddItem(ctx, "guest-1", productID, nil, 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStockShortage {
		t.Fatalf("expected stock shortage, got %v", err)
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1000, 4)

	if _, err := svc.AddItem(ctx, "guest-1", productID, nil, 0); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", uuid.New(), nil, 1); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}

	inactive := models.Product{ID: uuid.New(), SKU: "GONE-01", Name: "Gone", PriceCents: 100, Active: false}
	if err := db.Create(&inactive).Error; err != nil {
		t.Fatalf("seed inactive: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", inactive.ID, nil, 1); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for inactive product, got %v", err)
	}
}

func TestSetQuantityRemovesAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1000, 10)

	added, err := svc.AddItem(ctx, "guest-1", productID, nil, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := svc.SetQuantity(ctx, "guest-1", added.Item.ID, 0); err != nil {
		t.Fatalf("set zero: %v", err)
	}
	var count int64
	if err := db.Model(&models.CartItem{}).Where("owner_id = ?", "guest-1").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty cart, got %d lines", count)
	}

	// Removing again is a no-op, not an error.
	if _, err := svc.SetQuantity(ctx, "guest-1", added.Item.ID, -1); err != nil {
		t.Fatalf("repeat removal: %v", err)
	}
}

func TestSetQuantityUpdatesAndClamps(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1000, 5)

	added, err := svc.AddItem(ctx, "guest-1", productID, nil, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := svc.SetQuantity(ctx, "guest-1", added.Item.ID, 8)
	if err != nil {
		t.Fatalf("set qty: %v", err)
	}
	if result.Item.Qty != 5 || !result.Truncated {
		t.Fatalf("expected clamp to 5 with truncation, got %+v", result)
	}

	if _, err := svc.SetQuantity(ctx, "other-owner", added.Item.ID, 2); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}

func TestClearEmptiesCartAndCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 10000, 10)

	if _, err := svc.AddItem(ctx, "guest-1", productID, nil, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	seedCoupon(t, db, "SAVE5", enums.DiscountKindFixed, 500, 0)
	if _, err := svc.ApplyCoupon(ctx, "guest-1", "SAVE5"); err != nil {
		t.Fatalf("apply coupon: %v", err)
	}

	if err := svc.Clear(ctx, "guest-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	view, err := svc.Get(ctx, "guest-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Summary.Lines) != 0 || view.CouponCode != nil {
		t.Fatalf("expected empty cart, got %+v", view)
	}

	// Clearing an already-empty cart succeeds.
	if err := svc.Clear(ctx, "guest-1"); err != nil {
		t.Fatalf("repeat clear: %v", err)
	}
}

func seedCoupon(t *testing.T, db *gorm.DB, code string, kind enums.DiscountKind, value, minSubtotal int64) {
	t.Helper()
	coupon := models.Coupon{
		ID:               uuid.New(),
		Code:             code,
		Kind:             kind,
		Value:            value,
		MinSubtotalCents: minSubtotal,
		Active:           true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
}

func TestApplyCouponPricesAndPins(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	cheap := seedProduct(t, db, 1500, 10)
	dear := seedProduct(t, db, 2500, 10)
	if _, err := svc.AddItem(ctx, "guest-1", cheap, nil, 2); err != nil {
		t.Fatalf("add cheap: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", dear, nil, 1); err != nil {
		t.Fatalf("add dear: %v", err)
	}
	seedCoupon(t, db, "SAVE10", enums.DiscountKindPercentage, 10, 0)

	view, err := svc.ApplyCoupon(ctx, "guest-1", "save10")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if view.Summary.SubtotalCents != 5500 || view.Summary.ShippingCents != 100 {
		t.Fatalf("unexpected base amounts: %+v", view.Summary)
	}
	if view.Summary.DiscountCents != 560 || view.Summary.TotalCents != 5040 {
		t.Fatalf("unexpected coupon amounts: %+v", view.Summary)
	}

	var record models.CartRecord
	if err := db.First(&record, "owner_id = ?", "guest-1").Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.CouponCode == nil || *record.CouponCode != "SAVE10" {
		t.Fatalf("expected pinned coupon, got %+v", record)
	}
}

func TestApplyCouponRejectionDoesNotPin(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1000, 10)

	if _, err := svc.AddItem(ctx, "guest-1", productID, nil, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	seedCoupon(t, db, "BIGONLY", enums.DiscountKindFixed, 500, 99999)

	_, err := svc.ApplyCoupon(ctx, "guest-1", "BIGONLY")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCouponReject {
		t.Fatalf("expected rejection, got %v", err)
	}

	record, rerr := NewRepository(db).GetRecord(ctx, "guest-1")
	if rerr != nil {
		t.Fatalf("load record: %v", rerr)
	}
	if record != nil && record.CouponCode != nil {
		t.Fatal("rejected coupon must not be pinned")
	}
}

func TestGetReportsStaleCouponWithoutApplyingIt(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 10000, 10)

	added, err := svc.AddItem(ctx, "guest-1", productID, nil, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	seedCoupon(t, db, "MIN150", enums.DiscountKindFixed, 500, 15000)
	if _, err := svc.ApplyCoupon(ctx, "guest-1", "MIN150"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Dropping a unit pushes the subtotal below the coupon's minimum.
	if _, err := svc.SetQuantity(ctx, "guest-1", added.Item.ID, 1); err != nil {
		t.Fatalf("set qty: %v", err)
	}

	view, err := svc.Get(ctx, "guest-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Summary.DiscountCents != 0 {
		t.Fatalf("stale coupon must not discount, got %d", view.Summary.DiscountCents)
	}
	if view.CouponRejection == nil || view.CouponRejection.Reason != enums.CouponRejectBelowMinimum {
		t.Fatalf("expected below-minimum rejection, got %+v", view.CouponRejection)
	}
	if view.CouponCode == nil || *view.CouponCode != "MIN150" {
		t.Fatal("stale coupon should stay pinned for checkout to decide")
	}
}

func TestMergeGuestIntoUser(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	shared := seedProduct(t, db, 1000, 50)
	guestOnly := seedProduct(t, db, 2000, 50)

	if _, err := svc.AddItem(ctx, "user-1", shared, types.AttributeSet{"size": "m"}, 2); err != nil {
		t.Fatalf("seed user line: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", shared, types.AttributeSet{"size": "m"}, 3); err != nil {
		t.Fatalf("seed guest shared line: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", guestOnly, nil, 1); err != nil {
		t.Fatalf("seed guest-only line: %v", err)
	}
	seedCoupon(t, db, "WELCOME", enums.DiscountKindFixed, 500, 0)
	if _, err := svc.ApplyCoupon(ctx, "guest-1", "WELCOME"); err != nil {
		t.Fatalf("apply guest coupon: %v", err)
	}

	if err := svc.MergeGuestIntoUser(ctx, "guest-1", "user-1"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	userItems, err := NewRepository(db).ListItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("list user items: %v", err)
	}
	if len(userItems) != 2 {
		t.Fatalf("expected 2 user lines, got %d", len(userItems))
	}
	byProduct := map[uuid.UUID]int{}
	for _, item := range userItems {
		byProduct[item.ProductID] = item.Qty
	}
	if byProduct[shared] != 5 {
		t.Fatalf("expected summed qty 5, got %d", byProduct[shared])
	}
	if byProduct[guestOnly] != 1 {
		t.Fatalf("expected reassigned line, got %d", byProduct[guestOnly])
	}

	guestItems, err := NewRepository(db).ListItems(ctx, "guest-1")
	if err != nil {
		t.Fatalf("list guest items: %v", err)
	}
	if len(guestItems) != 0 {
		t.Fatalf("expected empty guest cart, got %d lines", len(guestItems))
	}

	record, err := NewRepository(db).GetRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("load user record: %v", err)
	}
	if record == nil || record.CouponCode == nil || *record.CouponCode != "WELCOME" {
		t.Fatalf("expected coupon carried over, got %+v", record)
	}

	// Replaying the merge after the guest cart is gone is a no-op.
	if err := svc.MergeGuestIntoUser(ctx, "guest-1", "user-1"); err != nil {
		t.Fatalf("repeat merge: %v", err)
	}
}

func TestMergeKeepsUserCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := seedProduct(t, db, 1000, 50)

	if _, err := svc.AddItem(ctx, "user-1", productID, nil, 1); err != nil {
		t.Fatalf("seed user line: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", productID, nil, 1); err != nil {
		t.Fatalf("seed guest line: %v", err)
	}
	seedCoupon(t, db, "USERS", enums.DiscountKindFixed, 100, 0)
	seedCoupon(t, db, "GUESTS", enums.DiscountKindFixed, 200, 0)
	if _, err := svc.ApplyCoupon(ctx, "user-1", "USERS"); err != nil {
		t.Fatalf("apply user coupon: %v", err)
	}
	if _, err := svc.ApplyCoupon(ctx, "guest-1", "GUESTS"); err != nil {
		t.Fatalf("apply guest coupon: %v", err)
	}

	if err := svc.MergeGuestIntoUser(ctx, "guest-1", "user-1"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	record, err := NewRepository(db).GetRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record == nil || record.CouponCode == nil || *record.CouponCode != "USERS" {
		t.Fatalf("user coupon must win the merge, got %+v", record)
	}
}

func TestGetSkipsVanishedProducts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	keep := seedProduct(t, db, 1000, 10)
	vanish := seedProduct(t, db, 2000, 10)

	if _, err := svc.AddItem(ctx, "guest-1", keep, nil, 1); err != nil {
		t.Fatalf("add keep: %v", err)
	}
	if _, err := svc.AddItem(ctx, "guest-1", vanish, nil, 1); err != nil {
		t.Fatalf("add vanish: %v", err)
	}
	if err := db.Where("id = ?", vanish).Delete(&models.Product{}).Error; err != nil {
		t.Fatalf("delete product: %v", err)
	}

	view, err := svc.Get(ctx, "guest-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Summary.SubtotalCents != 1000 {
		t.Fatalf("expected only surviving line priced, got %d", view.Summary.SubtotalCents)
	}
	if len(view.Summary.Skipped) != 1 || view.Summary.Skipped[0].Reason != pricing.SkipProductMissing {
		t.Fatalf("expected one missing-product skip, got %+v", view.Summary.Skipped)
	}
}
