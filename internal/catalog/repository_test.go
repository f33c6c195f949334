package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.InventoryItem{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, product models.Product, available int) models.Product {
	t.Helper()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Create(&models.InventoryItem{ProductID: product.ID, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func TestFindByIDLoadsSnapshot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := int64(2500)
	product := seedProduct(t, db, models.Product{
		SKU:            "TEE-RED-M",
		Name:           "Red Tee",
		PriceCents:     3000,
		SalePriceCents: &sale,
		TrackStock:     true,
		Active:         true,
	}, 7)

	snap, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if snap.SKU != "TEE-RED-M" || snap.Name != "Red Tee" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.AvailableQty != 7 {
		t.Fatalf("expected inventory preload, got %d", snap.AvailableQty)
	}
	if got := snap.EffectiveUnitPriceCents(); got != 2500 {
		t.Fatalf("expected sale price to win, got %d", got)
	}
}

func TestFindByIDMissingProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for missing product")
	}
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFindByIDsReturnsOnlyExisting(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := seedProduct(t, db, models.Product{SKU: "MUG-01", Name: "Mug", PriceCents: 1200, Active: true}, 3)
	second := seedProduct(t, db, models.Product{SKU: "CAP-01", Name: "Cap", PriceCents: 1800, Active: false}, 0)
	missing := uuid.New()

	snaps, err := repo.FindByIDs(ctx, []uuid.UUID{first.ID, second.ID, missing})
	if err != nil {
		t.Fatalf("find products: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if _, ok := snaps[missing]; ok {
		t.Fatal("missing product should not appear in the result")
	}
	if snaps[second.ID].Active {
		t.Fatal("expected inactive product to carry its flag")
	}
}

func TestEffectiveUnitPriceIgnoresHigherSale(t *testing.T) {
	t.Parallel()

	higher := int64(5000)
	snap := ProductSnapshot{PriceCents: 3000, SalePriceCents: &higher}
	if got := snap.EffectiveUnitPriceCents(); got != 3000 {
		t.Fatalf("sale above list price must not apply, got %d", got)
	}

	equal := int64(3000)
	snap.SalePriceCents = &equal
	if got := snap.EffectiveUnitPriceCents(); got != 3000 {
		t.Fatalf("sale equal to list price must not apply, got %d", got)
	}
}
