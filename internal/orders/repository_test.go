package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/pkg/db/models"
	"github.com/storefronthq/storefront-backend/pkg/pagination"
	"github.com/storefronthq/storefront-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderLine{}))
	return db
}

func sampleOrder(ownerID string) *models.Order {
	return &models.Order{
		OwnerID:       ownerID,
		SubtotalCents: 5500,
		ShippingCents: 100,
		DiscountCents: 560,
		TotalCents:    5040,
		Lines: []models.OrderLine{
			{
				ProductID:      uuid.New(),
				SKU:            "TEE-RED-M",
				Name:           "Red Tee",
				Attributes:     types.AttributeSet{"size": "m"},
				UnitPriceCents: 1500,
				Qty:            2,
				LineTotalCents: 3000,
			},
			{
				ProductID:      uuid.New(),
				SKU:            "MUG-01",
				Name:           "Mug",
				UnitPriceCents: 2500,
				Qty:            1,
				LineTotalCents: 2500,
			},
		},
	}
}

func TestCreateAndFindOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleOrder("user-1"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	found, err := repo.FindByIDAndOwner(ctx, created.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, found.Lines, 2)
	require.Equal(t, int64(5040), found.TotalCents)
	for _, line := range found.Lines {
		require.Equal(t, created.ID, line.OrderID)
	}
}

func TestFindOrderScopedToOwner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleOrder("user-1"))
	require.NoError(t, err)

	_, err = repo.FindByIDAndOwner(ctx, created.ID, "someone-else")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleOrder("user-1"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, sampleOrder("user-1"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, sampleOrder("user-2"))
	require.NoError(t, err)

	list, nextCursor, err := repo.ListByOwner(ctx, "user-1", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Empty(t, nextCursor)
	for _, order := range list {
		require.Equal(t, "user-1", order.OwnerID)
	}
}

func TestListByOwnerPagesWithCursor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, sampleOrder("user-1"))
		require.NoError(t, err)
	}

	first, cursor, err := repo.ListByOwner(ctx, "user-1", pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, cursor)

	second, cursor, err := repo.ListByOwner(ctx, "user-1", pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Empty(t, cursor)

	seen := map[uuid.UUID]bool{}
	for _, order := range append(first, second...) {
		require.False(t, seen[order.ID], "order %s returned twice", order.ID)
		seen[order.ID] = true
	}
}

func TestListByOwnerRejectsMalformedCursor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	_, _, err := repo.ListByOwner(context.Background(), "user-1", pagination.Params{Cursor: "not-base64!!"})
	require.Error(t, err)
}
