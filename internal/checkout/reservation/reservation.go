package reservation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
)

// InventoryReservationRequest asks for qty units of a product on behalf of a
// cart line. Lines for the same product are summed before checking stock.
type InventoryReservationRequest struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Qty        int
}

// Shortage names a product that could not be fully reserved.
type Shortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// ReserveInventory atomically moves stock from available to reserved for every
// request, or for none of them. All shortages are collected before failing so
// the buyer sees the full picture in one round trip, not one product at a time.
// Must run inside the checkout transaction; a concurrent decrement that wins
// the race surfaces as a retryable conflict.
func ReserveInventory(ctx context.Context, tx *gorm.DB, requests []InventoryReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}

	needed := make(map[uuid.UUID]int, len(requests))
	order := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		if req.Qty < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be at least 1")
		}
		if _, seen := needed[req.ProductID]; !seen {
			order = append(order, req.ProductID)
		}
		needed[req.ProductID] += req.Qty
	}
	if len(order) == 0 {
		return nil
	}

	var rows []models.InventoryItem
	err := tx.WithContext(ctx).
		Where("product_id IN ?", order).
		Find(&rows).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load inventory")
	}

	available := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		available[row.ProductID] = row.AvailableQty
	}

	var shortages []Shortage
	for _, productID := range order {
		if available[productID] < needed[productID] {
			shortages = append(shortages, Shortage{
				ProductID: productID,
				Requested: needed[productID],
				Available: available[productID],
			})
		}
	}
	if len(shortages) > 0 {
		return pkgerrors.New(pkgerrors.CodeStockShortage, "insufficient stock").
			WithDetails(shortages)
	}

	for _, productID := range order {
		qty := needed[productID]
		result := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND available_qty >= ?", productID, qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", qty),
			})
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "failed to reserve inventory")
		}
		// The guard lost a race with a concurrent checkout; roll back and retry.
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInternal, "inventory changed during reservation")
		}
	}
	return nil
}
