package catalog

import (
	"github.com/google/uuid"

	"github.com/storefronthq/storefront-backend/pkg/db/models"
)

// ProductSnapshot is the read view the cart and pricing paths consume. It is
// never written back; stock mutation belongs to the checkout stock guard.
type ProductSnapshot struct {
	ProductID      uuid.UUID
	SKU            string
	Name           string
	PriceCents     int64
	SalePriceCents *int64
	AvailableQty   int
	TrackStock     bool
	Active         bool
}

// EffectiveUnitPriceCents returns the price actually charged per unit: the
// sale price wins only when present and strictly below the list price.
func (s ProductSnapshot) EffectiveUnitPriceCents() int64 {
	if s.SalePriceCents != nil && *s.SalePriceCents < s.PriceCents {
		return *s.SalePriceCents
	}
	return s.PriceCents
}

func newSnapshot(product *models.Product) *ProductSnapshot {
	if product == nil {
		return nil
	}
	snap := &ProductSnapshot{
		ProductID:  product.ID,
		SKU:        product.SKU,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		TrackStock: product.TrackStock,
		Active:     product.Active,
	}
	if product.SalePriceCents != nil {
		val := *product.SalePriceCents
		snap.SalePriceCents = &val
	}
	if product.Inventory != nil {
		snap.AvailableQty = product.Inventory.AvailableQty
	}
	return snap
}
