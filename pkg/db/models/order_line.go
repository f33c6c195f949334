package models

import (
	"github.com/google/uuid"

	"github.com/storefronthq/storefront-backend/pkg/types"
)

// OrderLine freezes one purchased line: unit price, quantity, and the selected
// attributes at the moment of purchase. Later product edits never touch it.
type OrderLine struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	SKU            string             `gorm:"column:sku;not null"`
	Name           string             `gorm:"column:name;not null"`
	Attributes     types.AttributeSet `gorm:"column:attributes;type:jsonb;serializer:json"`
	UnitPriceCents int64              `gorm:"column:unit_price_cents;not null"`
	Qty            int                `gorm:"column:qty;not null"`
	LineTotalCents int64              `gorm:"column:line_total_cents;not null"`
}
