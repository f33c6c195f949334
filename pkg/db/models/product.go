package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the canonical catalog listing. Cart and checkout read it through
// the catalog snapshot; only admin tooling (out of scope here) writes it.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU            string         `gorm:"column:sku;not null;uniqueIndex"`
	Name           string         `gorm:"column:name;not null"`
	Description    *string        `gorm:"column:description"`
	PriceCents     int64          `gorm:"column:price_cents;not null"`
	SalePriceCents *int64         `gorm:"column:sale_price_cents"`
	TrackStock     bool           `gorm:"column:track_stock;not null;default:true"`
	Active         bool           `gorm:"column:active;not null;default:true"`
	Inventory      *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
