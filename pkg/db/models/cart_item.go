package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefronthq/storefront-backend/pkg/types"
)

// CartItem is one line of an owner's cart. Owner identity is either a guest
// session id or a user id; the store treats both uniformly. Lines are unique
// per (owner, product, canonical attribute key), so adding the same selection
// twice increments quantity instead of inserting a second row.
type CartItem struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID       string             `gorm:"column:owner_id;not null;uniqueIndex:idx_cart_items_owner_product_attrs,priority:1;index"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_owner_product_attrs,priority:2"`
	Attributes    types.AttributeSet `gorm:"column:attributes;type:jsonb;serializer:json"`
	AttributesKey string             `gorm:"column:attributes_key;not null;uniqueIndex:idx_cart_items_owner_product_attrs,priority:3"`
	Qty           int                `gorm:"column:qty;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
