package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefronthq/storefront-backend/pkg/enums"
)

// Coupon holds a discount rule. UsedCount is mutated in exactly one place:
// the checkout transaction, via an atomic guarded increment.
type Coupon struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string             `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.DiscountKind `gorm:"column:kind;not null"`
	Value            int64              `gorm:"column:value;not null"`
	MinSubtotalCents int64              `gorm:"column:min_subtotal_cents;not null;default:0"`
	StartsAt         *time.Time         `gorm:"column:starts_at"`
	EndsAt           *time.Time         `gorm:"column:ends_at"`
	MaxUses          *int               `gorm:"column:max_uses"`
	UsedCount        int                `gorm:"column:used_count;not null;default:0"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
