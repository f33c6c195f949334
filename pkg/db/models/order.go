package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the immutable result of a finalized checkout. Totals and lines are
// frozen at commit time and never updated afterwards; there is deliberately no
// UpdatedAt column.
type Order struct {
	ID            uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID       string      `gorm:"column:owner_id;not null;index"`
	SubtotalCents int64       `gorm:"column:subtotal_cents;not null"`
	ShippingCents int64       `gorm:"column:shipping_cents;not null"`
	DiscountCents int64       `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int64       `gorm:"column:total_cents;not null"`
	CouponID      *uuid.UUID  `gorm:"column:coupon_id;type:uuid"`
	CouponCode    *string     `gorm:"column:coupon_code"`
	Lines         []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime"`
}
