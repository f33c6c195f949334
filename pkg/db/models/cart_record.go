package models

import (
	"time"
)

// CartRecord carries per-owner cart state that is not a line item, currently
// just the applied coupon code. One row per owner; removed when the cart is
// cleared, merged away, or converted into an order.
type CartRecord struct {
	OwnerID    string    `gorm:"column:owner_id;primaryKey"`
	CouponCode *string   `gorm:"column:coupon_code"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
