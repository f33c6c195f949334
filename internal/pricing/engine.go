package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefronthq/storefront-backend/internal/catalog"
	"github.com/storefronthq/storefront-backend/internal/coupons"
	"github.com/storefronthq/storefront-backend/pkg/config"
	"github.com/storefronthq/storefront-backend/pkg/enums"
	"github.com/storefronthq/storefront-backend/pkg/types"
)

// Skip reasons attached to cart lines the engine refuses to price.
const (
	SkipProductMissing  = "product_missing"
	SkipProductInactive = "product_inactive"
)

// Item pairs a cart line with its catalog snapshot. Product is nil when the
// referenced listing no longer exists.
type Item struct {
	CartItemID uuid.UUID
	Qty        int
	Attributes types.AttributeSet
	Product    *catalog.ProductSnapshot
}

// Line is a priced cart line.
type Line struct {
	CartItemID     uuid.UUID
	ProductID      uuid.UUID
	SKU            string
	Name           string
	Attributes     types.AttributeSet
	UnitPriceCents int64
	Qty            int
	LineTotalCents int64
}

// SkippedLine flags a cart line that could not be priced and why.
type SkippedLine struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Reason     string
}

// Summary is the full priced view of a cart. All amounts are minor units.
type Summary struct {
	Lines         []Line
	Skipped       []SkippedLine
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
	Coupon        *coupons.Applied
}

// Engine computes cart totals. It is pure: no storage access, no clock, so
// the same inputs always price identically across cart views and checkout.
type Engine struct {
	cfg config.PricingConfig
}

// NewEngine builds a pricing engine with the provided shipping knobs.
func NewEngine(cfg config.PricingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Price computes the summary for the given cart lines and optional coupon.
// Lines whose product is missing or inactive are skipped, not failed: the
// cart stays viewable while the catalog shifts underneath it.
func (e *Engine) Price(items []Item, applied *coupons.Applied) Summary {
	summary := Summary{Coupon: applied}

	for _, item := range items {
		if item.Product == nil {
			summary.Skipped = append(summary.Skipped, SkippedLine{
				CartItemID: item.CartItemID,
				Reason:     SkipProductMissing,
			})
			continue
		}
		if !item.Product.Active {
			summary.Skipped = append(summary.Skipped, SkippedLine{
				CartItemID: item.CartItemID,
				ProductID:  item.Product.ProductID,
				Reason:     SkipProductInactive,
			})
			continue
		}

		unit := item.Product.EffectiveUnitPriceCents()
		line := Line{
			CartItemID:     item.CartItemID,
			ProductID:      item.Product.ProductID,
			SKU:            item.Product.SKU,
			Name:           item.Product.Name,
			Attributes:     item.Attributes.Clone(),
			UnitPriceCents: unit,
			Qty:            item.Qty,
			LineTotalCents: unit * int64(item.Qty),
		}
		summary.Lines = append(summary.Lines, line)
		summary.SubtotalCents += line.LineTotalCents
	}

	summary.ShippingCents = e.shippingFor(summary)
	summary.DiscountCents = discountFor(applied, summary.SubtotalCents, summary.ShippingCents)

	total := summary.SubtotalCents + summary.ShippingCents - summary.DiscountCents
	if total < 0 {
		total = 0
	}
	summary.TotalCents = total
	return summary
}

func (e *Engine) shippingFor(summary Summary) int64 {
	if len(summary.Lines) == 0 {
		return 0
	}
	if summary.SubtotalCents >= e.cfg.FreeShippingThresholdCents {
		return 0
	}
	return e.cfg.ShippingFeeCents
}

// discountFor resolves the coupon's value against the priced cart. Percentage
// coupons discount the shipped order amount (subtotal plus shipping); fixed
// coupons subtract cents up to the subtotal. The result never exceeds what the
// buyer would otherwise pay.
func discountFor(applied *coupons.Applied, subtotalCents, shippingCents int64) int64 {
	if applied == nil {
		return 0
	}

	var discount int64
	switch applied.Kind {
	case enums.DiscountKindPercentage:
		base := subtotalCents + shippingCents
		discount = decimal.NewFromInt(base).
			Mul(decimal.NewFromInt(applied.Value)).
			DivRound(decimal.NewFromInt(100), 0).
			IntPart()
	case enums.DiscountKindFixed:
		discount = applied.Value
		if discount > subtotalCents {
			discount = subtotalCents
		}
	}

	if discount < 0 {
		discount = 0
	}
	if max := subtotalCents + shippingCents; discount > max {
		discount = max
	}
	return discount
}
