package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefronthq/storefront-backend/internal/cart"
	"github.com/storefronthq/storefront-backend/internal/pricing"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
)

type cartLineView struct {
	ID             uuid.UUID         `json:"id"`
	ProductID      uuid.UUID         `json:"product_id"`
	SKU            string            `json:"sku"`
	Name           string            `json:"name"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Qty            int               `json:"qty"`
	LineTotalCents int64             `json:"line_total_cents"`
}

type skippedLineView struct {
	CartItemID uuid.UUID `json:"cart_item_id"`
	ProductID  uuid.UUID `json:"product_id,omitempty"`
	Reason     string    `json:"reason"`
}

type couponRejectionView struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type cartView struct {
	Items           []cartLineView       `json:"items"`
	Skipped         []skippedLineView    `json:"skipped,omitempty"`
	SubtotalCents   int64                `json:"subtotal_cents"`
	ShippingCents   int64                `json:"shipping_cents"`
	DiscountCents   int64                `json:"discount_cents"`
	TotalCents      int64                `json:"total_cents"`
	CouponCode      *string              `json:"coupon_code,omitempty"`
	CouponRejection *couponRejectionView `json:"coupon_rejection,omitempty"`
}

type mutationView struct {
	Item      *cartLineItemView `json:"item,omitempty"`
	Truncated bool              `json:"truncated"`
}

type cartLineItemView struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"product_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Qty        int               `json:"qty"`
}

type orderLineView struct {
	ProductID      uuid.UUID         `json:"product_id"`
	SKU            string            `json:"sku"`
	Name           string            `json:"name"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Qty            int               `json:"qty"`
	LineTotalCents int64             `json:"line_total_cents"`
}

type orderListView struct {
	Orders     []orderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type orderView struct {
	ID            uuid.UUID       `json:"id"`
	SubtotalCents int64           `json:"subtotal_cents"`
	ShippingCents int64           `json:"shipping_cents"`
	DiscountCents int64           `json:"discount_cents"`
	TotalCents    int64           `json:"total_cents"`
	CouponCode    *string         `json:"coupon_code,omitempty"`
	Lines         []orderLineView `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newCartView(view *cart.View) cartView {
	out := cartView{
		Items:         make([]cartLineView, 0, len(view.Summary.Lines)),
		SubtotalCents: view.Summary.SubtotalCents,
		ShippingCents: view.Summary.ShippingCents,
		DiscountCents: view.Summary.DiscountCents,
		TotalCents:    view.Summary.TotalCents,
		CouponCode:    view.CouponCode,
	}
	for _, line := range view.Summary.Lines {
		out.Items = append(out.Items, newCartLineView(line))
	}
	for _, skipped := range view.Summary.Skipped {
		out.Skipped = append(out.Skipped, skippedLineView{
			CartItemID: skipped.CartItemID,
			ProductID:  skipped.ProductID,
			Reason:     skipped.Reason,
		})
	}
	if view.CouponRejection != nil {
		out.CouponRejection = &couponRejectionView{
			Code:   view.CouponRejection.Code,
			Reason: string(view.CouponRejection.Reason),
		}
	}
	return out
}

func newCartLineView(line pricing.Line) cartLineView {
	return cartLineView{
		ID:             line.CartItemID,
		ProductID:      line.ProductID,
		SKU:            line.SKU,
		Name:           line.Name,
		Attributes:     line.Attributes,
		UnitPriceCents: line.UnitPriceCents,
		Qty:            line.Qty,
		LineTotalCents: line.LineTotalCents,
	}
}

func newMutationView(result *cart.MutationResult) mutationView {
	out := mutationView{Truncated: result.Truncated}
	if result.Item != nil {
		out.Item = &cartLineItemView{
			ID:         result.Item.ID,
			ProductID:  result.Item.ProductID,
			Attributes: result.Item.Attributes,
			Qty:        result.Item.Qty,
		}
	}
	return out
}

func newOrderView(order *models.Order) orderView {
	out := orderView{
		ID:            order.ID,
		SubtotalCents: order.SubtotalCents,
		ShippingCents: order.ShippingCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
		CouponCode:    order.CouponCode,
		Lines:         make([]orderLineView, 0, len(order.Lines)),
		CreatedAt:     order.CreatedAt,
	}
	for _, line := range order.Lines {
		out.Lines = append(out.Lines, orderLineView{
			ProductID:      line.ProductID,
			SKU:            line.SKU,
			Name:           line.Name,
			Attributes:     line.Attributes,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return out
}
