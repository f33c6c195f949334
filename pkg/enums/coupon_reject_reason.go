package enums

// CouponRejectReason enumerates why a coupon code was refused.
type CouponRejectReason string

const (
	CouponRejectNotFound          CouponRejectReason = "not_found"
	CouponRejectInactive          CouponRejectReason = "inactive"
	CouponRejectNotStarted        CouponRejectReason = "not_yet_started"
	CouponRejectExpired           CouponRejectReason = "expired"
	CouponRejectBelowMinimum      CouponRejectReason = "below_minimum_amount"
	CouponRejectUsageLimitReached CouponRejectReason = "usage_limit_reached"
)

var validCouponRejectReasons = []CouponRejectReason{
	CouponRejectNotFound,
	CouponRejectInactive,
	CouponRejectNotStarted,
	CouponRejectExpired,
	CouponRejectBelowMinimum,
	CouponRejectUsageLimitReached,
}

// IsValid reports whether the value matches the canonical rejection reason enum.
func (c CouponRejectReason) IsValid() bool {
	for _, candidate := range validCouponRejectReasons {
		if candidate == c {
			return true
		}
	}
	return false
}
