package enums

import "fmt"

// DiscountKind describes how a coupon's value is interpreted.
type DiscountKind string

const (
	// DiscountKindPercentage applies value% of the discountable amount.
	DiscountKindPercentage DiscountKind = "percentage"
	// DiscountKindFixed subtracts a fixed amount of cents, capped at the subtotal.
	DiscountKindFixed DiscountKind = "fixed"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindPercentage,
	DiscountKindFixed,
}

// IsValid reports whether the value matches the canonical discount kind enum.
func (d DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts the raw string to DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
