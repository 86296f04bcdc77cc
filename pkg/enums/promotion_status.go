package enums

import "fmt"

// PromotionStatus tracks whether a promotion is currently applicable.
type PromotionStatus string

const (
	PromotionStatusActive   PromotionStatus = "Active"
	PromotionStatusInactive PromotionStatus = "Inactive"
)

var validPromotionStatuses = []PromotionStatus{
	PromotionStatusActive,
	PromotionStatusInactive,
}

// String implements fmt.Stringer.
func (p PromotionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PromotionStatus.
func (p PromotionStatus) IsValid() bool {
	for _, candidate := range validPromotionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePromotionStatus converts raw input into a PromotionStatus.
func ParsePromotionStatus(value string) (PromotionStatus, error) {
	for _, candidate := range validPromotionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion status %q", value)
}
