package enums

import "fmt"

// PaymentDetailStatus records the outcome of a single payment attempt.
type PaymentDetailStatus string

const (
	PaymentDetailStatusSuccess PaymentDetailStatus = "Success"
	PaymentDetailStatusFailed  PaymentDetailStatus = "Failed"
)

var validPaymentDetailStatuses = []PaymentDetailStatus{
	PaymentDetailStatusSuccess,
	PaymentDetailStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentDetailStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentDetailStatus.
func (p PaymentDetailStatus) IsValid() bool {
	for _, candidate := range validPaymentDetailStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentDetailStatus converts raw input into a PaymentDetailStatus.
func ParsePaymentDetailStatus(value string) (PaymentDetailStatus, error) {
	for _, candidate := range validPaymentDetailStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment detail status %q", value)
}
