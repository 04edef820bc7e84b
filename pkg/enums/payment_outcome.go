package enums

import "fmt"

// PaymentOutcome is the result recorded for a single payment attempt.
type PaymentOutcome string

const (
	PaymentOutcomeSucceeded PaymentOutcome = "succeeded"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
)

var validPaymentOutcomes = []PaymentOutcome{
	PaymentOutcomeSucceeded,
	PaymentOutcomeFailed,
}

// String implements fmt.Stringer.
func (p PaymentOutcome) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentOutcome.
func (p PaymentOutcome) IsValid() bool {
	for _, candidate := range validPaymentOutcomes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentOutcome converts raw input into a PaymentOutcome.
func ParsePaymentOutcome(value string) (PaymentOutcome, error) {
	for _, candidate := range validPaymentOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment outcome %q", value)
}
