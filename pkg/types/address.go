package types

import "strings"

// Address is the delivery address snapshot frozen onto orders at checkout.
type Address struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

// IsZero reports whether no address fields are populated.
func (a Address) IsZero() bool {
	return a.Line1 == "" && a.City == "" && a.PostalCode == "" && a.Country == ""
}

// String renders a single-line form for logs and order summaries.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
