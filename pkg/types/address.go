package types

import "strings"

// Address is the shipping destination snapshotted onto carts and orders.
// Persisted as jsonb.
type Address struct {
	FullName   string  `json:"full_name"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate reports whether the required address fields are present.
func (a Address) Validate() error {
	missing := []string{}
	required := []struct {
		field string
		value string
	}{
		{"full_name", a.FullName},
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.field)
		}
	}
	if len(missing) > 0 {
		return &MissingAddressFieldsError{Fields: missing}
	}
	return nil
}

// MissingAddressFieldsError lists the absent required address fields.
type MissingAddressFieldsError struct {
	Fields []string
}

func (e *MissingAddressFieldsError) Error() string {
	return "address missing fields: " + strings.Join(e.Fields, ", ")
}
