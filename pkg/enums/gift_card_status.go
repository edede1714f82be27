package enums

import "fmt"

// GiftCardStatus tracks whether a stored-value card can still be spent.
type GiftCardStatus string

const (
	GiftCardStatusActive   GiftCardStatus = "active"
	GiftCardStatusRedeemed GiftCardStatus = "redeemed"
	GiftCardStatusExpired  GiftCardStatus = "expired"
	GiftCardStatusDisabled GiftCardStatus = "disabled"
)

var validGiftCardStatuses = []GiftCardStatus{
	GiftCardStatusActive,
	GiftCardStatusRedeemed,
	GiftCardStatusExpired,
	GiftCardStatusDisabled,
}

// String implements fmt.Stringer.
func (g GiftCardStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GiftCardStatus.
func (g GiftCardStatus) IsValid() bool {
	for _, candidate := range validGiftCardStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGiftCardStatus converts raw input into a GiftCardStatus.
func ParseGiftCardStatus(value string) (GiftCardStatus, error) {
	for _, candidate := range validGiftCardStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gift card status %q", value)
}
