package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeCharset omits 0/O/1/I/L so codes survive being read aloud or typed.
var codeCharset = []rune("ABCDEFGHJKMNPQRSTUVWXYZ23456789")

const (
	referralCodeLen   = 8
	couponCodeLen     = 10
	giftCardCodeLen   = 16
	giftCardCodeGroup = 4
)

// GenerateReferralCode returns a short human-shareable referral code.
func GenerateReferralCode() (string, error) {
	return randomCode(referralCodeLen)
}

// GenerateCouponCode returns a PTS-prefixed code for coupons minted from
// loyalty point redemptions.
func GenerateCouponCode() (string, error) {
	raw, err := randomCode(couponCodeLen)
	if err != nil {
		return "", err
	}
	return "PTS-" + raw, nil
}

// GenerateGiftCardCode returns a grouped gift card code like XXXX-XXXX-XXXX-XXXX.
func GenerateGiftCardCode() (string, error) {
	raw, err := randomCode(giftCardCodeLen)
	if err != nil {
		return "", err
	}
	groups := make([]string, 0, giftCardCodeLen/giftCardCodeGroup)
	for i := 0; i < len(raw); i += giftCardCodeGroup {
		groups = append(groups, raw[i:i+giftCardCodeGroup])
	}
	return strings.Join(groups, "-"), nil
}

func randomCode(length int) (string, error) {
	out := make([]rune, length)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		out[i] = codeCharset[n.Int64()]
	}
	return string(out), nil
}
