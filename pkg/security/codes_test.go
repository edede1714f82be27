package security_test

import (
	"strings"
	"testing"

	"github.com/merakimart/backend/pkg/security"
)

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := security.GenerateReferralCode()
		if err != nil {
			t.Fatalf("GenerateReferralCode returned error: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8-char code, got %q", code)
		}
		if strings.ContainsAny(code, "0O1IL") {
			t.Fatalf("code %q contains ambiguous characters", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("expected mostly unique codes, got %d distinct of 50", len(seen))
	}
}

func TestGenerateCouponCode(t *testing.T) {
	code, err := security.GenerateCouponCode()
	if err != nil {
		t.Fatalf("GenerateCouponCode returned error: %v", err)
	}
	if !strings.HasPrefix(code, "PTS-") || len(code) != 14 {
		t.Fatalf("unexpected coupon code %q", code)
	}
}

func TestGenerateGiftCardCode(t *testing.T) {
	code, err := security.GenerateGiftCardCode()
	if err != nil {
		t.Fatalf("GenerateGiftCardCode returned error: %v", err)
	}
	groups := strings.Split(code, "-")
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %q", code)
	}
	for _, g := range groups {
		if len(g) != 4 {
			t.Fatalf("expected 4-char groups, got %q", code)
		}
	}
}
