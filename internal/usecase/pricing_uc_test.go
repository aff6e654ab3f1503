//go:build !integration

package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"pdf-conversion-billing/internal/usecase"
)

func newPricing() usecase.PricingUseCase {
	return usecase.NewPricingUseCase(decimal.RequireFromString("0.10"), 50, newTestLogger())
}

func TestPricingUseCase_Quote(t *testing.T) {
	pricing := newPricing()

	cases := []struct {
		name  string
		pages int
		want  string
	}{
		{name: "zero pages are free", pages: 0, want: "0"},
		{name: "single page is free", pages: 1, want: "0"},
		{name: "last free page", pages: 50, want: "0"},
		{name: "first billable page", pages: 51, want: "0.1"},
		{name: "eighty pages", pages: 80, want: "3"},
		{name: "large document", pages: 1050, want: "100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := pricing.Quote(tc.pages)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("Quote(%d) = %s, want %s", tc.pages, got, tc.want)
			}
		})
	}
}

func TestPricingUseCase_QuoteIsDeterministic(t *testing.T) {
	pricing := newPricing()

	first := pricing.Quote(80)
	for i := 0; i < 100; i++ {
		if got := pricing.Quote(80); !got.Equal(first) {
			t.Fatalf("quote drifted on run %d: %s != %s", i, got, first)
		}
	}
}

func TestPricingUseCase_QuoteCents(t *testing.T) {
	pricing := newPricing()

	t.Run("should express the quote in minor units", func(t *testing.T) {
		if got := pricing.QuoteCents(80); got != 300 {
			t.Errorf("QuoteCents(80) = %d, want 300", got)
		}
	})

	t.Run("should return zero for free documents", func(t *testing.T) {
		if got := pricing.QuoteCents(12); got != 0 {
			t.Errorf("QuoteCents(12) = %d, want 0", got)
		}
	})

	t.Run("should round sub-cent unit prices to cents", func(t *testing.T) {
		pricing := usecase.NewPricingUseCase(decimal.RequireFromString("0.015"), 0, newTestLogger())
		// 3 pages at 0.015 is 0.045, rounded half-up to 0.05.
		if got := pricing.QuoteCents(3); got != 5 {
			t.Errorf("QuoteCents(3) = %d, want 5", got)
		}
	})
}

func TestPricingUseCase_FreePageLimit(t *testing.T) {
	pricing := newPricing()
	if got := pricing.FreePageLimit(); got != 50 {
		t.Errorf("FreePageLimit() = %d, want 50", got)
	}
}
