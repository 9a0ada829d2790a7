package pricing_test

import (
	"testing"
	"time"

	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/pricing"
)

func stay(t *testing.T, in, out time.Time) domain.Stay {
	t.Helper()
	s, err := domain.NewStay(in, out)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestQuote(t *testing.T) {
	calc := pricing.NewCalculator()

	cases := []struct {
		name   string
		rate   int64
		in     time.Time
		out    time.Time
		guests int
		want   int64
	}{
		{"two nights", 10000, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 2, 20000},
		{"one night", 10000, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), 1, 10000},
		{"week", 7550, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), 4, 52850},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := calc.Quote(c.rate, stay(t, c.in, c.out), c.guests)
			if got != c.want {
				t.Errorf("Quote = %d, want %d", got, c.want)
			}
		})
	}
}

func TestQuoteDeterministic(t *testing.T) {
	calc := pricing.NewCalculator()
	s := stay(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC))
	first := calc.Quote(12345, s, 3)
	for i := 0; i < 100; i++ {
		if got := calc.Quote(12345, s, 3); got != first {
			t.Fatalf("quote diverged on iteration %d: %d != %d", i, got, first)
		}
	}
}

func TestQuoteGuestCountIgnoredByDefault(t *testing.T) {
	calc := pricing.NewCalculator()
	s := stay(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	if calc.Quote(10000, s, 1) != calc.Quote(10000, s, 4) {
		t.Error("guest count changed the price with a zero extra-guest fee")
	}
}

func TestQuoteExtraGuestFee(t *testing.T) {
	calc := &pricing.Calculator{ExtraGuestFee: 500}
	s := stay(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	// 2 nights * 10000 + 2 extra guests * 500 * 2 nights
	if got := calc.Quote(10000, s, 3); got != 22000 {
		t.Errorf("Quote with fee = %d, want 22000", got)
	}
}
