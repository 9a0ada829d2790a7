// Package pricing quotes stay totals. Quotes are deterministic so that a
// modify can diff the new total against the committed one for settlement.
package pricing

import "github.com/harborview/reservations/internal/domain"

type Calculator struct {
	// ExtraGuestFee is charged per guest per night beyond the first.
	// Rates are currently per room, so this stays zero; the hook exists so
	// an occupancy-based policy does not need a signature change.
	ExtraGuestFee int64
}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Quote returns the total for a stay in minor currency units.
func (c *Calculator) Quote(nightlyRate int64, stay domain.Stay, guestCount int) int64 {
	nights := int64(stay.Nights())
	total := nightlyRate * nights
	if guestCount > 1 {
		total += c.ExtraGuestFee * int64(guestCount-1) * nights
	}
	return total
}
