// Package policy holds refund eligibility rules for cancellations.
package policy

import "time"

const DefaultRefundWindow = 72 * time.Hour

// CancellationPolicy decides whether a cancellation refunds the guest.
// Decisions use the server clock only; client-supplied times are never
// consulted.
type CancellationPolicy struct {
	RefundWindow time.Duration
	Now          func() time.Time
}

func NewCancellationPolicy() *CancellationPolicy {
	return &CancellationPolicy{RefundWindow: DefaultRefundWindow, Now: time.Now}
}

// RefundEligible reports whether a stay starting at checkIn may still be
// refunded in full. Eligible iff check-in is at least the refund window away.
func (p *CancellationPolicy) RefundEligible(checkIn time.Time) bool {
	return checkIn.Sub(p.Now().UTC()) >= p.RefundWindow
}
