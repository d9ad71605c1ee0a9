package domain

import "time"

// Lifecycle policy: pure decisions over a (link, now) pair. No I/O here;
// callers persist whatever transition these functions justify.

func IsExpired(l *PaymentLink, now time.Time, window time.Duration) bool {
	return now.After(l.CreatedAt.Add(window))
}

// CanInitiateCheckout reports whether a checkout session may be opened.
func CanInitiateCheckout(l *PaymentLink, now time.Time, window time.Duration) bool {
	return l.Status == StatusPending && !IsExpired(l, now, window)
}

// IsUsable reports whether an existing record should satisfy a repeated
// creation request for the same order instead of minting a new link.
func IsUsable(l *PaymentLink, now time.Time, window time.Duration) bool {
	if l.Status == StatusPaid {
		return true
	}
	return l.Status == StatusPending && !IsExpired(l, now, window)
}

// EffectiveStatus is the status the link logically has at now, which for a
// pending link past its window is expired even before the write-back.
func EffectiveStatus(l *PaymentLink, now time.Time, window time.Duration) LinkStatus {
	if l.Status == StatusPending && IsExpired(l, now, window) {
		return StatusExpired
	}
	return l.Status
}

// RemainingValidity is the time left before a link expires; zero or negative
// once the window has elapsed.
func RemainingValidity(l *PaymentLink, now time.Time, window time.Duration) time.Duration {
	return l.CreatedAt.Add(window).Sub(now)
}
