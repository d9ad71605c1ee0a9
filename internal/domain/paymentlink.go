package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LinkStatus string

const (
	StatusPending   LinkStatus = "pending"
	StatusPaid      LinkStatus = "paid"
	StatusExpired   LinkStatus = "expired"
	StatusCancelled LinkStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
// Re-confirming paid is a no-op, not a transition.
func (s LinkStatus) Terminal() bool {
	return s == StatusPaid || s == StatusExpired || s == StatusCancelled
}

// PaymentLink is the single persisted entity: one single-use, time-bounded
// link binding an order and payer email to a payable amount. Records are
// never deleted; they are the audit trail.
type PaymentLink struct {
	ID        int64
	Token     string
	OrderID   string
	Email     string
	Amount    decimal.Decimal
	CreatedAt time.Time
	Status    LinkStatus
}

// AmountMinorUnits converts the major-unit amount to the gateway's
// integer minor-unit representation (cents).
func (l *PaymentLink) AmountMinorUnits() int64 {
	return l.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
