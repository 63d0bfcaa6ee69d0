package model

import "time"

// Credit entry kinds.
const (
	CreditDebit  = "debit"
	CreditRefund = "refund"
	CreditGrant  = "grant"
	CreditExpire = "expire"
)

// CreditEntry is one line of the append-only credit audit trail.
// Every balance change writes exactly one entry in the same
// transaction, so summing Delta per user reproduces the balance.
type CreditEntry struct {
	ID            string    // credit_entries.id
	UserID        string    // credit_entries.user_id
	Delta         int       // credit_entries.delta (negative for debit/expire)
	BalanceAfter  int       // credit_entries.balance_after
	Kind          string    // credit_entries.kind
	ReservationID string    // credit_entries.reservation_id (empty when none)
	Reason        string    // credit_entries.reason
	CreatedAt     time.Time // credit_entries.created_at
}
