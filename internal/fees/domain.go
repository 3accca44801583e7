package fees

import "time"

// TxKind classifies a ledger transaction.
type TxKind string

const (
	TxCharge     TxKind = "charge"
	TxPayment    TxKind = "payment"
	TxAdjustment TxKind = "adjustment"
)

// ParseTxKind validates a raw kind string.
func ParseTxKind(s string) (TxKind, bool) {
	switch TxKind(s) {
	case TxCharge, TxPayment, TxAdjustment:
		return TxKind(s), true
	}
	return "", false
}

// Transaction is one append-only entry on a student's fee ledger.
// Amounts are stored in cents and always positive; the kind decides
// whether the entry raises or lowers the balance.
type Transaction struct {
	ID          int64
	StudentID   int64
	Kind        TxKind
	AmountCents int64
	Description string
	Method      string
	Reference   string
	RecordedBy  int64
	CreatedAt   time.Time
}

// AccountSummary is the computed state of one student's fee account.
type AccountSummary struct {
	StudentID     int64
	ChargedCents  int64
	PaidCents     int64
	AdjustedCents int64
}

// BalanceCents is the amount still owed. Payments and adjustments
// reduce what charges raised; a negative balance is credit.
func (s AccountSummary) BalanceCents() int64 {
	return s.ChargedCents - s.PaidCents - s.AdjustedCents
}

// AccountRow is one line of the accounts overview listing.
type AccountRow struct {
	StudentID    int64
	StudentName  string
	ClassName    string
	AdmissionNo  string
	BalanceCents int64
}

// RevenueRow aggregates collected payments for one calendar month.
type RevenueRow struct {
	Month time.Time
	Cents int64
}
