package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AccountRef is the composite identity of a ledger account.
type AccountRef struct {
	Company string
	Chain   string
	Number  string
}

// Zero reports whether the reference is empty.
func (r AccountRef) Zero() bool {
	return r.Company == "" && r.Chain == "" && r.Number == ""
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Company, r.Chain, r.Number)
}

// Rating enumerates creditworthiness classifications.
type Rating string

const (
	RatingUnset   Rating = ""
	RatingGood    Rating = "GOOD"
	RatingPending Rating = "PENDING"
	RatingFurther Rating = "FURTHER"
	RatingBad     Rating = "BAD"
)

// Account is a receivables master record.
type Account struct {
	Ref         AccountRef
	CreditLimit decimal.Decimal
	Stopped     bool
	Rating      Rating
	// Reminder terms in elapsed 30-day periods.
	FirstReminderTerm   int
	FurtherReminderTerm int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TypeInvoice TransactionType = "INVOICE"
	TypeCredit  TransactionType = "CREDIT"
	TypeJournal TransactionType = "JOURNAL"
)

// Transaction is a single ledger item. Amount is signed: invoices positive,
// credit notes and payments negative.
type Transaction struct {
	Ref       string
	Account   AccountRef
	Type      TransactionType
	Date      time.Time
	// SpanEnd marks the end of a date span (stay, term). Zero for
	// single-dated items.
	SpanEnd   time.Time
	Period    shared.Period
	Amount    decimal.Decimal
	Allocated decimal.Decimal
	BatchID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Balance returns amount minus allocated amount.
func (t Transaction) Balance() decimal.Decimal {
	return t.Amount.Sub(t.Allocated)
}

// Open reports whether the item still carries a non-zero balance.
func (t Transaction) Open() bool {
	return !t.Balance().IsZero()
}

// Debit reports whether the item increases the account balance.
func (t Transaction) Debit() bool {
	return t.Amount.Sign() > 0
}

// TransactionFilter narrows transaction queries.
type TransactionFilter struct {
	Account  AccountRef
	UpTo     shared.Period
	OpenOnly bool
	Types    []TransactionType
	BatchID  string
}
