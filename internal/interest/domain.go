// Package interest raises compound interest on loan balances period by
// period and posts it to the ledger, optionally mirrored into the GL.
package interest

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// GLAccounts is the control-account triple for mirrored journal postings.
type GLAccounts struct {
	Control string
	Income  string
	Expense string
}

// Configured reports whether GL integration is set up for the loan.
func (g GLAccounts) Configured() bool {
	return g.Control != "" && (g.Income != "" || g.Expense != "")
}

// LoanAccount is a loan master record carrying an outstanding balance.
type LoanAccount struct {
	Ref        ledger.AccountRef
	Balance    decimal.Decimal
	// AnnualRate is the nominal rate in percent, e.g. 12.5.
	AnnualRate decimal.Decimal
	StartDate  time.Time
	// LastPosted is the period interest was last raised for. Zero means
	// never.
	LastPosted shared.Period
	GL         GLAccounts
}

// JournalLine is one side of a mirrored GL entry.
type JournalLine struct {
	Account string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// Posting is one proposed interest transaction for a loan.
type Posting struct {
	Loan     ledger.AccountRef
	Periods  int
	Interest decimal.Decimal
	Journal  []JournalLine
}

// SkipReason explains why a loan was left out of a run.
type SkipReason string

const (
	SkipAlreadyPosted SkipReason = "ALREADY_POSTED"
	SkipNotStarted    SkipReason = "NOT_STARTED"
	SkipZeroBalance   SkipReason = "ZERO_BALANCE"
)

// Skip records a loan excluded from a run. Skips are informational, not
// failures; the batch continues.
type Skip struct {
	Loan   ledger.AccountRef
	Reason SkipReason
}

// Proposal is a prepared batch awaiting operator confirmation. Nothing in it
// is durable until commit.
type Proposal struct {
	BatchID  uuid.UUID
	Batch    string
	Company  string
	RunDate  time.Time
	Period   shared.Period
	Postings []Posting
	Skipped  []Skip
}

// ErrNothingToPost indicates a run where every loan was skipped.
var ErrNothingToPost = errors.New("interest: nothing to post")

// MonthlyRate converts an annual nominal percentage to the periodic rate,
// annualRate / 1200.
func MonthlyRate(annual decimal.Decimal) decimal.Decimal {
	return annual.Div(decimal.NewFromInt(1200))
}

// Accrue computes compound interest on a balance over n monthly periods:
// balance * ((1+r)^n - 1), rounded to cents.
func Accrue(balance, annualRate decimal.Decimal, periods int) decimal.Decimal {
	if periods <= 0 {
		return decimal.Zero
	}
	r := MonthlyRate(annualRate)
	factor := decimal.New(1, 0).Add(r).Pow(decimal.NewFromInt(int64(periods)))
	return balance.Mul(factor.Sub(decimal.New(1, 0))).Round(2)
}
