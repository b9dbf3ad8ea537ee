// Package aging buckets an account's ledger transactions into time-aged
// balances.
package aging

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// BucketCount is the number of aging slots: current plus five prior periods.
// Anything older collapses into the last slot.
const BucketCount = 6

// Snapshot is an aged-balance view of one account as at a reference period.
type Snapshot struct {
	Account ledger.AccountRef
	Period  shared.Period
	Opening decimal.Decimal
	Closing decimal.Decimal
	Buckets [BucketCount]decimal.Decimal
}

// Overdue sums the buckets from the given offset onward. Offsets outside
// [0, BucketCount) clamp to the nearest slot.
func (s Snapshot) Overdue(fromOffset int) decimal.Decimal {
	if fromOffset < 0 {
		fromOffset = 0
	}
	if fromOffset >= BucketCount {
		fromOffset = BucketCount - 1
	}
	total := decimal.Zero
	for i := fromOffset; i < BucketCount; i++ {
		total = total.Add(s.Buckets[i])
	}
	return total
}

// BuildSnapshot ages the given transactions against the reference period.
//
// Each transaction lands in the bucket for (reference - transaction period)
// whole months, clamped to the last slot. A transaction with a date span
// crossing one or more period ends is prorated by elapsed days per period;
// the month-end day itself counts toward the earlier period. Portions dated
// after the reference period fold into the current slot.
func BuildSnapshot(account ledger.AccountRef, txns []ledger.Transaction, reference shared.Period) Snapshot {
	snap := Snapshot{Account: account, Period: reference}
	for _, txn := range txns {
		for _, part := range prorate(txn) {
			offset := reference.MonthsSince(part.period)
			if offset < 0 {
				offset = 0
			}
			if offset >= BucketCount {
				offset = BucketCount - 1
			}
			snap.Buckets[offset] = snap.Buckets[offset].Add(part.amount)
		}
	}
	for _, b := range snap.Buckets {
		snap.Closing = snap.Closing.Add(b)
	}
	snap.Opening = snap.Closing.Sub(snap.Buckets[0])
	return snap
}

type portion struct {
	period shared.Period
	amount decimal.Decimal
}

// prorate splits a transaction amount over the periods its date span covers,
// weighted by calendar days. The final portion absorbs rounding so the parts
// always sum to the original amount.
func prorate(txn ledger.Transaction) []portion {
	if txn.SpanEnd.IsZero() || !txn.SpanEnd.After(txn.Period.End()) {
		return []portion{{period: txn.Period, amount: txn.Amount}}
	}

	last := shared.PeriodOf(txn.SpanEnd)
	totalDays := int(txn.SpanEnd.Sub(txn.Date).Hours()/24) + 1
	if totalDays <= 0 {
		return []portion{{period: txn.Period, amount: txn.Amount}}
	}
	total := decimal.NewFromInt(int64(totalDays))

	var parts []portion
	assigned := decimal.Zero
	for p := txn.Period; p <= last; p = p.Add(1) {
		var days int
		switch {
		case p == txn.Period:
			days = int(p.End().Sub(txn.Date).Hours()/24) + 1
		case p == last:
			days = int(txn.SpanEnd.Sub(p.Start()).Hours()/24) + 1
		default:
			days = p.Days()
		}
		var amt decimal.Decimal
		if p == last {
			amt = txn.Amount.Sub(assigned)
		} else {
			amt = txn.Amount.Mul(decimal.NewFromInt(int64(days))).Div(total).Round(2)
			assigned = assigned.Add(amt)
		}
		parts = append(parts, portion{period: p, amount: amt})
	}
	return parts
}

// RepositoryPort defines the ledger access the ager needs.
type RepositoryPort interface {
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error)
}

// Ager produces aged-balance snapshots from the ledger store.
type Ager struct {
	repo RepositoryPort
}

// NewAger builds an Ager instance.
func NewAger(repo RepositoryPort) *Ager {
	return &Ager{repo: repo}
}

// Snapshot loads the account's transactions up to the reference period and
// ages them.
func (a *Ager) Snapshot(ctx context.Context, account ledger.AccountRef, reference shared.Period) (Snapshot, error) {
	if account.Zero() {
		return Snapshot{}, shared.ErrInvalidAccount
	}
	if !reference.Valid() {
		return Snapshot{}, errors.New("aging: invalid reference period")
	}
	txns, err := a.repo.ListTransactions(ctx, ledger.TransactionFilter{
		Account: account,
		UpTo:    reference,
	})
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(account, txns, reference), nil
}
