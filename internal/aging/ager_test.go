package aging

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var testAccount = ledger.AccountRef{Company: "01", Chain: "00", Number: "100200"}

func txn(ref string, period shared.Period, amount string) ledger.Transaction {
	return ledger.Transaction{
		Ref:     ref,
		Account: testAccount,
		Type:    ledger.TypeInvoice,
		Date:    period.Start(),
		Period:  period,
		Amount:  decimal.RequireFromString(amount),
	}
}

func TestBuildSnapshotBucketsByAge(t *testing.T) {
	ref := shared.Period(202406)
	txns := []ledger.Transaction{
		txn("T1", 202406, "100.00"),
		txn("T2", 202405, "50.00"),
		txn("T3", 202403, "25.00"),
		txn("T4", 202401, "10.00"),
		txn("T5", 202311, "5.00"), // older than 5 periods, collapses into last slot
	}

	snap := BuildSnapshot(testAccount, txns, ref)

	require.Equal(t, "100.00", snap.Buckets[0].StringFixed(2))
	require.Equal(t, "50.00", snap.Buckets[1].StringFixed(2))
	require.Equal(t, "25.00", snap.Buckets[3].StringFixed(2))
	require.Equal(t, "15.00", snap.Buckets[5].StringFixed(2))
	require.Equal(t, "190.00", snap.Closing.StringFixed(2))
	require.Equal(t, "90.00", snap.Opening.StringFixed(2))
}

func TestBuildSnapshotBucketSumEqualsClosing(t *testing.T) {
	ref := shared.Period(202406)
	txns := []ledger.Transaction{
		txn("T1", 202406, "123.45"),
		txn("T2", 202404, "-23.45"),
		txn("T3", 202312, "7.77"),
	}

	snap := BuildSnapshot(testAccount, txns, ref)

	sum := decimal.Zero
	for _, b := range snap.Buckets {
		sum = sum.Add(b)
	}
	require.True(t, sum.Equal(snap.Closing), "bucket sum %s != closing %s", sum, snap.Closing)
}

func TestBuildSnapshotProratesSpansByDays(t *testing.T) {
	ref := shared.Period(202405)
	// A stay of 30 days: 16 days in April (15th..30th), 14 days in May.
	stay := ledger.Transaction{
		Ref:     "S1",
		Account: testAccount,
		Type:    ledger.TypeInvoice,
		Date:    time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		SpanEnd: time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC),
		Period:  202404,
		Amount:  decimal.RequireFromString("300.00"),
	}

	snap := BuildSnapshot(testAccount, []ledger.Transaction{stay}, ref)

	// 300 * 16/30 = 160 in April, remainder 140 in May.
	require.Equal(t, "140.00", snap.Buckets[0].StringFixed(2))
	require.Equal(t, "160.00", snap.Buckets[1].StringFixed(2))
	require.True(t, snap.Closing.Equal(decimal.RequireFromString("300.00")))
}

func TestBuildSnapshotSpanEndingOnMonthEndStaysInPeriod(t *testing.T) {
	ref := shared.Period(202404)
	// Ends exactly on the last day of April: no split, month-end day belongs
	// to the earlier period.
	stay := ledger.Transaction{
		Ref:     "S2",
		Account: testAccount,
		Type:    ledger.TypeInvoice,
		Date:    time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
		SpanEnd: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		Period:  202404,
		Amount:  decimal.RequireFromString("110.00"),
	}

	snap := BuildSnapshot(testAccount, []ledger.Transaction{stay}, ref)
	require.Equal(t, "110.00", snap.Buckets[0].StringFixed(2))
	require.True(t, snap.Buckets[1].IsZero())
}

func TestBuildSnapshotSpanAcrossThreePeriods(t *testing.T) {
	ref := shared.Period(202406)
	stay := ledger.Transaction{
		Ref:     "S3",
		Account: testAccount,
		Type:    ledger.TypeInvoice,
		Date:    time.Date(2024, 4, 21, 0, 0, 0, 0, time.UTC),
		SpanEnd: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Period:  202404,
		Amount:  decimal.RequireFromString("510.00"),
	}

	snap := BuildSnapshot(testAccount, []ledger.Transaction{stay}, ref)

	// 51 days total: 10 in April, 31 in May, 10 in June.
	require.Equal(t, "100.00", snap.Buckets[2].StringFixed(2))
	require.Equal(t, "310.00", snap.Buckets[1].StringFixed(2))
	require.Equal(t, "100.00", snap.Buckets[0].StringFixed(2))
	require.True(t, snap.Closing.Equal(decimal.RequireFromString("510.00")))
}

type fakeLedgerRepo struct {
	txns []ledger.Transaction
	err  error
}

func (f *fakeLedgerRepo) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []ledger.Transaction
	for _, t := range f.txns {
		if filter.UpTo > 0 && t.Period > filter.UpTo {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func TestAgerSnapshotValidatesInput(t *testing.T) {
	ager := NewAger(&fakeLedgerRepo{})

	_, err := ager.Snapshot(context.Background(), ledger.AccountRef{}, 202401)
	require.ErrorIs(t, err, shared.ErrInvalidAccount)

	_, err = ager.Snapshot(context.Background(), testAccount, shared.Period(0))
	require.Error(t, err)
}

func TestAgerSnapshotFiltersByReference(t *testing.T) {
	repo := &fakeLedgerRepo{txns: []ledger.Transaction{
		txn("T1", 202405, "40.00"),
		txn("T2", 202407, "999.00"), // after reference, excluded by filter
	}}
	ager := NewAger(repo)

	snap, err := ager.Snapshot(context.Background(), testAccount, 202406)
	require.NoError(t, err)
	require.Equal(t, "40.00", snap.Closing.StringFixed(2))
}
