package allocation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var sessionAccount = ledger.AccountRef{Company: "01", Chain: "00", Number: "100200"}

func openItem(ref string, day int, amount string) ledger.Transaction {
	t := ledger.Transaction{
		Ref:     ref,
		Account: sessionAccount,
		Date:    time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		Period:  202405,
		Amount:  decimal.RequireFromString(amount),
	}
	if t.Amount.Sign() > 0 {
		t.Type = ledger.TypeInvoice
	} else {
		t.Type = ledger.TypeCredit
	}
	return t
}

func settledItem(ref string, day int, amount string) ledger.Transaction {
	t := openItem(ref, day, amount)
	t.Allocated = t.Amount
	return t
}

func newSession(mode Mode, txns ...ledger.Transaction) *Session {
	return NewSession(sessionAccount, txns, mode, 202405, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
}

func TestItemsNormalModeHidesSettled(t *testing.T) {
	s := newSession(ModeNormal,
		openItem("INV1", 1, "100.00"),
		settledItem("INV0", 2, "80.00"),
	)
	items := s.Items()
	require.Len(t, items, 1)
	require.Equal(t, "INV1", items[0].Ref)
}

func TestItemsHistoryModeShowsAll(t *testing.T) {
	s := newSession(ModeHistory,
		openItem("INV1", 1, "100.00"),
		settledItem("INV0", 2, "80.00"),
	)
	require.Len(t, s.Items(), 2)
}

func TestStageRejectsOverAllocation(t *testing.T) {
	s := newSession(ModeNormal, openItem("INV1", 1, "100.00"))

	err := s.Stage("INV1", decimal.RequireFromString("100.01"))
	require.ErrorIs(t, err, ErrOverAllocation)
	require.True(t, s.Staged("INV1").IsZero(), "rejected entry must have no effect")

	require.NoError(t, s.Stage("INV1", decimal.RequireFromString("100.00")))
	require.Equal(t, "100.00", s.Staged("INV1").StringFixed(2))
}

func TestStageRejectsUnknownAndSettledItems(t *testing.T) {
	s := newSession(ModeHistory, settledItem("INV0", 1, "80.00"))

	require.ErrorIs(t, s.Stage("NOPE", decimal.New(1, 0)), ErrUnknownItem)
	require.ErrorIs(t, s.Stage("INV0", decimal.New(1, 0)), ErrItemSettled)
}

func TestCompleteRequiresZeroRunningTotal(t *testing.T) {
	s := newSession(ModeNormal,
		openItem("INV1", 1, "100.00"),
		openItem("PAY1", 10, "-60.00"),
	)
	require.NoError(t, s.Stage("INV1", decimal.RequireFromString("100.00")))
	require.NoError(t, s.Stage("PAY1", decimal.RequireFromString("60.00")))
	require.Equal(t, "40.00", s.Unallocated().StringFixed(2))

	_, err := s.Complete()
	require.ErrorIs(t, err, ErrSessionImbalanced)

	// Adjust the invoice down to the credit and the session balances.
	require.NoError(t, s.Stage("INV1", decimal.RequireFromString("60.00")))
	require.True(t, s.Unallocated().IsZero())

	links, err := s.Complete()
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "PAY1", links[0].CreditRef)
	require.Equal(t, "INV1", links[0].DebitRef)
	require.Equal(t, "60.00", links[0].Amount.StringFixed(2))
	require.Equal(t, shared.Period(202405), links[0].Period)
}

func TestCompletePairsOldestFirst(t *testing.T) {
	s := newSession(ModeNormal,
		openItem("INV2", 20, "70.00"),
		openItem("INV1", 1, "50.00"),
		openItem("PAY1", 25, "-120.00"),
	)
	require.NoError(t, s.AutoAllocate())
	require.True(t, s.Unallocated().IsZero())

	links, err := s.Complete()
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "INV1", links[0].DebitRef)
	require.Equal(t, "50.00", links[0].Amount.StringFixed(2))
	require.Equal(t, "INV2", links[1].DebitRef)
	require.Equal(t, "70.00", links[1].Amount.StringFixed(2))
}

func TestAutoAllocatePartialCreditStaysBalanced(t *testing.T) {
	s := newSession(ModeNormal,
		openItem("INV1", 1, "30.00"),
		openItem("PAY1", 10, "-100.00"),
	)
	require.NoError(t, s.AutoAllocate())

	// Only 30 of the 100 credit can land anywhere.
	require.Equal(t, "30.00", s.Staged("PAY1").StringFixed(2))
	require.True(t, s.Unallocated().IsZero())

	links, err := s.Complete()
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "30.00", links[0].Amount.StringFixed(2))
}

func TestCancelDiscardsStagedState(t *testing.T) {
	s := newSession(ModeNormal,
		openItem("INV1", 1, "100.00"),
		openItem("PAY1", 10, "-100.00"),
	)
	require.NoError(t, s.AutoAllocate())
	s.Cancel()

	require.True(t, s.Staged("INV1").IsZero())
	require.ErrorIs(t, s.Stage("INV1", decimal.New(1, 0)), ErrSessionClosed)
	_, err := s.Complete()
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestLinkSumNeverExceedsItemAmount(t *testing.T) {
	s := newSession(ModeNormal,
		openItem("INV1", 1, "100.00"),
		openItem("PAY1", 5, "-60.00"),
		openItem("PAY2", 6, "-40.00"),
	)
	require.NoError(t, s.AutoAllocate())
	links, err := s.Complete()
	require.NoError(t, err)

	total := decimal.Zero
	for _, l := range links {
		require.Equal(t, "INV1", l.DebitRef)
		total = total.Add(l.Amount)
	}
	require.Equal(t, "100.00", total.StringFixed(2))
}
