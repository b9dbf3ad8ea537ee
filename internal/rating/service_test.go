package rating

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/aging"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryAccounts struct {
	mu       sync.Mutex
	accounts []ledger.Account
	updates  map[ledger.AccountRef]ledger.Rating
}

func (m *memoryAccounts) ListAccounts(ctx context.Context, company string) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range m.accounts {
		if a.Ref.Company == company {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAccounts) UpdateAccountRating(ctx context.Context, ref ledger.AccountRef, rating ledger.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = make(map[ledger.AccountRef]ledger.Rating)
	}
	m.updates[ref] = rating
	return nil
}

type fakeAger struct {
	snaps map[ledger.AccountRef]aging.Snapshot
}

func (f *fakeAger) Snapshot(ctx context.Context, account ledger.AccountRef, period shared.Period) (aging.Snapshot, error) {
	snap := f.snaps[account]
	snap.Account = account
	snap.Period = period
	return snap, nil
}

func TestRefreshCompanyWritesOnlyChangedRatings(t *testing.T) {
	good := ledger.AccountRef{Company: "01", Chain: "00", Number: "1"}
	overdue := ledger.AccountRef{Company: "01", Chain: "00", Number: "2"}
	alreadyBad := ledger.AccountRef{Company: "01", Chain: "00", Number: "3"}

	accounts := &memoryAccounts{accounts: []ledger.Account{
		{Ref: good, FirstReminderTerm: 2, FurtherReminderTerm: 4},
		{Ref: overdue, FirstReminderTerm: 2, FurtherReminderTerm: 4},
		{Ref: alreadyBad, Rating: ledger.RatingBad},
	}}
	ager := &fakeAger{snaps: map[ledger.AccountRef]aging.Snapshot{
		good:    snapWithBuckets("40.00"),
		overdue: snapWithBuckets("10.00", "0", "0", "0", "0", "30.00"),
	}}

	svc := NewService(slog.New(slog.DiscardHandler), accounts, ager, Config{})
	summary, err := svc.RefreshCompany(context.Background(), "01", 202406)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Evaluated)
	require.Equal(t, 2, summary.Updated)

	require.Equal(t, ledger.RatingGood, accounts.updates[good])
	require.Equal(t, ledger.RatingBad, accounts.updates[overdue])
	_, written := accounts.updates[alreadyBad]
	require.False(t, written, "unchanged rating must not be rewritten")
}

func TestRefreshCompanyRequiresCompany(t *testing.T) {
	svc := NewService(slog.New(slog.DiscardHandler), &memoryAccounts{}, &fakeAger{}, Config{})
	_, err := svc.RefreshCompany(context.Background(), "", 202406)
	require.ErrorIs(t, err, shared.ErrInvalidAccount)
}

func TestRefreshAccountPersistsChange(t *testing.T) {
	ref := ledger.AccountRef{Company: "01", Chain: "00", Number: "9"}
	accounts := &memoryAccounts{}
	ager := &fakeAger{snaps: map[ledger.AccountRef]aging.Snapshot{
		ref: snapWithBuckets("15.00"),
	}}
	svc := NewService(slog.New(slog.DiscardHandler), accounts, ager, Config{})

	outcome, err := svc.RefreshAccount(context.Background(), ledger.Account{Ref: ref}, 202406)
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, ledger.RatingGood, accounts.updates[ref])
}
