package allocation

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeLedger struct {
	accounts map[ledger.AccountRef]*ledger.Account
	txns     []ledger.Transaction
}

func (f *fakeLedger) GetAccount(ctx context.Context, ref ledger.AccountRef) (*ledger.Account, error) {
	if acc, ok := f.accounts[ref]; ok {
		return acc, nil
	}
	return nil, ledger.ErrNotFound
}

func (f *fakeLedger) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range f.txns {
		if t.Account != filter.Account {
			continue
		}
		if filter.OpenOnly && !t.Open() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeLinkWriter struct {
	committed [][]Link
	err       error
}

func (f *fakeLinkWriter) CommitLinks(ctx context.Context, sessionID uuid.UUID, links []Link) error {
	if f.err != nil {
		return f.err
	}
	f.committed = append(f.committed, links)
	return nil
}

type fakeBumper struct{ bumps int }

func (f *fakeBumper) Bump(ctx context.Context) error {
	f.bumps++
	return nil
}

func newTestService(t *testing.T, lw *fakeLinkWriter, bumper *fakeBumper) (*Service, *fakeLedger) {
	t.Helper()
	repo := &fakeLedger{
		accounts: map[ledger.AccountRef]*ledger.Account{
			sessionAccount: {Ref: sessionAccount},
		},
		txns: []ledger.Transaction{
			openItem("INV1", 1, "100.00"),
			openItem("PAY1", 10, "-100.00"),
			settledItem("INV0", 2, "50.00"),
		},
	}
	var cache CacheBumper
	if bumper != nil {
		cache = bumper
	}
	return NewService(slog.New(slog.DiscardHandler), repo, lw, cache), repo
}

func TestOpenRejectsUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t, &fakeLinkWriter{}, nil)

	_, err := svc.Open(context.Background(), ledger.AccountRef{}, ModeNormal, 202405, time.Now())
	require.ErrorIs(t, err, shared.ErrInvalidAccount)

	_, err = svc.Open(context.Background(), ledger.AccountRef{Company: "99", Chain: "00", Number: "1"}, ModeNormal, 202405, time.Now())
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestOpenNormalModeLoadsOpenItemsOnly(t *testing.T) {
	svc, _ := newTestService(t, &fakeLinkWriter{}, nil)

	session, err := svc.Open(context.Background(), sessionAccount, ModeNormal, 202405, time.Now())
	require.NoError(t, err)
	require.Len(t, session.Items(), 2)

	history, err := svc.Open(context.Background(), sessionAccount, ModeHistory, 202405, time.Now())
	require.NoError(t, err)
	require.Len(t, history.Items(), 3)
}

func TestDecideCompleteCommitsAndBumpsCache(t *testing.T) {
	lw := &fakeLinkWriter{}
	bumper := &fakeBumper{}
	svc, _ := newTestService(t, lw, bumper)

	session, err := svc.Open(context.Background(), sessionAccount, ModeNormal, 202405, time.Now())
	require.NoError(t, err)
	require.NoError(t, session.AutoAllocate())

	links, err := svc.Decide(context.Background(), session, shared.DecisionComplete)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Len(t, lw.committed, 1)
	require.Equal(t, 1, bumper.bumps)
}

func TestDecideCancelPersistsNothing(t *testing.T) {
	lw := &fakeLinkWriter{}
	svc, _ := newTestService(t, lw, nil)

	session, err := svc.Open(context.Background(), sessionAccount, ModeNormal, 202405, time.Now())
	require.NoError(t, err)
	require.NoError(t, session.AutoAllocate())

	links, err := svc.Decide(context.Background(), session, shared.DecisionCancel)
	require.NoError(t, err)
	require.Nil(t, links)
	require.Empty(t, lw.committed, "cancel must not write links")
}

func TestDecideContinueKeepsSessionOpen(t *testing.T) {
	svc, _ := newTestService(t, &fakeLinkWriter{}, nil)

	session, err := svc.Open(context.Background(), sessionAccount, ModeNormal, 202405, time.Now())
	require.NoError(t, err)

	links, err := svc.Decide(context.Background(), session, shared.DecisionContinue)
	require.NoError(t, err)
	require.Nil(t, links)
	require.NoError(t, session.Stage("INV1", decimal.RequireFromString("10.00")))
}

func TestDecideCompletePropagatesCommitFailure(t *testing.T) {
	lw := &fakeLinkWriter{err: errors.New("db down")}
	svc, _ := newTestService(t, lw, nil)

	session, err := svc.Open(context.Background(), sessionAccount, ModeNormal, 202405, time.Now())
	require.NoError(t, err)
	require.NoError(t, session.AutoAllocate())

	_, err = svc.Decide(context.Background(), session, shared.DecisionComplete)
	require.Error(t, err)
	require.Empty(t, lw.committed)
}
