package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LedgerPort defines the ledger reads the service needs.
type LedgerPort interface {
	GetAccount(ctx context.Context, ref ledger.AccountRef) (*ledger.Account, error)
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error)
}

// LinkWriter persists a completed session's links in one transaction.
type LinkWriter interface {
	CommitLinks(ctx context.Context, sessionID uuid.UUID, links []Link) error
}

// CacheBumper invalidates cached aged balances after a commit.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// LinkObserver counts links committed by completed sessions.
type LinkObserver interface {
	ObserveAllocation(links int)
}

// Service drives allocation sessions against the ledger store.
type Service struct {
	logger   *slog.Logger
	ledger   LedgerPort
	links    LinkWriter
	cache    CacheBumper
	observer LinkObserver
}

// NewService builds a Service instance. cache may be nil.
func NewService(logger *slog.Logger, ledgerPort LedgerPort, links LinkWriter, cache CacheBumper) *Service {
	return &Service{logger: logger, ledger: ledgerPort, links: links, cache: cache}
}

// WithObserver attaches a metrics observer and returns the receiver.
func (s *Service) WithObserver(observer LinkObserver) *Service {
	s.observer = observer
	return s
}

// Open starts a session over the account's item set for the given period.
// Normal mode loads open items only; history mode loads everything.
func (s *Service) Open(ctx context.Context, account ledger.AccountRef, mode Mode, period shared.Period, date time.Time) (*Session, error) {
	if account.Zero() {
		return nil, shared.ErrInvalidAccount
	}
	if _, err := s.ledger.GetAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("allocation: load account %s: %w", account, err)
	}
	txns, err := s.ledger.ListTransactions(ctx, ledger.TransactionFilter{
		Account:  account,
		UpTo:     period,
		OpenOnly: mode == ModeNormal,
	})
	if err != nil {
		return nil, err
	}
	return NewSession(account, txns, mode, period, date), nil
}

// Decide applies an operator decision to the session. Complete commits the
// links atomically and returns them; cancel discards everything; continue is
// a no-op that keeps the session open.
func (s *Service) Decide(ctx context.Context, session *Session, decision shared.Decision) ([]Link, error) {
	switch decision {
	case shared.DecisionContinue:
		return nil, nil
	case shared.DecisionCancel:
		session.Cancel()
		return nil, nil
	case shared.DecisionComplete:
		links, err := session.Complete()
		if err != nil {
			return nil, err
		}
		if len(links) == 0 {
			return nil, nil
		}
		if err := s.links.CommitLinks(ctx, session.ID(), links); err != nil {
			return nil, fmt.Errorf("allocation: commit session %s: %w", session.ID(), err)
		}
		if s.cache != nil {
			if err := s.cache.Bump(ctx); err != nil {
				s.logger.Warn("bump aging cache", slog.Any("error", err))
			}
		}
		if s.observer != nil {
			s.observer.ObserveAllocation(len(links))
		}
		s.logger.Info("allocation session committed",
			slog.String("session", session.ID().String()),
			slog.String("account", session.Account().String()),
			slog.Int("links", len(links)),
		)
		return links, nil
	default:
		return nil, fmt.Errorf("allocation: unknown decision %d", decision)
	}
}
