package rating

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/aging"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AccountsPort defines the account reads and writes the refresher needs.
type AccountsPort interface {
	ListAccounts(ctx context.Context, company string) ([]ledger.Account, error)
	UpdateAccountRating(ctx context.Context, ref ledger.AccountRef, rating ledger.Rating) error
}

// SnapshotPort produces aged-balance snapshots.
type SnapshotPort interface {
	Snapshot(ctx context.Context, account ledger.AccountRef, period shared.Period) (aging.Snapshot, error)
}

// Summary reports the result of a refresh run.
type Summary struct {
	Evaluated int
	Updated   int
}

// Service re-evaluates ratings for every account of a company. Snapshot
// reads fan out; rating writes stay serialized, one writer per run.
type Service struct {
	logger   *slog.Logger
	accounts AccountsPort
	ager     SnapshotPort
	cfg      Config
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, accounts AccountsPort, ager SnapshotPort, cfg Config) *Service {
	return &Service{logger: logger, accounts: accounts, ager: ager, cfg: cfg}
}

const snapshotConcurrency = 4

// RefreshCompany classifies every account against the reference period and
// writes only the ratings that changed.
func (s *Service) RefreshCompany(ctx context.Context, company string, reference shared.Period) (Summary, error) {
	if company == "" {
		return Summary{}, shared.ErrInvalidAccount
	}
	accounts, err := s.accounts.ListAccounts(ctx, company)
	if err != nil {
		return Summary{}, fmt.Errorf("rating: list accounts: %w", err)
	}

	type change struct {
		ref    ledger.AccountRef
		rating ledger.Rating
	}
	var (
		mu      sync.Mutex
		changes []change
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)
	for _, acc := range accounts {
		g.Go(func() error {
			snap, err := s.ager.Snapshot(gctx, acc.Ref, reference)
			if err != nil {
				return fmt.Errorf("rating: snapshot %s: %w", acc.Ref, err)
			}
			outcome := Classify(acc, snap, s.cfg)
			if outcome.Changed {
				mu.Lock()
				changes = append(changes, change{ref: acc.Ref, rating: outcome.Rating})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	for _, ch := range changes {
		if err := s.accounts.UpdateAccountRating(ctx, ch.ref, ch.rating); err != nil {
			return Summary{}, fmt.Errorf("rating: update %s: %w", ch.ref, err)
		}
		s.logger.Info("rating updated",
			slog.String("account", ch.ref.String()),
			slog.String("rating", string(ch.rating)),
		)
	}
	return Summary{Evaluated: len(accounts), Updated: len(changes)}, nil
}

// RefreshAccount classifies a single account and persists the rating when it
// changed. Returns the outcome either way.
func (s *Service) RefreshAccount(ctx context.Context, account ledger.Account, reference shared.Period) (Outcome, error) {
	snap, err := s.ager.Snapshot(ctx, account.Ref, reference)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Classify(account, snap, s.cfg)
	if outcome.Changed {
		if err := s.accounts.UpdateAccountRating(ctx, account.Ref, outcome.Rating); err != nil {
			return Outcome{}, err
		}
	}
	return outcome, nil
}
