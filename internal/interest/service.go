package interest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort defines the store access the accrual engine needs.
type RepositoryPort interface {
	// ListActiveLoans returns loans with a positive rate whose start date
	// precedes the run date.
	ListActiveLoans(ctx context.Context, company string, runDate time.Time) ([]LoanAccount, error)
	// PeriodStatus returns the company's accounting-period status.
	PeriodStatus(ctx context.Context, company string, period shared.Period) (string, error)
	// CommitRun makes the whole proposal durable in one transaction:
	// ledger postings, GL mirrors, advanced control dates, run record.
	CommitRun(ctx context.Context, proposal Proposal) error
}

// Confirmer is the yes/no gate presented before a batch commits.
type Confirmer interface {
	Confirm(ctx context.Context, proposal Proposal) (shared.Decision, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, proposal Proposal) (shared.Decision, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, proposal Proposal) (shared.Decision, error) {
	return f(ctx, proposal)
}

// AutoConfirm completes every batch without operator review. Callers that
// want a review step preview via Prepare first.
var AutoConfirm = ConfirmerFunc(func(context.Context, Proposal) (shared.Decision, error) {
	return shared.DecisionComplete, nil
})

// CacheBumper invalidates cached aged balances after a commit.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service runs interest accrual batches.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	confirmer Confirmer
	cache     CacheBumper
}

// NewService builds a Service instance. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, confirmer Confirmer, cache CacheBumper) *Service {
	return &Service{logger: logger, repo: repo, confirmer: confirmer, cache: cache}
}

// Prepare assembles the batch for a run dated runDate without writing
// anything. Loans already advanced to or past the run period, not yet
// started, or with nothing to accrue are skipped, never failed.
func (s *Service) Prepare(ctx context.Context, company string, runDate time.Time) (Proposal, error) {
	period := shared.PeriodOf(runDate)
	status, err := s.repo.PeriodStatus(ctx, company, period)
	if err != nil {
		return Proposal{}, fmt.Errorf("interest: period status: %w", err)
	}
	if err := shared.EnsurePostable(status); err != nil {
		return Proposal{}, err
	}

	loans, err := s.repo.ListActiveLoans(ctx, company, runDate)
	if err != nil {
		return Proposal{}, fmt.Errorf("interest: list loans: %w", err)
	}

	proposal := Proposal{
		BatchID: uuid.New(),
		Batch:   fmt.Sprintf("INT%s", period),
		Company: company,
		RunDate: runDate,
		Period:  period,
	}

	for _, loan := range loans {
		since := loan.LastPosted
		if since == 0 {
			since = shared.PeriodOf(loan.StartDate)
		}
		periods := period.MonthsSince(since)
		switch {
		case !loan.StartDate.Before(runDate):
			proposal.Skipped = append(proposal.Skipped, Skip{Loan: loan.Ref, Reason: SkipNotStarted})
			continue
		case periods <= 0:
			proposal.Skipped = append(proposal.Skipped, Skip{Loan: loan.Ref, Reason: SkipAlreadyPosted})
			continue
		case loan.Balance.IsZero():
			proposal.Skipped = append(proposal.Skipped, Skip{Loan: loan.Ref, Reason: SkipZeroBalance})
			continue
		}

		amount := Accrue(loan.Balance, loan.AnnualRate, periods)
		if amount.IsZero() {
			proposal.Skipped = append(proposal.Skipped, Skip{Loan: loan.Ref, Reason: SkipZeroBalance})
			continue
		}

		posting := Posting{Loan: loan.Ref, Periods: periods, Interest: amount}
		if loan.GL.Configured() {
			posting.Journal = mirrorJournal(loan.GL, amount)
		}
		proposal.Postings = append(proposal.Postings, posting)
	}
	return proposal, nil
}

// mirrorJournal builds the balanced two-line GL entry for an interest
// amount. Receivable interest debits the control account against income;
// payable (negative) interest debits expense against the control account.
func mirrorJournal(gl GLAccounts, amount decimal.Decimal) []JournalLine {
	if amount.Sign() >= 0 {
		return []JournalLine{
			{Account: gl.Control, Debit: amount},
			{Account: gl.Income, Credit: amount},
		}
	}
	magnitude := amount.Abs()
	return []JournalLine{
		{Account: gl.Expense, Debit: magnitude},
		{Account: gl.Control, Credit: magnitude},
	}
}

// Run prepares a batch, presents it to the confirmation gate, and commits
// only on an explicit complete decision. A cancelled or aborted run leaves
// the store untouched.
func (s *Service) Run(ctx context.Context, company string, runDate time.Time) (Proposal, shared.Decision, error) {
	proposal, err := s.Prepare(ctx, company, runDate)
	if err != nil {
		return Proposal{}, shared.DecisionCancel, err
	}
	if len(proposal.Postings) == 0 {
		return proposal, shared.DecisionCancel, ErrNothingToPost
	}

	decision, err := s.confirmer.Confirm(ctx, proposal)
	if err != nil {
		return proposal, shared.DecisionCancel, fmt.Errorf("interest: confirm: %w", err)
	}
	if decision != shared.DecisionComplete {
		s.logger.Info("interest run not confirmed",
			slog.String("batch", proposal.Batch),
			slog.String("decision", decision.String()),
		)
		return proposal, decision, nil
	}

	if err := s.repo.CommitRun(ctx, proposal); err != nil {
		return proposal, decision, fmt.Errorf("interest: commit batch %s: %w", proposal.Batch, err)
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump aging cache", slog.Any("error", err))
		}
	}
	s.logger.Info("interest batch committed",
		slog.String("batch", proposal.Batch),
		slog.String("company", company),
		slog.Int("postings", len(proposal.Postings)),
		slog.Int("skipped", len(proposal.Skipped)),
	)
	return proposal, decision, nil
}

// InterestTransaction converts a posting into its ledger transaction.
func (p Proposal) InterestTransaction(posting Posting) ledger.Transaction {
	return ledger.Transaction{
		Ref:     fmt.Sprintf("%s-%s", p.Batch, posting.Loan.Number),
		Account: posting.Loan,
		Type:    ledger.TypeJournal,
		Date:    p.RunDate,
		Period:  p.Period,
		Amount:  posting.Interest,
		BatchID: p.Batch,
	}
}
