package interest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for loan accrual.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveLoans returns loans carrying a positive rate that started before
// the run date.
func (r *Repository) ListActiveLoans(ctx context.Context, company string, runDate time.Time) ([]LoanAccount, error) {
	const query = `
		SELECT company, chain, account_no, balance, annual_rate, start_date,
			last_posted, gl_control, gl_income, gl_expense
		FROM loan_accounts
		WHERE company = $1 AND annual_rate > 0 AND start_date < $2
		ORDER BY chain, account_no`

	rows, err := r.pool.Query(ctx, query, company, runDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []LoanAccount
	for rows.Next() {
		var loan LoanAccount
		var balance, rate pgtype.Numeric
		var lastPosted pgtype.Int4
		var control, income, expense pgtype.Text
		if err := rows.Scan(
			&loan.Ref.Company, &loan.Ref.Chain, &loan.Ref.Number,
			&balance, &rate, &loan.StartDate,
			&lastPosted, &control, &income, &expense,
		); err != nil {
			return nil, err
		}
		loan.Balance = numericToDecimal(balance)
		loan.AnnualRate = numericToDecimal(rate)
		if lastPosted.Valid {
			loan.LastPosted = shared.Period(lastPosted.Int32)
		}
		loan.GL = GLAccounts{Control: control.String, Income: income.String, Expense: expense.String}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// PeriodStatus returns the company's accounting-period status, defaulting to
// open when the period is not tracked.
func (r *Repository) PeriodStatus(ctx context.Context, company string, period shared.Period) (string, error) {
	const query = `
		SELECT status FROM accounting_periods
		WHERE company = $1 AND period = $2`

	var status string
	err := r.pool.QueryRow(ctx, query, company, int(period)).Scan(&status)
	if err == pgx.ErrNoRows {
		return shared.PeriodStatusOpen, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// CommitRun writes the batch in a single transaction: one ledger posting per
// loan, the GL mirror lines, the advanced control date, and the run record.
// Any failure rolls everything back.
func (r *Repository) CommitRun(ctx context.Context, proposal Proposal) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertJournal = `
			INSERT INTO gl_journal_lines (
				batch_id, company, gl_account, debit, credit, period, entry_date, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

		const advanceLoan = `
			UPDATE loan_accounts
			SET last_posted = $4, balance = balance + $5, updated_at = NOW()
			WHERE company = $1 AND chain = $2 AND account_no = $3
			  AND (last_posted IS NULL OR last_posted < $4)`

		for _, posting := range proposal.Postings {
			txn := proposal.InterestTransaction(posting)
			if err := ledger.InsertTransaction(ctx, tx, txn); err != nil {
				return fmt.Errorf("interest: insert posting %s: %w", txn.Ref, err)
			}

			for _, line := range posting.Journal {
				if _, err := tx.Exec(ctx, insertJournal,
					proposal.Batch, posting.Loan.Company, line.Account,
					line.Debit, line.Credit, int(proposal.Period), proposal.RunDate,
				); err != nil {
					return fmt.Errorf("interest: insert journal line: %w", err)
				}
			}

			result, err := tx.Exec(ctx, advanceLoan,
				posting.Loan.Company, posting.Loan.Chain, posting.Loan.Number,
				int(proposal.Period), posting.Interest,
			)
			if err != nil {
				return fmt.Errorf("interest: advance loan %s: %w", posting.Loan, err)
			}
			// Zero rows means another run already advanced this loan; the
			// whole batch backs out rather than double-posting.
			if result.RowsAffected() == 0 {
				return fmt.Errorf("interest: loan %s already advanced past %s", posting.Loan, proposal.Period)
			}
		}

		const insertRun = `
			INSERT INTO interest_runs (
				id, batch_id, company, run_date, period, postings, skipped, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

		if _, err := tx.Exec(ctx, insertRun,
			proposal.BatchID, proposal.Batch, proposal.Company, proposal.RunDate,
			int(proposal.Period), len(proposal.Postings), len(proposal.Skipped),
		); err != nil {
			return fmt.Errorf("interest: insert run record: %w", err)
		}
		return nil
	})
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
