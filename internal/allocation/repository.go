package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for allocation links.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrDuplicateLink indicates the same credit/debit pair was already linked
// by this session.
var ErrDuplicateLink = errors.New("allocation: duplicate link")

// CommitLinks writes the session's links and adjusts both items' allocated
// amounts in a single transaction. Any failure rolls the whole commit back.
func (r *Repository) CommitLinks(ctx context.Context, sessionID uuid.UUID, links []Link) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertLinks(ctx, tx, sessionID, links)
	})
}

func insertLinks(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, links []Link) error {
	const insertLink = `
		INSERT INTO allocation_links (
			session_id, company, chain, account_no, credit_ref, debit_ref,
			amount, period, alloc_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	// The allocated update refuses to push an item past its original
	// amount; RowsAffected = 0 then surfaces as over-allocation.
	const applyDebit = `
		UPDATE ledger_transactions
		SET allocated = allocated + $5, updated_at = NOW()
		WHERE ref = $1 AND company = $2 AND chain = $3 AND account_no = $4
		  AND ABS(allocated + $5) <= ABS(amount)`

	const applyCredit = `
		UPDATE ledger_transactions
		SET allocated = allocated - $5, updated_at = NOW()
		WHERE ref = $1 AND company = $2 AND chain = $3 AND account_no = $4
		  AND ABS(allocated - $5) <= ABS(amount)`

	for _, link := range links {
		if _, err := tx.Exec(ctx, insertLink,
			sessionID, link.Account.Company, link.Account.Chain, link.Account.Number,
			link.CreditRef, link.DebitRef, link.Amount, int(link.Period), link.Date,
		); err != nil {
			if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_allocation_links" {
				return ErrDuplicateLink
			}
			return fmt.Errorf("allocation: insert link: %w", err)
		}

		result, err := tx.Exec(ctx, applyDebit,
			link.DebitRef, link.Account.Company, link.Account.Chain, link.Account.Number, link.Amount)
		if err != nil {
			return fmt.Errorf("allocation: apply debit %s: %w", link.DebitRef, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: debit %s", ErrOverAllocation, link.DebitRef)
		}

		result, err = tx.Exec(ctx, applyCredit,
			link.CreditRef, link.Account.Company, link.Account.Chain, link.Account.Number, link.Amount)
		if err != nil {
			return fmt.Errorf("allocation: apply credit %s: %w", link.CreditRef, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: credit %s", ErrOverAllocation, link.CreditRef)
		}
	}
	return nil
}

// ListLinks returns the links referencing a transaction, oldest first.
func (r *Repository) ListLinks(ctx context.Context, company, chain, number, ref string) ([]Link, error) {
	const query = `
		SELECT company, chain, account_no, credit_ref, debit_ref, amount, period, alloc_date
		FROM allocation_links
		WHERE company = $1 AND chain = $2 AND account_no = $3
		  AND (credit_ref = $4 OR debit_ref = $4)
		ORDER BY alloc_date, credit_ref, debit_ref`

	rows, err := r.pool.Query(ctx, query, company, chain, number, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var link Link
		var amount pgtype.Numeric
		var period int
		if err := rows.Scan(
			&link.Account.Company, &link.Account.Chain, &link.Account.Number,
			&link.CreditRef, &link.DebitRef, &amount, &period, &link.Date,
		); err != nil {
			return nil, err
		}
		link.Period = shared.Period(period)
		if amount.Valid && amount.Int != nil {
			link.Amount = decimal.NewFromBigInt(amount.Int, amount.Exp)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
