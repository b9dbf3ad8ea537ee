package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("ledger: not found")

// Repository provides PostgreSQL backed persistence for ledger data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const transactionColumns = `ref, company, chain, account_no, tx_type, tx_date, span_end,
		period, amount, allocated, batch_id, created_at, updated_at`

// GetAccount retrieves an account master record.
func (r *Repository) GetAccount(ctx context.Context, ref AccountRef) (*Account, error) {
	query := `
		SELECT company, chain, account_no, credit_limit, stopped, rating,
			first_reminder_term, further_reminder_term, created_at, updated_at
		FROM accounts
		WHERE company = $1 AND chain = $2 AND account_no = $3`

	var acc Account
	var limit pgtype.Numeric
	var rating pgtype.Text
	err := r.pool.QueryRow(ctx, query, ref.Company, ref.Chain, ref.Number).Scan(
		&acc.Ref.Company, &acc.Ref.Chain, &acc.Ref.Number, &limit, &acc.Stopped, &rating,
		&acc.FirstReminderTerm, &acc.FurtherReminderTerm, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.CreditLimit = numericToDecimal(limit)
	if rating.Valid {
		acc.Rating = Rating(rating.String)
	}
	return &acc, nil
}

// ListAccounts returns all accounts of a company ordered by account number.
func (r *Repository) ListAccounts(ctx context.Context, company string) ([]Account, error) {
	query := `
		SELECT company, chain, account_no, credit_limit, stopped, rating,
			first_reminder_term, further_reminder_term, created_at, updated_at
		FROM accounts
		WHERE company = $1
		ORDER BY chain, account_no`

	rows, err := r.pool.Query(ctx, query, company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var acc Account
		var limit pgtype.Numeric
		var rating pgtype.Text
		if err := rows.Scan(
			&acc.Ref.Company, &acc.Ref.Chain, &acc.Ref.Number, &limit, &acc.Stopped, &rating,
			&acc.FirstReminderTerm, &acc.FurtherReminderTerm, &acc.CreatedAt, &acc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		acc.CreditLimit = numericToDecimal(limit)
		if rating.Valid {
			acc.Rating = Rating(rating.String)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// UpdateAccountRating persists a new rating for an account.
func (r *Repository) UpdateAccountRating(ctx context.Context, ref AccountRef, rating Rating) error {
	query := `
		UPDATE accounts
		SET rating = $4, updated_at = NOW()
		WHERE company = $1 AND chain = $2 AND account_no = $3`

	result, err := r.pool.Exec(ctx, query, ref.Company, ref.Chain, ref.Number, string(rating))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions returns transactions matching the filter, oldest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE company = $1 AND chain = $2 AND account_no = $3`

	args := []any{filter.Account.Company, filter.Account.Chain, filter.Account.Number}
	argNum := 4

	if filter.UpTo > 0 {
		query += fmt.Sprintf(" AND period <= $%d", argNum)
		args = append(args, int(filter.UpTo))
		argNum++
	}
	if filter.OpenOnly {
		query += " AND amount <> allocated"
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argNum))
			args = append(args, string(t))
			argNum++
		}
		query += " AND tx_type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if filter.BatchID != "" {
		query += fmt.Sprintf(" AND batch_id = $%d", argNum)
		args = append(args, filter.BatchID)
	}

	query += " ORDER BY tx_date, ref"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	var spanEnd pgtype.Date
	var amount, allocated pgtype.Numeric
	var batchID pgtype.Text
	var period int
	err := row.Scan(
		&txn.Ref, &txn.Account.Company, &txn.Account.Chain, &txn.Account.Number,
		&txn.Type, &txn.Date, &spanEnd, &period, &amount, &allocated, &batchID,
		&txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	txn.Period = shared.Period(period)
	txn.Amount = numericToDecimal(amount)
	txn.Allocated = numericToDecimal(allocated)
	if spanEnd.Valid {
		txn.SpanEnd = spanEnd.Time
	}
	if batchID.Valid {
		txn.BatchID = batchID.String
	}
	return txn, nil
}

// InsertTransaction writes a transaction inside the caller's transaction.
// Batch posting routines use it together with db.WithTx.
func InsertTransaction(ctx context.Context, tx pgx.Tx, txn Transaction) error {
	query := `
		INSERT INTO ledger_transactions (
			ref, company, chain, account_no, tx_type, tx_date, span_end,
			period, amount, allocated, batch_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	var spanEnd pgtype.Date
	if !txn.SpanEnd.IsZero() {
		spanEnd = pgtype.Date{Time: txn.SpanEnd, Valid: true}
	}
	var batchID pgtype.Text
	if txn.BatchID != "" {
		batchID = pgtype.Text{String: txn.BatchID, Valid: true}
	}

	_, err := tx.Exec(ctx, query,
		txn.Ref, txn.Account.Company, txn.Account.Chain, txn.Account.Number,
		string(txn.Type), txn.Date, spanEnd, int(txn.Period),
		txn.Amount, txn.Allocated, batchID,
	)
	return err
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
