package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTransactionBalance(t *testing.T) {
	txn := Transaction{
		Amount:    decimal.NewFromInt(500),
		Allocated: decimal.NewFromInt(120),
	}
	require.Equal(t, "380.00", txn.Balance().StringFixed(2))
	require.True(t, txn.Open())
	require.True(t, txn.Debit())

	txn.Allocated = txn.Amount
	require.False(t, txn.Open())

	credit := Transaction{Amount: decimal.NewFromInt(-200)}
	require.False(t, credit.Debit())
	require.True(t, credit.Open())
}

func TestAccountRef(t *testing.T) {
	require.True(t, AccountRef{}.Zero())

	ref := AccountRef{Company: "C1", Chain: "AR", Number: "1001"}
	require.False(t, ref.Zero())
	require.Equal(t, "C1/AR/1001", ref.String())
}
