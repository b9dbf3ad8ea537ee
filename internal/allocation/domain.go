// Package allocation matches open credit items against open debit items for
// one account. A session accumulates staged amounts; nothing touches the
// store until the session completes and its links commit in one transaction.
package allocation

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Mode selects which items a session presents.
type Mode int

const (
	// ModeNormal presents unsettled items only.
	ModeNormal Mode = iota
	// ModeHistory presents every item, settled included, for inspection.
	ModeHistory
)

// Link records one matched amount between a credit and a debit item.
type Link struct {
	CreditRef string
	DebitRef  string
	Account   ledger.AccountRef
	Amount    decimal.Decimal
	Period    shared.Period
	Date      time.Time
}

var (
	// ErrOverAllocation indicates a staged amount exceeding an item's open
	// balance.
	ErrOverAllocation = errors.New("allocation: amount exceeds open balance")
	// ErrSessionImbalanced indicates completion attempted with a non-zero
	// running total.
	ErrSessionImbalanced = errors.New("allocation: session not balanced")
	// ErrSessionClosed indicates the session already completed or cancelled.
	ErrSessionClosed = errors.New("allocation: session closed")
	// ErrUnknownItem indicates a staged reference outside the session's
	// item set.
	ErrUnknownItem = errors.New("allocation: unknown item")
	// ErrItemSettled indicates staging against an item with zero balance.
	ErrItemSettled = errors.New("allocation: item already settled")
)
