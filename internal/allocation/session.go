package allocation

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type item struct {
	txn    ledger.Transaction
	staged decimal.Decimal
}

// Session is the staging area for one account's allocation run. All state
// lives here; the ledger store is untouched until the staged links commit.
type Session struct {
	id      uuid.UUID
	account ledger.AccountRef
	mode    Mode
	period  shared.Period
	date    time.Time
	items   map[string]*item
	order   []string
	closed  bool
}

// NewSession opens a session over the account's item set. The caller supplies
// the transactions; in normal mode settled items are hidden from Items but
// retained for history-mode inspection.
func NewSession(account ledger.AccountRef, txns []ledger.Transaction, mode Mode, period shared.Period, date time.Time) *Session {
	s := &Session{
		id:      uuid.New(),
		account: account,
		mode:    mode,
		period:  period,
		date:    date,
		items:   make(map[string]*item, len(txns)),
	}
	sorted := append([]ledger.Transaction(nil), txns...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Ref < sorted[j].Ref
	})
	for _, txn := range sorted {
		s.items[txn.Ref] = &item{txn: txn}
		s.order = append(s.order, txn.Ref)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Account returns the account under allocation.
func (s *Session) Account() ledger.AccountRef { return s.account }

// Items returns the presented item set, oldest first. Normal mode hides
// settled items; history mode shows everything.
func (s *Session) Items() []ledger.Transaction {
	var out []ledger.Transaction
	for _, ref := range s.order {
		it := s.items[ref]
		if s.mode == ModeNormal && !it.txn.Open() {
			continue
		}
		out = append(out, it.txn)
	}
	return out
}

// Stage sets the amount entered against an item. Amount is a positive
// magnitude regardless of the item's sign; zero clears the entry. Entering
// more than the item's open balance is rejected with no effect.
func (s *Session) Stage(ref string, amount decimal.Decimal) error {
	if s.closed {
		return ErrSessionClosed
	}
	it, ok := s.items[ref]
	if !ok {
		return ErrUnknownItem
	}
	if amount.Sign() < 0 {
		return ErrOverAllocation
	}
	open := it.txn.Balance().Abs()
	if open.IsZero() && amount.Sign() > 0 {
		return ErrItemSettled
	}
	if amount.GreaterThan(open) {
		return ErrOverAllocation
	}
	it.staged = amount
	return nil
}

// Staged returns the amount currently entered against an item.
func (s *Session) Staged(ref string) decimal.Decimal {
	if it, ok := s.items[ref]; ok {
		return it.staged
	}
	return decimal.Zero
}

// Unallocated is the running total: staged debits minus staged credits. The
// session can only complete when it is exactly zero.
func (s *Session) Unallocated() decimal.Decimal {
	total := decimal.Zero
	for _, ref := range s.order {
		it := s.items[ref]
		if it.staged.IsZero() {
			continue
		}
		if it.txn.Debit() {
			total = total.Add(it.staged)
		} else {
			total = total.Sub(it.staged)
		}
	}
	return total
}

// AutoAllocate stages open credits against open debits oldest-first. The
// result is always balanced: a credit is only staged as far as debits can
// absorb it.
func (s *Session) AutoAllocate() error {
	if s.closed {
		return ErrSessionClosed
	}
	type slot struct {
		ref       string
		remaining decimal.Decimal
	}
	var debits []*slot
	for _, ref := range s.order {
		it := s.items[ref]
		if it.txn.Debit() && it.txn.Open() {
			debits = append(debits, &slot{ref: ref, remaining: it.txn.Balance()})
		}
	}
	di := 0
	for _, ref := range s.order {
		it := s.items[ref]
		if it.txn.Debit() || !it.txn.Open() {
			continue
		}
		credit := it.txn.Balance().Abs()
		used := decimal.Zero
		for credit.Sign() > 0 && di < len(debits) {
			d := debits[di]
			take := decimal.Min(credit, d.remaining)
			d.remaining = d.remaining.Sub(take)
			if err := s.Stage(d.ref, s.Staged(d.ref).Add(take)); err != nil {
				return err
			}
			credit = credit.Sub(take)
			used = used.Add(take)
			if d.remaining.IsZero() {
				di++
			}
		}
		if used.Sign() > 0 {
			if err := s.Stage(ref, used); err != nil {
				return err
			}
		}
		if di >= len(debits) {
			break
		}
	}
	return nil
}

// Complete finalises the session and returns the allocation links pairing
// staged credits against staged debits oldest-first. It fails while the
// running total is non-zero.
func (s *Session) Complete() ([]Link, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.Unallocated().IsZero() {
		return nil, ErrSessionImbalanced
	}

	type slot struct {
		ref       string
		remaining decimal.Decimal
	}
	var credits, debits []*slot
	for _, ref := range s.order {
		it := s.items[ref]
		if it.staged.IsZero() {
			continue
		}
		entry := &slot{ref: ref, remaining: it.staged}
		if it.txn.Debit() {
			debits = append(debits, entry)
		} else {
			credits = append(credits, entry)
		}
	}

	var links []Link
	di := 0
	for _, c := range credits {
		for c.remaining.Sign() > 0 && di < len(debits) {
			d := debits[di]
			take := decimal.Min(c.remaining, d.remaining)
			links = append(links, Link{
				CreditRef: c.ref,
				DebitRef:  d.ref,
				Account:   s.account,
				Amount:    take,
				Period:    s.period,
				Date:      s.date,
			})
			c.remaining = c.remaining.Sub(take)
			d.remaining = d.remaining.Sub(take)
			if d.remaining.IsZero() {
				di++
			}
		}
	}
	s.closed = true
	return links, nil
}

// Cancel abandons the session. Staged amounts are discarded and no store
// state changes.
func (s *Session) Cancel() {
	s.closed = true
	for _, it := range s.items {
		it.staged = decimal.Zero
	}
}
