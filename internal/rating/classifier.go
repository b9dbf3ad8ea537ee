// Package rating classifies an account's creditworthiness from its aged
// balance and terms.
package rating

import (
	"github.com/meridian-erp/meridian-erp/internal/aging"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// Config controls the zero/credit-balance branches of the rule cascade.
type Config struct {
	// IgnoreZeroBalances suppresses rating updates for accounts with a
	// zero balance.
	IgnoreZeroBalances bool
	// IgnoreCreditBalances extends IgnoreZeroBalances to negative (credit)
	// balances. The observed behaviour is ambiguous here, so it is a
	// separate switch.
	IgnoreCreditBalances bool
}

// Outcome is the classified rating plus whether a write is needed.
type Outcome struct {
	Rating  ledger.Rating
	Changed bool
}

// Classify evaluates the rule cascade in strict order, first match wins.
// Accounts matching no rule keep their existing rating unchanged.
func Classify(account ledger.Account, snap aging.Snapshot, cfg Config) Outcome {
	current := account.Rating
	balance := snap.Closing
	neutral := current == ledger.RatingUnset || current == ledger.RatingGood

	computed := current
	matched := false

	switch {
	case current == ledger.RatingBad || account.Stopped:
		computed, matched = ledger.RatingBad, true
	case balance.Sign() > 0 && account.CreditLimit.Sign() > 0 && balance.GreaterThan(account.CreditLimit):
		computed, matched = ledger.RatingPending, true
	case balance.Sign() > 0 && snap.Overdue(account.FurtherReminderTerm).Sign() > 0:
		computed, matched = ledger.RatingBad, true
	case balance.Sign() > 0 && snap.Overdue(account.FirstReminderTerm).Sign() > 0:
		computed, matched = ledger.RatingFurther, true
	case balance.Sign() > 0 && neutral:
		computed, matched = ledger.RatingGood, true
	case balance.Sign() == 0 && neutral && !cfg.IgnoreZeroBalances:
		computed, matched = ledger.RatingGood, true
	case balance.Sign() < 0 && neutral && !(cfg.IgnoreZeroBalances && cfg.IgnoreCreditBalances):
		computed, matched = ledger.RatingGood, true
	}

	if !matched {
		return Outcome{Rating: current, Changed: false}
	}
	return Outcome{Rating: computed, Changed: computed != current}
}
