// Package amortize solves the standard amortization equation for whichever
// of principal, payment, or rate is unknown. Rates are annual nominal
// percentages; the periodic rate is rate/1200.
package amortize

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Unknown selects which field a Problem solves for.
type Unknown int

const (
	UnknownPayment Unknown = iota
	UnknownPrincipal
	UnknownRate
)

func (u Unknown) String() string {
	switch u {
	case UnknownPayment:
		return "payment"
	case UnknownPrincipal:
		return "principal"
	case UnknownRate:
		return "rate"
	default:
		return fmt.Sprintf("Unknown(%d)", int(u))
	}
}

// ParseUnknown maps a wire name onto an Unknown.
func ParseUnknown(s string) (Unknown, error) {
	switch s {
	case "payment":
		return UnknownPayment, nil
	case "principal":
		return UnknownPrincipal, nil
	case "rate":
		return UnknownRate, nil
	default:
		return 0, fmt.Errorf("%w: unknown field %q", ErrInvalidProblem, s)
	}
}

var (
	// ErrInvalidProblem marks inputs the solver cannot even start on.
	ErrInvalidProblem = errors.New("amortize: invalid problem")
	// ErrPrincipalNotFound means the target payment was not reached
	// within the principal search bounds.
	ErrPrincipalNotFound = errors.New("amortize: principal not found")
	// ErrRateNotFound means the target payment was not reached within
	// the rate search bounds.
	ErrRateNotFound = errors.New("amortize: rate not found")
)

// Search granularity and bounds. The searches walk upward from the start
// value until the computed payment reaches the target or the bound trips.
var (
	principalStart = decimal.NewFromInt(100)
	principalStep  = decimal.NewFromInt(100)
	rateStep       = decimal.NewFromFloat(0.0001)
	maxRate        = decimal.NewFromInt(100)
	twelveHundred  = decimal.NewFromInt(1200)
	one            = decimal.New(1, 0)
)

const maxPrincipalSteps = 1_000_000

// Problem carries the three known fields plus the field to solve for. The
// field named by Solve is ignored on input.
type Problem struct {
	Solve     Unknown
	Principal decimal.Decimal
	Residual  decimal.Decimal
	Term      int
	Payment   decimal.Decimal
	Rate      decimal.Decimal
}

// SolveFor dispatches on the unknown field and returns its value.
func SolveFor(p Problem) (decimal.Decimal, error) {
	switch p.Solve {
	case UnknownPayment:
		return Payment(p.Principal, p.Residual, p.Term, p.Rate)
	case UnknownPrincipal:
		return Principal(p.Payment, p.Residual, p.Term, p.Rate)
	case UnknownRate:
		return Rate(p.Principal, p.Residual, p.Term, p.Payment)
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported unknown %d", ErrInvalidProblem, int(p.Solve))
	}
}

// Payment computes the periodic payment from the closed form
//
//	((principal*r*(1+r)^term) - residual*r) / ((1+r)^term - 1)
//
// with r = rate/1200, rounded to cents. A zero rate degenerates to straight
// division of the amortized amount over the term.
func Payment(principal, residual decimal.Decimal, term int, rate decimal.Decimal) (decimal.Decimal, error) {
	if term <= 0 {
		return decimal.Zero, fmt.Errorf("%w: term must be positive", ErrInvalidProblem)
	}
	if rate.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%w: rate must not be negative", ErrInvalidProblem)
	}
	if rate.IsZero() {
		return principal.Sub(residual).Div(decimal.NewFromInt(int64(term))).Round(2), nil
	}
	r := rate.Div(twelveHundred)
	factor := one.Add(r).Pow(decimal.NewFromInt(int64(term)))
	numerator := principal.Mul(r).Mul(factor).Sub(residual.Mul(r))
	return numerator.Div(factor.Sub(one)).Round(2), nil
}

// Principal searches for the smallest principal, in steps of 100, whose
// computed payment reaches the target payment. The result is rounded to 2
// decimals.
func Principal(payment, residual decimal.Decimal, term int, rate decimal.Decimal) (decimal.Decimal, error) {
	if term <= 0 {
		return decimal.Zero, fmt.Errorf("%w: term must be positive", ErrInvalidProblem)
	}
	if payment.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: payment must be positive", ErrInvalidProblem)
	}
	if rate.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%w: rate must not be negative", ErrInvalidProblem)
	}
	target := payment.Round(2)

	// The payment is linear in the principal, so the closed-form
	// coefficients are hoisted out of the walk.
	var slope, offset decimal.Decimal
	if rate.IsZero() {
		termDec := decimal.NewFromInt(int64(term))
		slope = one.Div(termDec)
		offset = residual.Div(termDec)
	} else {
		r := rate.Div(twelveHundred)
		factor := one.Add(r).Pow(decimal.NewFromInt(int64(term)))
		denominator := factor.Sub(one)
		slope = r.Mul(factor).Div(denominator)
		offset = residual.Mul(r).Div(denominator)
	}

	principal := principalStart
	for i := 0; i < maxPrincipalSteps; i++ {
		computed := principal.Mul(slope).Sub(offset).Round(2)
		if computed.GreaterThanOrEqual(target) {
			return principal.Round(2), nil
		}
		principal = principal.Add(principalStep)
	}
	return decimal.Zero, ErrPrincipalNotFound
}

// Rate searches for the smallest annual rate, in steps of 0.0001 percent,
// whose computed payment reaches the target payment. The result is rounded
// to 4 decimals.
func Rate(principal, residual decimal.Decimal, term int, payment decimal.Decimal) (decimal.Decimal, error) {
	if term <= 0 {
		return decimal.Zero, fmt.Errorf("%w: term must be positive", ErrInvalidProblem)
	}
	if payment.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: payment must be positive", ErrInvalidProblem)
	}
	target := payment.Round(2)

	rate := decimal.Zero
	for rate.LessThanOrEqual(maxRate) {
		computed, err := Payment(principal, residual, term, rate)
		if err != nil {
			return decimal.Zero, err
		}
		if computed.GreaterThanOrEqual(target) {
			return rate.Round(4), nil
		}
		rate = rate.Add(rateStep)
	}
	return decimal.Zero, ErrRateNotFound
}
