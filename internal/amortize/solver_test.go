package amortize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPaymentClosedForm(t *testing.T) {
	// 10000 over 12 months at 12% nominal is the reference case: the
	// annuity payment is 888.49.
	payment, err := Payment(dec("10000"), dec("0"), 12, dec("12.00"))
	require.NoError(t, err)
	require.Equal(t, "888.49", payment.StringFixed(2))
}

func TestPaymentWithResidual(t *testing.T) {
	// A residual value lowers the payment: only the amortized part plus
	// interest on the residual is spread over the term.
	full, err := Payment(dec("10000"), dec("0"), 12, dec("12.00"))
	require.NoError(t, err)
	withResidual, err := Payment(dec("10000"), dec("2000"), 12, dec("12.00"))
	require.NoError(t, err)
	require.True(t, withResidual.LessThan(full))
}

func TestPaymentZeroRate(t *testing.T) {
	payment, err := Payment(dec("12000"), dec("0"), 12, dec("0"))
	require.NoError(t, err)
	require.Equal(t, "1000.00", payment.StringFixed(2))
}

func TestPaymentRejectsInvalidInput(t *testing.T) {
	_, err := Payment(dec("10000"), dec("0"), 0, dec("12.00"))
	require.ErrorIs(t, err, ErrInvalidProblem)

	_, err = Payment(dec("10000"), dec("0"), 12, dec("-1"))
	require.ErrorIs(t, err, ErrInvalidProblem)
}

func TestPrincipalRoundTrip(t *testing.T) {
	payment, err := Payment(dec("10000"), dec("0"), 12, dec("12.00"))
	require.NoError(t, err)

	principal, err := Principal(payment, dec("0"), 12, dec("12.00"))
	require.NoError(t, err)
	// Search granularity is 100 units.
	diff := principal.Sub(dec("10000")).Abs()
	require.True(t, diff.LessThanOrEqual(dec("100")), "principal %s off by %s", principal, diff)
}

func TestRateRoundTrip(t *testing.T) {
	payment, err := Payment(dec("10000"), dec("0"), 12, dec("12.00"))
	require.NoError(t, err)

	rate, err := Rate(dec("10000"), dec("0"), 12, payment)
	require.NoError(t, err)
	// Cent rounding at the comparison step lets the search stop a few
	// ten-thousandths early.
	diff := rate.Sub(dec("12.00")).Abs()
	require.True(t, diff.LessThanOrEqual(dec("0.01")), "rate %s off by %s", rate, diff)

	reproduced, err := Payment(dec("10000"), dec("0"), 12, rate)
	require.NoError(t, err)
	require.Equal(t, payment.StringFixed(2), reproduced.StringFixed(2))
}

func TestRateUnreachableTarget(t *testing.T) {
	// 100 over one month cannot demand a trillion-unit payment at any
	// rate inside the search bounds.
	_, err := Rate(dec("100"), dec("0"), 1, dec("1000000000000"))
	require.ErrorIs(t, err, ErrRateNotFound)
}

func TestPrincipalUnreachableTarget(t *testing.T) {
	_, err := Principal(dec("10000000000"), dec("0"), 12, dec("12.00"))
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestSolveForDispatch(t *testing.T) {
	payment, err := SolveFor(Problem{
		Solve:     UnknownPayment,
		Principal: dec("10000"),
		Term:      12,
		Rate:      dec("12.00"),
	})
	require.NoError(t, err)
	require.Equal(t, "888.49", payment.StringFixed(2))

	principal, err := SolveFor(Problem{
		Solve:   UnknownPrincipal,
		Payment: payment,
		Term:    12,
		Rate:    dec("12.00"),
	})
	require.NoError(t, err)
	require.Equal(t, "10000.00", principal.StringFixed(2))

	_, err = SolveFor(Problem{Solve: Unknown(9)})
	require.ErrorIs(t, err, ErrInvalidProblem)
}

func TestParseUnknown(t *testing.T) {
	for name, want := range map[string]Unknown{
		"payment":   UnknownPayment,
		"principal": UnknownPrincipal,
		"rate":      UnknownRate,
	} {
		got, err := ParseUnknown(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseUnknown("term")
	require.ErrorIs(t, err, ErrInvalidProblem)
}
