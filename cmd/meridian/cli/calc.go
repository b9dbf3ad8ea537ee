package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/amortize"
)

// CalcCLI exposes the loan calculator for operators and scripts.
type CalcCLI struct{}

// NewCalcCLI constructs a new helper instance.
func NewCalcCLI() *CalcCLI {
	return &CalcCLI{}
}

// CalcOptions carries the calculator inputs. The field named by Solve is
// ignored; empty amounts default to zero.
type CalcOptions struct {
	Solve      string
	Principal  string
	Residual   string
	Term       int
	Payment    string
	Rate       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

type calcResult struct {
	Solve string `json:"solve"`
	Value string `json:"value"`
}

// SolveCommand runs one calculation and prints the result. The return value
// is a process exit code.
func (c *CalcCLI) SolveCommand(opts CalcOptions) int {
	if opts.Stdout == nil || opts.Stderr == nil {
		return 1
	}

	unknown, err := amortize.ParseUnknown(opts.Solve)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "calc: %v\n", err)
		return 2
	}

	problem := amortize.Problem{Solve: unknown, Term: opts.Term}
	fields := []struct {
		name string
		raw  string
		into *decimal.Decimal
	}{
		{"principal", opts.Principal, &problem.Principal},
		{"residual", opts.Residual, &problem.Residual},
		{"payment", opts.Payment, &problem.Payment},
		{"rate", opts.Rate, &problem.Rate},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		value, err := decimal.NewFromString(f.raw)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "calc: %s must be a decimal number\n", f.name)
			return 2
		}
		*f.into = value
	}

	value, err := amortize.SolveFor(problem)
	switch {
	case errors.Is(err, amortize.ErrInvalidProblem):
		fmt.Fprintf(opts.Stderr, "calc: %v\n", err)
		return 2
	case errors.Is(err, amortize.ErrPrincipalNotFound), errors.Is(err, amortize.ErrRateNotFound):
		fmt.Fprintf(opts.Stderr, "calc: %v\n", err)
		return 3
	case err != nil:
		fmt.Fprintf(opts.Stderr, "calc: %v\n", err)
		return 1
	}

	places := int32(2)
	if unknown == amortize.UnknownRate {
		places = 4
	}
	result := calcResult{Solve: unknown.String(), Value: value.StringFixed(places)}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(result); err != nil {
			fmt.Fprintf(opts.Stderr, "calc: encode result: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "%s = %s\n", result.Solve, result.Value)
	return 0
}
