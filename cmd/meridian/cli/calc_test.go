package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSolveCommandJSONSuccess(t *testing.T) {
	cli := NewCalcCLI()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.SolveCommand(CalcOptions{
		Solve:      "payment",
		Principal:  "10000",
		Term:       12,
		Rate:       "12.00",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})

	require.Equal(t, 0, exitCode)
	require.Empty(t, stderr.String())

	var result struct {
		Solve string `json:"solve"`
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.Equal(t, "payment", result.Solve)
	require.Equal(t, "888.49", result.Value)
}

func TestSolveCommandPlainOutput(t *testing.T) {
	cli := NewCalcCLI()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.SolveCommand(CalcOptions{
		Solve:     "payment",
		Principal: "12000",
		Term:      12,
		Rate:      "0",
		Stdout:    stdout,
		Stderr:    stderr,
	})

	require.Equal(t, 0, exitCode)
	require.Equal(t, "payment = 1000.00\n", stdout.String())
}

func TestSolveCommandRejectsBadInput(t *testing.T) {
	cli := NewCalcCLI()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	exitCode := cli.SolveCommand(CalcOptions{
		Solve:  "term",
		Term:   12,
		Stdout: stdout,
		Stderr: stderr,
	})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown field")

	stderr.Reset()
	exitCode = cli.SolveCommand(CalcOptions{
		Solve:     "payment",
		Principal: "not-a-number",
		Term:      12,
		Stdout:    stdout,
		Stderr:    stderr,
	})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "principal must be a decimal number")
}

func TestSolveCommandReportsUnreachableTarget(t *testing.T) {
	cli := NewCalcCLI()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.SolveCommand(CalcOptions{
		Solve:   "principal",
		Payment: "10000000000",
		Term:    12,
		Rate:    "12.00",
		Stdout:  stdout,
		Stderr:  stderr,
	})

	require.Equal(t, 3, exitCode)
	require.Contains(t, stderr.String(), "principal not found")
}
