package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
)

// PrintSummary writes the end-of-run summary: successful statements, then
// failed statements with their error descriptions, in input order.
func PrintSummary(w io.Writer, successes, failures []checker.Outcome) error {
	buf := bufio.NewWriter(w)

	fmt.Fprintln(buf, "\n--- Execution Summary ---")

	if len(successes) > 0 {
		fmt.Fprintln(buf, "\nSuccessfully Executed Statements:")

		for _, outcome := range successes {
			fmt.Fprintf(buf, "  - %s\n", outcome.Statement)
		}
	} else {
		fmt.Fprintln(buf, "\nNo import statements were executed successfully.")
	}

	if len(failures) > 0 {
		fmt.Fprintln(buf, "\nFailed Statements:")

		for _, outcome := range failures {
			fmt.Fprintf(buf, "  - %s: %v\n", outcome.Statement, outcome.Err)
		}
	} else {
		fmt.Fprintln(buf, "\nNo import statements failed.")
	}

	fmt.Fprintln(buf, "\n--- End of Summary ---")

	err := buf.Flush()
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
