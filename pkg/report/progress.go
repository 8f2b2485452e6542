// Package report prints the live progress of a checker run and renders its
// result as a summary or a structured document.
package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
)

// Progress writes one line per event as the run proceeds.
type Progress struct {
	out io.Writer

	header     *color.Color
	comment    *color.Color
	success    *color.Color
	failure    *color.Color
	unexpected *color.Color
}

// NewProgress creates a Progress writing to w. Colors follow color.NoColor
// unless noColor forces them off.
func NewProgress(w io.Writer, noColor bool) *Progress {
	progress := &Progress{
		out:        w,
		header:     color.New(color.Bold),
		comment:    color.New(color.FgCyan),
		success:    color.New(color.FgGreen),
		failure:    color.New(color.FgRed),
		unexpected: color.New(color.FgYellow),
	}

	if noColor {
		for _, c := range []*color.Color{
			progress.header, progress.comment, progress.success, progress.failure, progress.unexpected,
		} {
			c.DisableColor()
		}
	}

	return progress
}

// Start prints the run header.
func (p *Progress) Start(source string) {
	p.header.Fprintf(p.out, "--- Reading and executing imports from: %s ---\n", source)
}

// Comment prints a separator line surrounded by blank lines.
func (p *Progress) Comment(text string) {
	fmt.Fprintln(p.out)
	p.comment.Fprintln(p.out, text)
	fmt.Fprintln(p.out)
}

// Outcome prints the result line of one statement.
func (p *Progress) Outcome(outcome checker.Outcome) {
	switch {
	case outcome.OK():
		p.success.Fprintf(p.out, "   (+) Success: Executed statement correctly - %s\n", outcome.Statement)
	case outcome.Expected():
		p.failure.Fprintf(p.out, " X (-) - - - Failed: Could not execute statement - %s - Error: %v\n",
			outcome.Statement, outcome.Err)
	default:
		p.unexpected.Fprintf(p.out, " X (-) Failed: Unexpected error executing statement - %s - Error: %v\n",
			outcome.Statement, outcome.Err)
	}
}

var _ checker.Progress = (*Progress)(nil)
