package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// ErrUnknownFormat is returned for a format outside Formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatTable}

// ValidFormat reports whether format is supported.
func ValidFormat(format string) bool {
	return slices.Contains(Formats, format)
}

// Record is the structured form of one outcome.
type Record struct {
	Line       int      `json:"line"                 yaml:"line"`
	Statement  string   `json:"statement"            yaml:"statement"`
	Modules    []string `json:"modules,omitempty"    yaml:"modules,omitempty"`
	ErrorType  string   `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Error      string   `json:"error,omitempty"      yaml:"error,omitempty"`
	DurationMS float64  `json:"duration_ms"          yaml:"duration_ms"`
}

// Totals counts the outcomes of a run.
type Totals struct {
	Executed  int `json:"executed"  yaml:"executed"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed"    yaml:"failed"`
}

// Document is the structured report of a run.
type Document struct {
	Source    string   `json:"source"    yaml:"source"`
	Successes []Record `json:"successes" yaml:"successes"`
	Failures  []Record `json:"failures"  yaml:"failures"`
	Totals    Totals   `json:"totals"    yaml:"totals"`
}

// NewDocument converts result into its structured form.
func NewDocument(result *checker.Result) Document {
	return Document{
		Source:    result.Source,
		Successes: toRecords(result.Successes),
		Failures:  toRecords(result.Failures),
		Totals: Totals{
			Executed:  result.Total(),
			Succeeded: len(result.Successes),
			Failed:    len(result.Failures),
		},
	}
}

func toRecords(outcomes []checker.Outcome) []Record {
	records := make([]Record, 0, len(outcomes))

	for _, outcome := range outcomes {
		record := Record{
			Line:       outcome.Line,
			Statement:  outcome.Statement,
			Modules:    outcome.Modules,
			ErrorType:  outcome.ErrorType(),
			DurationMS: float64(outcome.Duration.Microseconds()) / 1000,
		}

		if outcome.Err != nil {
			record.Error = outcome.Err.Error()
		}

		records = append(records, record)
	}

	return records
}

// Render writes result to w in format.
func Render(w io.Writer, format string, result *checker.Result) error {
	switch format {
	case FormatText, "":
		return PrintSummary(w, result.Successes, result.Failures)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(NewDocument(result))
		if err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(NewDocument(result))
		if err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}

		return enc.Close()
	case FormatTable:
		return renderTable(w, result)
	default:
		return fmt.Errorf("%w: %q (want %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

func renderTable(w io.Writer, result *checker.Result) error {
	rows := make([]checker.Outcome, 0, result.Total())
	rows = append(rows, result.Successes...)
	rows = append(rows, result.Failures...)
	slices.SortStableFunc(rows, func(a, b checker.Outcome) int { return a.Line - b.Line })

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(result.Source)
	tw.AppendHeader(table.Row{"Line", "Statement", "Status", "Error", "Modules", "Time"})

	for _, outcome := range rows {
		status, errText := "ok", ""
		if !outcome.OK() {
			status = "failed"
			errText = outcome.Err.Error()

			if errType := outcome.ErrorType(); errType != "" {
				errText = errType + ": " + errText
			}
		}

		tw.AppendRow(table.Row{
			outcome.Line,
			outcome.Statement,
			status,
			errText,
			strings.Join(outcome.Modules, ", "),
			formatDuration(outcome.Duration),
		})
	}

	tw.AppendFooter(table.Row{
		"", fmt.Sprintf("%d executed", result.Total()),
		humanize.Comma(int64(len(result.Successes))) + " ok",
		humanize.Comma(int64(len(result.Failures))) + " failed",
		"", "",
	})

	_, err := io.WriteString(w, tw.Render()+"\n")
	if err != nil {
		return fmt.Errorf("write table report: %w", err)
	}

	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return humanize.FormatFloat("#,###.#", float64(d.Microseconds())/1000) + "ms"
	}

	return humanize.FormatFloat("#,###.##", d.Seconds()) + "s"
}
