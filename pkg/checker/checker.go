// Package checker runs a file of one-line statements through an executor and
// records which ones succeeded.
package checker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
)

// commentPrefix marks a line as a section separator.
const commentPrefix = "#"

const utf8BOM = "\ufeff"

// Sentinel errors for run-level failures. Statement failures are never
// returned; they are recorded in the Result.
var (
	// ErrOpenInput indicates the input file could not be opened.
	ErrOpenInput = errors.New("open input")
	// ErrReadInput indicates an I/O error while reading the input.
	ErrReadInput = errors.New("read input")
	// ErrExecutor indicates the executor cannot run statements at all.
	ErrExecutor = errors.New("executor unavailable")
)

// LineKind classifies one input line.
type LineKind int

// Line kinds.
const (
	LineBlank LineKind = iota
	LineComment
	LineStatement
)

// Classify trims line and reports what it is.
func Classify(line string) (string, LineKind) {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		return trimmed, LineBlank
	case strings.HasPrefix(trimmed, commentPrefix):
		return trimmed, LineComment
	default:
		return trimmed, LineStatement
	}
}

// Outcome is the record of one executed statement.
type Outcome struct {
	// Line is the 1-based line number in the input.
	Line int
	// Statement is the trimmed statement text.
	Statement string
	// Modules are the modules the statement imports, when known.
	Modules []string
	// Err is nil on success.
	Err error
	// Duration is how long execution took.
	Duration time.Duration
}

// OK reports whether the statement succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ErrorType returns the exception type of a failed statement, or "" for
// successes and failures that did not come from the interpreter.
func (o Outcome) ErrorType() string {
	var stmtErr *pyexec.StatementError
	if errors.As(o.Err, &stmtErr) {
		return stmtErr.Type
	}

	return ""
}

// Expected reports whether the failure is an import resolution or syntax error.
func (o Outcome) Expected() bool {
	var stmtErr *pyexec.StatementError

	return errors.As(o.Err, &stmtErr) && stmtErr.Expected
}

// Result holds the outcomes of one run in input order.
type Result struct {
	Source    string
	Successes []Outcome
	Failures  []Outcome
}

// Total returns the number of executed statements.
func (r *Result) Total() int {
	return len(r.Successes) + len(r.Failures)
}

// Progress receives live feedback while a run proceeds.
type Progress interface {
	Start(source string)
	Comment(text string)
	Outcome(outcome Outcome)
}

// Options configures a Checker. Only Executor is required.
type Options struct {
	Executor pyexec.Executor

	// Progress receives live output. Nil disables it.
	Progress Progress

	// Modules extracts imported module names from a statement. Nil skips it.
	Modules func(stmt string) []string

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.CheckMetrics
}

// Checker executes statement files.
type Checker struct {
	executor pyexec.Executor
	progress Progress
	modules  func(string) []string
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.CheckMetrics
}

// New creates a Checker.
func New(opts Options) *Checker {
	checker := &Checker{
		executor: opts.Executor,
		progress: opts.Progress,
		modules:  opts.Modules,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
	}

	if checker.progress == nil {
		checker.progress = discardProgress{}
	}

	if checker.logger == nil {
		checker.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if checker.tracer == nil {
		checker.tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	return checker
}

// Run opens path and checks every statement in it.
func (c *Checker) Run(ctx context.Context, path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenInput, err)
	}
	defer file.Close()

	return c.Check(ctx, path, file)
}

// Check reads statements from r. source names the input in output and logs.
func (c *Checker) Check(ctx context.Context, source string, r io.Reader) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "importcheck.run",
		trace.WithAttributes(attribute.String("importcheck.source", source)),
	)
	defer span.End()

	c.progress.Start(source)

	result := &Result{Source: source}
	reader := bufio.NewReader(r)

	for lineNum := 1; ; lineNum++ {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			span.RecordError(readErr)
			span.SetStatus(codes.Error, "read input")

			return nil, fmt.Errorf("%w: %s: %w", ErrReadInput, source, readErr)
		}

		if lineNum == 1 {
			raw = strings.TrimPrefix(raw, utf8BOM)
		}

		if raw != "" {
			stepErr := c.step(ctx, result, lineNum, raw)
			if stepErr != nil {
				span.RecordError(stepErr)
				span.SetStatus(codes.Error, "executor")

				return nil, stepErr
			}
		}

		if readErr != nil {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("importcheck.succeeded", len(result.Successes)),
		attribute.Int("importcheck.failed", len(result.Failures)),
	)

	c.logger.DebugContext(ctx, "run complete", "source", source,
		"succeeded", len(result.Successes), "failed", len(result.Failures))

	return result, nil
}

func (c *Checker) step(ctx context.Context, result *Result, lineNum int, raw string) error {
	text, kind := Classify(raw)

	switch kind {
	case LineBlank:
		return nil
	case LineComment:
		c.progress.Comment(text)
		c.metrics.RecordComment(ctx)

		return nil
	}

	outcome, err := c.execute(ctx, lineNum, text)
	if err != nil {
		return err
	}

	if outcome.OK() {
		result.Successes = append(result.Successes, outcome)
	} else {
		result.Failures = append(result.Failures, outcome)
	}

	c.progress.Outcome(outcome)

	return nil
}

func (c *Checker) execute(ctx context.Context, lineNum int, stmt string) (Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "importcheck.statement",
		trace.WithAttributes(
			attribute.Int("importcheck.line", lineNum),
			attribute.String("importcheck.statement", stmt),
		),
	)
	defer span.End()

	start := time.Now()
	execErr := c.executor.Exec(ctx, stmt)
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}

	if errors.Is(execErr, pyexec.ErrInterpreterStart) {
		return Outcome{}, fmt.Errorf("%w: %w", ErrExecutor, execErr)
	}

	outcome := Outcome{
		Line:      lineNum,
		Statement: stmt,
		Err:       execErr,
		Duration:  elapsed,
	}

	if c.modules != nil {
		outcome.Modules = c.modules(stmt)
	}

	status := observability.StatusOK
	if execErr != nil {
		status = observability.StatusError

		span.RecordError(execErr)
		span.SetStatus(codes.Error, outcome.ErrorType())
		c.logger.DebugContext(ctx, "statement failed", "line", lineNum, "statement", stmt, "error", execErr)
	}

	c.metrics.RecordStatement(ctx, status, outcome.ErrorType(), elapsed)

	return outcome, nil
}

type discardProgress struct{}

func (discardProgress) Start(string)    {}
func (discardProgress) Comment(string)  {}
func (discardProgress) Outcome(Outcome) {}
