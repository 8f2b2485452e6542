package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyimports"
	"github.com/Sumatoshi-tech/importcheck/pkg/report"
)

// ToolNameRun is the name of the statement checking tool.
const ToolNameRun = "importcheck_run"

// Input size limits.
const (
	// MaxStatements bounds the number of inline statements per call.
	MaxStatements = 10_000
	// MaxInputBytes bounds the total size of inline statements (1 MB).
	MaxInputBytes = 1 << 20
)

// inlineSource names inline statements in reports and spans.
const inlineSource = "<statements>"

// Sentinel errors for tool input validation.
var (
	// ErrNoInput indicates neither statements nor path was given.
	ErrNoInput = errors.New("one of statements or path is required")
	// ErrBothInputs indicates statements and path were both given.
	ErrBothInputs = errors.New("statements and path are mutually exclusive")
	// ErrTooManyStatements indicates the statement count exceeds MaxStatements.
	ErrTooManyStatements = errors.New("too many statements")
	// ErrInputTooLarge indicates the inline statements exceed MaxInputBytes.
	ErrInputTooLarge = errors.New("statements exceed maximum size")
	// ErrMultilineStatement indicates an inline statement contains a newline.
	ErrMultilineStatement = errors.New("each statement must be a single line")
	// ErrPathNotAbsolute indicates path is relative.
	ErrPathNotAbsolute = errors.New("path must be absolute")
)

// RunInput is the input schema for the importcheck_run tool.
type RunInput struct {
	Statements []string `json:"statements,omitempty" jsonschema:"statements to execute in order, one per entry"`
	Path       string   `json:"path,omitempty"       jsonschema:"absolute path to a file with one statement per line"`
	Python     string   `json:"python,omitempty"     jsonschema:"interpreter executable (default: python3)"`
	Mode       string   `json:"mode,omitempty"       jsonschema:"execution mode: session (default) or isolated"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateRunInput(input RunInput) error {
	switch {
	case len(input.Statements) == 0 && input.Path == "":
		return ErrNoInput
	case len(input.Statements) > 0 && input.Path != "":
		return ErrBothInputs
	case input.Path != "":
		if !filepath.IsAbs(input.Path) {
			return fmt.Errorf("%w: %s", ErrPathNotAbsolute, input.Path)
		}

		return nil
	}

	if len(input.Statements) > MaxStatements {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyStatements, len(input.Statements), MaxStatements)
	}

	size := 0

	for _, stmt := range input.Statements {
		if strings.ContainsAny(stmt, "\r\n") {
			return fmt.Errorf("%w: %q", ErrMultilineStatement, stmt)
		}

		size += len(stmt) + 1
	}

	if size > MaxInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, size, MaxInputBytes)
	}

	return nil
}

// runner executes one tool call with a fresh executor, so calls never share
// a scope.
type runner struct {
	mode        string
	defaults    pyexec.Options
	newExecutor ExecutorFactory
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *observability.CheckMetrics
}

func (r *runner) handleRun(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input RunInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRunInput(input)
	if err != nil {
		return errorResult(err)
	}

	opts := r.defaults
	opts.Output = nil
	opts.Logger = r.logger

	if input.Python != "" {
		opts.Python = input.Python
	}

	mode := r.mode
	if input.Mode != "" {
		mode = input.Mode
	}

	executor, err := r.newExecutor(mode, opts)
	if err != nil {
		return errorResult(err)
	}

	defer func() {
		closeErr := executor.Close()
		if closeErr != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "close executor", "error", closeErr)
		}
	}()

	chk := checker.New(checker.Options{
		Executor: executor,
		Modules:  pyimports.Extract,
		Logger:   r.logger,
		Tracer:   r.tracer,
		Metrics:  r.metrics,
	})

	var result *checker.Result
	if input.Path != "" {
		result, err = chk.Run(ctx, input.Path)
	} else {
		result, err = chk.Check(ctx, inlineSource, strings.NewReader(strings.Join(input.Statements, "\n")))
	}

	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report.NewDocument(result))
}
