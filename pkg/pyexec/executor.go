// Package pyexec executes single-line statements in a Python interpreter
// subprocess and classifies their outcome.
//
// Two executors are provided. [Session] keeps one interpreter alive for the
// whole run, so every statement shares the same globals. [Isolated] starts a
// fresh interpreter per statement and rebuilds the scope by replaying the
// statements that already succeeded.
package pyexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// Executor runs statements against one evaluation scope.
// Implementations are not safe for concurrent use.
type Executor interface {
	// Exec runs stmt. A *StatementError reports a statement-level failure;
	// errors wrapping ErrInterpreterStart mean no statement can run at all.
	Exec(ctx context.Context, stmt string) error

	// Close terminates the interpreter and releases its resources.
	Close() error
}

// Execution modes accepted by New.
const (
	ModeSession  = "session"
	ModeIsolated = "isolated"
)

// DefaultPython is the interpreter used when Options.Python is empty.
const DefaultPython = "python3"

// DefaultMaxErrorSize bounds error descriptions taken from the interpreter.
const DefaultMaxErrorSize = 64 << 10

var (
	// ErrInterpreterStart indicates the interpreter process could not be started.
	ErrInterpreterStart = errors.New("start interpreter")
	// ErrProtocol indicates the session driver sent an unexpected response.
	ErrProtocol = errors.New("interpreter protocol error")
	// ErrUnknownMode indicates an unsupported execution mode.
	ErrUnknownMode = errors.New("unknown execution mode")
)

// Options configures how interpreters are launched.
type Options struct {
	// Python is the interpreter executable. Empty uses DefaultPython.
	Python string

	// Args are passed to the interpreter before the program flags.
	Args []string

	// Env is the complete environment of the interpreter. Nil inherits the
	// current process environment.
	Env []string

	// Dir is the working directory. Empty uses the current directory.
	Dir string

	// Output receives whatever the statements themselves print.
	// Nil discards it.
	Output io.Writer

	// MaxErrorSize truncates error descriptions, in bytes. Zero uses
	// DefaultMaxErrorSize.
	MaxErrorSize int

	// Logger receives lifecycle events. Nil discards them.
	Logger *slog.Logger
}

func (o Options) python() string {
	if o.Python == "" {
		return DefaultPython
	}

	return o.Python
}

func (o Options) output() io.Writer {
	if o.Output == nil {
		return io.Discard
	}

	return o.Output
}

func (o Options) maxErrorSize() int {
	if o.MaxErrorSize <= 0 {
		return DefaultMaxErrorSize
	}

	return o.MaxErrorSize
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) env() []string {
	if o.Env == nil {
		return os.Environ()
	}

	return o.Env
}

// New returns the executor for mode.
func New(mode string, opts Options) (Executor, error) {
	switch mode {
	case "", ModeSession:
		return NewSession(opts), nil
	case ModeIsolated:
		return NewIsolated(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// StatementError is a failure raised while executing one statement.
type StatementError struct {
	// Type is the exception class name, e.g. "ModuleNotFoundError".
	Type string

	// Message is the exception text as the interpreter renders it.
	Message string

	// Expected is true for import resolution and syntax errors.
	Expected bool
}

// Error returns the interpreter's description of the failure, falling back
// to the exception type when the exception carries no text.
func (e *StatementError) Error() string {
	if e.Message == "" {
		return e.Type
	}

	return e.Message
}

// Exception types counted as expected failures when only the name is known.
var expectedTypes = map[string]bool{
	"ImportError":         true,
	"ModuleNotFoundError": true,
	"SyntaxError":         true,
	"IndentationError":    true,
	"TabError":            true,
}

func isExpectedType(name string) bool {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}

	return expectedTypes[name]
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}
