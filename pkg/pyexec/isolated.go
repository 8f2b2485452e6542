package pyexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
)

// tailSlack is stderr kept beyond MaxErrorSize so the traceback header
// preceding a long message is not lost.
const tailSlack = 4 << 10

// Isolated runs each statement in a fresh interpreter process. The scope is
// rebuilt every time by replaying the statements that already succeeded, so a
// later statement still sees earlier bindings. Replayed statements run with
// their output silenced; replay failures are logged and do not fail the
// statement.
type Isolated struct {
	opts    Options
	prelude []string
}

// NewIsolated creates an Isolated executor.
func NewIsolated(opts Options) *Isolated {
	return &Isolated{opts: opts}
}

// Exec sends the replayed prelude and stmt to a new driver process and waits
// for its single response. A process that exits without answering is
// classified from whatever it wrote to stderr.
func (iso *Isolated) Exec(ctx context.Context, stmt string) error {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return ctxErr
	}

	id := len(iso.prelude) + 1
	req := request{ID: id, Code: stmt, Filename: fmt.Sprintf("<statement %d>", id), Prelude: iso.prelude}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	python := iso.opts.python()
	args := append(slices.Clone(iso.opts.Args), "-u", "-c", driverSource)

	var stdout bytes.Buffer

	stderr := newTailBuffer(iso.opts.maxErrorSize() + tailSlack)

	cmd := exec.CommandContext(ctx, python, args...)
	cmd.Env = iso.opts.env()
	cmd.Dir = iso.opts.Dir
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(iso.opts.output(), stderr)
	configureProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}

	runErr := cmd.Run()

	if ctxErr = ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return fmt.Errorf("%w: %s: %w", ErrInterpreterStart, python, runErr)
	}

	line, _, _ := bytes.Cut(stdout.Bytes(), []byte("\n"))
	if len(bytes.TrimSpace(line)) == 0 {
		iso.opts.logger().DebugContext(ctx, "interpreter exited without a response",
			"statement", stmt, "error", runErr, "replayed", len(iso.prelude))

		failure := parseFailure(stderr.String(), runErr)
		failure.Message = truncate(failure.Message, iso.opts.maxErrorSize())

		return failure
	}

	var resp response

	err = json.Unmarshal(line, &resp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	if resp.ID != req.ID {
		return fmt.Errorf("%w: response id %d, want %d", ErrProtocol, resp.ID, req.ID)
	}

	if resp.ReplayFailures > 0 {
		iso.opts.logger().WarnContext(ctx, "replayed statements failed, evaluation scope may be incomplete",
			"statement", stmt, "failed", resp.ReplayFailures, "replayed", len(iso.prelude))
	}

	if resp.OK {
		iso.prelude = append(iso.prelude, stmt)

		return nil
	}

	return &StatementError{
		Type:     resp.Type,
		Message:  truncate(resp.Message, iso.opts.maxErrorSize()),
		Expected: resp.Expected,
	}
}

// Close releases nothing; every process is already gone when Exec returns.
func (iso *Isolated) Close() error {
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	data  []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
