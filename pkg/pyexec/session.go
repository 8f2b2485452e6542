package pyexec

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"time"
)

//go:embed driver.py
var driverSource string

// closeGrace is how long Close waits for the driver to exit on its own.
const closeGrace = 2 * time.Second

// exitedType is reported when the interpreter dies while running a statement.
const exitedType = "InterpreterExited"

type request struct {
	ID       int      `json:"id"`
	Code     string   `json:"code"`
	Filename string   `json:"filename,omitempty"`
	Prelude  []string `json:"prelude,omitempty"`
}

type response struct {
	ID             int    `json:"id"`
	OK             bool   `json:"ok"`
	Type           string `json:"type"`
	Message        string `json:"message"`
	Expected       bool   `json:"expected"`
	ReplayFailures int    `json:"replay_failures"`
}

// Session runs every statement in one long-lived interpreter, so bindings
// created by a statement are visible to the ones after it.
//
// The interpreter starts on the first Exec. If it dies, the statement being
// executed fails and the next Exec starts a new interpreter with an empty scope.
type Session struct {
	opts     Options
	proc     *sessionProcess
	nextID   int
	restarts int
}

// NewSession creates a Session. No process is started until the first Exec.
func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

type sessionProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// Exec runs stmt in the shared interpreter.
func (s *Session) Exec(ctx context.Context, stmt string) error {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return ctxErr
	}

	if s.proc == nil {
		startErr := s.start()
		if startErr != nil {
			return startErr
		}
	}

	s.nextID++
	req := request{ID: s.nextID, Code: stmt, Filename: fmt.Sprintf("<statement %d>", s.nextID)}

	proc := s.proc
	stop := context.AfterFunc(ctx, func() {
		_ = killProcessGroup(proc.cmd)
	})
	defer stop()

	resp, err := proc.roundTrip(req)
	if errors.Is(err, ErrProtocol) {
		s.abort()

		return err
	}

	if err != nil {
		// A closed response pipe means the process is gone or going.
		_ = killProcessGroup(proc.cmd)
		waitErr := proc.cmd.Wait()
		s.proc = nil

		if ctxErr = ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		s.opts.logger().WarnContext(ctx, "interpreter exited, evaluation scope reset",
			"statement", stmt, "error", err, "exit", waitErr)

		return &StatementError{Type: exitedType, Message: describeExit(waitErr)}
	}

	if resp.ID != req.ID {
		s.abort()

		return fmt.Errorf("%w: response id %d, want %d", ErrProtocol, resp.ID, req.ID)
	}

	if resp.OK {
		return nil
	}

	return &StatementError{
		Type:     resp.Type,
		Message:  truncate(resp.Message, s.opts.maxErrorSize()),
		Expected: resp.Expected,
	}
}

// Close shuts the interpreter down. It is a no-op when none is running.
func (s *Session) Close() error {
	if s.proc == nil {
		return nil
	}

	proc := s.proc
	s.proc = nil

	_ = proc.stdin.Close()

	done := make(chan error, 1)

	go func() {
		done <- proc.cmd.Wait()
	}()

	var err error

	select {
	case err = <-done:
	case <-time.After(closeGrace):
		s.opts.logger().Debug("interpreter did not exit, killing it")

		_ = killProcessGroup(proc.cmd)
		err = <-done
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("close interpreter: %w", err)
	}

	return nil
}

func (s *Session) start() error {
	python := s.opts.python()
	args := append(slices.Clone(s.opts.Args), "-u", "-c", driverSource)

	cmd := exec.Command(python, args...)
	cmd.Env = s.opts.env()
	cmd.Dir = s.opts.Dir
	cmd.Stderr = s.opts.output()
	configureProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %w", ErrInterpreterStart, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %w", ErrInterpreterStart, err)
	}

	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInterpreterStart, python, err)
	}

	if s.restarts > 0 {
		s.opts.logger().Warn("interpreter restarted", "python", python, "restarts", s.restarts)
	} else {
		s.opts.logger().Debug("interpreter started", "python", python, "pid", cmd.Process.Pid)
	}

	s.restarts++
	s.proc = &sessionProcess{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}

	return nil
}

// abort kills the interpreter after a protocol violation.
func (s *Session) abort() {
	if s.proc == nil {
		return
	}

	_ = killProcessGroup(s.proc.cmd)
	_ = s.proc.cmd.Wait()
	s.proc = nil
}

func (p *sessionProcess) roundTrip(req request) (response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("encode request: %w", err)
	}

	_, err = p.stdin.Write(append(payload, '\n'))
	if err != nil {
		return response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	var resp response

	err = json.Unmarshal(line, &resp)
	if err != nil {
		return response{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return resp, nil
}

func describeExit(err error) string {
	if err == nil {
		return "interpreter exited"
	}

	return "interpreter exited: " + err.Error()
}
