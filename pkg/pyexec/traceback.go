package pyexec

import (
	"regexp"
	"strings"
)

const tracebackHeader = "Traceback (most recent call last):"

var exceptionLine = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)(?::\s?(.*))?$`)

// parseFailure turns the stderr of an interpreter that died without answering
// into a StatementError. runErr is the error returned by the process, nil for
// a clean exit.
//
// With a traceback, the exception line is the first unindented line after the
// last header; its continuation lines belong to the message. Syntax errors are
// reported without a header, so the last unindented line naming an error type
// is used instead. Anything else is reported as an exited interpreter.
func parseFailure(stderr string, runErr error) *StatementError {
	text := strings.ReplaceAll(stderr, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	if failure := fromTraceback(lines); failure != nil {
		return failure
	}

	for i := len(lines) - 1; i >= 0; i-- {
		match := exceptionLine.FindStringSubmatch(lines[i])
		if match != nil && looksLikeExceptionType(match[1]) {
			return newFailure(match[1], match[2])
		}
	}

	return &StatementError{Type: exitedType, Message: describeExit(runErr)}
}

func fromTraceback(lines []string) *StatementError {
	header := -1

	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], tracebackHeader) {
			header = i

			break
		}
	}

	if header < 0 {
		return nil
	}

	for i := header + 1; i < len(lines); i++ {
		line := lines[i]
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}

		match := exceptionLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		message := strings.Join(append([]string{match[2]}, lines[i+1:]...), "\n")

		return newFailure(match[1], strings.TrimSpace(message))
	}

	return nil
}

func newFailure(typ, message string) *StatementError {
	return &StatementError{Type: typ, Message: message, Expected: isExpectedType(typ)}
}

func looksLikeExceptionType(name string) bool {
	if isExpectedType(name) {
		return true
	}

	for _, suffix := range []string{"Error", "Exception", "Interrupt", "Exit"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}
