package checker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
)

// fakeExecutor fails statements listed in failures and records every call.
type fakeExecutor struct {
	failures map[string]error
	calls    []string
	closed   bool
}

func (f *fakeExecutor) Exec(_ context.Context, stmt string) error {
	f.calls = append(f.calls, stmt)

	return f.failures[stmt]
}

func (f *fakeExecutor) Close() error {
	f.closed = true

	return nil
}

// recordingProgress keeps a transcript of progress events.
type recordingProgress struct {
	events []string
}

func (r *recordingProgress) Start(source string) {
	r.events = append(r.events, "start "+source)
}

func (r *recordingProgress) Comment(text string) {
	r.events = append(r.events, "comment "+text)
}

func (r *recordingProgress) Outcome(o checker.Outcome) {
	r.events = append(r.events, fmt.Sprintf("outcome %d %s ok=%t", o.Line, o.Statement, o.OK()))
}

var errModuleNotFound = &pyexec.StatementError{
	Type:     "ModuleNotFoundError",
	Message:  "No module named 'nonexistent_module_xyz'",
	Expected: true,
}

func statements(outcomes []checker.Outcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Statement)
	}

	return out
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		text string
		kind checker.LineKind
	}{
		{line: "", text: "", kind: checker.LineBlank},
		{line: " \t \r\n", text: "", kind: checker.LineBlank},
		{line: "  ", text: "", kind: checker.LineBlank},
		{line: "   # stdlib\n", text: "# stdlib", kind: checker.LineComment},
		{line: "#", text: "#", kind: checker.LineComment},
		{line: "  import os  \n", text: "import os", kind: checker.LineStatement},
		{line: "x = 1  # trailing", text: "x = 1  # trailing", kind: checker.LineStatement},
	}

	for _, tt := range tests {
		text, kind := checker.Classify(tt.line)
		assert.Equal(t, tt.text, text, "line %q", tt.line)
		assert.Equal(t, tt.kind, kind, "line %q", tt.line)
	}
}

func TestCheck_MixedInput_RecordsInOrder(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{failures: map[string]error{"import nonexistent_module_xyz": errModuleNotFound}}
	progress := &recordingProgress{}

	c := checker.New(checker.Options{Executor: exec, Progress: progress})

	input := "# stdlib\nimport os\n\nimport nonexistent_module_xyz\n   \nimport sys"

	result, err := c.Check(context.Background(), "imports.txt", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"import os", "import sys"}, statements(result.Successes))
	assert.Equal(t, []string{"import nonexistent_module_xyz"}, statements(result.Failures))
	assert.Equal(t, 3, result.Total())
	assert.Equal(t, []string{"import os", "import nonexistent_module_xyz", "import sys"}, exec.calls)

	want := []string{
		"start imports.txt",
		"comment # stdlib",
		"outcome 2 import os ok=true",
		"outcome 4 import nonexistent_module_xyz ok=false",
		"outcome 6 import sys ok=true",
	}
	if diff := cmp.Diff(want, progress.events); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}

	failure := result.Failures[0]
	assert.Equal(t, 4, failure.Line)
	assert.Equal(t, "ModuleNotFoundError", failure.ErrorType())
	assert.True(t, failure.Expected())
	assert.False(t, exec.closed, "Check must not close the executor")
}

func TestCheck_OnlyCommentsAndBlanks_NoRecords(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	progress := &recordingProgress{}

	result, err := checker.New(checker.Options{Executor: exec, Progress: progress}).
		Check(context.Background(), "c.txt", strings.NewReader("# a\n\n   \n# b\n"))
	require.NoError(t, err)

	assert.Empty(t, result.Successes)
	assert.Empty(t, result.Failures)
	assert.Empty(t, exec.calls)
	assert.Equal(t, []string{"start c.txt", "comment # a", "comment # b"}, progress.events)
}

func TestCheck_EmptyInput(t *testing.T) {
	t.Parallel()

	result, err := checker.New(checker.Options{Executor: &fakeExecutor{}}).
		Check(context.Background(), "empty.txt", strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, result.Total())
	assert.Equal(t, "empty.txt", result.Source)
}

func TestCheck_StripsBOMAndCRLF(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}

	_, err := checker.New(checker.Options{Executor: exec}).
		Check(context.Background(), "bom.txt", strings.NewReader("\ufeffimport os\r\nimport sys\r\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"import os", "import sys"}, exec.calls)
}

func TestCheck_LongLine(t *testing.T) {
	t.Parallel()

	long := "x = '" + strings.Repeat("a", 1<<20) + "'"
	exec := &fakeExecutor{}

	result, err := checker.New(checker.Options{Executor: exec}).
		Check(context.Background(), "long.txt", strings.NewReader(long+"\nimport os\n"))
	require.NoError(t, err)

	require.Len(t, result.Successes, 2)
	assert.Equal(t, long, result.Successes[0].Statement)
}

func TestCheck_ModulesAnnotation(t *testing.T) {
	t.Parallel()

	c := checker.New(checker.Options{
		Executor: &fakeExecutor{},
		Modules:  func(stmt string) []string { return []string{strings.TrimPrefix(stmt, "import ")} },
	})

	result, err := c.Check(context.Background(), "m.txt", strings.NewReader("import json\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"json"}, result.Successes[0].Modules)
}

func TestCheck_StatementErrorsNeverAbort(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{failures: map[string]error{
		"1/0":       &pyexec.StatementError{Type: "ZeroDivisionError", Message: "division by zero"},
		"import !!": &pyexec.StatementError{Type: "SyntaxError", Message: "invalid syntax", Expected: true},
		"other":     errors.New("plain error"),
	}}

	result, err := checker.New(checker.Options{Executor: exec}).
		Check(context.Background(), "f.txt", strings.NewReader("1/0\nimport !!\nother\nimport os\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"1/0", "import !!", "other"}, statements(result.Failures))
	assert.Equal(t, []string{"import os"}, statements(result.Successes))

	assert.False(t, result.Failures[0].Expected())
	assert.True(t, result.Failures[1].Expected())
	assert.Empty(t, result.Failures[2].ErrorType())
}

func TestCheck_ReadError_IsFatal(t *testing.T) {
	t.Parallel()

	// The first read returns the line, the second fails.
	reader := iotest.TimeoutReader(strings.NewReader("import os\nimport sys\n"))

	result, err := checker.New(checker.Options{Executor: &fakeExecutor{}}).
		Check(context.Background(), "broken.txt", reader)
	require.ErrorIs(t, err, checker.ErrReadInput)
	require.ErrorIs(t, err, iotest.ErrTimeout)
	assert.Nil(t, result)
}

func TestCheck_InterpreterStartFailure_IsFatal(t *testing.T) {
	t.Parallel()

	startErr := fmt.Errorf("%w: python3: executable file not found", pyexec.ErrInterpreterStart)
	exec := &fakeExecutor{failures: map[string]error{"import os": startErr}}

	_, err := checker.New(checker.Options{Executor: exec}).
		Check(context.Background(), "f.txt", strings.NewReader("import os\nimport sys\n"))
	require.ErrorIs(t, err, checker.ErrExecutor)
	require.ErrorIs(t, err, pyexec.ErrInterpreterStart)
	assert.Equal(t, []string{"import os"}, exec.calls)
}

func TestCheck_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checker.New(checker.Options{Executor: &fakeExecutor{}}).
		Check(ctx, "f.txt", strings.NewReader("import os\n"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := checker.New(checker.Options{Executor: &fakeExecutor{}}).
		Run(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	require.ErrorIs(t, err, checker.ErrOpenInput)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "imports.txt")
	require.NoError(t, os.WriteFile(path, []byte("# header\nimport os\n"), 0o600))

	progress := &recordingProgress{}

	result, err := checker.New(checker.Options{Executor: &fakeExecutor{}, Progress: progress}).
		Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, result.Source)
	assert.Equal(t, "start "+path, progress.events[0])
	assert.Len(t, result.Successes, 1)
}

func TestCheck_EmitsSpansAndMetrics(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewCheckMetrics(mp.Meter("test"))
	require.NoError(t, err)

	exec := &fakeExecutor{failures: map[string]error{"import nonexistent_module_xyz": errModuleNotFound}}

	c := checker.New(checker.Options{Executor: exec, Tracer: tp.Tracer("test"), Metrics: metrics})

	_, err = c.Check(context.Background(), "imports.txt",
		strings.NewReader("# c\nimport os\nimport nonexistent_module_xyz\n"))
	require.NoError(t, err)

	spans := recorder.Ended()
	names := make([]string, 0, len(spans))

	for _, span := range spans {
		names = append(names, span.Name())
	}

	assert.Equal(t, []string{"importcheck.statement", "importcheck.statement", "importcheck.run"}, names)
	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[0].Parent().SpanID())

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	var statementsTotal int64

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "importcheck.statements" {
				continue
			}

			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				statementsTotal += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), statementsTotal)
}
