package observability_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
)

func TestInit_NoopWhenNothingConfigured(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)

	_, span := providers.Tracer.Start(context.Background(), "importcheck.run")
	span.End()

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_LoggerWritesToConfiguredOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogOutput = &buf

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.Info("below threshold")
	providers.Logger.Warn("interpreter restarted", "restarts", 1)

	assert.NotContains(t, buf.String(), "below threshold")
	assert.Contains(t, buf.String(), `"msg":"interpreter restarted"`)
	assert.Contains(t, buf.String(), `"service":"importcheck"`)
}

func TestInit_MetricsTextfileWrittenOnShutdown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "importcheck.prom")

	cfg := observability.DefaultConfig()
	cfg.MetricsTextfile = path

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	metrics, err := observability.NewCheckMetrics(providers.Meter)
	require.NoError(t, err)

	metrics.RecordStatement(context.Background(), observability.StatusOK, "", 5*time.Millisecond)
	metrics.RecordStatement(context.Background(), observability.StatusError, "ModuleNotFoundError", time.Millisecond)

	require.NoError(t, providers.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "importcheck_statements")
	assert.Contains(t, string(data), `error_type="ModuleNotFoundError"`)
}

func TestInit_MetricsTextfileUnwritable(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "missing", "dir", "out.prom")

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	assert.Error(t, providers.Shutdown(context.Background()))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "api-key=secret", want: map[string]string{"api-key": "secret"}},
		{
			name: "multiple with spaces",
			raw:  " a = 1 , b=2 ",
			want: map[string]string{"a": "1", "b": "2"},
		},
		{name: "malformed pairs skipped", raw: "novalue,=x,k=v", want: map[string]string{"k": "v"}},
		{name: "only malformed", raw: "a,b", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.raw))
		})
	}
}
