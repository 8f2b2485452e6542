package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricStatementsTotal   = "importcheck.statements"
	metricStatementDuration = "importcheck.statement.duration"
	metricCommentsTotal     = "importcheck.comments"
	metricRunsTotal         = "importcheck.runs"
	metricRunDuration       = "importcheck.run.duration"

	attrOp        = "op"
	attrStatus    = "status"
	attrErrorType = "error_type"
)

// Outcome status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBuckets spans a cached stdlib import (milliseconds) up to a heavy
// package that compiles extensions on first import (a minute).
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// CheckMetrics holds the instruments recorded by checker runs.
// A nil *CheckMetrics records nothing.
type CheckMetrics struct {
	statements        metric.Int64Counter
	statementDuration metric.Float64Histogram
	comments          metric.Int64Counter
	runs              metric.Int64Counter
	runDuration       metric.Float64Histogram
}

// NewCheckMetrics creates the instruments from mt.
func NewCheckMetrics(mt metric.Meter) (*CheckMetrics, error) {
	statements, err := mt.Int64Counter(metricStatementsTotal,
		metric.WithDescription("Executed statements by outcome"),
		metric.WithUnit("{statement}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStatementsTotal, err)
	}

	statementDuration, err := mt.Float64Histogram(metricStatementDuration,
		metric.WithDescription("Statement execution time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStatementDuration, err)
	}

	comments, err := mt.Int64Counter(metricCommentsTotal,
		metric.WithDescription("Comment lines printed as separators"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommentsTotal, err)
	}

	runs, err := mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Completed or aborted runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	runDuration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Wall time of a whole run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	return &CheckMetrics{
		statements:        statements,
		statementDuration: statementDuration,
		comments:          comments,
		runs:              runs,
		runDuration:       runDuration,
	}, nil
}

// RecordStatement records one executed statement. errorType is empty for
// successes.
func (cm *CheckMetrics) RecordStatement(ctx context.Context, status, errorType string, duration time.Duration) {
	if cm == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrStatus, status)}
	if errorType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errorType))
	}

	cm.statements.Add(ctx, 1, metric.WithAttributes(attrs...))
	cm.statementDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordComment counts a separator line.
func (cm *CheckMetrics) RecordComment(ctx context.Context) {
	if cm == nil {
		return
	}

	cm.comments.Add(ctx, 1)
}

// RecordRun records a finished run of op ("cli" or an MCP tool name).
func (cm *CheckMetrics) RecordRun(ctx context.Context, op, status string, duration time.Duration) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	cm.runs.Add(ctx, 1, attrs)
	cm.runDuration.Record(ctx, duration.Seconds(), attrs)
}
