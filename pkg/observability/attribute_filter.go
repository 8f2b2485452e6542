package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// allowedPrefixes are attribute key prefixes that reach the exporter.
var allowedPrefixes = []string{
	"importcheck.",
	"mcp.",
	"error.",
	"exception.",
}

// attributeFilter is a SpanProcessor that drops attributes outside the
// allow-list and shortens long string values before handing the span on.
// Statements and paths come from user input and can be arbitrarily long.
type attributeFilter struct {
	delegate  sdktrace.SpanProcessor
	maxLength int
}

// NewAttributeFilter wraps delegate. String attributes longer than maxLength
// runes are truncated; maxLength <= 0 disables truncation.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, maxLength int) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, maxLength: maxLength}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func isAllowed(key string) bool {
	if key == "error" {
		return true
	}

	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

func (f *attributeFilter) shorten(kv attribute.KeyValue) attribute.KeyValue {
	if f.maxLength <= 0 || kv.Value.Type() != attribute.STRING {
		return kv
	}

	runes := []rune(kv.Value.AsString())
	if len(runes) <= f.maxLength {
		return kv
	}

	return attribute.String(string(kv.Key), string(runes[:f.maxLength]))
}

// filteredSpan is the ReadOnlySpan view passed to the delegate.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

// Attributes returns the allowed attributes, shortened.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	filtered := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if isAllowed(string(kv.Key)) {
			filtered = append(filtered, s.filter.shorten(kv))
		}
	}

	return filtered
}
