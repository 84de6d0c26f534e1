// Package obs exposes OpenTelemetry counters for the retrieval pipeline.
package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the counter sink the pipeline records into. The host process
// owns the meter provider; this package only uses the global one.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
}

// OtelMetrics adapts Metrics onto OpenTelemetry using the global meter.
type OtelMetrics struct {
	meter    metric.Meter
	mu       sync.RWMutex
	counters map[string]metric.Int64Counter
}

func NewOtelMetrics() *OtelMetrics {
	return &OtelMetrics{
		meter:    otel.Meter("tripscout/pipeline"),
		counters: make(map[string]metric.Int64Counter),
	}
}

func (o *OtelMetrics) IncCounter(name string, labels map[string]string) {
	if o == nil {
		return
	}
	c, ok := o.getCounter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

func (o *OtelMetrics) getCounter(name string) (metric.Int64Counter, bool) {
	o.mu.RLock()
	c, ok := o.counters[name]
	o.mu.RUnlock()
	if ok {
		return c, true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok = o.counters[name]; ok {
		return c, true
	}
	ctr, err := o.meter.Int64Counter(name)
	if err != nil {
		return ctr, false
	}
	o.counters[name] = ctr
	return ctr, true
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}

// NoopMetrics discards every record.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, map[string]string) {}

// MockMetrics is an in-memory sink for tests.
type MockMetrics struct {
	mu       sync.Mutex
	Counters map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Counters: map[string]int{}}
}

func (m *MockMetrics) IncCounter(name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}
