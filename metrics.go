package cratescope

import (
	"fmt"
	"io"
	"time"
)

// MetricReporter writes METRIC:<name>:<value>:<unit> lines for external
// measurement harnesses. A disabled or nil reporter is a no-op.
type MetricReporter struct {
	w       io.Writer
	enabled bool
}

// NewMetricReporter creates a reporter writing to w when enabled.
func NewMetricReporter(w io.Writer, enabled bool) *MetricReporter {
	return &MetricReporter{w: w, enabled: enabled}
}

// Enabled reports whether Report writes anything.
func (m *MetricReporter) Enabled() bool {
	return m != nil && m.enabled && m.w != nil
}

// Report emits one metric line.
func (m *MetricReporter) Report(name string, value uint64, unit string) {
	if !m.Enabled() {
		return
	}
	fmt.Fprintf(m.w, "METRIC:%s:%d:%s\n", name, value, unit)
}

// ReportSince emits the milliseconds elapsed since start.
func (m *MetricReporter) ReportSince(name string, start time.Time) {
	m.Report(name, uint64(time.Since(start).Milliseconds()), "ms")
}
