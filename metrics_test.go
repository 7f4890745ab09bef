package cratescope

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricReporter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	m := NewMetricReporter(&buf, true)
	assert.True(t, m.Enabled())
	m.Report("crates", 3, "#")
	m.Report("load", 120, "ms")
	assert.Equal(t, "METRIC:crates:3:#\nMETRIC:load:120:ms\n", buf.String())
}

func TestMetricReporter_DisabledIsNoop(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	m := NewMetricReporter(&buf, false)
	assert.False(t, m.Enabled())
	m.Report("crates", 3, "#")
	m.ReportSince("load", time.Now())
	assert.Empty(t, buf.String())

	var nilReporter *MetricReporter
	assert.False(t, nilReporter.Enabled())
	nilReporter.Report("x", 1, "#")
}

func TestMetricReporter_ReportSince(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	NewMetricReporter(&buf, true).ReportSince("parse", time.Now().Add(-2*time.Second))
	assert.Regexp(t, `^METRIC:parse:\d+:ms\n$`, buf.String())
}
