package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("ds005")
	c.RunsLoaded.Add(48)
	c.VariablesBuilt.WithLabelValues("sparse").Add(8)
	c.RowsExported.Add(4128)
	c.BytesWritten.WithLabelValues("file").Add(1024)
	c.RecordError(StageBuild, "malformed_variable")

	assert.Equal(t, 48.0, testutil.ToFloat64(c.RunsLoaded))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.VariablesBuilt.WithLabelValues("sparse")))
	assert.Equal(t, 4128.0, testutil.ToFloat64(c.RowsExported))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Errors.WithLabelValues(StageBuild, "malformed_variable")))

	expected := `
# HELP runvars_runs_loaded_total Total number of raw runs read from manifests
# TYPE runvars_runs_loaded_total counter
runvars_runs_loaded_total{job_name="ds005"} 48
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "runvars_runs_loaded_total"))
}

func TestCollector_Isolated(t *testing.T) {
	a := NewCollector("a")
	b := NewCollector("b")
	a.RowsExported.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RowsExported))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RowsExported))
	assert.Equal(t, "b", b.Job())
}

func TestTimer(t *testing.T) {
	c := NewCollector("timer")
	timer := c.Timer(StageExport)
	time.Sleep(time.Millisecond)
	first := timer.Stop()
	assert.Positive(t, first)
	assert.Equal(t, first, timer.Stop(), "stop is idempotent")

	assert.Equal(t, 1, testutil.CollectAndCount(c.StageDuration))
}

func TestThroughputTracker(t *testing.T) {
	c := NewCollector("throughput")
	tracker := c.NewThroughputTracker()
	tracker.Increment(1000)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Positive(t, rate)
	assert.Equal(t, rate, testutil.ToFloat64(c.Throughput))
}

func TestWriteToTextfile(t *testing.T) {
	c := NewCollector("textfile")
	c.RowsExported.Add(10)
	c.MarkSuccess()

	path := filepath.Join(t.TempDir(), "runvars.prom")
	require.NoError(t, c.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `runvars_rows_exported_total{job_name="textfile"} 10`)
	assert.Contains(t, string(data), "runvars_last_success_timestamp_seconds")
}
