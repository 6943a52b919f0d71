package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/metrics"
)

// readCounterValue reads the current value of a Counter for assertions in tests.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	require.NotNil(t, m.GetCounter())
	return m.GetCounter().GetValue()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	_, err := NewBackend("job", "")
	require.Error(t, err)

	b, err := NewBackend("", "http://gw:9091")
	require.NoError(t, err)
	assert.Equal(t, "import", b.jobName)
}

func TestBackend_Counters(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("import", "http://gw:9091")
	require.NoError(t, err)

	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "written"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"kind": "written"})
	b.IncCounter(metrics.BatchesTotal, 3, nil)
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": "completed"})
	b.IncCounter(metrics.FetchRetriesTotal, 1, metrics.Labels{"host": "dca.sco.ca.gov", "reason": "503"})
	b.IncCounter("unknown_metric", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "load", "status": "success"})
	b.ObserveHistogram("unknown_metric", 1, nil)

	assert.Equal(t, 7.0, readCounterValue(t, b.recordCounter.WithLabelValues("written")))
	assert.Equal(t, 3.0, readCounterValue(t, b.batchCounter))
	assert.Equal(t, 1.0, readCounterValue(t, b.runCounter.WithLabelValues("completed")))
	assert.Equal(t, 1.0, readCounterValue(t, b.retryCounter.WithLabelValues("dca.sco.ca.gov", "503")))

	m := &dto.Metric{}
	obs := b.stepDuration.WithLabelValues("load", "success").(prometheus.Metric)
	require.NoError(t, obs.Write(m))
	assert.EqualValues(t, 1, m.GetSummary().GetSampleCount())
}

func TestBackend_FlushPushesToGateway(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))
		assert.Equal(t, "/metrics/job/nightly", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("nightly", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.BatchesTotal, 1, nil)

	require.NoError(t, b.Flush())
	assert.EqualValues(t, 1, hits.Load())
	assert.NotEmpty(t, body.Load())
}
