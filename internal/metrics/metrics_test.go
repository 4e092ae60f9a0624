package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.UploadSucceeded(8, 2, 120*time.Millisecond)
	r.UploadSucceeded(3, 0, 10*time.Millisecond)
	r.UploadFailed("missing_columns")
	r.CacheLookup(true)
	r.CacheLookup(false)
	r.CacheLookup(false)
	r.BatchFile(true)
	r.SetActiveSessions(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.uploads.WithLabelValues("missing_columns")))
	assert.Equal(t, 11.0, testutil.ToFloat64(r.rowsProcessed.WithLabelValues("kept")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rowsProcessed.WithLabelValues("dropped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.batchFiles.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.activeSessions))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.UploadSucceeded(1, 0, time.Second)
		r.Query("kpis")
		r.CacheLookup(true)
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.Query("kpis")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `inventory_analyzer_queries_total{query="kpis"} 1`)
}
