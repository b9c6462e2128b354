package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveTaskDuration("styles", 150*time.Millisecond)
	pr.IncTaskResult("styles", ResultSuccess)
	pr.IncTaskResult("styles", ResultSuccess)
	pr.IncTaskResult("site-build", ResultFailed)
	pr.IncReloadBroadcast("css")
	pr.SetLiveReloadClients(3)
	pr.IncWatchTrigger("scripts")

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.taskResults.WithLabelValues("styles", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.taskResults.WithLabelValues("site-build", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.liveReloadClient))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 5)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncWatchTrigger("images")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `sitepipe_watch_triggers_total{task="images"} 1`), body)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveTaskDuration("x", time.Second)
	r.IncTaskResult("x", ResultCanceled)
	r.SetLiveReloadClients(0)
}
