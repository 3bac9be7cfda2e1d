package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrument_CountsByRoute(t *testing.T) {
	h := Instrument("POST /ingest", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "POST /ingest", "400"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/ingest", nil))
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "POST /ingest", "400"))

	assert.Equal(t, before+1, after)
}

func TestObserveUpstream(t *testing.T) {
	ObserveUpstream("embedding", "embed", time.Now(), nil)
	ObserveUpstream("embedding", "embed", time.Now(), errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(UpstreamDuration, "ragline_upstream_call_duration_seconds"))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	IndexedChunks.Add(1)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ragline_indexed_chunks_total")
}
