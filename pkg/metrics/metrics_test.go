package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestRecordRun(t *testing.T) {
	finished := time.Unix(1757000000, 0)
	RecordRun(6, 3, 1, finished)

	if got := testutil.ToFloat64(lastRunRecords); got != 6 {
		t.Errorf("regnum_last_run_records = %v, want 6", got)
	}
	if got := testutil.ToFloat64(lastRunPages.WithLabelValues("failed")); got != 1 {
		t.Errorf("regnum_last_run_pages{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lastRunTimestamp); got != 1757000000 {
		t.Errorf("regnum_last_run_timestamp_seconds = %v", got)
	}
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	RecordRun(2, 1, 0, time.Now())
	if err := Push(context.Background(), server.URL, ""); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/"+DefaultJob {
		t.Errorf("path = %s", path)
	}
	if !strings.Contains(body, "regnum_last_run_records") {
		t.Error("pushed body should contain run metrics")
	}
}

func TestPush_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := Push(context.Background(), server.URL, "job"); err == nil {
		t.Error("Expected error on 500 from Pushgateway")
	}
}
