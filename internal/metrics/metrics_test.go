package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.ObserveCheck("FRA", "ok", 2, time.Second)
	r.ObserveCheck("fra", "auth_error", 0, time.Second)
	r.IncNotification("slots_found", true)
	r.IncNotification("slots_found", false)
	r.IncCommand("/france")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.checks.WithLabelValues("fra", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checks.WithLabelValues("fra", "auth_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.centersFound.WithLabelValues("fra")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.notifications.WithLabelValues("slots_found", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("/france")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveCheck("fra", "ok", 1, time.Second)
	r.IncNotification("digest", true)
	r.IncCommand("/help")
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.Push(context.Background(), "http://unused", "check"))
}

func TestRecorder_Push(t *testing.T) {
	var path, body string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	r := New()
	r.ObserveCheck("ita", "ok", 0, time.Second)
	require.NoError(t, r.Push(context.Background(), ts.URL, "check"))

	assert.Equal(t, "/metrics/job/visa_notifier/mode/check", path)
	assert.NotEmpty(t, body)
}

func TestRecorder_PushWithoutGatewayIsSkipped(t *testing.T) {
	assert.NoError(t, New().Push(context.Background(), "", "check"))
}
