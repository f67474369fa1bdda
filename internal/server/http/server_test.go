package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/haywire/internal/config"
	"github.com/rzbill/haywire/internal/driver"
	"github.com/rzbill/haywire/internal/metrics"
	"github.com/rzbill/haywire/internal/runtime"
	logpkg "github.com/rzbill/haywire/pkg/log"
	"github.com/rzbill/haywire/pkg/message"
)

type fixture struct {
	rt *runtime.Runtime
	s  *Server
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.StoreDriver = driver.Memory
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	rt, err := runtime.Open(runtime.Options{Config: cfg, Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	require.NoError(t, rt.Start(context.Background()))
	logger, _ := logpkg.ApplyConfig(logpkg.Config{Level: "error", Format: "text"})
	return fixture{rt: rt, s: New(rt, logger, reg)}
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	f.s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/v1/healthz", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	require.NoError(t, f.rt.Close())
	w = f.do(http.MethodGet, "/v1/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/v1/queues/create", `{"queue":"orders"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(http.MethodPost, "/v1/queues/create", `{"queue":"orders"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	w = f.do(http.MethodPost, "/v1/queues/create", `{"queue":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodGet, "/v1/queues/create", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = f.do(http.MethodGet, "/v1/queues", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Queues []string `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []string{"orders"}, resp.Queues)
}

func TestSendReceive(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/v1/queues/send", `{"queue":"orders","text":"hello","headers":{"k":"v"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var sent struct {
		ID       string `json:"id"`
		Sequence uint64 `json:"sequence"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	require.Equal(t, uint64(1), sent.Sequence)
	require.NotEmpty(t, sent.ID)

	w = f.do(http.MethodGet, "/v1/queues/peek?queue=orders", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/v1/queues/receive?queue=orders&timeoutMs=1000", "")
	require.Equal(t, http.StatusOK, w.Code)
	var m message.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.Equal(t, "hello", string(m.Body))
	require.Equal(t, "v", m.Headers["k"])
	require.Equal(t, sent.ID, m.ID)

	w = f.do(http.MethodGet, "/v1/queues/peek?queue=orders", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, "/v1/queues/receive?queue=orders&timeoutMs=20", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "timeout", w.Header().Get("X-Receive-Result"))

	w = f.do(http.MethodGet, "/v1/queues/receive?queue=orders&timeoutMs=abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodGet, "/v1/queues/receive?queue=missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestBrowseAndStats(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{"alpha", "beta", "alphabet"} {
		w := f.do(http.MethodPost, "/v1/queues/send", `{"queue":"words","text":"`+body+`"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	q := url.Values{"queue": {"words"}, "filter": {`text.startsWith("alpha")`}}
	w := f.do(http.MethodGet, "/v1/queues/browse?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []message.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, uint64(3), resp.Messages[1].Sequence)

	q.Set("filter", "sequence +")
	w = f.do(http.MethodGet, "/v1/queues/browse?"+q.Encode(), "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/v1/queues/stats?queue=words", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st struct {
		Stored  uint64 `json:"stored"`
		Pending int    `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, uint64(3), st.Stored)
	require.Equal(t, 3, st.Pending)

	w = f.do(http.MethodGet, "/v1/queues/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestShutdownRejectsSends(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/queues/create", `{"queue":"jobs"}`).Code)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/v1/queues/shutdown", `{"queue":"jobs"}`).Code)
	w := f.do(http.MethodPost, "/v1/queues/send", `{"queue":"jobs","text":"late"}`)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestAutoCreateDisabled(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.StoreDriver = driver.Memory
	cfg.AllowAutoCreateQueues = false
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	require.NoError(t, err)
	defer rt.Close()
	s := New(rt, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/queues/send", strings.NewReader(`{"queue":"x","text":"a"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/v1/queues/send", `{"queue":"orders","text":"x"}`).Code)
	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `haywire_queue_enqueued_total{queue="orders"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodOptions, "/v1/queues/send", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeSSE(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.s.Handler())
	defer ts.Close()
	for _, text := range []string{"one", "two"} {
		require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/v1/queues/send", `{"queue":"feed","text":"`+text+`"}`).Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/queues/subscribe?queue=feed&limit=2", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var bodies []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") || strings.HasPrefix(line, "data: limit") {
			continue
		}
		var m message.Message
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m))
		bodies = append(bodies, string(m.Body))
	}
	require.Equal(t, []string{"one", "two"}, bodies)
}
