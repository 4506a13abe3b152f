package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/radio-bridge/internal/engine"
	"github.com/DoyleJ11/radio-bridge/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chanDispatcher struct {
	ch chan engine.Event
}

func (d *chanDispatcher) Dispatch(ev engine.Event) { d.ch <- ev }

type testBridge struct {
	sess    *session.Session
	handler http.Handler
	events  chan engine.Event
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	d := &chanDispatcher{ch: make(chan engine.Event, 64)}
	sess := session.NewSession(ctx, d, session.Options{})
	return &testBridge{
		sess:    sess,
		handler: SetupRoutes(sess, nil, zap.NewNop()),
		events:  d.ch,
	}
}

func (b *testBridge) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	return rec
}

// next returns the next dispatched event of the given type, skipping others.
func (b *testBridge) next(t *testing.T, typ engine.EventType) engine.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-b.events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
			return engine.Event{}
		}
	}
}

func (b *testBridge) drain() []engine.Event {
	var out []engine.Event
	for {
		select {
		case ev := <-b.events:
			out = append(out, ev)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestConnectThenStatus(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/connect", `{"url":"http://x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"success": true, "url": "http://x"}, decode(t, rec))

	ev := b.next(t, engine.EvtConnect)
	assert.Equal(t, engine.ConnectPayload{URL: "http://x"}, ev.Payload)

	rec = b.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, "CONNECTED", body["status"])
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "http://x", body["serverURL"])
	assert.Equal(t, false, body["pttPressed"])
}

func TestStatusInitiallyDisconnected(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "DISCONNECTED", body["status"])
	assert.Equal(t, false, body["connected"])
	assert.Contains(t, body, "serverURL")
	assert.Nil(t, body["serverURL"])
}

func TestConnectRequiresURL(t *testing.T) {
	b := newTestBridge(t)

	for _, body := range []string{`{}`, `{"url":""}`, `{"url":42}`, ``} {
		rec := b.do(t, http.MethodPost, "/connect", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, map[string]any{"error": "Missing url parameter"}, decode(t, rec))
	}
}

func TestConnectAcceptsAnyNonEmptyURL(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/connect", `{"url":"not a url at all"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDisconnectManual(t *testing.T) {
	b := newTestBridge(t)
	_, err := b.sess.AttachPresentation(context.Background(), "ui-1")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/connect", `{"url":"http://x"}`).Code)
	rec := b.do(t, http.MethodPost, "/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, rec))

	ev := b.next(t, engine.EvtDisconnect)
	assert.Equal(t, engine.DisconnectPayload{Reason: engine.ReasonManual}, ev.Payload)

	body := decode(t, b.do(t, http.MethodGet, "/status", ""))
	assert.Equal(t, "WAITING_FOR_CONNECTION", body["status"])
	assert.Nil(t, body["serverURL"])
}

func TestHeartbeatRefreshesTimestamp(t *testing.T) {
	b := newTestBridge(t)
	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/connect", `{"url":"http://x"}`).Code)
	before, err := b.sess.Snapshot(context.Background())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	rec := b.do(t, http.MethodPost, "/heartbeat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, rec))

	after, err := b.sess.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, after.State.LastHeartbeatAt.After(before.State.LastHeartbeatAt))
	assert.Equal(t, engine.StatusConnected, after.Status)
}

func TestPTTIdempotent(t *testing.T) {
	b := newTestBridge(t)

	// No surface: success, no event.
	rec := b.do(t, http.MethodPost, "/ptt/press", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, rec))
	assert.Empty(t, b.drain())

	_, err := b.sess.AttachPresentation(context.Background(), "ui-1")
	require.NoError(t, err)
	b.drain()

	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/ptt/press", "").Code)
	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/ptt/press", "").Code)
	presses := 0
	for _, ev := range b.drain() {
		if ev.Type == engine.EvtPTTPress {
			presses++
		}
	}
	assert.Equal(t, 1, presses)

	body := decode(t, b.do(t, http.MethodGet, "/status", ""))
	assert.Equal(t, true, body["pttPressed"])

	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/ptt/release", "").Code)
	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/ptt/release", "").Code)
	releases := 0
	for _, ev := range b.drain() {
		if ev.Type == engine.EvtPTTRelease {
			releases++
		}
	}
	assert.Equal(t, 1, releases)
}

func TestFrequencies(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/frequencies",
		`{"frequencies":[{"frequency":45.3,"earSide":0},{"frequency":100.0,"earSide":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "count": float64(2)}, decode(t, rec))

	ev := b.next(t, engine.EvtFrequenciesUpdate)
	payload, err := json.Marshal(ev.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"frequency":"45.3","earSide":0},{"frequency":"100","earSide":2}]`, string(payload))
}

func TestFrequenciesValidation(t *testing.T) {
	b := newTestBridge(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing", `{}`, "frequencies must be an array"},
		{"object", `{"frequencies":{"frequency":1,"earSide":0}}`, "frequencies must be an array"},
		{"null", `{"frequencies":null}`, "frequencies must be an array"},
		{"bad ear side", `{"frequencies":[{"frequency":1,"earSide":3}]}`, "Invalid frequency format"},
		{"string frequency", `{"frequencies":[{"frequency":"1","earSide":0}]}`, "Invalid frequency format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := b.do(t, http.MethodPost, "/frequencies", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tc.want)
		})
	}

	rec := b.do(t, http.MethodPost, "/frequencies", `{"frequencies":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["count"])
}

func TestLegacyFrequency(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/frequency", `{"frequency":122.8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "frequency": 122.8}, decode(t, rec))
	assert.Equal(t, "122.8", b.next(t, engine.EvtFrequencyChange).Payload)

	rec = b.do(t, http.MethodPost, "/frequency", `{"frequency":"121.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "121.5", b.next(t, engine.EvtFrequencyChange).Payload)

	rec = b.do(t, http.MethodPost, "/frequency", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"error": "Missing frequency parameter"}, decode(t, rec))
}

func TestActiveChannel(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/active-channel", `{"frequency":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "frequency": float64(100)}, decode(t, rec))
	assert.Equal(t, "100", b.next(t, engine.EvtActiveChannelChange).Payload)

	rec = b.do(t, http.MethodPost, "/active-channel", `{"frequency":"100"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"error": "frequency must be a number"}, decode(t, rec))
}

func TestFrequencyDisconnect(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/frequency/disconnect", `{"frequency":45.3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45.3", b.next(t, engine.EvtFrequencyDisconnect).Payload)

	rec = b.do(t, http.MethodPost, "/frequency/disconnect", `{"frequency":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"error": "frequency must be a number"}, decode(t, rec))
}

func TestEarSide(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodPost, "/ear-side", `{"frequency":45.3,"earSide":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "frequency": 45.3, "earSide": float64(1)}, decode(t, rec))
	ev := b.next(t, engine.EvtEarSideChange)
	assert.Equal(t, engine.EarSidePayload{Frequency: "45.3", EarSide: engine.EarRight}, ev.Payload)

	rec = b.do(t, http.MethodPost, "/ear-side", `{"frequency":45.3,"earSide":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "earSide must be 0")

	rec = b.do(t, http.MethodPost, "/ear-side", `{"frequency":"45.3","earSide":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"error": "frequency and earSide must be numbers"}, decode(t, rec))
}

func TestInvalidJSON(t *testing.T) {
	b := newTestBridge(t)

	for _, path := range []string{"/connect", "/frequency", "/frequencies", "/active-channel", "/ear-side", "/frequency/disconnect"} {
		rec := b.do(t, http.MethodPost, path, `{"url":`)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, map[string]any{"error": "Invalid JSON"}, decode(t, rec))
	}
}

func TestWellFormedNonObjectBodies(t *testing.T) {
	b := newTestBridge(t)

	cases := []struct {
		path string
		want string
	}{
		{"/connect", "Missing url parameter"},
		{"/frequency", "Missing frequency parameter"},
		{"/frequencies", "frequencies must be an array"},
		{"/active-channel", "frequency must be a number"},
		{"/frequency/disconnect", "frequency must be a number"},
		{"/ear-side", "frequency and earSide must be numbers"},
	}
	for _, tc := range cases {
		for _, body := range []string{`[1,2]`, `"text"`, `42`, `true`} {
			rec := b.do(t, http.MethodPost, tc.path, body)
			require.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", tc.path, body)
			assert.Equal(t, map[string]any{"error": tc.want}, decode(t, rec), "%s %s", tc.path, body)
		}
	}
}

func TestNotFound(t *testing.T) {
	b := newTestBridge(t)

	rec := b.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"error": "Not found"}, decode(t, rec))

	// Known path, wrong method.
	rec = b.do(t, http.MethodGet, "/connect", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"error": "Not found"}, decode(t, rec))
}

func TestPreflight(t *testing.T) {
	b := newTestBridge(t)

	for _, path := range []string{"/connect", "/anything/at/all"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		b.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestAllowedOrigin(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", allowedOrigin("http://localhost:3000"))
	assert.Equal(t, "http://127.0.0.1:8080", allowedOrigin("http://127.0.0.1:8080"))
	assert.Equal(t, "http://127.0.0.1", allowedOrigin("https://evil.example"))
	assert.Equal(t, "http://127.0.0.1", allowedOrigin(""))
}

func TestRecoverJSON(t *testing.T) {
	r := chi.NewRouter()
	r.Use(recoverJSON(zap.NewNop()), cors)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"error": "Invalid JSON"}, decode(t, rec))
	assert.Equal(t, "http://127.0.0.1", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	b := newTestBridge(t)
	rec := b.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}
