package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmdmdm-nz/reachd/internal/watchmgr"
	"github.com/dmdmdm-nz/reachd/pkg/reachability"
	"github.com/dmdmdm-nz/reachd/pkg/version"
)

// mockTargets is a mock implementation of Targets for testing
type mockTargets struct {
	mu     sync.Mutex
	ready  bool
	states []watchmgr.TargetState
	live   chan watchmgr.TargetState
	unsubs int
}

func newMockTargets(states ...watchmgr.TargetState) *mockTargets {
	return &mockTargets{
		ready:  true,
		states: states,
		live:   make(chan watchmgr.TargetState, 8),
	}
}

func (m *mockTargets) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *mockTargets) Snapshot() []watchmgr.TargetState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]watchmgr.TargetState(nil), m.states...)
}

func (m *mockTargets) Get(name string) (watchmgr.TargetState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.states {
		if s.Name == name {
			return s, true
		}
	}
	return watchmgr.TargetState{}, false
}

func (m *mockTargets) Subscribe() (<-chan watchmgr.TargetState, func()) {
	ch := make(chan watchmgr.TargetState, len(m.states)+8)
	for _, s := range m.Snapshot() {
		ch <- s
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case s := <-m.live:
				ch <- s
			}
		}
	}()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			close(done)
			m.mu.Lock()
			m.unsubs++
			m.mu.Unlock()
		})
	}
}

func (m *mockTargets) unsubscribed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubs
}

var (
	internetState = watchmgr.TargetState{
		Name:       "internet",
		Target:     "internet",
		Status:     reachability.ReachableViaWiFi,
		LastStatus: reachability.NotReachable,
		Flags:      "-R-------",
		Notifying:  true,
		Changes:    1,
	}
	apiState = watchmgr.TargetState{
		Name:       "api",
		Target:     "host:api.example.com",
		Status:     reachability.NotReachable,
		LastStatus: reachability.NotReachable,
		Notifying:  true,
	}
)

func newTestHandler(t *testing.T, targets Targets) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewService("127.0.0.1", 0, targets).Handler(ctx)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, newMockTargets())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestReady(t *testing.T) {
	targets := newMockTargets()
	h := newTestHandler(t, targets)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	targets.mu.Lock()
	targets.ready = false
	targets.mu.Unlock()

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVersion(t *testing.T) {
	h := newTestHandler(t, newMockTargets())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info VersionInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, version.Version, info.Version)
	assert.Equal(t, version.CommitHash, info.CommitHash)
}

func TestTargets(t *testing.T) {
	h := newTestHandler(t, newMockTargets(internetState, apiState))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/targets", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var states []watchmgr.TargetState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&states))
	assert.Equal(t, []watchmgr.TargetState{internetState, apiState}, states)
}

func TestTargets_WireFormat(t *testing.T) {
	h := newTestHandler(t, newMockTargets(internetState))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/targets/internet", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "reachable-via-wifi", raw["status"])
	assert.Equal(t, "not-reachable", raw["lastStatus"])
	assert.Equal(t, false, raw["connectionRequired"])
	assert.Equal(t, float64(1), raw["changes"])
}

func TestTargetByName(t *testing.T) {
	h := newTestHandler(t, newMockTargets(internetState, apiState))

	testCases := []struct {
		name string
		path string
		code int
	}{
		{name: "Found", path: "/targets/api", code: http.StatusOK},
		{name: "NotFound", path: "/targets/nope", code: http.StatusNotFound},
		{name: "TrailingSlash", path: "/targets/", code: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.code, w.Code)
		})
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/targets/api", nil))
	var state watchmgr.TargetState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.Equal(t, apiState, state)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/targets/api", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func dialEvents(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events" + query
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func readState(t *testing.T, c *websocket.Conn) watchmgr.TargetState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	typ, b, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)

	var state watchmgr.TargetState
	require.NoError(t, json.Unmarshal(b, &state))
	return state
}

func TestEventStream(t *testing.T) {
	targets := newMockTargets(internetState, apiState)
	srv := httptest.NewServer(newTestHandler(t, targets))
	defer srv.Close()

	c := dialEvents(t, srv, "")

	assert.Equal(t, "internet", readState(t, c).Name)
	assert.Equal(t, "api", readState(t, c).Name)

	update := apiState
	update.Status = reachability.ReachableViaWWAN
	update.Changes = 1
	targets.live <- update

	got := readState(t, c)
	assert.Equal(t, "api", got.Name)
	assert.Equal(t, reachability.ReachableViaWWAN, got.Status)
	assert.Equal(t, 1, got.Changes)
}

func TestEventStream_FilterByName(t *testing.T) {
	targets := newMockTargets(internetState, apiState)
	srv := httptest.NewServer(newTestHandler(t, targets))
	defer srv.Close()

	c := dialEvents(t, srv, "?name=api")

	assert.Equal(t, "api", readState(t, c).Name)

	targets.live <- internetState
	update := apiState
	update.Changes = 2
	targets.live <- update

	got := readState(t, c)
	assert.Equal(t, "api", got.Name)
	assert.Equal(t, 2, got.Changes)
}

func TestEventStream_UnsubscribesOnClientClose(t *testing.T) {
	targets := newMockTargets(internetState)
	srv := httptest.NewServer(newTestHandler(t, targets))
	defer srv.Close()

	c := dialEvents(t, srv, "")
	readState(t, c)
	require.NoError(t, c.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool { return targets.unsubscribed() == 1 }, time.Second, 10*time.Millisecond)
}

func TestEventStream_ServerShutdown(t *testing.T) {
	targets := newMockTargets(internetState)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(NewService("127.0.0.1", 0, targets).Handler(ctx))
	defer srv.Close()

	c := dialEvents(t, srv, "")
	readState(t, c)
	cancel()

	readCtx, readCancel := context.WithTimeout(context.Background(), time.Second)
	defer readCancel()
	_, _, err := c.Read(readCtx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestServiceStartAndClose(t *testing.T) {
	s := NewService("127.0.0.1", 0, newMockTargets())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	changes := prometheus.NewCounter(prometheus.CounterOpts{Name: "reachd_test_changes_total", Help: "test"})
	reg.MustRegister(changes)
	changes.Add(3)

	s := NewService("127.0.0.1", 0, newMockTargets())
	s.AttachMetrics(reg)
	h := s.Handler(context.Background())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reachd_test_changes_total 3")
}

func TestMetrics_NotAttached(t *testing.T) {
	h := newTestHandler(t, newMockTargets())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
