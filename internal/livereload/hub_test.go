package livereload

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepipe/internal/metrics"
)

type fakeRecorder struct {
	metrics.NoopRecorder
	mu         sync.Mutex
	clients    int
	broadcasts map[string]int
}

func (f *fakeRecorder) SetLiveReloadClients(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = n
}

func (f *fakeRecorder) IncReloadBroadcast(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broadcasts == nil {
		f.broadcasts = map[string]int{}
	}
	f.broadcasts[kind]++
}

func (f *fakeRecorder) snapshot() (int, map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.broadcasts))
	for k, v := range f.broadcasts {
		out[k] = v
	}
	return f.clients, out
}

func connect(t *testing.T, hub *Hub) *bufio.Reader {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return bufio.NewReader(resp.Body)
}

func nextEvent(t *testing.T, r *bufio.Reader) Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
			return ev
		}
	}
}

func TestHub_BroadcastsEventsInOrder(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	r := connect(t, hub)

	hub.Notify("Running: $ jekyll build")
	hub.InjectCSS("/assets/css/main.css")
	hub.Reload()

	ev := nextEvent(t, r)
	assert.Equal(t, KindNotify, ev.Type)
	assert.Equal(t, "Running: $ jekyll build", ev.Message)

	ev = nextEvent(t, r)
	assert.Equal(t, KindCSS, ev.Type)
	assert.Equal(t, "/assets/css/main.css", ev.Path)

	last := nextEvent(t, r)
	assert.Equal(t, KindReload, last.Type)
	assert.Greater(t, last.Seq, ev.Seq)
}

func TestHub_DropsSlowClients(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	c := &client{id: 42, ch: make(chan Event, clientBuffer), done: make(chan struct{})}
	hub.mu.Lock()
	hub.clients[c.id] = c
	hub.mu.Unlock()

	for i := 0; i < clientBuffer+1; i++ {
		hub.Reload()
	}
	assert.Equal(t, 0, hub.Clients())
	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not closed")
	}
}

func TestHub_ShutdownDisconnectsClients(t *testing.T) {
	rec := &fakeRecorder{}
	hub := NewHub(WithRecorder(rec))
	r := connect(t, hub)

	hub.Reload()
	_ = nextEvent(t, r)
	hub.Shutdown()

	require.Eventually(t, func() bool {
		_, err := r.ReadString('\n')
		return err != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.Clients())

	// Broadcasts after shutdown are ignored.
	hub.Reload()
	clients, broadcasts := rec.snapshot()
	assert.Equal(t, 0, clients)
	assert.Equal(t, map[string]int{KindReload: 1}, broadcasts)
	rr := httptest.NewRecorder()
	hub.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, EventsPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestScriptHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	ScriptHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, ScriptPath, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rr.Body.String(), EventsPath)
}
