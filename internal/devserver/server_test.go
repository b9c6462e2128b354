package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	"git.home.luguber.info/inful/sitepipe/internal/livereload"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
)

func newSite(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Root: t.TempDir()}
	require.NoError(t, config.ApplyDefaults(cfg))
	site := cfg.Path(cfg.Site.Dir)
	require.NoError(t, os.MkdirAll(filepath.Join(site, "assets", "css"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"),
		[]byte("<html><head><title>t</title></head><body><p>hi</p></body></html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(site, "assets", "css", "main.css"), []byte("body{}"), 0o600))
	return cfg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestInjectScript(t *testing.T) {
	tag := scriptTag("/lr.js")
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"body", "<body><p>x</p></body>", `<body><p>x</p><script async src="/lr.js"></script></body>`},
		{"uppercase", "<BODY>x</BODY>", `<BODY>x<script async src="/lr.js"></script></BODY>`},
		{"escaped text", "<body><pre>&lt;/body&gt;</pre></body>", `<body><pre>&lt;/body&gt;</pre><script async src="/lr.js"></script></body>`},
		{"no body", "<p>fragment</p>", "<p>fragment</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(injectScript([]byte(tt.in), tag)))
		})
	}
}

func TestHandler_InjectsIntoHTMLOnly(t *testing.T) {
	cfg := newSite(t)
	h := New(cfg, livereload.NewHub()).Handler()

	page := get(t, h, "/")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `<script async src="`+livereload.ScriptPath+`"></script></body>`)
	assert.Equal(t, "no-cache", page.Header().Get("Cache-Control"))

	css := get(t, h, "/assets/css/main.css")
	require.Equal(t, http.StatusOK, css.Code)
	assert.Equal(t, "body{}", css.Body.String())
	assert.Equal(t, "no-cache", css.Header().Get("Cache-Control"))

	script := get(t, h, livereload.ScriptPath)
	assert.Equal(t, http.StatusOK, script.Code)
	assert.Contains(t, script.Body.String(), livereload.EventsPath)
}

func TestHandler_LiveReloadDisabled(t *testing.T) {
	cfg := newSite(t)
	off := false
	cfg.Server.LiveReload = &off
	h := New(cfg, livereload.NewHub()).Handler()

	page := get(t, h, "/")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "<p>hi</p>")
	assert.NotContains(t, page.Body.String(), "<script")
	assert.Equal(t, http.StatusNotFound, get(t, h, livereload.ScriptPath).Code)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	cfg := newSite(t)
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.IncWatchTrigger("styles")
	h := New(cfg, nil, WithRegistry(reg)).Handler()

	health := get(t, h, HealthPath)
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	m := get(t, h, MetricsPath)
	assert.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), "sitepipe_watch_triggers_total")
}

func TestServer_StartStop(t *testing.T) {
	cfg := newSite(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	s := New(cfg, livereload.NewHub())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	require.Error(t, s.Start(context.Background()))

	resp, err := http.Get(s.URL() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), livereload.ScriptPath)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())
	require.NoError(t, s.Stop(context.Background()))
}
