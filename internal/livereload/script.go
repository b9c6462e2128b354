package livereload

import (
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// Script is the browser client for the events endpoint.
const Script = `(() => {
  if (window.__SITEPIPE_LR__) return;
  window.__SITEPIPE_LR__ = true;
  function banner(html) {
    let el = document.getElementById('__sitepipe_notify');
    if (!el) {
      el = document.createElement('div');
      el.id = '__sitepipe_notify';
      el.style.cssText = 'position:fixed;top:0;right:0;z-index:99999;padding:10px 16px;' +
        'background:rgba(0,0,0,.75);color:#fff;font:13px/1.4 sans-serif;border-bottom-left-radius:5px';
      document.body.appendChild(el);
    }
    el.innerHTML = html;
    el.style.display = 'block';
    clearTimeout(el.__timer);
    el.__timer = setTimeout(() => { el.style.display = 'none'; }, 3000);
  }
  function swapCSS(path) {
    const links = document.querySelectorAll('link[rel="stylesheet"]');
    links.forEach((link) => {
      const url = new URL(link.href, location.href);
      if (path && url.pathname !== path && !url.pathname.endsWith(path.split('/').pop())) return;
      url.searchParams.set('__sitepipe', Date.now().toString());
      link.href = url.toString();
    });
  }
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (e) => {
      let ev;
      try { ev = JSON.parse(e.data); } catch (_) { return; }
      if (ev.type === 'reload') { location.reload(); }
      else if (ev.type === 'css') { swapCSS(ev.path); }
      else if (ev.type === 'notify') { banner(ev.message); }
    };
    es.onerror = () => {
      console.warn('[sitepipe] livereload connection lost, retrying');
      es.close();
      setTimeout(connect, 2000);
    };
  }
  connect();
})();
`

// ScriptHandler serves Script.
func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		if _, err := w.Write([]byte(Script)); err != nil {
			slog.Error("failed to write livereload script", logfields.Error(err))
		}
	})
}
