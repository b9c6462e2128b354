package devserver

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxInjectBuffer = 2 << 20

// scriptTag is inserted before the closing body tag of served HTML.
func scriptTag(src string) []byte {
	return []byte(`<script async src="` + src + `"></script>`)
}

// injectScript returns doc with tag inserted before the last </body>, or doc
// unchanged when it has none.
func injectScript(doc, tag []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset, at := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				at = offset
			}
		}
		offset += raw
	}
	if at < 0 {
		return doc
	}
	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:at]...)
	out = append(out, tag...)
	return append(out, doc[at:]...)
}

// injectLiveReload wraps next so HTML responses carry the live reload client.
func injectLiveReload(next http.Handler, src string) http.Handler {
	tag := scriptTag(src)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inj := &injector{ResponseWriter: w, status: http.StatusOK, tag: tag}
		next.ServeHTTP(inj, r)
		inj.finish()
	})
}

// injector buffers an HTML body until the handler returns. Non-HTML bodies
// and bodies above maxInjectBuffer pass straight through.
type injector struct {
	http.ResponseWriter
	status        int
	tag           []byte
	buf           []byte
	buffering     bool
	passthrough   bool
	headerWritten bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.writeHeader()
	}
}

func (i *injector) writeHeader() {
	if !i.headerWritten {
		i.headerWritten = true
		i.ResponseWriter.WriteHeader(i.status)
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.buffering && !i.passthrough {
		if i.status == http.StatusOK && strings.HasPrefix(i.Header().Get("Content-Type"), "text/html") {
			i.buffering = true
		} else {
			i.passthrough = true
			i.writeHeader()
		}
	}
	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}
	if len(i.buf)+len(data) > maxInjectBuffer {
		i.passthrough = true
		i.buffering = false
		i.writeHeader()
		if _, err := i.ResponseWriter.Write(i.buf); err != nil {
			return 0, err
		}
		i.buf = nil
		return i.ResponseWriter.Write(data)
	}
	i.buf = append(i.buf, data...)
	return len(data), nil
}

func (i *injector) finish() {
	if !i.buffering {
		i.writeHeader()
		return
	}
	body := injectScript(i.buf, i.tag)
	i.Header().Set("Content-Length", strconv.Itoa(len(body)))
	i.writeHeader()
	_, _ = i.ResponseWriter.Write(body)
}
