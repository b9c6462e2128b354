// Package metrics provides the observability hooks for sitepipe task runs.
//
// Components receive a Recorder through injection. NoopRecorder is the
// default so callers never nil-check; the dev server swaps in a
// PrometheusRecorder and exposes its registry through HTTPHandler.
//
//	reg := prom.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	runner := tasks.NewRunner(graph, tasks.WithRecorder(rec))
//	mux.Handle("/__sitepipe/metrics", metrics.HTTPHandler(reg))
package metrics
