package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for task, reload and watch metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	IncReloadBroadcast(kind string)
	SetLiveReloadClients(n int)
	IncWatchTrigger(task string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) IncReloadBroadcast(string)                 {}
func (NoopRecorder) SetLiveReloadClients(int)                  {}
func (NoopRecorder) IncWatchTrigger(string)                    {}
