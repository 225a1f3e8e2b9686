package research

import "time"

// Recorder receives pipeline measurements. metrics.Metrics implements it.
type Recorder interface {
	RunFinished(kind JobKind, outcome string)
	FanoutTask(tool, result string)
	StageDuration(stage Stage, d time.Duration)
	ReflectionIterations(n int)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(JobKind, string) {}
func (nopRecorder) FanoutTask(string, string) {}
func (nopRecorder) StageDuration(Stage, time.Duration) {}
func (nopRecorder) ReflectionIterations(int) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
