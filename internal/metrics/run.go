package metrics

import (
	"context"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// Metric names emitted for pipeline runs.
const (
	MetricStageLatency  = "StageLatencyMs"
	MetricRunResult     = "RunResult"
	MetricImagesOK      = "ImagesGenerated"
	MetricImagesSkipped = "ImagesSkipped"
	MetricAudioDuration = "AudioDurationSeconds"
	MetricRunLatency    = "RunLatencyMs"
)

// RunObserver emits one EMF document per stage transition and a summary
// document when the run finishes or fails.
type RunObserver struct{}

// OnStage implements slideshow.Observer.
func (o RunObserver) OnStage(_ context.Context, ev slideshow.StageEvent) {
	for _, rec := range o.records(ev) {
		rec.Flush()
	}
}

// records builds the recorders for an event without flushing them.
func (RunObserver) records(ev slideshow.StageEvent) []*Recorder {
	id := ev.Session.ID
	out := []*Recorder{ForStage(id, ev.Stage).Latency(MetricStageLatency, ev.Elapsed)}

	switch {
	case ev.Err != nil:
		kind := "unknown"
		if k, ok := slideshow.KindOf(ev.Err); ok {
			kind = k.String()
		}
		out = append(out, ForSession(id).
			Dimension("Result", "failed").
			Count(MetricRunResult).
			Property("failedStage", ev.Stage.String()).
			Property("errorKind", kind))
	case ev.Stage == slideshow.StageImagesSynthesized && ev.Result != nil:
		out = append(out, ForStage(id, ev.Stage).
			Metric(MetricImagesOK, float64(len(ev.Result.Images)), UnitCount).
			Metric(MetricImagesSkipped, float64(len(ev.Result.Skips)), UnitCount))
	case ev.Stage == slideshow.StageDone && ev.Result != nil:
		out = append(out, ForSession(id).
			Dimension("Result", "succeeded").
			Count(MetricRunResult).
			Metric(MetricAudioDuration, ev.Result.Audio.Duration, UnitSeconds).
			Latency(MetricRunLatency, ev.Result.Total))
	}
	return out
}
