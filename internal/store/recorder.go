package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// StageRecorder mirrors pipeline progress into a RunStore. Terminal records
// are written by the caller once artifacts are published, so only successful
// intermediate transitions are recorded here. Store failures are logged and
// never interrupt the run.
type StageRecorder struct {
	Store RunStore
}

// OnStage implements slideshow.Observer.
func (r StageRecorder) OnStage(ctx context.Context, ev slideshow.StageEvent) {
	if r.Store == nil || ev.Err != nil || ev.Stage == slideshow.StageDone {
		return
	}
	if err := r.Store.UpdateRunStage(ctx, ev.Session.ID, StatusRunning, ev.Stage.String()); err != nil {
		log.Warn().Err(err).Str("sessionId", ev.Session.ID).Str("stage", ev.Stage.String()).Msg("Failed to record run stage")
	}
}

// Complete fills the outcome of a finished run into base. A nil err marks
// the run done; otherwise it is failed with the error message and kind.
func Complete(base Run, res *slideshow.Result, err error) *Run {
	run := base
	if res != nil {
		// The furthest stage reached, so a failure after the pipeline
		// finished does not rewind the record to idle.
		if res.Stage != slideshow.StageIdle {
			run.Stage = res.Stage.String()
		}
		run.ImagesGenerated = len(res.Images)
		run.AudioSeconds = res.Audio.Duration
		run.VideoSeconds = res.Video.Duration
		run.Skips = nil
		for _, skip := range res.Skips {
			run.Skips = append(run.Skips, SkipRecord{Segment: skip.SegmentIndex + 1, Reason: string(skip.Reason)})
		}
	}

	if err == nil {
		run.Status = StatusDone
		run.Stage = slideshow.StageDone.String()
		run.Error, run.ErrorKind = "", ""
		return &run
	}

	run.Status = StatusFailed
	run.Error = err.Error()
	run.ErrorKind = "internal"
	var runErr *slideshow.RunError
	if errors.As(err, &runErr) {
		run.ErrorKind = runErr.Kind.String()
		run.Stage = runErr.Stage.String()
	}
	return &run
}
