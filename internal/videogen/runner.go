package videogen

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/awsboot"
	"github.com/fpang/ai-video-generator/internal/bundle"
	"github.com/fpang/ai-video-generator/internal/events"
	"github.com/fpang/ai-video-generator/internal/filehandler"
	"github.com/fpang/ai-video-generator/internal/metrics"
	"github.com/fpang/ai-video-generator/internal/s3util"
	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
	"github.com/fpang/ai-video-generator/internal/store"
)

// Publisher uploads session artifacts and presigns their keys.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, artifacts []s3util.Artifact) (map[string]string, error)
	PresignAll(ctx context.Context, keys map[string]string) (map[string]string, error)
}

// Emitter announces finished runs.
type Emitter interface {
	EmitRunFinished(ctx context.Context, event events.RunFinished) error
}

// Runner executes one run end to end: the pipeline, the poster, the optional
// bundle, artifact publishing, the terminal run record and the completion
// event. Only the pipeline is required.
type Runner struct {
	Pipeline  *slideshow.Pipeline
	Store     store.RunStore
	Publisher Publisher
	Events    Emitter

	Bundle bool
	// Metrics emits CloudWatch EMF documents to stdout for every stage.
	Metrics bool
	// RunTimeout bounds the whole pipeline. Zero means no limit.
	RunTimeout time.Duration
	// Cleanup removes the session directory once artifacts are published.
	Cleanup bool
}

// NewRunner builds a Runner for p. Nil clients, or nil resources within
// them, leave the matching feature off; runs are then recorded in memory.
func NewRunner(p *slideshow.Pipeline, clients *awsboot.Clients) *Runner {
	r := &Runner{Pipeline: p, Store: store.NewMemoryStore()}
	if clients == nil {
		return r
	}
	r.Metrics = true
	if clients.Store != nil {
		r.Store = clients.Store
	}
	if clients.Publisher != nil {
		r.Publisher = clients.Publisher
	}
	if clients.Events != nil {
		r.Events = clients.Events
	}
	return r
}

// Outcome is everything a caller may report about a finished run.
type Outcome struct {
	Session session.Context
	Result  *slideshow.Result
	Run     *store.Run
	// URLs maps artifact names to presigned download URLs.
	URLs map[string]string
}

// Run executes req in sess. The returned Outcome is never nil; on failure it
// carries the partial result and the failed run record alongside the error.
func (r *Runner) Run(ctx context.Context, sess session.Context, req slideshow.Request) (*Outcome, error) {
	logger := log.With().Str("sessionId", sess.ID).Logger()
	out := &Outcome{Session: sess}

	base := r.startRecord(ctx, sess, req)

	p := *r.Pipeline
	observers := slideshow.Observers{r.Pipeline.Observer, store.StageRecorder{Store: r.Store}}
	if r.Metrics {
		observers = append(observers, metrics.RunObserver{})
	}
	p.Observer = observers

	runCtx := ctx
	if r.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.RunTimeout)
		defer cancel()
	}

	res, err := p.Run(runCtx, sess, req)
	out.Result = res

	var keys map[string]string
	if err == nil {
		r.writePoster(sess, res)
		if r.Bundle {
			if _, berr := bundle.Write(sess); berr != nil {
				logger.Warn().Err(berr).Msg("Failed to write session bundle")
			}
		}
		if r.Publisher != nil {
			keys, out.URLs, err = r.publish(ctx, sess)
		}
	}

	final := store.Complete(base, res, err)
	final.Artifacts = keys
	out.Run = final
	if r.Store != nil {
		if perr := r.Store.PutRun(ctx, final); perr != nil {
			logger.Warn().Err(perr).Msg("Failed to write final run record")
		}
	}
	if r.Events != nil {
		if eerr := r.Events.EmitRunFinished(ctx, events.FromRun(final)); eerr != nil {
			logger.Warn().Err(eerr).Msg("Failed to emit completion event")
		}
	}

	if r.Cleanup {
		if rerr := sess.Remove(); rerr != nil {
			logger.Warn().Err(rerr).Msg("Failed to remove session directory")
		}
	}
	return out, err
}

// startRecord marks the run as running, keeping any record created when the
// run was queued.
func (r *Runner) startRecord(ctx context.Context, sess session.Context, req slideshow.Request) store.Run {
	base := store.Run{
		ID:         sess.ID,
		Topic:      string(req.Topic),
		Resolution: req.Resolution.String(),
		Voice:      req.Voice.String(),
	}
	if r.Store == nil {
		return base
	}
	if existing, err := r.Store.GetRun(ctx, sess.ID); err != nil {
		log.Warn().Err(err).Str("sessionId", sess.ID).Msg("Failed to read run record")
	} else if existing != nil {
		base.CreatedAt = existing.CreatedAt
	}
	base.Status = store.StatusRunning
	base.Stage = slideshow.StageIdle.String()
	if err := r.Store.PutRun(ctx, &base); err != nil {
		log.Warn().Err(err).Str("sessionId", sess.ID).Msg("Failed to write run record")
	}
	return base
}

// writePoster saves a JPEG thumbnail of the first slide. Failures are logged.
func (r *Runner) writePoster(sess session.Context, res *slideshow.Result) {
	if res == nil || len(res.Images) == 0 {
		return
	}
	data, err := filehandler.Poster(res.Images[0].Data, filehandler.DefaultPosterMaxDimension)
	if err == nil {
		err = os.WriteFile(sess.PosterPath(), data, 0644)
	}
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sess.ID).Msg("Failed to write poster")
	}
}

func (r *Runner) publish(ctx context.Context, sess session.Context) (map[string]string, map[string]string, error) {
	keys, err := r.Publisher.Publish(ctx, sess.ID, Artifacts(sess))
	if err != nil {
		return keys, nil, fmt.Errorf("failed to publish artifacts: %w", err)
	}
	urls, err := r.Publisher.PresignAll(ctx, keys)
	if err != nil {
		return keys, nil, fmt.Errorf("failed to presign artifacts: %w", err)
	}
	return keys, urls, nil
}

// Artifacts lists the files of a finished session in publish order.
func Artifacts(sess session.Context) []s3util.Artifact {
	return []s3util.Artifact{
		{Name: "video", Path: sess.VideoPath(), ContentType: "video/mp4"},
		{Name: "audio", Path: sess.AudioPath(), ContentType: "audio/wav"},
		{Name: "script", Path: sess.ScriptPath(), ContentType: "text/plain; charset=utf-8"},
		{Name: "poster", Path: sess.PosterPath(), ContentType: "image/jpeg", Optional: true},
		{Name: "bundle", Path: sess.BundlePath(), ContentType: "application/zip", Optional: true},
	}
}
