// Package main provides the worker Lambda that renders one video per event.
//
// It is invoked asynchronously by the API Lambda (InvocationType=Event) with
// a jobs.Job payload. The run executes in /tmp, its artifacts are published
// to S3, the run record in DynamoDB is kept current stage by stage, and a
// VideoRunFinished event is emitted when the run ends.
//
// Failed runs are recorded and the handler returns nil: a video run is never
// retried.
//
// Container: includes ffmpeg and ffprobe
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/awsboot"
	"github.com/fpang/ai-video-generator/internal/chat"
	"github.com/fpang/ai-video-generator/internal/config"
	"github.com/fpang/ai-video-generator/internal/events"
	"github.com/fpang/ai-video-generator/internal/filehandler"
	"github.com/fpang/ai-video-generator/internal/jobs"
	"github.com/fpang/ai-video-generator/internal/logging"
	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
	"github.com/fpang/ai-video-generator/internal/store"
	"github.com/fpang/ai-video-generator/internal/videogen"
)

// workDir is the Lambda's writable scratch space.
const workDir = "/tmp/videos"

var coldStart = true

// Initialized at cold start.
var (
	runner *videogen.Runner
)

func init() {
	initStart := time.Now()
	logging.InitJSON()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.OutputDir = workDir

	ctx := context.Background()
	clients, err := awsboot.Init(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AWS clients")
	}
	if clients.Publisher == nil {
		log.Fatal().Msg("VIDEO_BUCKET_NAME environment variable is required")
	}
	if err := awsboot.LoadGeminiKey(ctx, clients.SSM, cfg.AWS.APIKeyParam); err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gemini API key")
	}

	client, err := chat.NewGeminiClient(ctx, os.Getenv(awsboot.APIKeyEnv))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	if err := filehandler.CheckFFmpegAvailable(); err != nil {
		log.Fatal().Err(err).Msg("ffmpeg missing from container")
	}

	runner = videogen.NewRunner(videogen.NewPipeline(cfg, client), clients)
	runner.Bundle = cfg.Bundle
	runner.RunTimeout = cfg.RunTimeout
	runner.Cleanup = true

	awsboot.StartupLog("video-worker-lambda", initStart, cfg.AWS).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Generation(videogen.StartupSettings(cfg)).
		Media(true, filehandler.IsFFprobeAvailable()).
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, job jobs.Job) error {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "video-worker-lambda").Msg("Cold start - first invocation")
	}
	log.Info().
		Str("sessionId", job.SessionID).
		Str("size", job.Size).
		Str("voice", job.Voice).
		Msg("Worker Lambda invoked")

	sess, err := session.FromID(workDir, job.SessionID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", job.SessionID).Msg("Rejected job with invalid session ID")
		return nil
	}

	req, err := job.Request()
	if err != nil {
		reject(ctx, job, err)
		return nil
	}

	out, err := runner.Run(ctx, sess, req)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sess.ID).Msg("Video run failed")
		return nil
	}
	log.Info().
		Str("sessionId", sess.ID).
		Int("images", len(out.Result.Images)).
		Int("skipped", len(out.Result.Skips)).
		Float64("durationSeconds", out.Result.Video.Duration).
		Msg("Video run complete")
	return nil
}

// reject records a job that failed validation before the pipeline started.
func reject(ctx context.Context, job jobs.Job, cause error) {
	runErr := &slideshow.RunError{Kind: slideshow.KindInvalidInput, Stage: slideshow.StageIdle, Message: "invalid job", Err: cause}
	log.Error().Err(runErr).Str("sessionId", job.SessionID).Msg("Rejected job")

	run := store.Complete(store.Run{ID: job.SessionID, Topic: job.Topic, Resolution: job.Size, Voice: job.Voice}, nil, runErr)
	if runner.Store != nil {
		if err := runner.Store.PutRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("sessionId", job.SessionID).Msg("Failed to record rejected job")
		}
	}
	if runner.Events != nil {
		if err := runner.Events.EmitRunFinished(ctx, events.FromRun(run)); err != nil {
			log.Warn().Err(err).Str("sessionId", job.SessionID).Msg("Failed to emit completion event")
		}
	}
}
