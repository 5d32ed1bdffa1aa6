// Package main provides the HTTP API Lambda for video runs.
//
// Runs are executed by the worker Lambda; this Lambda only validates
// requests, records queued runs and reports their status.
//
// Endpoints:
//
//	GET  /api/health               health check
//	GET  /api/options              voices and sizes
//	POST /api/videos               start a run, returns 202 with the sessionId
//	GET  /api/videos/{sessionId}   run record, with download URLs when done
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/awsboot"
	"github.com/fpang/ai-video-generator/internal/config"
	"github.com/fpang/ai-video-generator/internal/jobs"
	"github.com/fpang/ai-video-generator/internal/logging"
	"github.com/fpang/ai-video-generator/internal/session"
)

var (
	api                *server
	originVerifySecret string
)

// setup runs at cold start, before the first request.
func setup() {
	initStart := time.Now()
	logging.InitJSON()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	clients, err := awsboot.Init(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AWS clients")
	}
	if clients.Store == nil {
		log.Fatal().Msg("VIDEO_TABLE_NAME environment variable is required")
	}
	if clients.Lambda == nil {
		log.Fatal().Msg("VIDEO_WORKER_FUNCTION environment variable is required")
	}

	api = &server{
		store:      clients.Store,
		dispatcher: jobs.NewDispatcher(clients.Lambda, cfg.AWS.WorkerFunction),
		newID:      func() string { return session.New("").ID },
	}
	if clients.Publisher != nil {
		api.presigner = clients.Publisher
	}

	originVerifySecret = os.Getenv("ORIGIN_VERIFY_SECRET")
	if originVerifySecret == "" {
		log.Warn().Msg("ORIGIN_VERIFY_SECRET not set, origin verification disabled")
	}

	awsboot.StartupLog("video-api-lambda", initStart, cfg.AWS).
		CommitHash(commitHash).
		BuildTime(buildTime).
		API(originVerifySecret != "", api.presigner != nil).
		Log()
}

func main() {
	setup()
	handler := withOriginVerify(originVerifySecret, api.routes())
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}
