package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Generation is the video generation setup recorded at startup.
type Generation struct {
	ImageBackend   string
	TextModel      string
	ImageModel     string
	SpeechModel    string
	Concurrency    int
	ServiceTimeout time.Duration
	RefineWithLLM  bool
	Bundle         bool
	OutputDir      string
}

// Resources names the AWS resources a binary talks to. Empty fields are
// left out of the summary.
type Resources struct {
	Bucket         string
	Table          string
	EventBus       string
	WorkerFunction string
	// KeyParam is the SSM path of the Gemini key; the value is never logged.
	KeyParam string
}

// StartupLogger emits one structured event describing how a CLI run or a
// Lambda cold start is configured: build identity, generation setup, media
// tooling and AWS resources.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	generation *Generation
	resources  Resources
	ffmpeg     *bool
	ffprobe    bool
	api        map[string]bool
}

// NewStartupLogger creates a StartupLogger for the named binary.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{name: name}
}

// CommitHash sets the git commit baked in with -ldflags.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build time baked in with -ldflags.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

// Generation records the pipeline setup.
func (s *StartupLogger) Generation(g Generation) *StartupLogger {
	s.generation = &g
	return s
}

// Media records whether ffmpeg and ffprobe were found on PATH.
func (s *StartupLogger) Media(ffmpeg, ffprobe bool) *StartupLogger {
	s.ffmpeg = &ffmpeg
	s.ffprobe = ffprobe
	return s
}

// Resources records the AWS resources in use.
func (s *StartupLogger) Resources(r Resources) *StartupLogger {
	s.resources = r
	return s
}

// API records the HTTP API protections and capabilities.
func (s *StartupLogger) API(originVerify, downloadURLs bool) *StartupLogger {
	s.api = map[string]bool{"originVerify": originVerify, "downloadURLs": downloadURLs}
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits the summary as a single INFO event.
func (s *StartupLogger) Log() {
	evt := log.Info().Dict("binary", s.binaryDict())

	// Lambda identity only exists inside the Lambda runtime.
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		evt = evt.Dict("lambda", zerolog.Dict().
			Str("functionName", fn).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")))
	}

	if g := s.generation; g != nil {
		d := zerolog.Dict().
			Str("imageBackend", g.ImageBackend).
			Int("concurrency", g.Concurrency).
			Dur("serviceTimeout", g.ServiceTimeout).
			Bool("refineWithLLM", g.RefineWithLLM).
			Bool("bundle", g.Bundle).
			Dict("models", zerolog.Dict().
				Str("text", g.TextModel).
				Str("image", g.ImageModel).
				Str("speech", g.SpeechModel))
		if g.OutputDir != "" {
			d = d.Str("outputDir", g.OutputDir)
		}
		evt = evt.Dict("generation", d)
	}

	if s.ffmpeg != nil {
		evt = evt.Dict("media", zerolog.Dict().Bool("ffmpeg", *s.ffmpeg).Bool("ffprobe", s.ffprobe))
	}

	if r, ok := s.resourcesDict(); ok {
		evt = evt.Dict("resources", r)
	}

	if s.api != nil {
		d := zerolog.Dict()
		for k, v := range s.api {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("api", d)
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

func (s *StartupLogger) binaryDict() *zerolog.Event {
	d := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.commitHash != "" {
		d = d.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		d = d.Str("buildTime", s.buildTime)
	}
	return d
}

func (s *StartupLogger) resourcesDict() (*zerolog.Event, bool) {
	fields := []struct{ key, value string }{
		{"bucket", s.resources.Bucket},
		{"table", s.resources.Table},
		{"eventBus", s.resources.EventBus},
		{"workerFunction", s.resources.WorkerFunction},
		{"keyParam", s.resources.KeyParam},
	}
	d := zerolog.Dict()
	found := false
	for _, f := range fields {
		if f.value != "" {
			d = d.Str(f.key, f.value)
			found = true
		}
	}
	return d, found
}
