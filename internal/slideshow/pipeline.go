package slideshow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/session"
)

// Stage is a pipeline state. A run moves forward through the stages in order
// and falls back to StageIdle on any fatal error.
type Stage int

const (
	StageIdle Stage = iota
	StageScriptGenerated
	StageImagesSynthesized
	StageVoiceSynthesized
	StageVideoAssembled
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageScriptGenerated:
		return "script_generated"
	case StageImagesSynthesized:
		return "images_synthesized"
	case StageVoiceSynthesized:
		return "voice_synthesized"
	case StageVideoAssembled:
		return "video_assembled"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageEvent reports one stage transition. When Err is set, Stage is the
// stage the run failed to reach and the run is back at StageIdle.
type StageEvent struct {
	Session session.Context
	Stage   Stage
	Elapsed time.Duration
	Err     error
	// Result is the run state so far. Observers must not modify it.
	Result *Result
}

// Observer receives stage transitions. Implementations must not block for
// long; they run on the pipeline goroutine.
type Observer interface {
	OnStage(ctx context.Context, ev StageEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev StageEvent)

func (f ObserverFunc) OnStage(ctx context.Context, ev StageEvent) { f(ctx, ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) OnStage(ctx context.Context, ev StageEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.OnStage(ctx, ev)
		}
	}
}

// Request holds the caller's parameters for one run.
type Request struct {
	Topic      Topic
	Resolution Resolution
	Voice      Voice
}

// Validate checks the topic and both enumerations.
func (r Request) Validate() error {
	if err := r.Topic.Validate(); err != nil {
		return err
	}
	if !r.Resolution.Valid() {
		return &RunError{Kind: KindInvalidInput, Stage: StageIdle, Message: fmt.Sprintf("unknown resolution %d", int(r.Resolution))}
	}
	if !r.Voice.Valid() {
		return &RunError{Kind: KindInvalidInput, Stage: StageIdle, Message: fmt.Sprintf("unknown voice %d", int(r.Voice))}
	}
	return nil
}

// Result collects every artifact and measurement of a run.
type Result struct {
	SessionID string
	Stage     Stage
	Script    Script
	Segments  []Segment
	Images    []ImageArtifact
	Skips     []Skip
	Audio     AudioArtifact
	Video     VideoOutput
	Timings   map[Stage]time.Duration
	Total     time.Duration
}

// Pipeline wires the stages together. Every stage is also callable on its own.
type Pipeline struct {
	Writer    ScriptGenerator
	Refiner   PromptRefiner
	Images    *ImageSynthesizer
	Voice     VoiceSynthesizer
	Assembler *Assembler
	// Timeout bounds each script, refine and voice call.
	Timeout  time.Duration
	Observer Observer
}

func (p *Pipeline) check() error {
	var missing []string
	if p.Writer == nil {
		missing = append(missing, "script generator")
	}
	if p.Images == nil || p.Images.Generator == nil {
		missing = append(missing, "image synthesizer")
	}
	if p.Voice == nil {
		missing = append(missing, "voice synthesizer")
	}
	if p.Assembler == nil || p.Assembler.Encoder == nil {
		missing = append(missing, "assembler")
	}
	if len(missing) > 0 {
		return fmt.Errorf("pipeline is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run executes one synchronous run: script, images, voice, video. There are
// no retries. On failure the partially filled Result is returned with the
// error and its Stage is StageIdle.
func (p *Pipeline) Run(ctx context.Context, sess session.Context, req Request) (*Result, error) {
	result := &Result{SessionID: sess.ID, Stage: StageIdle, Timings: make(map[Stage]time.Duration)}
	runStart := time.Now()

	logger := log.With().Str("sessionId", sess.ID).Logger()

	if err := p.check(); err != nil {
		return result, err
	}
	if err := req.Validate(); err != nil {
		p.notify(ctx, sess, StageScriptGenerated, 0, err, result)
		return result, err
	}
	if err := sess.Ensure(); err != nil {
		runErr := &RunError{Kind: KindAssembly, Stage: StageIdle, Message: "failed to prepare session directory", Err: err}
		p.notify(ctx, sess, StageScriptGenerated, 0, runErr, result)
		return result, runErr
	}

	logger.Info().
		Str("topic", truncate(string(req.Topic), 100)).
		Str("resolution", req.Resolution.String()).
		Str("voice", req.Voice.String()).
		Msg("Starting video generation run")

	fail := func(stage Stage, start time.Time, err error) (*Result, error) {
		result.Stage = StageIdle
		result.Total = time.Since(runStart)
		logger.Error().Err(err).Str("stage", stage.String()).Msg("Video generation run failed")
		p.notify(ctx, sess, stage, time.Since(start), err, result)
		return result, err
	}
	advance := func(stage Stage, start time.Time) {
		elapsed := time.Since(start)
		result.Stage = stage
		result.Timings[stage] = elapsed
		logger.Debug().Str("stage", stage.String()).Dur("duration", elapsed).Msg("Stage complete")
		p.notify(ctx, sess, stage, elapsed, nil, result)
	}

	// Script.
	start := time.Now()
	script, segments, err := p.GenerateScript(ctx, sess, req.Topic)
	result.Script, result.Segments = script, segments
	if err != nil {
		return fail(StageScriptGenerated, start, err)
	}
	advance(StageScriptGenerated, start)

	// Images. Voice waits until at least one image exists.
	start = time.Now()
	prompts, refineSkips := p.RefinePrompts(ctx, sess, req.Topic, segments)
	images, imageSkips, err := p.Images.Synthesize(ctx, sess, prompts, req.Resolution)
	result.Images = images
	result.Skips = mergeSkips(refineSkips, imageSkips)
	if err != nil {
		return fail(StageImagesSynthesized, start, err)
	}
	advance(StageImagesSynthesized, start)

	// Voice.
	start = time.Now()
	audio, err := p.SynthesizeVoice(ctx, sess, script, req.Voice)
	result.Audio = audio
	if err != nil {
		return fail(StageVoiceSynthesized, start, err)
	}
	advance(StageVoiceSynthesized, start)

	// Video.
	start = time.Now()
	video, err := p.Assembler.Assemble(ctx, sess, images, audio, req.Resolution)
	if err != nil {
		return fail(StageVideoAssembled, start, err)
	}
	result.Video = video
	advance(StageVideoAssembled, start)

	result.Total = time.Since(runStart)
	result.Stage = StageDone
	logger.Info().
		Str("video", video.Path).
		Int("images", len(images)).
		Int("skipped", len(result.Skips)).
		Float64("durationSeconds", video.Duration).
		Dur("elapsed", result.Total).
		Msg("Video generation run complete")
	p.notify(ctx, sess, StageDone, result.Total, nil, result)

	return result, nil
}

// GenerateScript requests the narration, stores it as the session's script
// sidecar and splits it into segments.
func (p *Pipeline) GenerateScript(ctx context.Context, sess session.Context, topic Topic) (Script, []Segment, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	script, err := p.Writer.GenerateScript(callCtx, topic)
	if err != nil {
		return "", nil, upstreamError(StageScriptGenerated, "failed to generate script", err)
	}
	if strings.TrimSpace(string(script)) == "" {
		return script, nil, upstreamError(StageScriptGenerated, "script service returned empty content", nil)
	}

	if err := os.WriteFile(sess.ScriptPath(), []byte(script), 0644); err != nil {
		log.Warn().Err(err).Str("sessionId", sess.ID).Msg("Failed to write script sidecar")
	}

	segments := SplitScript(script)
	if len(segments) == 0 {
		return script, nil, &RunError{Kind: KindInsufficientContent, Stage: StageScriptGenerated, Message: "script produced no segments"}
	}

	log.Info().
		Str("sessionId", sess.ID).
		Int("scriptLength", len(script)).
		Int("segments", len(segments)).
		Msg("Script generated")
	return script, segments, nil
}

// RefinePrompts derives one prompt per segment. A refiner failure skips that
// segment, the same way a failed image request does.
func (p *Pipeline) RefinePrompts(ctx context.Context, sess session.Context, topic Topic, segments []Segment) ([]ImagePrompt, []Skip) {
	refiner := p.Refiner
	if refiner == nil {
		refiner = TemplateRefiner{}
	}

	prompts := make([]ImagePrompt, 0, len(segments))
	var skips []Skip
	for _, seg := range segments {
		if ctx.Err() != nil {
			break
		}
		callCtx, cancel := context.WithTimeout(ctx, p.timeout())
		prompt, err := refiner.Refine(callCtx, topic, seg)
		cancel()
		if err != nil {
			reason := SkipRefine
			if errors.Is(err, ErrContentPolicy) {
				reason = SkipContentPolicy
			}
			log.Warn().
				Err(err).
				Str("sessionId", sess.ID).
				Int("segment", seg.Number()).
				Msg("Prompt refinement failed, skipping segment")
			skips = append(skips, Skip{SegmentIndex: seg.Index, Reason: reason, Err: err})
			continue
		}
		prompt.SegmentIndex = seg.Index
		prompt.Text = EnsureNoTextClause(prompt.Text)
		prompts = append(prompts, prompt)
	}
	return prompts, skips
}

// SynthesizeVoice renders the whole script as one audio track.
func (p *Pipeline) SynthesizeVoice(ctx context.Context, sess session.Context, script Script, voice Voice) (AudioArtifact, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	audio, err := p.Voice.Synthesize(callCtx, sess, script, voice)
	if err != nil {
		return AudioArtifact{}, upstreamError(StageVoiceSynthesized, "failed to synthesize voice", err)
	}
	if audio.Path == "" {
		return AudioArtifact{}, upstreamError(StageVoiceSynthesized, "speech service returned no audio", nil)
	}
	return audio, nil
}

func (p *Pipeline) notify(ctx context.Context, sess session.Context, stage Stage, elapsed time.Duration, err error, result *Result) {
	if p.Observer == nil {
		return
	}
	p.Observer.OnStage(ctx, StageEvent{Session: sess, Stage: stage, Elapsed: elapsed, Err: err, Result: result})
}

func (p *Pipeline) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultServiceTimeout
	}
	return p.Timeout
}

func mergeSkips(a, b []Skip) []Skip {
	if len(a)+len(b) == 0 {
		return nil
	}
	merged := append(slices.Clone(a), b...)
	slices.SortStableFunc(merged, func(x, y Skip) int { return x.SegmentIndex - y.SegmentIndex })
	return merged
}

// truncate shortens s to at most maxLen bytes on a rune boundary, appending
// "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
