package slideshow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fpang/ai-video-generator/internal/session"
)

type testRig struct {
	writer   *fakeWriter
	images   *fakeImages
	voice    *fakeVoice
	encoder  *fakeEncoder
	observer *recordingObserver
	pipeline *Pipeline
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	r := &testRig{
		writer:   &fakeWriter{script: numberedScript(10)},
		images:   &fakeImages{data: testPNG(t)},
		voice:    &fakeVoice{duration: 60},
		encoder:  &fakeEncoder{},
		observer: &recordingObserver{},
	}
	r.pipeline = &Pipeline{
		Writer:    r.writer,
		Images:    &ImageSynthesizer{Generator: r.images},
		Voice:     r.voice,
		Assembler: &Assembler{Encoder: r.encoder},
		Observer:  r.observer,
	}
	return r
}

func photosynthesisRequest() Request {
	return Request{Topic: "The process of photosynthesis", Resolution: ResolutionSquare, Voice: VoiceNarrator}
}

func TestPipeline_AllImagesSucceed(t *testing.T) {
	rig := newRig(t)
	sess := session.New(t.TempDir())

	result, err := rig.pipeline.Run(context.Background(), sess, photosynthesisRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stage != StageDone {
		t.Errorf("final stage = %s, want done", result.Stage)
	}
	if len(result.Segments) != 10 {
		t.Fatalf("expected 10 segments, got %d", len(result.Segments))
	}
	if len(result.Video.Slots) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(result.Video.Slots))
	}
	for i, s := range result.Video.Slots {
		if !approxEqual(s.Duration(), 6.0) {
			t.Errorf("slot %d duration = %v, want 6.0", i, s.Duration())
		}
	}
	if !approxEqual(result.Video.Duration, 60) {
		t.Errorf("video duration = %v, want 60", result.Video.Duration)
	}
	if len(result.Video.Slots) != len(result.Images) {
		t.Errorf("slots (%d) != images (%d)", len(result.Video.Slots), len(result.Images))
	}
	if result.Video.Path != sess.VideoPath() {
		t.Errorf("video path = %q, want %q", result.Video.Path, sess.VideoPath())
	}

	job := rig.encoder.jobs[0]
	if job.Width != 1024 || job.Height != 1024 || job.FPS != DefaultFPS {
		t.Errorf("unexpected encode job %+v", job)
	}

	script, err := os.ReadFile(sess.ScriptPath())
	if err != nil {
		t.Fatalf("script sidecar missing: %v", err)
	}
	if Script(script) != rig.writer.script {
		t.Error("script sidecar does not match script")
	}
}

func TestPipeline_ContentPolicySkips(t *testing.T) {
	rig := newRig(t)
	rig.images.fail = map[string]error{
		marker(3): fmt.Errorf("rai filtered: %w", ErrContentPolicy),
		marker(7): fmt.Errorf("rai filtered: %w", ErrContentPolicy),
	}
	sess := session.New(t.TempDir())

	result, err := rig.pipeline.Run(context.Background(), sess, photosynthesisRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var numbers []int
	for _, s := range result.Video.Slots {
		numbers = append(numbers, s.SegmentIndex+1)
		if !approxEqual(s.Duration(), 7.5) {
			t.Errorf("slot duration = %v, want 7.5", s.Duration())
		}
	}
	if want := []int{1, 2, 4, 5, 6, 8, 9, 10}; !reflect.DeepEqual(numbers, want) {
		t.Errorf("slot segments = %v, want %v", numbers, want)
	}
	if len(result.Skips) != 2 {
		t.Errorf("expected 2 skips, got %d", len(result.Skips))
	}
}

func TestPipeline_AllImagesFail(t *testing.T) {
	rig := newRig(t)
	rig.images.fail = map[string]error{"Sentence": fmt.Errorf("blocked: %w", ErrContentPolicy)}
	sess := session.New(t.TempDir())

	result, err := rig.pipeline.Run(context.Background(), sess, photosynthesisRequest())
	if !IsInsufficientContent(err) {
		t.Fatalf("expected insufficient content error, got %v", err)
	}
	if result.Stage != StageIdle {
		t.Errorf("stage after failure = %s, want idle", result.Stage)
	}
	if rig.encoder.calls != 0 {
		t.Error("assembler must not be invoked when no images exist")
	}
	if rig.voice.calls != 0 {
		t.Error("voice must not be synthesized when no images exist")
	}
	if _, err := os.Stat(sess.VideoPath()); !os.IsNotExist(err) {
		t.Error("no video file should be produced")
	}
	if len(result.Skips) != 10 {
		t.Errorf("expected 10 skips, got %d", len(result.Skips))
	}
}

func TestPipeline_FatalErrors(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(r *testRig)
		req       Request
		check     func(error) bool
		failStage Stage
	}{
		{
			name:      "script service failure",
			setup:     func(r *testRig) { r.writer.err = errUpstream },
			req:       photosynthesisRequest(),
			check:     IsUpstream,
			failStage: StageScriptGenerated,
		},
		{
			name:      "empty script",
			setup:     func(r *testRig) { r.writer.script = "   " },
			req:       photosynthesisRequest(),
			check:     IsUpstream,
			failStage: StageScriptGenerated,
		},
		{
			name:      "voice failure",
			setup:     func(r *testRig) { r.voice.err = errUpstream },
			req:       photosynthesisRequest(),
			check:     IsUpstream,
			failStage: StageVoiceSynthesized,
		},
		{
			name:      "zero audio duration",
			setup:     func(r *testRig) { r.voice.duration = 0 },
			req:       photosynthesisRequest(),
			check:     IsAssembly,
			failStage: StageVideoAssembled,
		},
		{
			name:      "encoder failure",
			setup:     func(r *testRig) { r.encoder.err = errors.New("ffmpeg exited 1") },
			req:       photosynthesisRequest(),
			check:     IsAssembly,
			failStage: StageVideoAssembled,
		},
		{
			name:      "blank topic",
			setup:     func(r *testRig) {},
			req:       Request{Topic: "  ", Resolution: ResolutionSquare, Voice: VoiceNarrator},
			check:     IsInvalidInput,
			failStage: StageScriptGenerated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newRig(t)
			tt.setup(rig)
			sess := session.New(t.TempDir())

			result, err := rig.pipeline.Run(context.Background(), sess, tt.req)
			if !tt.check(err) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			if result.Stage != StageIdle {
				t.Errorf("stage after failure = %s, want idle", result.Stage)
			}

			events := rig.observer.events
			if len(events) == 0 {
				t.Fatal("observer received no events")
			}
			last := events[len(events)-1]
			if last.Err == nil || last.Stage != tt.failStage {
				t.Errorf("last event = %s (err %v), want failure at %s", last.Stage, last.Err, tt.failStage)
			}
		})
	}
}

func TestPipeline_UpstreamErrorUnwraps(t *testing.T) {
	rig := newRig(t)
	rig.writer.err = errUpstream

	_, err := rig.pipeline.Run(context.Background(), session.New(t.TempDir()), photosynthesisRequest())
	if !errors.Is(err, errUpstream) {
		t.Errorf("expected wrapped upstream cause, got %v", err)
	}
	if rig.writer.calls != 1 {
		t.Errorf("script generator called %d times, want exactly 1", rig.writer.calls)
	}
}

func TestPipeline_CancelledRunIsNotSkipped(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		ctx         func() (context.Context, context.CancelFunc)
		cause       error
		maxCalls    int
	}{
		{
			name:        "deadline during sequential images",
			concurrency: 1,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			cause:    context.DeadlineExceeded,
			maxCalls: 1,
		},
		{
			name:        "deadline during parallel images",
			concurrency: 4,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			cause:    context.DeadlineExceeded,
			maxCalls: 4,
		},
		{
			name:        "cancelled before images",
			concurrency: 1,
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			cause:    context.Canceled,
			maxCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newRig(t)
			rig.images.delay = func(string) time.Duration { return time.Hour }
			rig.pipeline.Images.Concurrency = tt.concurrency
			ctx, cancel := tt.ctx()
			defer cancel()

			result, err := rig.pipeline.Run(ctx, session.New(t.TempDir()), photosynthesisRequest())
			if !IsUpstream(err) {
				t.Fatalf("expected upstream error, got %v", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("expected %v in chain, got %v", tt.cause, err)
			}
			var runErr *RunError
			if errors.As(err, &runErr) && runErr.Stage != StageImagesSynthesized {
				t.Errorf("failure stage = %s, want images_synthesized", runErr.Stage)
			}
			if len(result.Skips) != 0 {
				t.Errorf("cancellation must not produce skips, got %v", result.Skips)
			}
			if got := rig.images.callCount(); got > tt.maxCalls {
				t.Errorf("image requests = %d, want at most %d", got, tt.maxCalls)
			}
			if rig.voice.calls != 0 {
				t.Error("voice must not run after cancellation")
			}
		})
	}
}

func TestPipeline_ObserverStageOrder(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.pipeline.Run(context.Background(), session.New(t.TempDir()), photosynthesisRequest()); err != nil {
		t.Fatal(err)
	}
	want := []Stage{StageScriptGenerated, StageImagesSynthesized, StageVoiceSynthesized, StageVideoAssembled, StageDone}
	if got := rig.observer.stages(); !reflect.DeepEqual(got, want) {
		t.Errorf("stages = %v, want %v", got, want)
	}
}

func TestPipeline_RefinerFailuresBecomeSkips(t *testing.T) {
	rig := newRig(t)
	rig.pipeline.Refiner = &fakeRefiner{fail: map[int]error{0: errUpstream, 4: fmt.Errorf("x: %w", ErrContentPolicy)}}
	sess := session.New(t.TempDir())

	result, err := rig.pipeline.Run(context.Background(), sess, photosynthesisRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Images) != 8 {
		t.Errorf("expected 8 images, got %d", len(result.Images))
	}
	if len(result.Skips) != 2 || result.Skips[0].Reason != SkipRefine || result.Skips[1].Reason != SkipContentPolicy {
		t.Errorf("unexpected skips %v", result.Skips)
	}
	for _, p := range rig.images.prompts {
		if !containsClause(p) {
			t.Errorf("prompt missing no-text clause: %q", p)
		}
	}
}

func containsClause(p string) bool {
	return len(p) >= len(NoTextClause) && p[len(p)-len(NoTextClause):] == NoTextClause
}

func TestPipeline_ConcurrentRunsIsolated(t *testing.T) {
	root := t.TempDir()
	const runs = 4

	var wg sync.WaitGroup
	results := make([]*Result, runs)
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rig := newRig(t)
			results[i], errs[i] = rig.pipeline.Run(context.Background(), session.New(root), photosynthesisRequest())
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < runs; i++ {
		if errs[i] != nil {
			t.Fatalf("run %d failed: %v", i, errs[i])
		}
		for _, p := range []string{results[i].Audio.Path, results[i].Video.Path} {
			if seen[p] {
				t.Errorf("path %s produced by more than one run", p)
			}
			seen[p] = true
		}
	}
}

func TestPipeline_MissingComponents(t *testing.T) {
	p := &Pipeline{}
	_, err := p.Run(context.Background(), session.New(t.TempDir()), photosynthesisRequest())
	if err == nil {
		t.Fatal("expected error for unconfigured pipeline")
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", photosynthesisRequest(), false},
		{"empty topic", Request{}, true},
		{"bad resolution", Request{Topic: "x", Resolution: Resolution(9)}, true},
		{"bad voice", Request{Topic: "x", Voice: Voice(-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsInvalidInput(err) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"photosynthesis", 20, "photosynthesis"},
		{"photosynthesis", 5, "photo..."},
		{"Ça va", 1, "..."},
		{"Ça va", 2, "Ç..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
