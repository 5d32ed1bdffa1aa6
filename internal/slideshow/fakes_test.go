package slideshow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/ai-video-generator/internal/session"
)

// testPNG returns a tiny valid PNG.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// numberedScript builds a script of n sentences "Sentence 01 ..." so that
// every segment carries a unique marker.
func numberedScript(n int) Script {
	var parts []string
	for i := 1; i <= n; i++ {
		parts = append(parts, fmt.Sprintf("Sentence %02d about photosynthesis.", i))
	}
	return Script(strings.Join(parts, " "))
}

func marker(number int) string { return fmt.Sprintf("Sentence %02d", number) }

type fakeWriter struct {
	script Script
	err    error
	calls  int
}

func (f *fakeWriter) GenerateScript(_ context.Context, _ Topic) (Script, error) {
	f.calls++
	return f.script, f.err
}

// fakeImages fails any prompt containing a marker listed in fail.
type fakeImages struct {
	data  []byte
	mime  string
	fail  map[string]error
	delay func(prompt string) time.Duration

	mu      sync.Mutex
	prompts []string
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string, _ Resolution) (*GeneratedImage, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(prompt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for m, err := range f.fail {
		if strings.Contains(prompt, m) {
			return nil, err
		}
	}
	mime := f.mime
	if mime == "" {
		mime = "image/png"
	}
	return &GeneratedImage{Data: f.data, MIMEType: mime}, nil
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeVoice struct {
	duration float64
	err      error
	calls    int
}

func (f *fakeVoice) Synthesize(_ context.Context, sess session.Context, _ Script, _ Voice) (AudioArtifact, error) {
	f.calls++
	if f.err != nil {
		return AudioArtifact{}, f.err
	}
	path := sess.AudioPath()
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		return AudioArtifact{}, err
	}
	return AudioArtifact{Path: path, MIMEType: "audio/wav", Duration: f.duration}, nil
}

type fakeEncoder struct {
	err   error
	calls int
	jobs  []EncodeJob
}

func (f *fakeEncoder) Encode(_ context.Context, job EncodeJob) error {
	f.calls++
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(job.OutputPath, []byte("mp4"), 0644)
}

type fakeRefiner struct {
	fail map[int]error
}

func (f *fakeRefiner) Refine(_ context.Context, topic Topic, seg Segment) (ImagePrompt, error) {
	if err, ok := f.fail[seg.Index]; ok {
		return ImagePrompt{}, err
	}
	return ImagePrompt{SegmentIndex: seg.Index, Text: "rewritten: " + seg.Text}, nil
}

var errUpstream = errors.New("service unavailable")

type recordingObserver struct {
	mu     sync.Mutex
	events []StageEvent
}

func (r *recordingObserver) OnStage(_ context.Context, ev StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Stage
	for _, ev := range r.events {
		out = append(out, ev.Stage)
	}
	return out
}

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
