package slideshow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fpang/ai-video-generator/internal/session"
)

func promptsFor(n int) []ImagePrompt {
	var prompts []ImagePrompt
	for i := 0; i < n; i++ {
		seg := Segment{Index: i, Text: marker(i+1) + " about photosynthesis."}
		prompts = append(prompts, ImagePrompt{SegmentIndex: i, Text: TemplatePrompt("Photosynthesis", seg)})
	}
	return prompts
}

func segmentIndices(images []ImageArtifact) []int {
	var out []int
	for _, img := range images {
		out = append(out, img.SegmentIndex)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestImageSynthesizer_AllSucceed(t *testing.T) {
	sess := session.New(t.TempDir())
	gen := &fakeImages{data: testPNG(t)}
	synth := &ImageSynthesizer{Generator: gen}

	images, skips, err := synth.Synthesize(context.Background(), sess, promptsFor(10), ResolutionSquare)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skips) != 0 {
		t.Errorf("expected no skips, got %v", skips)
	}
	if !equalInts(segmentIndices(images), []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("unexpected order %v", segmentIndices(images))
	}
	for _, img := range images {
		want := sess.ImagePath(img.SegmentIndex+1, "png")
		if img.Path != want {
			t.Errorf("image path = %q, want %q", img.Path, want)
		}
		if _, err := os.Stat(img.Path); err != nil {
			t.Errorf("image file not written: %v", err)
		}
	}
}

func TestImageSynthesizer_SkipsPreserveOrder(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			sess := session.New(t.TempDir())
			gen := &fakeImages{
				data: testPNG(t),
				fail: map[string]error{
					marker(3): fmt.Errorf("blocked: %w", ErrContentPolicy),
					marker(7): fmt.Errorf("blocked: %w", ErrContentPolicy),
				},
			}
			synth := &ImageSynthesizer{Generator: gen, Concurrency: concurrency}

			images, skips, err := synth.Synthesize(context.Background(), sess, promptsFor(10), ResolutionSquare)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := segmentIndices(images); !equalInts(got, []int{0, 1, 3, 4, 5, 7, 8, 9}) {
				t.Errorf("image order = %v", got)
			}
			if len(skips) != 2 || skips[0].SegmentIndex != 2 || skips[1].SegmentIndex != 6 {
				t.Fatalf("unexpected skips %v", skips)
			}
			for _, s := range skips {
				if s.Reason != SkipContentPolicy {
					t.Errorf("skip reason = %s, want %s", s.Reason, SkipContentPolicy)
				}
			}
			if gen.callCount() != 10 {
				t.Errorf("expected 10 requests (no retries), got %d", gen.callCount())
			}
		})
	}
}

func TestImageSynthesizer_ParallelOrderIgnoresCompletionOrder(t *testing.T) {
	sess := session.New(t.TempDir())
	// Earlier segments finish last.
	gen := &fakeImages{
		data: testPNG(t),
		delay: func(prompt string) time.Duration {
			for i := 1; i <= 6; i++ {
				if strings.Contains(prompt, marker(i)) {
					return time.Duration(7-i) * 5 * time.Millisecond
				}
			}
			return 0
		},
	}
	synth := &ImageSynthesizer{Generator: gen, Concurrency: 6}

	images, _, err := synth.Synthesize(context.Background(), sess, promptsFor(6), ResolutionLandscape)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := segmentIndices(images); !equalInts(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("image order = %v, want segment order", got)
	}
}

func TestImageSynthesizer_AllFail(t *testing.T) {
	sess := session.New(t.TempDir())
	gen := &fakeImages{fail: map[string]error{"Sentence": errUpstream}}
	synth := &ImageSynthesizer{Generator: gen}

	images, skips, err := synth.Synthesize(context.Background(), sess, promptsFor(5), ResolutionSquare)
	if !IsInsufficientContent(err) {
		t.Fatalf("expected insufficient content error, got %v", err)
	}
	if err.Error() != "no images were generated; cannot build video" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if len(images) != 0 {
		t.Errorf("expected no images, got %d", len(images))
	}
	if len(skips) != 5 {
		t.Errorf("expected 5 skips, got %d", len(skips))
	}
	for _, s := range skips {
		if s.Reason != SkipUpstream || !errors.Is(s.Err, errUpstream) {
			t.Errorf("unexpected skip %v", s)
		}
	}
}

func TestImageSynthesizer_SkipReasons(t *testing.T) {
	sess := session.New(t.TempDir())
	gen := &fakeImages{
		data: testPNG(t),
		delay: func(prompt string) time.Duration {
			if strings.Contains(prompt, marker(2)) {
				return time.Second
			}
			return 0
		},
		fail: map[string]error{marker(3): errUpstream},
	}
	synth := &ImageSynthesizer{Generator: gen, Timeout: 20 * time.Millisecond}

	images, skips, err := synth.Synthesize(context.Background(), sess, promptsFor(3), ResolutionPortrait)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 1 || images[0].SegmentIndex != 0 {
		t.Fatalf("unexpected images %v", segmentIndices(images))
	}
	want := map[int]SkipReason{1: SkipTimeout, 2: SkipUpstream}
	for _, s := range skips {
		if want[s.SegmentIndex] != s.Reason {
			t.Errorf("segment %d: reason %s, want %s", s.SegmentIndex, s.Reason, want[s.SegmentIndex])
		}
	}
}

func TestImageSynthesizer_EmptyPayloadIsSkip(t *testing.T) {
	sess := session.New(t.TempDir())
	synth := &ImageSynthesizer{Generator: &fakeImages{data: nil}}

	_, skips, err := synth.Synthesize(context.Background(), sess, promptsFor(2), ResolutionSquare)
	if !IsInsufficientContent(err) {
		t.Fatalf("expected insufficient content error, got %v", err)
	}
	for _, s := range skips {
		if s.Reason != SkipEmpty {
			t.Errorf("reason = %s, want %s", s.Reason, SkipEmpty)
		}
	}
}

func TestExtensionForMIME(t *testing.T) {
	tests := map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpg",
		"image/webp": "webp",
		"":           "png",
	}
	for mime, want := range tests {
		if got := extensionForMIME(mime); got != want {
			t.Errorf("extensionForMIME(%q) = %q, want %q", mime, got, want)
		}
	}
}
