// Package slideshow turns a topic into a narrated slideshow video: a script is
// generated, split into segments, one image is synthesized per segment, a
// single voice track is synthesized for the whole script, and the surviving
// images are laid out in equal time slots under that track.
//
// The external services are reached through the interfaces in this package so
// that each stage can be exercised with deterministic fakes.
package slideshow

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpang/ai-video-generator/internal/session"
)

// Topic is the user's free-text subject for the video.
type Topic string

// Validate requires the topic to be non-empty after trimming.
func (t Topic) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return &RunError{Kind: KindInvalidInput, Stage: StageIdle, Message: "topic must not be empty"}
	}
	return nil
}

// Script is the narration text exactly as returned by the text service.
type Script string

// Segment is one sentence or paragraph of the script. Index is its 0-based
// position in the split sequence.
type Segment struct {
	Index int
	Text  string
}

// Number is the 1-based position used in logs and file names.
func (s Segment) Number() int { return s.Index + 1 }

// ImagePrompt is the image-service instruction derived from one segment.
type ImagePrompt struct {
	SegmentIndex int
	Text         string
}

// GeneratedImage is the raw payload returned by an image backend.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

// ImageArtifact is a successfully generated image written to the session.
type ImageArtifact struct {
	SegmentIndex int
	Data         []byte
	MIMEType     string
	Path         string
}

// AudioArtifact is the narration track. Duration is in seconds.
type AudioArtifact struct {
	Path     string
	MIMEType string
	Duration float64
}

// Slot is the display interval of one image, [Start, End) in seconds.
type Slot struct {
	Position     int
	SegmentIndex int
	ImagePath    string
	Start        float64
	End          float64
}

func (s Slot) Duration() float64 { return s.End - s.Start }

// VideoOutput describes the assembled video file.
type VideoOutput struct {
	Path     string
	Duration float64
	Slots    []Slot
}

// SkipReason labels why a segment produced no image.
type SkipReason string

const (
	SkipContentPolicy SkipReason = "content_policy"
	SkipTimeout       SkipReason = "timeout"
	SkipUpstream      SkipReason = "upstream_error"
	SkipEmpty         SkipReason = "empty_response"
	SkipRefine        SkipReason = "refine_failed"
	SkipStorage       SkipReason = "storage_error"
)

// Skip is the recoverable per-segment outcome of image synthesis. It shortens
// the image sequence and is never returned as a run error.
type Skip struct {
	SegmentIndex int
	Reason       SkipReason
	Err          error
}

func (s Skip) String() string {
	if s.Err != nil {
		return fmt.Sprintf("segment %d skipped (%s): %v", s.SegmentIndex+1, s.Reason, s.Err)
	}
	return fmt.Sprintf("segment %d skipped (%s)", s.SegmentIndex+1, s.Reason)
}

// ScriptGenerator produces narration text for a topic.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, topic Topic) (Script, error)
}

// PromptRefiner turns a segment into an image prompt.
type PromptRefiner interface {
	Refine(ctx context.Context, topic Topic, seg Segment) (ImagePrompt, error)
}

// ImageGenerator issues one image request. Implementations wrap
// ErrContentPolicy when the service refuses the prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, res Resolution) (*GeneratedImage, error)
}

// VoiceSynthesizer renders the whole script into one audio track written
// inside the session directory.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, sess session.Context, script Script, voice Voice) (AudioArtifact, error)
}

// EncodeJob is everything an Encoder needs to render the video.
type EncodeJob struct {
	Slots      []Slot
	AudioPath  string
	OutputPath string
	ListPath   string
	Width      int
	Height     int
	FPS        int
	Duration   float64
}

// Encoder renders an EncodeJob into a video file.
type Encoder interface {
	Encode(ctx context.Context, job EncodeJob) error
}
