package slideshow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/session"
)

// DefaultFPS is the output frame rate.
const DefaultFPS = 24

// Assembler lays images out on the audio timeline and hands the result to an
// Encoder. Every image is static and full-frame; there are no transitions.
type Assembler struct {
	Encoder Encoder
	// ValidateImage rejects image bytes that cannot be decoded. Nil skips
	// the check.
	ValidateImage func(data []byte) error
	FPS           int
}

// Assemble renders the video into the session directory.
func (a *Assembler) Assemble(ctx context.Context, sess session.Context, images []ImageArtifact, audio AudioArtifact, res Resolution) (VideoOutput, error) {
	if len(images) == 0 {
		return VideoOutput{}, assemblyError("no images to assemble", nil)
	}
	if audio.Path == "" {
		return VideoOutput{}, assemblyError("audio track has no file", nil)
	}

	for _, img := range images {
		if err := a.checkImage(img); err != nil {
			return VideoOutput{}, assemblyError(fmt.Sprintf("image for segment %d is unreadable", img.SegmentIndex+1), err)
		}
	}

	slots, err := PlanTimeline(images, audio.Duration)
	if err != nil {
		return VideoOutput{}, err
	}

	width, height := res.Dimensions()
	job := EncodeJob{
		Slots:      slots,
		AudioPath:  audio.Path,
		OutputPath: sess.VideoPath(),
		ListPath:   sess.ConcatListPath(),
		Width:      width,
		Height:     height,
		FPS:        a.fps(),
		Duration:   audio.Duration,
	}

	slotDuration, _ := SlotDuration(slots)
	log.Info().
		Str("sessionId", sess.ID).
		Int("slots", len(slots)).
		Float64("slotSeconds", slotDuration).
		Float64("audioSeconds", audio.Duration).
		Str("resolution", res.String()).
		Msg("Assembling video")

	start := time.Now()
	if err := a.Encoder.Encode(ctx, job); err != nil {
		return VideoOutput{}, assemblyError("failed to encode video", err)
	}

	log.Info().
		Str("sessionId", sess.ID).
		Str("path", job.OutputPath).
		Dur("duration", time.Since(start)).
		Msg("Video assembled")

	return VideoOutput{Path: job.OutputPath, Duration: audio.Duration, Slots: slots}, nil
}

func (a *Assembler) checkImage(img ImageArtifact) error {
	if img.Path == "" {
		return fmt.Errorf("image has no file")
	}
	data := img.Data
	if len(data) == 0 {
		var err error
		data, err = os.ReadFile(img.Path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("image file is empty")
	}
	if a.ValidateImage != nil {
		return a.ValidateImage(data)
	}
	return nil
}

func (a *Assembler) fps() int {
	if a.FPS <= 0 {
		return DefaultFPS
	}
	return a.FPS
}
