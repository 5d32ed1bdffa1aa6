package slideshow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/ai-video-generator/internal/session"
)

// DefaultServiceTimeout bounds every external call when no timeout is configured.
const DefaultServiceTimeout = 120 * time.Second

// ImageSynthesizer issues one image request per prompt and tolerates
// per-segment failures. Output order always follows segment order.
type ImageSynthesizer struct {
	Generator ImageGenerator
	// Concurrency is the number of requests in flight; values below 2 run
	// the requests one after another.
	Concurrency int
	// Timeout bounds each individual request.
	Timeout time.Duration
}

type imageOutcome struct {
	artifact *ImageArtifact
	skip     *Skip
}

// Synthesize generates, writes and returns the images that succeeded. Failed
// segments are reported as skips. When nothing survives, the returned error
// is an insufficient-content RunError and the skips are still returned. If
// ctx itself ends, the run fails with an upstream RunError instead.
func (s *ImageSynthesizer) Synthesize(ctx context.Context, sess session.Context, prompts []ImagePrompt, res Resolution) ([]ImageArtifact, []Skip, error) {
	logger := log.With().Str("sessionId", sess.ID).Logger()

	if err := sess.Ensure(); err != nil {
		return nil, nil, &RunError{Kind: KindAssembly, Stage: StageImagesSynthesized, Message: "failed to prepare session directory", Err: err}
	}

	logger.Info().
		Int("prompts", len(prompts)).
		Int("concurrency", s.concurrency()).
		Str("resolution", res.String()).
		Msg("Starting image synthesis")

	outcomes := make([]imageOutcome, len(prompts))
	if s.concurrency() <= 1 {
		for i, p := range prompts {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = s.generateOne(ctx, sess, p, res)
		}
	} else {
		// Each goroutine owns one slot of outcomes, so completion order
		// cannot leak into the result order.
		var g errgroup.Group
		g.SetLimit(s.concurrency())
		for i, p := range prompts {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				outcomes[i] = s.generateOne(ctx, sess, p, res)
				return nil
			})
		}
		_ = g.Wait()
	}

	// A cancelled run is not a per-segment failure.
	if err := ctx.Err(); err != nil {
		logger.Warn().Err(err).Msg("Image synthesis interrupted")
		return nil, nil, upstreamError(StageImagesSynthesized, "image synthesis interrupted", err)
	}

	var images []ImageArtifact
	var skips []Skip
	for _, o := range outcomes {
		switch {
		case o.artifact != nil:
			images = append(images, *o.artifact)
		case o.skip != nil:
			skips = append(skips, *o.skip)
		}
	}

	logger.Info().
		Int("generated", len(images)).
		Int("skipped", len(skips)).
		Msg("Image synthesis complete")

	if len(images) == 0 {
		return nil, skips, &RunError{
			Kind:    KindInsufficientContent,
			Stage:   StageImagesSynthesized,
			Message: insufficientImagesMessage,
		}
	}
	return images, skips, nil
}

func (s *ImageSynthesizer) generateOne(ctx context.Context, sess session.Context, p ImagePrompt, res Resolution) imageOutcome {
	number := p.SegmentIndex + 1
	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	img, err := s.Generator.GenerateImage(callCtx, p.Text, res)
	if err != nil {
		return skipOutcome(sess, p.SegmentIndex, classifySkip(err), err)
	}
	if img == nil || len(img.Data) == 0 {
		return skipOutcome(sess, p.SegmentIndex, SkipEmpty, errors.New("image service returned no image data"))
	}

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	path := sess.ImagePath(number, extensionForMIME(mimeType))
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return skipOutcome(sess, p.SegmentIndex, SkipStorage, fmt.Errorf("failed to write image: %w", err))
	}

	log.Debug().
		Str("sessionId", sess.ID).
		Int("segment", number).
		Int("bytes", len(img.Data)).
		Str("mime", mimeType).
		Dur("duration", time.Since(start)).
		Msg("Image generated")

	return imageOutcome{artifact: &ImageArtifact{
		SegmentIndex: p.SegmentIndex,
		Data:         img.Data,
		MIMEType:     mimeType,
		Path:         path,
	}}
}

func skipOutcome(sess session.Context, index int, reason SkipReason, err error) imageOutcome {
	log.Warn().
		Err(err).
		Str("sessionId", sess.ID).
		Int("segment", index+1).
		Str("reason", string(reason)).
		Msg("Image generation failed, skipping segment")
	return imageOutcome{skip: &Skip{SegmentIndex: index, Reason: reason, Err: err}}
}

func classifySkip(err error) SkipReason {
	switch {
	case errors.Is(err, ErrContentPolicy):
		return SkipContentPolicy
	case errors.Is(err, context.DeadlineExceeded):
		return SkipTimeout
	default:
		return SkipUpstream
	}
}

func (s *ImageSynthesizer) concurrency() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

func (s *ImageSynthesizer) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultServiceTimeout
	}
	return s.Timeout
}

func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
