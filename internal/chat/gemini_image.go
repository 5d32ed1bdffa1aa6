package chat

// gemini_image.go generates images with a Gemini image model through
// generateContent. The aspect ratio is set through ImageConfig and a response
// without an image part is read as a safety refusal.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// GeminiImageClient implements slideshow.ImageGenerator with a Gemini image model.
type GeminiImageClient struct {
	models contentGenerator
	model  string
}

// NewGeminiImageClient creates a new client for Gemini image generation.
func NewGeminiImageClient(client *genai.Client, model string) *GeminiImageClient {
	return newGeminiImageClient(client.Models, model)
}

func newGeminiImageClient(models contentGenerator, model string) *GeminiImageClient {
	if model == "" {
		model = DefaultGeminiImageName
	}
	return &GeminiImageClient{models: models, model: model}
}

// GenerateImage implements slideshow.ImageGenerator.
func (c *GeminiImageClient) GenerateImage(ctx context.Context, prompt string, res slideshow.Resolution) (*slideshow.GeneratedImage, error) {
	startTime := time.Now()
	log.Debug().
		Str("model", c.model).
		Str("aspect_ratio", res.AspectRatio()).
		Str("prompt", truncateString(prompt, 100)).
		Msg("Sending prompt to Gemini for image generation")

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
		ImageConfig:        &genai.ImageConfig{AspectRatio: res.AspectRatio()},
	}

	resp, err := c.models.GenerateContent(ctx, c.model, userText(prompt), config)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(startTime)).Msg("Gemini image request failed")
		return nil, fmt.Errorf("gemini image request failed: %w", classifyAPIError(err))
	}
	if resp == nil {
		return nil, fmt.Errorf("received empty response from Gemini API")
	}
	if err := checkBlocked(resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	var finishReasons []string
	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		if candidate.FinishReason != "" {
			finishReasons = append(finishReasons, string(candidate.FinishReason))
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if blob := part.InlineData; blob != nil && strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
				log.Debug().
					Int("output_bytes", len(blob.Data)).
					Str("output_mime", blob.MIMEType).
					Dur("duration", time.Since(startTime)).
					Msg("Gemini image generation complete")
				return &slideshow.GeneratedImage{Data: blob.Data, MIMEType: blob.MIMEType}, nil
			}
			text.WriteString(part.Text)
		}
	}

	return nil, fmt.Errorf("no image returned (finish: %s, text: %s): %w",
		strings.Join(finishReasons, ","), truncateString(text.String(), 200), ErrContentPolicy)
}
