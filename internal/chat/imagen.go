package chat

// imagen.go generates one image per prompt with Imagen through the genai SDK.
// The aspect ratio comes from the requested resolution.

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// ImagenGenerator implements slideshow.ImageGenerator with Imagen.
type ImagenGenerator struct {
	models imageModels
	model  string
}

// NewImagenGenerator creates a generator for the given Imagen model.
func NewImagenGenerator(client *genai.Client, model string) *ImagenGenerator {
	return newImagenGenerator(client.Models, model)
}

func newImagenGenerator(models imageModels, model string) *ImagenGenerator {
	if model == "" {
		model = DefaultImagenModel
	}
	return &ImagenGenerator{models: models, model: model}
}

// GenerateImage requests a single image. A response withheld by the safety
// filters is reported as ErrContentPolicy.
func (g *ImagenGenerator) GenerateImage(ctx context.Context, prompt string, res slideshow.Resolution) (*slideshow.GeneratedImage, error) {
	startTime := time.Now()
	log.Debug().
		Str("model", g.model).
		Str("aspect_ratio", res.AspectRatio()).
		Str("prompt", truncateString(prompt, 100)).
		Msg("GenerateImage: Starting Imagen API call")

	resp, err := g.models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages:   1,
		AspectRatio:      res.AspectRatio(),
		IncludeRAIReason: true,
	})
	if err != nil {
		return nil, fmt.Errorf("imagen request failed: %w", classifyAPIError(err))
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("imagen returned no images: %w", ErrContentPolicy)
	}

	generated := resp.GeneratedImages[0]
	if generated.RAIFilteredReason != "" {
		return nil, fmt.Errorf("imagen filtered the prompt (%s): %w", truncateString(generated.RAIFilteredReason, 200), ErrContentPolicy)
	}
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		return nil, fmt.Errorf("imagen returned an empty image")
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}

	log.Debug().
		Int("output_bytes", len(generated.Image.ImageBytes)).
		Str("output_mime", mimeType).
		Dur("duration", time.Since(startTime)).
		Msg("Imagen generation complete")

	return &slideshow.GeneratedImage{Data: generated.Image.ImageBytes, MIMEType: mimeType}, nil
}
