package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/ai-video-generator/internal/assets"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

const rewriteTemperature float32 = 0.4

// PromptRewriter asks Gemini to turn the templated prompt into a cleaner
// visual description. The no-text clause is re-appended when the model drops it.
type PromptRewriter struct {
	models contentGenerator
	model  string
}

// NewPromptRewriter creates a PromptRewriter using the given text model.
func NewPromptRewriter(client *genai.Client, model string) *PromptRewriter {
	return newPromptRewriter(client.Models, model)
}

func newPromptRewriter(models contentGenerator, model string) *PromptRewriter {
	if model == "" {
		model = DefaultModelName
	}
	return &PromptRewriter{models: models, model: model}
}

// Refine implements slideshow.PromptRefiner.
func (r *PromptRewriter) Refine(ctx context.Context, topic slideshow.Topic, seg slideshow.Segment) (slideshow.ImagePrompt, error) {
	base := slideshow.TemplatePrompt(topic, seg)
	request := assets.RenderRefinePrompt(assets.RefinePromptData{
		Topic:   string(topic),
		Number:  seg.Number(),
		Segment: seg.Text,
		Prompt:  base,
	})

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemText(assets.RefineSystemPrompt),
		Temperature:       genai.Ptr(rewriteTemperature),
	}

	start := time.Now()
	resp, err := r.models.GenerateContent(ctx, r.model, userText(request), config)
	if err != nil {
		return slideshow.ImagePrompt{}, fmt.Errorf("failed to rewrite prompt: %w", classifyAPIError(err))
	}
	if resp == nil {
		return slideshow.ImagePrompt{}, fmt.Errorf("received empty response from Gemini API")
	}
	if err := checkBlocked(resp); err != nil {
		return slideshow.ImagePrompt{}, err
	}

	text := cleanRewrite(resp.Text())
	if text == "" {
		return slideshow.ImagePrompt{}, fmt.Errorf("Gemini returned an empty prompt")
	}

	log.Debug().
		Int("segment", seg.Number()).
		Str("prompt", truncateString(text, 120)).
		Dur("duration", time.Since(start)).
		Msg("Image prompt rewritten")

	return slideshow.ImagePrompt{SegmentIndex: seg.Index, Text: slideshow.EnsureNoTextClause(text)}, nil
}

// cleanRewrite strips the markdown fences and surrounding quotes the model
// sometimes wraps a bare prompt in.
func cleanRewrite(text string) string {
	text = stripMarkdownFences(text)
	text = strings.TrimSpace(text)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

// stripMarkdownFences removes ```lang ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.Join(lines[1:endIdx], "\n")
}
