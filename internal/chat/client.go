// Package chat wraps the Gemini services used to produce a video: narration
// scripts, image prompt rewriting, image generation and speech synthesis.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// ErrContentPolicy marks requests refused by Gemini's safety filters.
var ErrContentPolicy = slideshow.ErrContentPolicy

// contentGenerator is the subset of *genai.Models used for text and audio.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// imageModels is the subset of *genai.Models used for Imagen.
type imageModels interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// userText wraps a single text prompt as a user turn.
func userText(text string) []*genai.Content {
	return []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}
}

// systemText builds a system instruction.
func systemText(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

// blockedFinishReasons are candidate finish reasons that mean the safety
// filters withheld the output.
var blockedFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:                 true,
	genai.FinishReason("PROHIBITED_CONTENT"): true,
	genai.FinishReason("BLOCKLIST"):          true,
	genai.FinishReason("SPII"):               true,
	genai.FinishReason("IMAGE_SAFETY"):       true,
}

// checkBlocked returns an ErrContentPolicy-wrapped error when the prompt or
// a candidate was blocked.
func checkBlocked(resp *genai.GenerateContentResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, ErrContentPolicy)
	}
	for _, c := range resp.Candidates {
		if c != nil && blockedFinishReasons[c.FinishReason] {
			return fmt.Errorf("response blocked (%s): %w", c.FinishReason, ErrContentPolicy)
		}
	}
	return nil
}

// classifyAPIError marks safety refusals reported as API errors.
func classifyAPIError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && isPolicyMessage(apiErr.Message) {
		return fmt.Errorf("%w: %w", ErrContentPolicy, err)
	}
	if isPolicyMessage(err.Error()) {
		return fmt.Errorf("%w: %w", ErrContentPolicy, err)
	}
	return err
}

func isPolicyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "safety") ||
		strings.Contains(lower, "responsible ai") ||
		strings.Contains(lower, "content policy") ||
		strings.Contains(lower, "prohibited")
}

// truncateString truncates a string to at most maxLen bytes without
// splitting a rune, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
