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

// Script generation parameters.
const (
	scriptTemperature     float32 = 0.5
	scriptMaxOutputTokens         = 1024
)

// ScriptWriter asks Gemini for a fact-based narration script.
type ScriptWriter struct {
	models    contentGenerator
	model     string
	sentences int
}

// NewScriptWriter creates a ScriptWriter using the given text model.
func NewScriptWriter(client *genai.Client, model string) *ScriptWriter {
	return newScriptWriter(client.Models, model)
}

func newScriptWriter(models contentGenerator, model string) *ScriptWriter {
	if model == "" {
		model = DefaultModelName
	}
	return &ScriptWriter{models: models, model: model, sentences: assets.DefaultScriptSentences}
}

// GenerateScript returns the model's narration text verbatim. One call, no retries.
func (w *ScriptWriter) GenerateScript(ctx context.Context, topic slideshow.Topic) (slideshow.Script, error) {
	prompt := assets.RenderScriptPrompt(string(topic), w.sentences)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemText(assets.ScriptSystemPrompt()),
		Temperature:       genai.Ptr(scriptTemperature),
		MaxOutputTokens:   scriptMaxOutputTokens,
		ThinkingConfig:    scriptThinking(w.model),
	}

	log.Debug().
		Str("model", w.model).
		Str("topic", truncateString(string(topic), 100)).
		Int("prompt_length", len(prompt)).
		Msg("Starting Gemini API call for script generation")

	callStart := time.Now()
	resp, err := w.models.GenerateContent(ctx, w.model, userText(prompt), config)
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Failed to generate script from Gemini")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("received empty response from Gemini API")
	}
	if err := checkBlocked(resp); err != nil {
		return "", err
	}
	if truncatedOutput(resp) {
		return "", fmt.Errorf("script was cut off at %d output tokens", scriptMaxOutputTokens)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini returned an empty script")
	}

	log.Info().
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("Script generated")

	return slideshow.Script(text), nil
}

// scriptThinking keeps thinking tokens out of the output budget. Gemini 3
// models cannot turn thinking off, so they get the minimal level.
func scriptThinking(model string) *genai.ThinkingConfig {
	if strings.HasPrefix(model, "gemini-3") {
		return &genai.ThinkingConfig{ThinkingLevel: genai.ThinkingLevelMinimal}
	}
	return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
}

// truncatedOutput reports whether the first candidate stopped at the token limit.
func truncatedOutput(resp *genai.GenerateContentResponse) bool {
	return len(resp.Candidates) > 0 && resp.Candidates[0] != nil &&
		resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens
}
