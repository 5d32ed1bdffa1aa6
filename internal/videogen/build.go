// Package videogen wires the slideshow pipeline to its Gemini services, the
// ffmpeg encoder and the optional AWS publishing targets, and runs a
// complete topic-to-video job.
package videogen

import (
	"google.golang.org/genai"

	"github.com/fpang/ai-video-generator/internal/chat"
	"github.com/fpang/ai-video-generator/internal/config"
	"github.com/fpang/ai-video-generator/internal/filehandler"
	"github.com/fpang/ai-video-generator/internal/logging"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// StartupSettings summarises cfg for the startup log.
func StartupSettings(cfg *config.Config) logging.Generation {
	return logging.Generation{
		ImageBackend:   cfg.ImageBackend,
		TextModel:      cfg.Models.Text,
		ImageModel:     cfg.ImageModel(),
		SpeechModel:    cfg.Models.Speech,
		Concurrency:    cfg.Concurrency,
		ServiceTimeout: cfg.ServiceTimeout,
		RefineWithLLM:  cfg.RefineWithLLM,
		Bundle:         cfg.Bundle,
		OutputDir:      cfg.OutputDir,
	}
}

// NewPipeline builds a pipeline from cfg on a shared Gemini client.
func NewPipeline(cfg *config.Config, client *genai.Client) *slideshow.Pipeline {
	var refiner slideshow.PromptRefiner = slideshow.TemplateRefiner{}
	if cfg.RefineWithLLM {
		refiner = chat.NewPromptRewriter(client, cfg.Models.Text)
	}

	var generator slideshow.ImageGenerator
	switch cfg.ImageBackend {
	case config.BackendGemini:
		generator = chat.NewGeminiImageClient(client, cfg.ImageModel())
	default:
		generator = chat.NewImagenGenerator(client, cfg.ImageModel())
	}

	return &slideshow.Pipeline{
		Writer:  chat.NewScriptWriter(client, cfg.Models.Text),
		Refiner: refiner,
		Images: &slideshow.ImageSynthesizer{
			Generator:   generator,
			Concurrency: cfg.Concurrency,
			Timeout:     cfg.ServiceTimeout,
		},
		Voice: chat.NewSpeechSynthesizer(client, cfg.Models.Speech, filehandler.ProbeDuration),
		Assembler: &slideshow.Assembler{
			Encoder:       filehandler.FFmpegEncoder{},
			ValidateImage: filehandler.ValidateImage,
			FPS:           cfg.FPS,
		},
		Timeout: cfg.ServiceTimeout,
	}
}
