package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/auth"
)

// ResolveOutputDir creates dirPath when missing and returns its absolute path.
func ResolveOutputDir(dirPath string) (string, error) {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dirPath, err)
	}
	info, err := os.Stat(dirPath)
	if err != nil {
		return "", fmt.Errorf("failed to access output directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("output path %s is not a directory", dirPath)
	}

	if absPath, err := filepath.Abs(dirPath); err == nil {
		dirPath = absPath
	}
	return dirPath, nil
}

// HandleValidationError processes auth.ValidationError and exits with appropriate messaging.
func HandleValidationError(err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case auth.ErrTypeNoKey:
			log.Fatal().Msg("No API key configured. Set GEMINI_API_KEY or run scripts/setup-gpg-credentials.sh")
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	} else {
		log.Fatal().Err(err).Msg("unexpected error during API key validation")
	}
	os.Exit(1)
}
