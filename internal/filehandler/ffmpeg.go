// Package filehandler wraps the ffmpeg and ffprobe binaries and the image
// checks that run before a slideshow is encoded.
package filehandler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const installHint = "Install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)"

// CheckFFmpegAvailable checks if ffmpeg is available in the system PATH.
// Returns nil if ffmpeg is available, or an error describing the issue.
func CheckFFmpegAvailable() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: videos cannot be assembled. %s", installHint)
	}
	log.Debug().Str("path", path).Msg("ffmpeg found")
	return nil
}

// CheckFFprobeAvailable checks if ffprobe is available in the system PATH.
func CheckFFprobeAvailable() error {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return fmt.Errorf("ffprobe not found in PATH: audio duration will be estimated. %s", installHint)
	}
	log.Debug().Str("path", path).Msg("ffprobe found")
	return nil
}

// IsFFprobeAvailable returns true if ffprobe is available in the system PATH.
func IsFFprobeAvailable() bool {
	return CheckFFprobeAvailable() == nil
}

// ProbeDuration returns the container duration of a media file in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath, probeDurationArgs(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, stderr.String())
	}

	duration, err := parseProbeDuration(string(output))
	if err != nil {
		return 0, err
	}
	log.Debug().Str("path", path).Float64("duration_seconds", duration).Msg("Media duration probed")
	return duration, nil
}

func probeDurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// parseProbeDuration parses ffprobe's bare duration output.
func parseProbeDuration(output string) (float64, error) {
	value := strings.TrimSpace(output)
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", value, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid duration %v", duration)
	}
	return duration, nil
}
