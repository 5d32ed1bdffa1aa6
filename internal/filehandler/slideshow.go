package filehandler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/metrics"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// Encoding settings for the rendered slideshow.
const (
	SlideshowVideoCodec = "libx264"
	SlideshowPreset     = "medium"
	SlideshowCRF        = 20
	SlideshowPixFmt     = "yuv420p"
	SlideshowAudioCodec = "aac"
	AudioBitrate        = "192k"
)

// FFmpegEncoder renders slideshow timelines with the ffmpeg concat demuxer.
type FFmpegEncoder struct {
	// Binary overrides the ffmpeg executable looked up in PATH.
	Binary string
}

// Encode implements slideshow.Encoder. The concat list is written to
// job.ListPath and the MP4 to job.OutputPath.
func (e FFmpegEncoder) Encode(ctx context.Context, job slideshow.EncodeJob) error {
	if len(job.Slots) == 0 {
		return fmt.Errorf("no slots to encode")
	}

	ffmpegPath := e.Binary
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}

	if err := os.WriteFile(job.ListPath, []byte(buildConcatList(job.Slots)), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	args := buildSlideshowArgs(job)
	log.Info().
		Int("slots", len(job.Slots)).
		Int("width", job.Width).
		Int("height", job.Height).
		Float64("duration_seconds", job.Duration).
		Str("output", filepath.Base(job.OutputPath)).
		Msg("Encoding slideshow video")
	log.Debug().Strs("args", args).Msg("Running ffmpeg")

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		log.Warn().
			Err(err).
			Str("ffmpeg_output", tail(string(output), 2000)).
			Dur("duration", elapsed).
			Msg("ffmpeg encode failed")
		metrics.New(metrics.Namespace).
			Latency("VideoEncodeMs", elapsed).
			Count("VideoEncodeErrors").
			Flush()
		return fmt.Errorf("ffmpeg encode failed: %w\nOutput: %s", err, tail(string(output), 2000))
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return fmt.Errorf("output video not found after encode: %w", err)
	}

	metrics.New(metrics.Namespace).
		Latency("VideoEncodeMs", elapsed).
		Metric("VideoSizeBytes", float64(info.Size()), metrics.UnitBytes).
		Count("VideoEncodes").
		Flush()

	log.Info().
		Str("output", filepath.Base(job.OutputPath)).
		Int64("size_bytes", info.Size()).
		Dur("encode_time", elapsed).
		Msg("Slideshow video encoded")
	return nil
}

// buildConcatList renders an ffconcat script. The last file is listed twice
// because the demuxer ignores the duration of the final entry.
func buildConcatList(slots []slideshow.Slot) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, slot := range slots {
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(slot.ImagePath))
		fmt.Fprintf(&b, "duration %.6f\n", slot.Duration())
	}
	if len(slots) > 0 {
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(slots[len(slots)-1].ImagePath))
	}
	return b.String()
}

// quoteConcatPath single-quotes a path for the concat demuxer.
func quoteConcatPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// buildSlideshowArgs constructs the ffmpeg arguments for one EncodeJob.
// Every image is letterboxed into the target frame.
func buildSlideshowArgs(job slideshow.EncodeJob) []string {
	fps := job.FPS
	if fps <= 0 {
		fps = slideshow.DefaultFPS
	}
	w, h := job.Width, job.Height
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%d,format=%s",
		w, h, w, h, fps, SlideshowPixFmt)

	args := []string{
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", job.ListPath,
		"-i", job.AudioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-vf", filter,
		"-c:v", SlideshowVideoCodec,
		"-preset", SlideshowPreset,
		"-crf", strconv.Itoa(SlideshowCRF),
		"-pix_fmt", SlideshowPixFmt,
		"-r", strconv.Itoa(fps),
		"-c:a", SlideshowAudioCodec,
		"-b:a", AudioBitrate,
	}
	if job.Duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", job.Duration))
	} else {
		args = append(args, "-shortest")
	}
	args = append(args,
		"-movflags", "+faststart",
		"-y", job.OutputPath,
	)
	return args
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
