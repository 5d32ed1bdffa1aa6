package chat

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// PCM format returned by the Gemini TTS models.
const (
	defaultSampleRate = 24000
	pcmChannels       = 1
	pcmBitsPerSample  = 16
)

// DurationProbe measures the playable length of a media file in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// SpeechSynthesizer renders a whole script with a Gemini TTS model and
// stores it as a WAV file in the session directory.
type SpeechSynthesizer struct {
	models contentGenerator
	model  string
	probe  DurationProbe
}

// NewSpeechSynthesizer creates a synthesizer. probe may be nil, in which case
// the duration is computed from the PCM length.
func NewSpeechSynthesizer(client *genai.Client, model string, probe DurationProbe) *SpeechSynthesizer {
	return newSpeechSynthesizer(client.Models, model, probe)
}

func newSpeechSynthesizer(models contentGenerator, model string, probe DurationProbe) *SpeechSynthesizer {
	if model == "" {
		model = DefaultSpeechModel
	}
	return &SpeechSynthesizer{models: models, model: model, probe: probe}
}

// Synthesize implements slideshow.VoiceSynthesizer.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, sess session.Context, script slideshow.Script, voice slideshow.Voice) (slideshow.AudioArtifact, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice.APIName()},
			},
		},
	}

	log.Debug().
		Str("model", s.model).
		Str("voice", voice.APIName()).
		Int("script_length", len(script)).
		Msg("Starting Gemini speech synthesis")

	start := time.Now()
	resp, err := s.models.GenerateContent(ctx, s.model, userText(string(script)), config)
	if err != nil {
		return slideshow.AudioArtifact{}, fmt.Errorf("failed to synthesize speech: %w", classifyAPIError(err))
	}
	if resp == nil {
		return slideshow.AudioArtifact{}, fmt.Errorf("received empty response from Gemini API")
	}
	if err := checkBlocked(resp); err != nil {
		return slideshow.AudioArtifact{}, err
	}

	pcm, rate := extractPCM(resp)
	if len(pcm) == 0 {
		return slideshow.AudioArtifact{}, fmt.Errorf("Gemini returned no audio")
	}

	path := sess.AudioPath()
	if err := os.WriteFile(path, wavBytes(pcm, rate), 0644); err != nil {
		return slideshow.AudioArtifact{}, fmt.Errorf("failed to write audio file: %w", err)
	}

	duration := pcmDuration(len(pcm), rate)
	if s.probe != nil {
		probed, err := s.probe(ctx, path)
		if err != nil {
			log.Warn().Err(err).Float64("fallback_seconds", duration).Msg("Audio probe failed, using PCM length")
		} else if probed > 0 {
			duration = probed
		}
	}

	log.Info().
		Str("path", path).
		Int("pcm_bytes", len(pcm)).
		Float64("duration_seconds", duration).
		Dur("elapsed", time.Since(start)).
		Msg("Voiceover synthesized")

	return slideshow.AudioArtifact{Path: path, MIMEType: "audio/wav", Duration: duration}, nil
}

// extractPCM concatenates the inline audio parts of the first candidate that
// carries any.
func extractPCM(resp *genai.GenerateContentResponse) ([]byte, int) {
	rate := defaultSampleRate
	var pcm []byte
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part == nil || part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
				continue
			}
			if r := sampleRate(part.InlineData.MIMEType); r > 0 {
				rate = r
			}
			pcm = append(pcm, part.InlineData.Data...)
		}
		if len(pcm) > 0 {
			break
		}
	}
	return pcm, rate
}

// sampleRate parses "rate=NNNN" from a MIME type such as
// "audio/L16;codec=pcm;rate=24000". Returns 0 when absent.
func sampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || key != "rate" {
			continue
		}
		if r, err := strconv.Atoi(value); err == nil {
			return r
		}
	}
	return 0
}

func pcmDuration(n, rate int) float64 {
	bytesPerSecond := rate * pcmChannels * pcmBitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(n) / float64(bytesPerSecond)
}

// wavBytes prefixes raw little-endian PCM with a canonical 44-byte RIFF header.
func wavBytes(pcm []byte, rate int) []byte {
	blockAlign := pcmChannels * pcmBitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
