// Package bundle packs a session's script, narration and video into a single
// ZIP archive compressed with Zstandard.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/session"
)

// MethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const MethodZstd uint16 = 93

// Level 12 maps to SpeedBestCompression in klauspost/compress.
const zstdLevel = 12

var registerOnce sync.Once

// register installs the zstd compressor and decompressor for archive/zip.
func register() {
	registerOnce.Do(func() {
		zip.RegisterCompressor(MethodZstd, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdLevel)))
		})
		zip.RegisterDecompressor(MethodZstd, func(r io.Reader) io.ReadCloser {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return io.NopCloser(errReader{err})
			}
			return dec.IOReadCloser()
		})
	})
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// Write creates sess.BundlePath() holding the session's script, audio and
// video. The script is optional; a missing audio or video file is an error.
// It returns the bundle size in bytes.
func Write(sess session.Context) (int64, error) {
	register()

	files := []struct {
		path     string
		optional bool
	}{
		{sess.ScriptPath(), true},
		{sess.AudioPath(), false},
		{sess.VideoPath(), false},
	}

	out, err := os.Create(sess.BundlePath())
	if err != nil {
		return 0, fmt.Errorf("failed to create bundle: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addFile(zw, f.path); err != nil {
			if f.optional && errors.Is(err, os.ErrNotExist) {
				continue
			}
			zw.Close()
			out.Close()
			os.Remove(sess.BundlePath())
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to finalize bundle: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close bundle: %w", err)
	}

	info, err := os.Stat(sess.BundlePath())
	if err != nil {
		return 0, fmt.Errorf("failed to stat bundle: %w", err)
	}
	log.Info().
		Str("sessionId", sess.ID).
		Str("path", sess.BundlePath()).
		Int64("size_bytes", info.Size()).
		Msg("Session bundle written")
	return info.Size(), nil
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)
	header.Method = MethodZstd

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to bundle: %w", header.Name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s to bundle: %w", header.Name, err)
	}
	return nil
}
