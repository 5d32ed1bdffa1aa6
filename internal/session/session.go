// Package session scopes every generated artifact of one pipeline run under a
// unique directory so that concurrent runs never share a file name.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Artifact file names inside a session directory.
const (
	ScriptFile = "script.txt"
	AudioFile  = "voiceover.wav"
	VideoFile  = "output_video.mp4"
	BundleFile = "bundle.zip"
	PosterFile = "poster.jpg"
	ImagesDir  = "images"
	concatFile = "slides.txt"
)

// idRegex matches the lowercase UUID form produced by New.
var idRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Context identifies one user-facing pipeline invocation. It is created once
// per run and passed explicitly into every artifact-producing operation.
type Context struct {
	ID   string
	Root string
}

// New creates a session with a fresh random ID rooted at baseDir.
func New(baseDir string) Context {
	return Context{ID: uuid.NewString(), Root: baseDir}
}

// FromID rebuilds a session for an ID issued elsewhere (e.g. by the API Lambda).
func FromID(baseDir, id string) (Context, error) {
	if err := ValidateID(id); err != nil {
		return Context{}, err
	}
	return Context{ID: id, Root: baseDir}, nil
}

// ValidateID rejects anything that is not a UUID, which also keeps IDs safe
// to use as a path component and an S3 prefix.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid sessionId: must be a UUID (e.g., a1b2c3d4-e5f6-7890-abcd-ef1234567890)")
	}
	return nil
}

// Dir is the directory holding all artifacts of this session.
func (c Context) Dir() string {
	return filepath.Join(c.Root, c.ID)
}

// Ensure creates the session and image directories.
func (c Context) Ensure() error {
	if c.ID == "" {
		return fmt.Errorf("session has no ID")
	}
	if err := os.MkdirAll(filepath.Join(c.Dir(), ImagesDir), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return nil
}

// ImagePath returns the path for the image derived from the segment with the
// given 1-based number. ext is the file extension without the leading dot.
func (c Context) ImagePath(number int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(c.Dir(), ImagesDir, fmt.Sprintf("image_%02d.%s", number, ext))
}

func (c Context) ScriptPath() string { return filepath.Join(c.Dir(), ScriptFile) }
func (c Context) AudioPath() string { return filepath.Join(c.Dir(), AudioFile) }
func (c Context) VideoPath() string { return filepath.Join(c.Dir(), VideoFile) }
func (c Context) BundlePath() string { return filepath.Join(c.Dir(), BundleFile) }
func (c Context) PosterPath() string { return filepath.Join(c.Dir(), PosterFile) }

// ConcatListPath is the scratch ffmpeg concat list used during assembly.
func (c Context) ConcatListPath() string { return filepath.Join(c.Dir(), concatFile) }

// Remove deletes the session directory and everything in it.
func (c Context) Remove() error {
	if c.ID == "" {
		return nil
	}
	return os.RemoveAll(c.Dir())
}
