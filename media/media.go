// Package media defines the handles the player and trim runner work against:
// a sequential frame decoder and an editable clip over the same file.
package media

import (
	"context"
	"image"
	"path/filepath"
	"strings"
)

// VideoExtensions are suggested in the open dialog. They are not enforced.
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"}

// Frame is a decoded image and the timestamp it was shown at, in seconds.
type Frame struct {
	Image     image.Image
	Timestamp float64
}

// Decoder reads frames sequentially and can be repositioned by timestamp.
// Read returns io.EOF at end of stream.
type Decoder interface {
	Seek(seconds float64) error
	Read() (*Frame, error)
	// Position is the timestamp of the last frame returned by Read.
	Position() float64
	// FrameRate may be 0 when the source does not report one.
	FrameRate() float64
	Close() error
}

// Clip is the editable view of a file used for export.
type Clip interface {
	Path() string
	Duration() float64
	HasAudio() bool
	// Export re-encodes [start, end) into outputPath.
	Export(ctx context.Context, start, end float64, outputPath string) error
	Close() error
}

// Opener opens both handles for a path.
type Opener interface {
	OpenDecoder(path string) (Decoder, error)
	OpenClip(path string) (Clip, error)
}

// TrimmedName suggests an output filename for source: "<name>_trimmed<ext>".
func TrimmedName(source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_trimmed" + ext
}

// ResolveOutput resolves output against the directory of source. Absolute
// paths are returned unchanged.
func ResolveOutput(source, output string) string {
	if filepath.IsAbs(output) {
		return output
	}
	return filepath.Join(filepath.Dir(source), output)
}
