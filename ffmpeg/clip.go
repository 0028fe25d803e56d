package ffmpeg

import (
	"context"
	"fmt"

	"video-trimmer/media"
)

var _ media.Opener = (*FFmpeg)(nil)

// Clip is the export side of a loaded file.
type Clip struct {
	ff       *FFmpeg
	path     string
	duration float64
	hasAudio bool
}

// OpenClip probes path for duration and audio presence.
func (f *FFmpeg) OpenClip(path string) (media.Clip, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Clip{
		ff:       f,
		path:     path,
		duration: info.Duration,
		hasAudio: info.HasAudio,
	}, nil
}

func (c *Clip) Path() string      { return c.path }
func (c *Clip) Duration() float64 { return c.duration }
func (c *Clip) HasAudio() bool    { return c.hasAudio }

// Export implements media.Clip.
func (c *Clip) Export(ctx context.Context, start, end float64, outputPath string) error {
	if end <= start {
		return fmt.Errorf("invalid range %.3f-%.3f", start, end)
	}
	return c.ff.TrimClip(ctx, c.path, outputPath, start, end-start)
}

// Close implements media.Clip. ffmpeg holds no open handle between exports.
func (c *Clip) Close() error {
	return nil
}
