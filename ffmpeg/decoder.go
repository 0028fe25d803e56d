package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"time"

	"video-trimmer/media"
)

const (
	probeTimeout = 30 * time.Second

	// timestampFrameRate is used for frame timestamps when the source does
	// not report a usable rate.
	timestampFrameRate = 30.0
)

// Decoder streams RGBA frames from an ffmpeg rawvideo pipe. Seeking restarts
// the pipe at the requested offset. It is not safe for concurrent use.
type Decoder struct {
	ff     *FFmpeg
	path   string
	width  int
	height int
	fps    float64

	cmd    *exec.Cmd
	stdout io.ReadCloser

	origin float64 // offset the running pipe was started at
	index  int     // frames read from the running pipe
	pos    float64
}

// OpenDecoder probes path and returns a decoder positioned at 0.
func (f *FFmpeg) OpenDecoder(path string) (media.Decoder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Decoder{
		ff:     f,
		path:   path,
		width:  info.Width,
		height: info.Height,
		fps:    info.FrameRate,
	}, nil
}

// Seek implements media.Decoder. The pipe is restarted lazily on the next Read.
func (d *Decoder) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	d.stopPipe()
	d.origin = seconds
	d.index = 0
	d.pos = seconds
	return nil
}

// Read implements media.Decoder.
func (d *Decoder) Read() (*media.Frame, error) {
	if d.cmd == nil {
		if err := d.startPipe(); err != nil {
			return nil, err
		}
	}

	img, err := readFrame(d.stdout, d.width, d.height)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	rate := d.fps
	if rate <= 0 {
		rate = timestampFrameRate
	}
	d.pos = d.origin + float64(d.index)/rate
	d.index++

	return &media.Frame{Image: img, Timestamp: d.pos}, nil
}

// Position implements media.Decoder.
func (d *Decoder) Position() float64 {
	return d.pos
}

// FrameRate implements media.Decoder.
func (d *Decoder) FrameRate() float64 {
	return d.fps
}

// Close implements media.Decoder.
func (d *Decoder) Close() error {
	d.stopPipe()
	return nil
}

func (d *Decoder) startPipe() error {
	args := []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%.3f", d.origin),
		"-i", d.path,
		"-map", "0:v:0",
		"-an",
		// Pin the output size so every frame matches readFrame.
		"-vf", fmt.Sprintf("scale=%d:%d", d.width, d.height),
	}
	if d.fps > 0 {
		args = append(args, "-r", strconv.FormatFloat(d.fps, 'f', -1, 64))
	}
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)

	cmd := exec.Command(d.ff.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdout = stdout
	return nil
}

func (d *Decoder) stopPipe() {
	if d.cmd == nil {
		return
	}
	d.stdout.Close()
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
}

// readFrame reads one width x height RGBA frame.
func readFrame(r io.Reader, width, height int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}
