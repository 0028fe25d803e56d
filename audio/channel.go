// Package audio provides the preview audio channel: the loaded video's audio
// stream extracted to a temporary WAV file and played from arbitrary offsets.
package audio

import (
	"context"
	"log/slog"
	"os"
	"time"

	"video-trimmer/event"
	"video-trimmer/logging"
)

// Capability says how a track can be repositioned.
type Capability int

const (
	// DirectSeek tracks jump straight to an offset.
	DirectSeek Capability = iota
	// RestartOnly tracks rewind and skip forward. Not sample accurate.
	RestartOnly
)

func (c Capability) String() string {
	if c == DirectSeek {
		return "direct-seek"
	}
	return "restart-only"
}

// Track is a loaded preview track.
type Track interface {
	Capability() Capability
	Seek(offset time.Duration) error
	Rewind() error
	Skip(d time.Duration) error
	Play()
	Stop()
	Close() error
}

// Engine loads extracted tracks. Load is only called from the UI consumer.
type Engine interface {
	Load(path string) (Track, error)
}

// Extractor writes the audio stream of a video into a WAV file.
type Extractor interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// State of the channel.
type State int

const (
	NotReady State = iota
	Extracting
	Ready
)

func (s State) String() string {
	switch s {
	case Extracting:
		return "extracting"
	case Ready:
		return "ready"
	default:
		return "not-ready"
	}
}

// Config wires a Channel.
type Config struct {
	Engine    Engine
	Extractor Extractor
	Poster    event.Poster
	Logger    *slog.Logger
	// TempDir holds the extracted WAV files. Empty means os.TempDir().
	TempDir string
}

// Channel is owned by the UI consumer: every method except the extraction
// worker runs there.
type Channel struct {
	engine    Engine
	extractor Extractor
	poster    event.Poster
	logger    *slog.Logger
	tempDir   string

	state   State
	gen     uint64
	track   Track
	tmpPath string
	playing bool
	onReady func()
}

// NewChannel creates a channel in the NotReady state.
func NewChannel(cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Channel{
		engine:    cfg.Engine,
		extractor: cfg.Extractor,
		poster:    cfg.Poster,
		logger:    logging.WithComponent(logger, "audio"),
		tempDir:   cfg.TempDir,
	}
}

// SetOnReady registers a callback run on the UI consumer when a track
// becomes ready.
func (c *Channel) SetOnReady(fn func()) {
	c.onReady = fn
}

// State returns the current state.
func (c *Channel) State() State {
	return c.state
}

// Ready reports whether PlayFrom will produce sound.
func (c *Channel) Ready() bool {
	return c.state == Ready
}

// Prepare drops any previous track and, when the source has audio, starts
// extracting it in the background.
func (c *Channel) Prepare(source string, hasAudio bool) {
	c.Release()
	if !hasAudio {
		c.logger.Info("source has no audio stream, preview is video only", "path", logging.SanitizePath(source))
		return
	}

	c.gen++
	gen := c.gen
	c.state = Extracting
	go c.extract(gen, source)
}

func (c *Channel) extract(gen uint64, source string) {
	start := time.Now()
	path, err := c.extractToTemp(source)

	posted := c.poster.Post(func() {
		c.finishExtract(gen, path, err, time.Since(start))
	})
	if !posted && path != "" {
		os.Remove(path)
	}
}

func (c *Channel) extractToTemp(source string) (string, error) {
	tmp, err := os.CreateTemp(c.tempDir, "trimmer-audio-*.wav")
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	tmp.Close()

	if err := c.extractor.ExtractAudio(context.Background(), source, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (c *Channel) finishExtract(gen uint64, path string, err error, took time.Duration) {
	if gen != c.gen || c.state != Extracting {
		if path != "" {
			os.Remove(path)
		}
		c.logger.Debug("discarding stale audio extract", "path", path)
		return
	}

	if err != nil {
		c.state = NotReady
		c.logger.Warn("audio extraction failed, preview is video only", "error", err)
		return
	}

	track, err := c.engine.Load(path)
	if err != nil {
		os.Remove(path)
		c.state = NotReady
		c.logger.Warn("audio engine could not load track, preview is video only", "error", err)
		return
	}

	c.track = track
	c.tmpPath = path
	c.state = Ready
	c.logger.Info("audio track ready", "capability", track.Capability().String(), "took", took)

	if c.onReady != nil {
		c.onReady()
	}
}

// PlayFrom starts playback at seconds. It does nothing unless Ready.
func (c *Channel) PlayFrom(seconds float64) {
	if c.state != Ready {
		return
	}
	c.Stop()

	if seconds < 0 {
		seconds = 0
	}
	offset := time.Duration(seconds * float64(time.Second))

	switch c.track.Capability() {
	case DirectSeek:
		if err := c.track.Seek(offset); err != nil {
			c.logger.Warn("audio seek failed, restarting track", "offset", offset, "error", err)
			c.restartAt(offset)
		}
	default:
		c.restartAt(offset)
	}

	c.track.Play()
	c.playing = true
}

func (c *Channel) restartAt(offset time.Duration) {
	if err := c.track.Rewind(); err != nil {
		c.logger.Warn("audio rewind failed", "error", err)
		return
	}
	if err := c.track.Skip(offset); err != nil {
		c.logger.Warn("audio skip failed", "offset", offset, "error", err)
	}
}

// Stop halts playback. Safe to call when nothing is playing.
func (c *Channel) Stop() {
	if !c.playing {
		return
	}
	c.playing = false
	if c.track != nil {
		c.track.Stop()
	}
}

// Playing reports whether a track is currently playing.
func (c *Channel) Playing() bool {
	return c.playing
}

// Release stops playback, closes the track, deletes the extracted file and
// invalidates any extraction still running. Safe to call repeatedly.
func (c *Channel) Release() {
	c.Stop()
	c.gen++

	if c.track != nil {
		if err := c.track.Close(); err != nil {
			c.logger.Warn("failed to close audio track", "error", err)
		}
		c.track = nil
	}
	if c.tmpPath != "" {
		if err := os.Remove(c.tmpPath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove audio extract", "path", c.tmpPath, "error", err)
		}
		c.tmpPath = ""
	}
	c.state = NotReady
}
