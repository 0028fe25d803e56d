// Package player drives preview playback: the frame tick loop, scrubbing and
// relative jumps, and keeping the audio preview aligned with the video.
//
// A Controller is owned by the UI consumer. Every exported method and every
// scheduled tick runs there, so session state needs no locking.
package player

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"time"

	"video-trimmer/event"
	"video-trimmer/logging"
	"video-trimmer/media"
)

const (
	// FallbackFrameDelay is used when the source frame rate is unknown.
	FallbackFrameDelay = 33 * time.Millisecond

	// MaxConsecutiveFrameErrors ends playback after this many failed reads
	// in a row.
	MaxConsecutiveFrameErrors = 5
)

// ErrNoSession is returned by operations that need a loaded video.
var ErrNoSession = errors.New("no video loaded")

// State of the playback state machine.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Audio is the preview audio channel as the controller uses it.
type Audio interface {
	Prepare(source string, hasAudio bool)
	Ready() bool
	PlayFrom(seconds float64)
	Stop()
	Release()
}

// View receives everything the controller wants shown.
type View interface {
	ShowFrame(img image.Image)
	SetPosition(current, duration float64)
	SetPlaying(playing bool)
}

// WatchFunc starts watching a loaded source. The returned closer is closed
// when the session ends.
type WatchFunc func(path string) (io.Closer, error)

// Session is the currently loaded video.
type Session struct {
	Path      string
	Duration  float64
	Current   float64
	FrameRate float64
	HasAudio  bool

	decoder media.Decoder
	clip    media.Clip
	watch   io.Closer
	closed  bool
}

// Clip returns the export handle of the session.
func (s *Session) Clip() media.Clip {
	return s.clip
}

// Config wires a Controller.
type Config struct {
	Opener    media.Opener
	Audio     Audio
	Scheduler event.Scheduler
	View      View
	Watch     WatchFunc
	Logger    *slog.Logger

	// Preview area frames are rendered into.
	PreviewWidth  int
	PreviewHeight int
}

// Controller is the playback state machine.
type Controller struct {
	opener    media.Opener
	audio     Audio
	scheduler event.Scheduler
	view      View
	watch     WatchFunc
	logger    *slog.Logger
	stats     *Stats

	previewW int
	previewH int

	session     *Session
	state       State
	timer       event.Timer
	tickGen     uint64
	frameErrors int
}

// New creates a Controller with no session loaded.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logging.WithComponent(logger, "player")

	w, h := cfg.PreviewWidth, cfg.PreviewHeight
	if w <= 0 || h <= 0 {
		w, h = media.PreviewWidth, media.PreviewHeight
	}

	return &Controller{
		opener:    cfg.Opener,
		audio:     cfg.Audio,
		scheduler: cfg.Scheduler,
		view:      cfg.View,
		watch:     cfg.Watch,
		logger:    logger,
		stats:     NewStats(logger),
		previewW:  w,
		previewH:  h,
	}
}

// Session returns the loaded session or nil.
func (c *Controller) Session() *Session {
	return c.session
}

// State returns the current playback state.
func (c *Controller) State() State {
	return c.state
}

// Stats returns the playback error statistics.
func (c *Controller) Stats() *Stats {
	return c.stats
}

// Load replaces the current session with path. The previous session is torn
// down before the new one is opened, so a failed load leaves nothing loaded.
func (c *Controller) Load(path string) error {
	c.closeSession()

	dec, err := c.opener.OpenDecoder(path)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}
	clip, err := c.opener.OpenClip(path)
	if err != nil {
		dec.Close()
		return fmt.Errorf("failed to load video: %w", err)
	}

	s := &Session{
		Path:      path,
		Duration:  clip.Duration(),
		FrameRate: dec.FrameRate(),
		HasAudio:  clip.HasAudio(),
		decoder:   dec,
		clip:      clip,
	}
	c.session = s
	c.frameErrors = 0

	if c.watch != nil {
		w, err := c.watch(path)
		if err != nil {
			c.logger.Warn("cannot watch source file", "path", logging.SanitizePath(path), "error", err)
		} else {
			s.watch = w
		}
	}

	c.showFrameAt(0)
	c.view.SetPlaying(false)
	c.view.SetPosition(0, s.Duration)
	c.audio.Prepare(path, s.HasAudio)

	c.logger.Info("video loaded",
		"path", logging.SanitizePath(path),
		"duration", s.Duration,
		"fps", s.FrameRate,
		"audio", s.HasAudio)
	return nil
}

// Close releases the current session. Used on shutdown.
func (c *Controller) Close() {
	c.closeSession()
}

func (c *Controller) closeSession() {
	s := c.session
	if s == nil {
		return
	}
	c.stopTicks()
	c.state = Stopped
	c.session = nil
	if s.closed {
		return
	}
	s.closed = true

	c.audio.Release()
	if err := s.decoder.Close(); err != nil {
		c.logger.Warn("failed to close decoder", "error", err)
	}
	if err := s.clip.Close(); err != nil {
		c.logger.Warn("failed to close clip", "error", err)
	}
	if s.watch != nil {
		if err := s.watch.Close(); err != nil {
			c.logger.Warn("failed to close source watcher", "error", err)
		}
	}
}

// Play starts playback from the current time.
func (c *Controller) Play() error {
	if c.session == nil {
		return ErrNoSession
	}
	if c.state == Playing {
		return nil
	}

	c.state = Playing
	c.frameErrors = 0
	c.view.SetPlaying(true)
	if c.audio.Ready() {
		c.audio.PlayFrom(c.session.Current)
	}
	c.schedule(0)
	return nil
}

// Pause stops playback. Pending ticks become no-ops.
func (c *Controller) Pause() {
	if c.state != Playing {
		return
	}
	c.state = Stopped
	c.stopTicks()
	c.audio.Stop()
	c.view.SetPlaying(false)
}

// Toggle plays when stopped and pauses when playing.
func (c *Controller) Toggle() error {
	if c.state == Playing {
		c.Pause()
		return nil
	}
	return c.Play()
}

// AudioReady restarts audio at the current time when a track becomes ready
// while video is already playing.
func (c *Controller) AudioReady() {
	if c.state == Playing && c.session != nil {
		c.audio.PlayFrom(c.session.Current)
	}
}

// Scrub shows the frame at seconds. Playback, if running, stops first.
func (c *Controller) Scrub(seconds float64) error {
	if c.session == nil {
		return ErrNoSession
	}
	c.Pause()

	t := c.clamp(seconds)
	c.showFrameAt(t)
	c.session.Current = t
	c.view.SetPosition(t, c.session.Duration)
	return nil
}

// Jump moves by delta seconds, clamped to the clip. While playing the audio
// is restarted at the new offset.
func (c *Controller) Jump(delta float64) error {
	if c.session == nil {
		return ErrNoSession
	}

	t := c.clamp(c.session.Current + delta)
	if c.state == Playing {
		if err := c.session.decoder.Seek(t); err != nil {
			c.stats.Record("seek", err)
		}
		if c.audio.Ready() {
			c.audio.Stop()
			c.audio.PlayFrom(t)
		}
	} else {
		c.showFrameAt(t)
	}

	c.session.Current = t
	c.view.SetPosition(t, c.session.Duration)
	return nil
}

func (c *Controller) clamp(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > c.session.Duration {
		return c.session.Duration
	}
	return t
}

// showFrameAt repositions the decoder and displays the frame there.
func (c *Controller) showFrameAt(t float64) {
	dec := c.session.decoder
	if err := dec.Seek(t); err != nil {
		c.stats.Record("seek", err)
		return
	}
	frame, err := dec.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			c.stats.Record("read", err)
		}
		return
	}
	c.render(frame)
}

func (c *Controller) render(frame *media.Frame) {
	c.view.ShowFrame(media.Render(frame.Image, c.previewW, c.previewH))
}

// FrameDelay is the tick interval for a frame rate.
func FrameDelay(fps float64) time.Duration {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return FallbackFrameDelay
	}
	d := time.Duration(float64(time.Second) / fps)
	if d <= 0 {
		return FallbackFrameDelay
	}
	return d
}

func (c *Controller) schedule(d time.Duration) {
	c.stopTicks()
	gen := c.tickGen
	c.timer = c.scheduler.AfterFunc(d, func() {
		c.tick(gen)
	})
}

func (c *Controller) stopTicks() {
	c.tickGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) tick(gen uint64) {
	if gen != c.tickGen || c.state != Playing || c.session == nil {
		return
	}
	c.timer = nil
	s := c.session

	frame, err := s.decoder.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.endOfStream()
			return
		}
		c.stats.Record("read", err)
		c.frameErrors++
		if c.frameErrors >= MaxConsecutiveFrameErrors {
			c.logger.Warn("too many consecutive frame errors, stopping playback", "count", c.frameErrors)
			c.endOfStream()
			return
		}
		c.schedule(FrameDelay(s.FrameRate))
		return
	}
	c.frameErrors = 0

	s.Current = c.clamp(s.decoder.Position())
	c.render(frame)
	c.view.SetPosition(s.Current, s.Duration)
	c.schedule(FrameDelay(s.FrameRate))
}

func (c *Controller) endOfStream() {
	s := c.session
	c.state = Stopped
	c.stopTicks()
	c.audio.Stop()
	s.Current = 0
	if err := s.decoder.Seek(0); err != nil {
		c.stats.Record("seek", err)
	}
	c.view.SetPlaying(false)
	c.view.SetPosition(0, s.Duration)
	c.logger.Debug("end of stream")
}
