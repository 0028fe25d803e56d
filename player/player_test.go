package player

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-trimmer/audio"
	"video-trimmer/event"
	"video-trimmer/logging"
	"video-trimmer/media"
)

type fakeDecoder struct {
	fps     float64
	frames  int
	idx     int
	pos     float64
	readErr error
	seeks   []float64
	reads   int
	closes  int
}

func (d *fakeDecoder) Seek(t float64) error {
	d.seeks = append(d.seeks, t)
	d.idx = int(math.Round(t * d.fps))
	d.pos = t
	return nil
}

func (d *fakeDecoder) Read() (*media.Frame, error) {
	d.reads++
	if d.readErr != nil {
		return nil, d.readErr
	}
	if d.idx >= d.frames {
		return nil, io.EOF
	}
	d.pos = float64(d.idx) / d.fps
	d.idx++
	return &media.Frame{Image: image.NewRGBA(image.Rect(0, 0, 16, 9)), Timestamp: d.pos}, nil
}

func (d *fakeDecoder) Position() float64  { return d.pos }
func (d *fakeDecoder) FrameRate() float64 { return d.fps }
func (d *fakeDecoder) Close() error       { d.closes++; return nil }

type fakeClip struct {
	path     string
	duration float64
	hasAudio bool
	closes   int
}

func (c *fakeClip) Path() string      { return c.path }
func (c *fakeClip) Duration() float64 { return c.duration }
func (c *fakeClip) HasAudio() bool    { return c.hasAudio }
func (c *fakeClip) Export(context.Context, float64, float64, string) error {
	return nil
}
func (c *fakeClip) Close() error { c.closes++; return nil }

type fakeOpener struct {
	fps      float64
	duration float64
	hasAudio bool
	failOpen error

	decoders []*fakeDecoder
	clips    []*fakeClip
}

func (o *fakeOpener) OpenDecoder(path string) (media.Decoder, error) {
	if o.failOpen != nil {
		return nil, o.failOpen
	}
	d := &fakeDecoder{fps: o.fps, frames: int(o.duration * o.fps)}
	o.decoders = append(o.decoders, d)
	return d, nil
}

func (o *fakeOpener) OpenClip(path string) (media.Clip, error) {
	c := &fakeClip{path: path, duration: o.duration, hasAudio: o.hasAudio}
	o.clips = append(o.clips, c)
	return c, nil
}

type fakeAudio struct {
	ready    bool
	prepared []string
	plays    []float64
	stops    int
	releases int
}

func (a *fakeAudio) Prepare(source string, _ bool) { a.prepared = append(a.prepared, source) }
func (a *fakeAudio) Ready() bool                   { return a.ready }
func (a *fakeAudio) PlayFrom(s float64)            { a.plays = append(a.plays, s) }
func (a *fakeAudio) Stop()                         { a.stops++ }
func (a *fakeAudio) Release()                      { a.releases++ }

type fakeView struct {
	frames   int
	current  float64
	duration float64
	playing  bool
}

func (v *fakeView) ShowFrame(img image.Image) {
	if img.Bounds().Dx() != media.PreviewWidth || img.Bounds().Dy() != media.PreviewHeight {
		panic("frame not rendered to preview size")
	}
	v.frames++
}
func (v *fakeView) SetPosition(current, duration float64) {
	v.current, v.duration = current, duration
}
func (v *fakeView) SetPlaying(playing bool) { v.playing = playing }

type pendingTick struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (p *pendingTick) Stop() bool {
	was := !p.stopped
	p.stopped = true
	return was
}

type manualScheduler struct {
	pending []*pendingTick
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) event.Timer {
	p := &pendingTick{delay: d, fn: fn}
	s.pending = append(s.pending, p)
	return p
}

// fire runs the oldest pending tick, stopped or not, like a timer that raced
// its cancellation. It reports false when nothing is pending.
func (s *manualScheduler) fire() (time.Duration, bool) {
	if len(s.pending) == 0 {
		return 0, false
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	p.fn()
	return p.delay, true
}

type fakeCloser struct{ closes int }

func (f *fakeCloser) Close() error { f.closes++; return nil }

type fixture struct {
	ctrl    *Controller
	opener  *fakeOpener
	audio   *fakeAudio
	sched   *manualScheduler
	view    *fakeView
	watches []*fakeCloser
}

func newFixture(duration, fps float64) *fixture {
	f := &fixture{
		opener: &fakeOpener{fps: fps, duration: duration, hasAudio: true},
		audio:  &fakeAudio{},
		sched:  &manualScheduler{},
		view:   &fakeView{},
	}
	f.ctrl = New(Config{
		Opener:    f.opener,
		Audio:     f.audio,
		Scheduler: f.sched,
		View:      f.view,
		Watch: func(string) (io.Closer, error) {
			w := &fakeCloser{}
			f.watches = append(f.watches, w)
			return w, nil
		},
	})
	return f
}

func TestFrameDelay(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{25, 40 * time.Millisecond},
		{50, 20 * time.Millisecond},
		{0, FallbackFrameDelay},
		{-30, FallbackFrameDelay},
		{math.NaN(), FallbackFrameDelay},
		{math.Inf(1), FallbackFrameDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameDelay(tt.fps), "fps %v", tt.fps)
	}
}

func TestLoad_ShowsFirstFrameAndPreparesAudio(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))

	s := f.ctrl.Session()
	require.NotNil(t, s)
	assert.Equal(t, "/videos/in.mp4", s.Path)
	assert.Equal(t, 10.0, s.Duration)
	assert.Equal(t, 0.0, s.Current)
	assert.True(t, s.HasAudio)
	assert.Equal(t, Stopped, f.ctrl.State())
	assert.Equal(t, 1, f.view.frames)
	assert.Equal(t, 10.0, f.view.duration)
	assert.Equal(t, []string{"/videos/in.mp4"}, f.audio.prepared)
	assert.Len(t, f.watches, 1)
}

func TestLoad_ReplacesSessionReleasingOnce(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/a.mp4"))
	require.NoError(t, f.ctrl.Play())
	require.NoError(t, f.ctrl.Load("/videos/b.mp4"))

	first, second := f.opener.decoders[0], f.opener.decoders[1]
	assert.Equal(t, 1, first.closes)
	assert.Equal(t, 1, f.opener.clips[0].closes)
	assert.Equal(t, 1, f.watches[0].closes)
	assert.Equal(t, 1, f.audio.releases)
	assert.Equal(t, 0, second.closes)
	assert.Equal(t, Stopped, f.ctrl.State())

	f.ctrl.Close()
	f.ctrl.Close()
	assert.Equal(t, 1, first.closes)
	assert.Equal(t, 1, second.closes)
	assert.Equal(t, 1, f.opener.clips[1].closes)
	assert.Equal(t, 1, f.watches[1].closes)
	assert.Equal(t, 2, f.audio.releases)
	assert.Nil(t, f.ctrl.Session())
}

func TestLoad_FailureLeavesNothingLoaded(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/a.mp4"))

	f.opener.failOpen = errors.New("moov atom not found")
	err := f.ctrl.Load("/videos/broken.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moov atom not found")

	assert.Nil(t, f.ctrl.Session())
	assert.Equal(t, 1, f.opener.decoders[0].closes)
	assert.ErrorIs(t, f.ctrl.Play(), ErrNoSession)
}

func TestPlay_TicksAdvanceTime(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	framesAfterLoad := f.view.frames

	require.NoError(t, f.ctrl.Play())
	assert.Equal(t, Playing, f.ctrl.State())
	assert.True(t, f.view.playing)

	d, ok := f.sched.fire()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), d, "first tick runs immediately")

	d, ok = f.sched.fire()
	require.True(t, ok)
	assert.Equal(t, 40*time.Millisecond, d)

	assert.Equal(t, framesAfterLoad+2, f.view.frames)
	// Load displayed frame 0, so playback continues at frames 1 and 2.
	assert.InDelta(t, 2.0/25, f.ctrl.Session().Current, 1e-9)
	assert.InDelta(t, 2.0/25, f.view.current, 1e-9)
	assert.Len(t, f.sched.pending, 1)
}

func TestPlay_StartsAudioWhenReady(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	require.NoError(t, f.ctrl.Scrub(4))

	f.audio.ready = true
	require.NoError(t, f.ctrl.Play())
	assert.Equal(t, []float64{4}, f.audio.plays)
}

func TestPlay_WithoutAudioStillPlays(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	require.NoError(t, f.ctrl.Play())
	f.sched.fire()

	assert.Empty(t, f.audio.plays)
	assert.Equal(t, 2, f.view.frames)
}

func TestPause_PendingTickIsNoop(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	require.NoError(t, f.ctrl.Play())
	f.ctrl.Pause()

	assert.Equal(t, Stopped, f.ctrl.State())
	assert.False(t, f.view.playing)
	assert.Equal(t, 1, f.audio.stops)

	reads := f.opener.decoders[0].reads
	f.sched.fire()
	assert.Equal(t, reads, f.opener.decoders[0].reads)
}

func TestToggle(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))

	require.NoError(t, f.ctrl.Toggle())
	assert.Equal(t, Playing, f.ctrl.State())
	require.NoError(t, f.ctrl.Toggle())
	assert.Equal(t, Stopped, f.ctrl.State())
}

func TestEndOfStream_StopsAndResets(t *testing.T) {
	f := newFixture(0.2, 10)
	require.NoError(t, f.ctrl.Load("/videos/short.mp4"))
	f.audio.ready = true
	require.NoError(t, f.ctrl.Play())

	for i := 0; i < 10 && f.ctrl.State() == Playing; i++ {
		_, ok := f.sched.fire()
		require.True(t, ok)
	}

	assert.Equal(t, Stopped, f.ctrl.State())
	assert.Equal(t, 0.0, f.ctrl.Session().Current)
	assert.Equal(t, 0.0, f.view.current)
	assert.False(t, f.view.playing)
	assert.Equal(t, 1, f.audio.stops)
	dec := f.opener.decoders[0]
	assert.Equal(t, 0.0, dec.seeks[len(dec.seeks)-1])
	assert.Empty(t, f.sched.pending)
}

func TestTick_ConsecutiveErrorsStopPlayback(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	require.NoError(t, f.ctrl.Play())
	f.opener.decoders[0].readErr = errors.New("corrupt packet")

	for i := 0; i < MaxConsecutiveFrameErrors; i++ {
		_, ok := f.sched.fire()
		require.True(t, ok)
	}

	assert.Equal(t, Stopped, f.ctrl.State())
	assert.Equal(t, MaxConsecutiveFrameErrors, f.ctrl.Stats().Total())
	recent := f.ctrl.Stats().Recent()
	require.NotEmpty(t, recent)
	assert.Equal(t, "read", recent[0].Op)
	assert.Equal(t, "corrupt packet", recent[0].Message)
}

func TestScrub_WhileStopped(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))

	require.NoError(t, f.ctrl.Scrub(6.5))
	assert.Equal(t, 6.5, f.ctrl.Session().Current)
	assert.Equal(t, 6.5, f.view.current)
	assert.Equal(t, 2, f.view.frames)
	assert.Empty(t, f.audio.plays)
	assert.Empty(t, f.sched.pending)
}

func TestScrub_WhilePlayingStops(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	f.audio.ready = true
	require.NoError(t, f.ctrl.Play())

	require.NoError(t, f.ctrl.Scrub(3))
	assert.Equal(t, Stopped, f.ctrl.State())
	assert.Equal(t, 1, f.audio.stops)
	assert.Equal(t, []float64{0}, f.audio.plays, "scrub never starts audio")
	assert.Equal(t, 3.0, f.ctrl.Session().Current)
}

func TestScrub_Clamps(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))

	require.NoError(t, f.ctrl.Scrub(-1))
	assert.Equal(t, 0.0, f.ctrl.Session().Current)
	require.NoError(t, f.ctrl.Scrub(99))
	assert.Equal(t, 10.0, f.ctrl.Session().Current)
}

func TestJump_Clamps(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		delta float64
		want  float64
	}{
		{"back past start", 2, -5, 0},
		{"forward past end", 28, 5, 30},
		{"inside", 10, 5, 15},
		{"back inside", 10, -5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(30, 25)
			require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
			require.NoError(t, f.ctrl.Scrub(tt.start))

			require.NoError(t, f.ctrl.Jump(tt.delta))
			assert.Equal(t, tt.want, f.ctrl.Session().Current)
			assert.Equal(t, tt.want, f.view.current)
			dec := f.opener.decoders[0]
			assert.Equal(t, tt.want, dec.seeks[len(dec.seeks)-1])
		})
	}
}

func TestJump_WhilePlayingRestartsAudio(t *testing.T) {
	f := newFixture(30, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	require.NoError(t, f.ctrl.Scrub(10))
	f.audio.ready = true
	require.NoError(t, f.ctrl.Play())

	require.NoError(t, f.ctrl.Jump(5))
	assert.Equal(t, Playing, f.ctrl.State())
	assert.Equal(t, []float64{10, 15}, f.audio.plays)
	assert.Equal(t, 1, f.audio.stops)
	assert.Equal(t, 15.0, f.ctrl.Session().Current)

	f.sched.fire()
	assert.InDelta(t, 15.0, f.ctrl.Session().Current, 1e-9)
}

func TestJump_NoSession(t *testing.T) {
	f := newFixture(30, 25)
	assert.ErrorIs(t, f.ctrl.Jump(5), ErrNoSession)
	assert.ErrorIs(t, f.ctrl.Scrub(5), ErrNoSession)
}

func TestAudioReady_WhilePlaying(t *testing.T) {
	f := newFixture(10, 25)
	require.NoError(t, f.ctrl.Load("/videos/in.mp4"))
	f.ctrl.AudioReady()
	assert.Empty(t, f.audio.plays)

	require.NoError(t, f.ctrl.Play())
	f.sched.fire()
	f.audio.ready = true
	f.ctrl.AudioReady()
	require.Len(t, f.audio.plays, 1)
	assert.InDelta(t, f.ctrl.Session().Current, f.audio.plays[0], 1e-9)
}

type failingExtractor struct{}

func (failingExtractor) ExtractAudio(context.Context, string, string) error {
	return errors.New("Output file #0 does not contain any stream")
}

func TestAudioExtractionFailure_VideoStillPlays(t *testing.T) {
	q := event.NewQueue()
	ch := audio.NewChannel(audio.Config{
		Extractor: failingExtractor{},
		Poster:    q,
		TempDir:   t.TempDir(),
	})
	sched := &manualScheduler{}
	view := &fakeView{}
	ctrl := New(Config{
		Opener:    &fakeOpener{fps: 25, duration: 10, hasAudio: true},
		Audio:     ch,
		Scheduler: sched,
		View:      view,
	})

	require.NoError(t, ctrl.Load("/videos/in.mp4"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	q.Drain()
	assert.Equal(t, audio.NotReady, ch.State())

	require.NotPanics(t, func() {
		require.NoError(t, ctrl.Play())
	})
	sched.fire()
	sched.fire()
	assert.Equal(t, Playing, ctrl.State())
	assert.Equal(t, 3, view.frames)
	assert.False(t, ch.Playing())
}

func TestStats_KeepsMostRecent(t *testing.T) {
	f := newFixture(10, 25)
	stats := f.ctrl.Stats()
	for i := 0; i < recentErrorLimit+4; i++ {
		stats.Record("read", errors.New(string(rune('a'+i))))
	}

	assert.Equal(t, recentErrorLimit+4, stats.Total())
	recent := stats.Recent()
	require.Len(t, recent, recentErrorLimit)
	assert.Equal(t, string(rune('a'+4)), recent[0].Message)
	assert.Equal(t, string(rune('a'+recentErrorLimit+3)), recent[recentErrorLimit-1].Message)
}

func TestStats_LogSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerTo(&buf, "info")
	stats := NewStats(logging.Discard())

	stats.LogSummary(logger)
	assert.Empty(t, buf.String())

	stats.Record("seek", errors.New("seek broke"))
	stats.Record("read", errors.New("read broke"))
	stats.LogSummary(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"count":2`)
	assert.Contains(t, lines[1], `"error":"seek broke"`)
	assert.Contains(t, lines[2], `"op":"read"`)
}
