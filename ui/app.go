package ui

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"video-trimmer/audio"
	"video-trimmer/config"
	"video-trimmer/event"
	"video-trimmer/ffmpeg"
	"video-trimmer/logging"
	"video-trimmer/media"
	"video-trimmer/player"
	"video-trimmer/trim"
)

// App represents the main application
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	ff      *ffmpeg.FFmpeg
	cfg     *config.Config
	logger  *slog.Logger
	poster  *mainThread

	player *player.Controller
	audio  *audio.Channel
	runner *trim.Runner

	// Widgets touched after construction
	fileLabel   *widget.Label
	timeLabel   *widget.Label
	statusLabel *widget.Label
	noticeLabel *widget.Label
	preview     *canvas.Image
	timeline    *widget.Slider
	playBtn     *widget.Button
	backBtn     *widget.Button
	forwardBtn  *widget.Button
	setStartBtn *widget.Button
	setEndBtn   *widget.Button
	trimBtn     *widget.Button
	startEntry  *widget.Entry
	endEntry    *widget.Entry
	outputEntry *widget.Entry

	// syncingTimeline is set while the controller moves the slider, so the
	// slider callback does not read it as a user scrub.
	syncingTimeline bool
	duration        float64
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ff, err := ffmpeg.New(cfg.FFmpegDir, logging.WithComponent(logger, "ffmpeg"))
	if err != nil {
		return nil, err
	}

	return &App{
		ff:     ff,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "ui"),
		poster: &mainThread{},
	}, nil
}

// Run starts the application
func (a *App) Run() {
	a.fyneApp = app.NewWithID("com.video-trimmer")
	a.window = a.fyneApp.NewWindow("Video Trimmer")
	a.window.Resize(fyne.NewSize(900, 700))

	a.audio = audio.NewChannel(audio.Config{
		Engine:    audio.NewBeepEngine(logging.WithComponent(a.logger, "audio")),
		Extractor: a.ff,
		Poster:    a.poster,
		Logger:    a.logger,
		TempDir:   a.cfg.TempDir,
	})
	a.player = player.New(player.Config{
		Opener:        a.ff,
		Audio:         a.audio,
		Scheduler:     event.Clock{Poster: a.poster},
		View:          a,
		Watch:         a.watchSource,
		Logger:        a.logger,
		PreviewWidth:  a.cfg.PreviewWidth,
		PreviewHeight: a.cfg.PreviewHeight,
	})
	a.audio.SetOnReady(a.player.AudioReady)
	a.runner = trim.NewRunner(trim.Config{
		Poster:  a.poster,
		Logger:  a.logger,
		OnStart: a.trimStarted,
		OnDone:  a.trimDone,
	})

	a.window.SetContent(a.createTrimmer())
	a.window.Canvas().SetOnTypedKey(a.handleKey)
	a.window.SetOnClosed(a.shutdown)

	a.logger.Info("window ready")
	a.window.ShowAndRun()
}

// shutdown releases the session. Workers still running finish on their own;
// their results are dropped.
func (a *App) shutdown() {
	a.player.Close()
	a.poster.Close()
	a.player.Stats().LogSummary(a.logger)
}

func (a *App) watchSource(path string) (io.Closer, error) {
	return media.WatchSource(path, a.poster, a.logger, a.sourceChanged)
}

func (a *App) sourceChanged(change media.SourceChange) {
	if s := a.player.Session(); s == nil || s.Path != change.Path {
		return
	}
	a.noticeLabel.SetText(fmt.Sprintf("Source file was %s on disk. The preview may be stale.", change.Op))
	a.logger.Warn("source file changed", "path", logging.SanitizePath(change.Path), "op", change.Op)
}

// showError displays an error dialog
func (a *App) showError(title, message string) {
	dialog.NewInformation(title, message, a.window).Show()
}

// showInfo displays an info dialog
func (a *App) showInfo(title, message string) {
	dialog.NewInformation(title, message, a.window).Show()
}

// mainThread posts callbacks onto the fyne main goroutine. After Close it
// drops them.
type mainThread struct {
	closed atomic.Bool
}

func (m *mainThread) Post(fn func()) bool {
	if m.closed.Load() {
		return false
	}
	fyne.Do(func() {
		if m.closed.Load() {
			return
		}
		fn()
	})
	return true
}

func (m *mainThread) Close() {
	m.closed.Store(true)
}
