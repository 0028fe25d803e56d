package ui

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"video-trimmer/media"
	"video-trimmer/player"
	"video-trimmer/trim"
)

// createTrimmer builds the single trimmer screen.
func (a *App) createTrimmer() fyne.CanvasObject {
	a.fileLabel = widget.NewLabel("No file selected")
	browseBtn := widget.NewButton("Browse Video", a.browseFile)

	// Preview
	w, h := a.cfg.PreviewWidth, a.cfg.PreviewHeight
	a.preview = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, w, h)))
	a.preview.FillMode = canvas.ImageFillContain
	a.preview.SetMinSize(fyne.NewSize(float32(w), float32(h)))
	background := canvas.NewRectangle(color.Black)
	background.SetMinSize(fyne.NewSize(float32(w), float32(h)))

	a.playBtn = widget.NewButton("▶ Play", func() {
		if err := a.player.Toggle(); err != nil {
			a.showError("Warning", "Please select a video first!")
		}
	})
	a.backBtn = widget.NewButton(fmt.Sprintf("⏪ %gs", a.cfg.JumpSeconds), func() {
		a.jump(-a.cfg.JumpSeconds)
	})
	a.forwardBtn = widget.NewButton(fmt.Sprintf("%gs ⏩", a.cfg.JumpSeconds), func() {
		a.jump(a.cfg.JumpSeconds)
	})
	a.timeLabel = widget.NewLabel(formatTimestamp(0) + " / " + formatTimestamp(0))

	a.timeline = widget.NewSlider(0, 100)
	a.timeline.Step = 0.01
	a.timeline.OnChanged = func(v float64) {
		if a.syncingTimeline {
			return
		}
		if err := a.player.Scrub(v); err != nil && !errors.Is(err, player.ErrNoSession) {
			a.logger.Warn("scrub failed", "error", err)
		}
	}

	// Trim settings
	a.startEntry = widget.NewEntry()
	a.startEntry.SetText("0.00")
	a.endEntry = widget.NewEntry()
	a.endEntry.SetText("0.00")
	a.outputEntry = widget.NewEntry()

	a.setStartBtn = widget.NewButton("Set to Current", func() {
		a.startEntry.SetText(formatSeconds(a.currentTime()))
	})
	a.setEndBtn = widget.NewButton("Set to Current", func() {
		a.endEntry.SetText(formatSeconds(a.currentTime()))
	})
	a.trimBtn = widget.NewButton("Trim Video", a.submitTrim)

	a.statusLabel = widget.NewLabel("")
	a.noticeLabel = widget.NewLabel("")
	a.noticeLabel.Wrapping = fyne.TextWrapWord

	a.setControlsEnabled(false)

	header := container.NewVBox(
		widget.NewLabelWithStyle("Select Video File:", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		a.fileLabel,
		container.NewHBox(browseBtn),
	)

	previewSection := widget.NewCard("Video Preview", "", container.NewVBox(
		container.NewCenter(container.NewStack(background, a.preview)),
		container.NewCenter(container.NewHBox(a.backBtn, a.playBtn, a.forwardBtn, a.timeLabel)),
		a.timeline,
	))

	trimForm := container.NewGridWithColumns(3,
		widget.NewLabel("Start Time (seconds):"), a.startEntry, a.setStartBtn,
		widget.NewLabel("End Time (seconds):"), a.endEntry, a.setEndBtn,
		widget.NewLabel("Output Filename:"), a.outputEntry, widget.NewLabel(""),
	)

	trimSection := container.NewVBox(
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Trim Settings:", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		trimForm,
		container.NewCenter(a.trimBtn),
		a.statusLabel,
		a.noticeLabel,
	)

	return container.NewVScroll(container.NewVBox(header, previewSection, trimSection))
}

// browseFile opens the file dialog to select a video
func (a *App) browseFile() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.showError("Error", err.Error())
			return
		}
		if reader == nil {
			return // User cancelled
		}
		reader.Close()
		a.loadVideo(uriPath(reader.URI()))
	}, a.window)

	var exts []string
	for _, ext := range media.VideoExtensions {
		exts = append(exts, ext, strings.ToUpper(ext))
	}
	fd.SetFilter(storage.NewExtensionFileFilter(exts))
	fd.Show()
}

// loadVideo loads path and resets the trim form.
func (a *App) loadVideo(path string) {
	a.statusLabel.SetText("Loading video...")
	a.noticeLabel.SetText("")

	if err := a.player.Load(path); err != nil {
		a.setControlsEnabled(false)
		a.fileLabel.SetText("No file selected")
		a.statusLabel.SetText("")
		a.showError("Error", "Failed to load video:\n"+err.Error())
		return
	}

	s := a.player.Session()
	a.fileLabel.SetText(filepath.Base(path))
	a.startEntry.SetText("0.00")
	a.endEntry.SetText(formatSeconds(s.Duration))
	a.outputEntry.SetText(media.TrimmedName(path))
	a.setControlsEnabled(true)
	a.statusLabel.SetText("Video loaded successfully!")
}

func (a *App) jump(delta float64) {
	if err := a.player.Jump(delta); err != nil && !errors.Is(err, player.ErrNoSession) {
		a.logger.Warn("jump failed", "error", err)
	}
}

func (a *App) handleKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyLeft:
		a.jump(-a.cfg.JumpSeconds)
	case fyne.KeyRight:
		a.jump(a.cfg.JumpSeconds)
	case fyne.KeySpace:
		if err := a.player.Toggle(); err != nil && !errors.Is(err, player.ErrNoSession) {
			a.logger.Warn("toggle failed", "error", err)
		}
	}
}

func (a *App) currentTime() float64 {
	if s := a.player.Session(); s != nil {
		return s.Current
	}
	return 0
}

// submitTrim validates the form and hands the request to the runner.
func (a *App) submitTrim() {
	s := a.player.Session()
	if s == nil {
		a.showError("Warning", "Please select a video first!")
		return
	}

	start, errStart := strconv.ParseFloat(strings.TrimSpace(a.startEntry.Text), 64)
	end, errEnd := strconv.ParseFloat(strings.TrimSpace(a.endEntry.Text), 64)
	if errStart != nil || errEnd != nil {
		a.showError("Error", "Please enter valid numbers for start and end times!")
		return
	}

	req := trim.Request{Start: start, End: end, Output: a.outputEntry.Text}
	if _, err := a.runner.Submit(s.Clip(), req); err != nil {
		a.showError("Error", trimErrorMessage(err))
	}
}

func (a *App) trimStarted(trim.Job) {
	a.trimBtn.Disable()
	a.statusLabel.SetText("Trimming video... This may take a while.")
}

func (a *App) trimDone(res trim.Result) {
	if a.player.Session() != nil {
		a.trimBtn.Enable()
	}
	if res.Err != nil {
		a.statusLabel.SetText("Trimming failed!")
		a.showError("Error", "Failed to trim video:\n"+res.Err.Error())
		return
	}
	a.statusLabel.SetText("Video trimmed successfully!")
	a.showInfo("Success", "Video saved to:\n"+res.Job.OutputPath)
}

func (a *App) setControlsEnabled(enabled bool) {
	buttons := []*widget.Button{a.playBtn, a.backBtn, a.forwardBtn, a.setStartBtn, a.setEndBtn}
	if !a.runner.Busy() {
		buttons = append(buttons, a.trimBtn)
	}
	for _, b := range buttons {
		if enabled {
			b.Enable()
		} else {
			b.Disable()
		}
	}
	if enabled {
		a.timeline.Enable()
	} else {
		a.timeline.Disable()
	}
}

// uriPath converts a dialog URI to a filesystem path. On Windows, removes the
// leading slash from /C:/...
func uriPath(uri fyne.URI) string {
	path := uri.Path()
	if len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return path
}
