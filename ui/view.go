package ui

import (
	"errors"
	"fmt"
	"image"
	"math"

	"video-trimmer/trim"
)

// ShowFrame implements player.View.
func (a *App) ShowFrame(img image.Image) {
	a.preview.Image = img
	a.preview.Refresh()
}

// SetPosition implements player.View.
func (a *App) SetPosition(current, duration float64) {
	a.syncingTimeline = true
	if duration != a.duration {
		a.duration = duration
		a.timeline.Max = duration
		a.timeline.Refresh()
	}
	a.timeline.SetValue(current)
	a.syncingTimeline = false

	a.timeLabel.SetText(formatTimestamp(current) + " / " + formatTimestamp(duration))
}

// SetPlaying implements player.View.
func (a *App) SetPlaying(playing bool) {
	if playing {
		a.playBtn.SetText("⏸ Pause")
	} else {
		a.playBtn.SetText("▶ Play")
	}
}

// formatTimestamp formats seconds as MM:SS.ss
func formatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	m := int(seconds / 60)
	s := math.Mod(seconds, 60)
	return fmt.Sprintf("%02d:%05.2f", m, s)
}

// formatSeconds formats seconds for the trim entries
func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.2f", seconds)
}

func trimErrorMessage(err error) string {
	switch {
	case errors.Is(err, trim.ErrOutOfRange):
		return "Trim times are out of video duration range!"
	case errors.Is(err, trim.ErrStartNotBeforeEnd):
		return "Start time must be less than end time!"
	case errors.Is(err, trim.ErrEmptyOutput):
		return "Please enter an output filename!"
	case errors.Is(err, trim.ErrNoSession):
		return "Please select a video first!"
	case errors.Is(err, trim.ErrBusy):
		return "A trim is already in progress."
	default:
		return "An error occurred:\n" + err.Error()
	}
}
