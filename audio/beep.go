package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// SpeakerRate matches the rate tracks are extracted at.
const SpeakerRate = beep.SampleRate(44100)

// BeepEngine plays WAV tracks through the default output device. The speaker
// is initialized lazily on the first Load, which must happen on the UI
// consumer.
type BeepEngine struct {
	rate        beep.SampleRate
	initialized bool
	logger      *slog.Logger
}

// NewBeepEngine creates an engine that will open the speaker at SpeakerRate.
func NewBeepEngine(logger *slog.Logger) *BeepEngine {
	return &BeepEngine{rate: SpeakerRate, logger: logger}
}

func (e *BeepEngine) init() error {
	if e.initialized {
		return nil
	}
	if err := speaker.Init(e.rate, e.rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	e.initialized = true
	e.logger.Debug("speaker initialized", "rate", int(e.rate))
	return nil
}

// Load implements Engine.
func (e *BeepEngine) Load(path string) (Track, error) {
	if err := e.init(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	track, err := newBeepTrack(f, e.rate)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return track, nil
}

// newBeepTrack decodes a WAV stream. The track owns r: closing the track
// closes r. wav.Decode closes r itself when decoding fails.
func newBeepTrack(r io.ReadCloser, outRate beep.SampleRate) (*beepTrack, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, err
	}
	return &beepTrack{
		streamer:   streamer,
		format:     format,
		outRate:    outRate,
		capability: capabilityFor(streamer.Len()),
	}, nil
}

// capabilityFor picks how a track of length samples is repositioned. An
// unknown length rules out direct seeks.
func capabilityFor(length int) Capability {
	if length <= 0 {
		return RestartOnly
	}
	return DirectSeek
}

type beepTrack struct {
	streamer   beep.StreamSeekCloser
	format     beep.Format
	outRate    beep.SampleRate
	capability Capability
}

func (t *beepTrack) Capability() Capability {
	return t.capability
}

func (t *beepTrack) Seek(offset time.Duration) error {
	pos := t.format.SampleRate.N(offset)
	if n := t.streamer.Len(); n > 0 && pos > n {
		pos = n
	}
	speaker.Lock()
	defer speaker.Unlock()
	return t.streamer.Seek(pos)
}

func (t *beepTrack) Rewind() error {
	speaker.Lock()
	defer speaker.Unlock()
	return t.streamer.Seek(0)
}

// Skip discards samples until offset has been consumed or the stream ends.
func (t *beepTrack) Skip(offset time.Duration) error {
	remaining := t.format.SampleRate.N(offset)
	var buf [512][2]float64

	speaker.Lock()
	defer speaker.Unlock()
	for remaining > 0 {
		chunk := min(remaining, len(buf))
		n, ok := t.streamer.Stream(buf[:chunk])
		remaining -= n
		if !ok {
			break
		}
	}
	return t.streamer.Err()
}

func (t *beepTrack) Play() {
	var s beep.Streamer = t.streamer
	if t.format.SampleRate != t.outRate {
		s = beep.Resample(4, t.format.SampleRate, t.outRate, s)
	}
	speaker.Play(s)
}

func (t *beepTrack) Stop() {
	speaker.Clear()
}

// Close stops playback and closes the underlying file through the decoder.
func (t *beepTrack) Close() error {
	speaker.Clear()
	return t.streamer.Close()
}
