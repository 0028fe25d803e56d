// Package trim validates trim requests and runs exports on a background
// worker, reporting the outcome back on the UI consumer.
package trim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-trimmer/event"
	"video-trimmer/logging"
	"video-trimmer/media"
)

var (
	ErrNoSession         = errors.New("please select a video first")
	ErrOutOfRange        = errors.New("trim times are out of video duration range")
	ErrStartNotBeforeEnd = errors.New("start time must be less than end time")
	ErrEmptyOutput       = errors.New("please enter an output filename")
	ErrBusy              = errors.New("a trim is already in progress")
)

// Request describes one export. Output may be a bare filename, which is
// placed next to the source.
type Request struct {
	Start  float64
	End    float64
	Output string
}

// Validate checks r against a clip of the given duration.
func (r Request) Validate(duration float64) error {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) || r.Start < 0 || r.End > duration {
		return fmt.Errorf("%w: %.2f-%.2f not within 0.00-%.2f", ErrOutOfRange, r.Start, r.End, duration)
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: %.2f >= %.2f", ErrStartNotBeforeEnd, r.Start, r.End)
	}
	if strings.TrimSpace(r.Output) == "" {
		return ErrEmptyOutput
	}
	return nil
}

// Job is an accepted request.
type Job struct {
	ID         string
	Request    Request
	OutputPath string
}

// Result is delivered to OnDone on the UI consumer.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Config wires a Runner.
type Config struct {
	Poster event.Poster
	Logger *slog.Logger
	// OnStart runs on the UI consumer when a job is accepted.
	OnStart func(Job)
	// OnDone runs on the UI consumer when a job finishes.
	OnDone func(Result)
}

// Runner allows one export at a time. Submit and the callbacks run on the UI
// consumer; only the export itself runs on a worker.
type Runner struct {
	poster  event.Poster
	logger  *slog.Logger
	onStart func(Job)
	onDone  func(Result)

	inFlight bool
}

// NewRunner creates an idle runner.
func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		poster:  cfg.Poster,
		logger:  logging.WithComponent(logger, "trim"),
		onStart: cfg.OnStart,
		onDone:  cfg.OnDone,
	}
}

// Busy reports whether an export is running.
func (r *Runner) Busy() bool {
	return r.inFlight
}

// Submit validates req against clip and starts the export. Rejected requests
// start nothing.
func (r *Runner) Submit(clip media.Clip, req Request) (Job, error) {
	if clip == nil {
		return Job{}, ErrNoSession
	}
	if r.inFlight {
		return Job{}, ErrBusy
	}
	if err := req.Validate(clip.Duration()); err != nil {
		return Job{}, err
	}

	job := Job{
		ID:         uuid.NewString(),
		Request:    req,
		OutputPath: media.ResolveOutput(clip.Path(), strings.TrimSpace(req.Output)),
	}
	r.inFlight = true

	logger := logging.WithJobID(r.logger, job.ID)
	logger.Info("trim started",
		"source", logging.SanitizePath(clip.Path()),
		"output", logging.SanitizePath(job.OutputPath),
		"start", req.Start,
		"end", req.End)

	if r.onStart != nil {
		r.onStart(job)
	}

	go r.run(clip, job, logger)
	return job, nil
}

func (r *Runner) run(clip media.Clip, job Job, logger *slog.Logger) {
	began := time.Now()
	err := clip.Export(context.Background(), job.Request.Start, job.Request.End, job.OutputPath)
	res := Result{Job: job, Err: err, Duration: time.Since(began)}

	posted := r.poster.Post(func() {
		r.finish(res, logger)
	})
	if !posted {
		logger.Warn("trim finished after shutdown, result dropped", "error", err)
	}
}

func (r *Runner) finish(res Result, logger *slog.Logger) {
	r.inFlight = false
	if res.Err != nil {
		logger.Error("trim failed", "error", res.Err, "took", res.Duration)
	} else {
		logger.Info("trim finished", "output", logging.SanitizePath(res.Job.OutputPath), "took", res.Duration)
	}
	if r.onDone != nil {
		r.onDone(res)
	}
}
