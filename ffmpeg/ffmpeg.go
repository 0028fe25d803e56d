package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// AudioSampleRate is the rate the preview track is extracted at.
const AudioSampleRate = 44100

// FFmpeg wraps ffmpeg and ffprobe executables
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

// New creates a new FFmpeg wrapper. dir, when set, is searched before the
// bin/ folders next to the executable and the working directory, then PATH.
func New(dir string, logger *slog.Logger) (*FFmpeg, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	var searchPaths []string
	if dir != "" {
		searchPaths = append(searchPaths, dir)
	}
	searchPaths = append(searchPaths,
		filepath.Join(exeDir, "bin"),       // Next to executable
		filepath.Join(exeDir, "..", "bin"), // Parent/bin (for development)
		"bin",                              // Relative to working directory
	)

	ffmpegName := "ffmpeg"
	ffprobeName := "ffprobe"
	if runtime.GOOS == "windows" {
		ffmpegName = "ffmpeg.exe"
		ffprobeName = "ffprobe.exe"
	}

	var ffmpegPath, ffprobePath string
	for _, searchPath := range searchPaths {
		candidate := filepath.Join(searchPath, ffmpegName)
		if _, err := os.Stat(candidate); err == nil {
			ffmpegPath = candidate
			ffprobePath = filepath.Join(searchPath, ffprobeName)
			break
		}
	}

	// Fall back to PATH
	if ffmpegPath == "" {
		ffmpegPath, _ = exec.LookPath(ffmpegName)
		ffprobePath, _ = exec.LookPath(ffprobeName)
	}

	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg not found. Please place %s in the bin/ folder or on PATH", ffmpegName)
	}
	if ffprobePath == "" {
		return nil, fmt.Errorf("ffprobe not found. Please place %s in the bin/ folder or on PATH", ffprobeName)
	}

	logger.Debug("ffmpeg located", "ffmpeg", ffmpegPath, "ffprobe", ffprobePath)

	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}, nil
}

// ExtractAudio decodes the first audio stream of inputPath into a 16-bit
// stereo PCM WAV file at AudioSampleRate.
func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, extractAudioArgs(inputPath, outputPath)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg audio extract failed: %s", strings.TrimSpace(stderr.String()))
	}

	return nil
}

func extractAudioArgs(inputPath, outputPath string) []string {
	return []string{
		"-v", "error",
		"-i", inputPath,
		"-vn",
		"-map", "0:a:0",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", AudioSampleRate),
		"-ac", "2",
		"-f", "wav",
		"-y",
		outputPath,
	}
}

// TrimClip re-encodes [startSec, startSec+durationSec) of inputPath into
// outputPath as H.264 + AAC. NVIDIA NVENC is tried first, then libx264.
func (f *FFmpeg) TrimClip(ctx context.Context, inputPath, outputPath string, startSec, durationSec float64) error {
	err := f.run(ctx, trimArgs(inputPath, outputPath, startSec, durationSec, encoderNVENC))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.logger.Debug("nvenc unavailable, falling back to libx264", "error", err)

	if err := f.run(ctx, trimArgs(inputPath, outputPath, startSec, durationSec, encoderCPU)); err != nil {
		return err
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("ffmpeg trim failed: %s", msg)
	}
	return nil
}

type encoder int

const (
	encoderNVENC encoder = iota
	encoderCPU
)

// trimArgs builds the trim command line. Two-pass seeking: a rough input
// seek lands up to 60 seconds before the start so a keyframe is decoded,
// the output seek then trims to the exact start.
func trimArgs(inputPath, outputPath string, startSec, durationSec float64, enc encoder) []string {
	roughSeek := startSec - 60
	if roughSeek < 0 {
		roughSeek = 0
	}
	fineSeek := startSec - roughSeek

	args := []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%.3f", roughSeek),
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.3f", fineSeek),
		"-t", fmt.Sprintf("%.3f", durationSec),
	}

	switch enc {
	case encoderNVENC:
		args = append(args,
			"-c:v", "h264_nvenc",
			"-preset", "p4",
			"-rc", "constqp",
			"-qp", "20",
		)
	default:
		args = append(args,
			"-c:v", "libx264",
			"-preset", "medium",
			"-crf", "20",
		)
	}

	return append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	)
}
