package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe output the trimmer needs. Width and
// Height are the displayed size, after Rotation is applied.
type ProbeResult struct {
	Duration  float64
	Width     int
	Height    int
	Rotation  int
	FrameRate float64
	HasAudio  bool
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads duration, video geometry, frame rate and audio presence.
func (f *FFmpeg) Probe(ctx context.Context, videoPath string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(stderr.String()))
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	res := &ProbeResult{}
	var videoDuration float64
	foundVideo := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			res.Width = s.Width
			res.Height = s.Height
			res.FrameRate = ParseFrameRate(s.AvgFrameRate)
			if res.FrameRate <= 0 {
				res.FrameRate = ParseFrameRate(s.RFrameRate)
			}
			videoDuration, _ = strconv.ParseFloat(s.Duration, 64)

			rotation, _ := strconv.ParseFloat(s.Tags.Rotate, 64)
			for _, sd := range s.SideDataList {
				if sd.Rotation != nil {
					rotation = *sd.Rotation
					break
				}
			}
			res.Rotation = normalizeRotation(rotation)
		case "audio":
			res.HasAudio = true
		}
	}

	if !foundVideo {
		return nil, fmt.Errorf("no video stream found")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", res.Width, res.Height)
	}

	// ffmpeg autorotates decoded frames, so quarter turns swap the size.
	if res.Rotation == 90 || res.Rotation == 270 {
		res.Width, res.Height = res.Height, res.Width
	}

	res.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	if res.Duration <= 0 || math.IsNaN(res.Duration) {
		res.Duration = videoDuration
	}
	if res.Duration <= 0 || math.IsNaN(res.Duration) {
		return nil, fmt.Errorf("could not determine duration")
	}

	return res, nil
}

// normalizeRotation maps a rotation in degrees to 0, 90, 180 or 270.
func normalizeRotation(deg float64) int {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := int(math.Round(deg/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}

// ParseFrameRate parses ffprobe rates like "30000/1001" or "25". Unknown or
// malformed rates give 0.
func ParseFrameRate(rate string) float64 {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0
	}
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
