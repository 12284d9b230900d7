package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultFrameTimeout = 30 * time.Second

// FFmpegOpener opens videos with ffprobe and decodes frames with ffmpeg
// subprocesses. Each frame is an independent short-lived process, so a
// corrupt region of video fails only that frame.
type FFmpegOpener struct {
	FFmpegPath   string
	FFprobePath  string
	FrameTimeout time.Duration
}

// NewFFmpegOpener builds an opener with the given binary paths. Empty paths
// fall back to looking up ffmpeg/ffprobe on PATH.
func NewFFmpegOpener(ffmpegPath, ffprobePath string, frameTimeout time.Duration) *FFmpegOpener {
	return &FFmpegOpener{
		FFmpegPath:   ffmpegPath,
		FFprobePath:  ffprobePath,
		FrameTimeout: frameTimeout,
	}
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
}

type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Open probes the video and returns a Source for it.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (Source, error) {
	cmd := exec.CommandContext(ctx, o.ffprobe(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	fps, total := videoShape(result)
	return &ffmpegSource{
		path:    path,
		fps:     fps,
		total:   total,
		ffmpeg:  o.ffmpegBin(),
		timeout: o.frameTimeout(),
	}, nil
}

func (o *FFmpegOpener) ffmpegBin() string {
	if strings.TrimSpace(o.FFmpegPath) != "" {
		return o.FFmpegPath
	}
	return "ffmpeg"
}

func (o *FFmpegOpener) ffprobe() string {
	if strings.TrimSpace(o.FFprobePath) != "" {
		return o.FFprobePath
	}
	return "ffprobe"
}

func (o *FFmpegOpener) frameTimeout() time.Duration {
	if o.FrameTimeout > 0 {
		return o.FrameTimeout
	}
	return defaultFrameTimeout
}

// videoShape pulls fps and the total frame count from a probe result. When
// nb_frames is absent (common for some containers) the count is derived
// from duration and fps.
func videoShape(result probeResult) (float64, int) {
	duration, _ := strconv.ParseFloat(result.Format.Duration, 64)
	for _, s := range result.Streams {
		if s.CodecType != "video" {
			continue
		}
		fps := parseRate(s.AvgFrameRate)
		if fps <= 0 {
			fps = parseRate(s.RFrameRate)
		}
		total, err := strconv.Atoi(strings.TrimSpace(s.NBFrames))
		if err != nil || total <= 0 {
			total = 0
			if fps > 0 && duration > 0 {
				total = int(duration * fps)
			}
		}
		return fps, total
	}
	return 0, 0
}

// parseRate parses an ffprobe rational rate such as "30000/1001".
func parseRate(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if num, den, found := strings.Cut(raw, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

type ffmpegSource struct {
	path    string
	fps     float64
	total   int
	ffmpeg  string
	timeout time.Duration
}

func (s *ffmpegSource) FPS() float64     { return s.fps }
func (s *ffmpegSource) TotalFrames() int { return s.total }
func (s *ffmpegSource) Close() error     { return nil }

// FrameAt seeks to the frame's position and returns it as a 720p JPEG.
func (s *ffmpegSource) FrameAt(ctx context.Context, index int) (Frame, error) {
	if s.fps <= 0 {
		return Frame{}, fmt.Errorf("frame %d: invalid frame rate", index)
	}
	second := float64(index) / s.fps

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.ffmpeg,
		"-ss", strconv.FormatFloat(second, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-vf", "scale=-2:720",
		"-q:v", "2",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return Frame{}, fmt.Errorf("frame %d: ffmpeg timed out after %s", index, s.timeout)
		}
		return Frame{}, fmt.Errorf("frame %d: %w: %s", index, err, lastLine(stderr.String()))
	}

	data := stdout.Bytes()
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("frame %d: ffmpeg produced no output", index)
	}

	return Frame{
		Index:     index,
		Second:    second,
		Timestamp: FormatTimestamp(second),
		JPEG:      data,
	}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ Opener = (*FFmpegOpener)(nil)
