package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/vidsplit-go/internal/domain"
)

// FFmpeg implements domain.MediaTool with ffprobe and ffmpeg
type FFmpeg struct {
	ffmpegBinary  string
	ffprobeBinary string
	runner        CommandRunner
	processLog    *ProcessLog
}

// NewFFmpeg creates a media tool using the configured binaries
func NewFFmpeg(config *domain.SplitConfig, runner CommandRunner, processLog *ProcessLog) *FFmpeg {
	ffmpeg, ffprobe := config.FFmpegBinary, config.FFprobeBinary
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &FFmpeg{
		ffmpegBinary:  ffmpeg,
		ffprobeBinary: ffprobe,
		runner:        runner,
		processLog:    processLog,
	}
}

// Duration reads the container duration in seconds
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	var stdout, stderr bytes.Buffer
	cmd := Command{
		Binary: f.ffprobeBinary,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
		Stdout: &stdout,
		Stderr: &stderr,
	}

	if err := f.runner.Run(ctx, cmd); err != nil {
		return 0, fmt.Errorf("%w: %v: %s", domain.ErrDurationProbeFailed, err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable duration %q", domain.ErrDurationProbeFailed, raw)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %q", domain.ErrDurationProbeFailed, raw)
	}
	return duration, nil
}

// Trim copies [start, start+duration) of src into dst with stream copy
func (f *FFmpeg) Trim(ctx context.Context, src, dst string, start, duration float64) error {
	cmd := Command{
		Binary: f.ffmpegBinary,
		Args: []string{
			"-i", src,
			"-ss", formatSeconds(start),
			"-t", formatSeconds(duration),
			"-c", "copy",
			"-y", dst,
		},
	}

	entry, err := f.processLog.Begin("trim "+dst, cmd)
	if err != nil {
		return err
	}
	cmd.Stdout = entry.Writer()
	cmd.Stderr = entry.Writer()

	if err := f.runner.Run(ctx, cmd); err != nil {
		entry.End(err, "trim failed")
		return err
	}
	return entry.End(nil, "trimmed")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
