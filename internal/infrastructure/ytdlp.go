package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

// YTDLP implements domain.MetadataProber and domain.MediaRetriever on top of the yt-dlp binary
type YTDLP struct {
	binary     string
	cookieFile string
	runner     CommandRunner
	processLog *ProcessLog
	logger     *zap.Logger
}

// NewYTDLP creates a yt-dlp client
func NewYTDLP(config *domain.DownloadConfig, runner CommandRunner, processLog *ProcessLog, logger *zap.Logger) *YTDLP {
	binary := config.YTDLPBinary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{
		binary:     binary,
		cookieFile: config.CookieFile,
		runner:     runner,
		processLog: processLog,
		logger:     logger,
	}
}

// ytdlpInfo mirrors the subset of `yt-dlp -J` output we consume.
// Numeric fields are floats since some extractors report fractional sizes.
type ytdlpInfo struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Duration   *float64      `json:"duration"`
	WebpageURL string        `json:"webpage_url"`
	Extractor  string        `json:"extractor"`
	Formats    []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Height         *float64 `json:"height"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
	ABR            *float64 `json:"abr"`
}

// Probe runs `yt-dlp -J` and parses the format list
func (y *YTDLP) Probe(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	args := []string{"-J", "--no-warnings", "--no-playlist"}
	args = append(args, y.cookieArgs()...)
	args = append(args, url)

	var stdout bytes.Buffer
	cmd := Command{Binary: y.binary, Args: args, Stdout: &stdout}

	entry, err := y.processLog.Begin("probe "+url, cmd)
	if err != nil {
		return nil, err
	}
	cmd.Stderr = entry.Writer()

	runErr := y.runner.Run(ctx, cmd)
	if runErr != nil {
		entry.End(runErr, "probe failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataProbeFailed, runErr)
	}

	meta, err := ParseProbeOutput(stdout.Bytes())
	if err != nil {
		entry.End(err, "unparseable probe output")
		return nil, err
	}
	entry.End(nil, fmt.Sprintf("probed %s (%d formats)", meta.ID, len(meta.Formats)))

	y.logger.Debug("Probed video metadata",
		zap.String("url", url),
		zap.String("video_id", meta.ID),
		zap.Int("formats", len(meta.Formats)))

	return meta, nil
}

// ParseProbeOutput converts `yt-dlp -J` JSON into domain metadata
func ParseProbeOutput(data []byte) (*domain.VideoMetadata, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", domain.ErrMetadataProbeFailed, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: missing video id", domain.ErrMetadataProbeFailed)
	}

	meta := &domain.VideoMetadata{
		ID:         info.ID,
		Title:      info.Title,
		WebpageURL: info.WebpageURL,
		Extractor:  info.Extractor,
		Formats:    make([]domain.StreamFormat, 0, len(info.Formats)),
	}
	if info.Duration != nil {
		meta.Duration = *info.Duration
	}

	for _, f := range info.Formats {
		sf := domain.StreamFormat{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			VCodec:   codecOrEmpty(f.VCodec),
			ACodec:   codecOrEmpty(f.ACodec),
		}
		if f.Height != nil {
			h := int(*f.Height)
			sf.Height = &h
		}
		if f.Filesize != nil {
			v := int64(*f.Filesize)
			sf.Filesize = &v
		}
		if f.FilesizeApprox != nil {
			v := int64(*f.FilesizeApprox)
			sf.FilesizeApprox = &v
		}
		if f.ABR != nil {
			sf.AudioBitrate = *f.ABR
		}
		meta.Formats = append(meta.Formats, sf)
	}

	return meta, nil
}

func codecOrEmpty(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}

// Retrieve downloads one candidate, merging separate streams into mp4.
// stdout and stderr go to the process log.
func (y *YTDLP) Retrieve(ctx context.Context, url string, candidate domain.FormatCandidate, outputTemplate string) error {
	args := []string{
		"-f", candidate.Selector,
		"--merge-output-format", "mp4",
		"--restrict-filenames",
		"--no-playlist",
		"--no-progress",
		"-o", outputTemplate,
	}
	for _, v := range candidate.ExtractorArgValues() {
		args = append(args, "--extractor-args", v)
	}
	args = append(args, y.cookieArgs()...)
	args = append(args, url)

	cmd := Command{Binary: y.binary, Args: args}
	entry, err := y.processLog.Begin("retrieve "+url, cmd)
	if err != nil {
		return err
	}
	cmd.Stdout = entry.Writer()
	cmd.Stderr = entry.Writer()

	y.logger.Info("Retrieving format",
		zap.String("url", url),
		zap.String("label", candidate.Label),
		zap.String("selector", candidate.Selector))

	if err := y.runner.Run(ctx, cmd); err != nil {
		entry.End(err, "retrieve failed")
		return fmt.Errorf("yt-dlp retrieve %s: %w", candidate.Label, err)
	}
	entry.End(nil, "retrieved "+candidate.Label)
	return nil
}

func (y *YTDLP) cookieArgs() []string {
	if y.cookieFile == "" || !fileExists(y.cookieFile) {
		return nil
	}
	return []string{"--cookies", y.cookieFile}
}

// Version returns the yt-dlp version string, used by readiness checks
func (y *YTDLP) Version(ctx context.Context) (string, error) {
	var out bytes.Buffer
	if err := y.runner.Run(ctx, Command{Binary: y.binary, Args: []string{"--version"}, Stdout: &out, Stderr: io.Discard}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
