package domain

import (
	"fmt"
	"sort"
	"strings"
)

// StreamFormat is one encoding offered by the remote source
type StreamFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         *int    `json:"height,omitempty"`
	Filesize       *int64  `json:"filesize,omitempty"`
	FilesizeApprox *int64  `json:"filesize_approx,omitempty"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	AudioBitrate   float64 `json:"abr,omitempty"`
}

// HasVideo reports whether the stream carries a video track
func (f StreamFormat) HasVideo() bool {
	return f.VCodec != "none"
}

// HasAudio reports whether the stream carries an audio track
func (f StreamFormat) HasAudio() bool {
	return f.ACodec != "none"
}

// IsAudioOnly reports whether the stream is audio without video
func (f StreamFormat) IsAudioOnly() bool {
	return !f.HasVideo() && f.HasAudio()
}

// KnownSize returns the exact size if present, the approximate size otherwise
func (f StreamFormat) KnownSize() (int64, bool) {
	if f.Filesize != nil && *f.Filesize > 0 {
		return *f.Filesize, true
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return *f.FilesizeApprox, true
	}
	return 0, false
}

// VideoMetadata is the probed description of a remote video
type VideoMetadata struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Duration   float64        `json:"duration"`
	WebpageURL string         `json:"webpage_url"`
	Extractor  string         `json:"extractor"`
	Formats    []StreamFormat `json:"formats"`
}

// FormatCandidate is one retrieval attempt: a format selector plus extractor options.
// Candidate lists are ordered by preference.
type FormatCandidate struct {
	Label         string                       `json:"label"`
	Selector      string                       `json:"selector"`
	ExtractorArgs map[string]map[string]string `json:"extractor_args,omitempty"`
}

// ExtractorArgValues renders the extractor options as yt-dlp --extractor-args values,
// e.g. "youtube:player_client=mediaconnect"
func (c FormatCandidate) ExtractorArgValues() []string {
	if len(c.ExtractorArgs) == 0 {
		return nil
	}

	extractors := make([]string, 0, len(c.ExtractorArgs))
	for name := range c.ExtractorArgs {
		extractors = append(extractors, name)
	}
	sort.Strings(extractors)

	values := make([]string, 0, len(extractors))
	for _, name := range extractors {
		opts := c.ExtractorArgs[name]
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+opts[k])
		}
		values = append(values, name+":"+strings.Join(pairs, ";"))
	}
	return values
}

// LocalMediaFile is a file on local storage owned by exactly one stage at a time
type LocalMediaFile struct {
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration,omitempty"`
}

// SplitPlan is the initial partition of a file into equal-duration parts
type SplitPlan struct {
	PartCount       int     `json:"part_count"`
	PartDuration    float64 `json:"part_duration"`
	TargetPartBytes int64   `json:"target_part_bytes"`
}

// NewSplitPlan computes the plan for a file of the given size and duration.
// The per-part target is limit*ratio; PartCount is floor(size/target)+1.
func NewSplitPlan(size int64, duration float64, limit int64, ratio float64) (SplitPlan, error) {
	if duration <= 0 {
		return SplitPlan{}, fmt.Errorf("invalid duration %.3f", duration)
	}
	target := int64(float64(limit) * ratio)
	if target <= 0 {
		return SplitPlan{}, fmt.Errorf("invalid part target for limit %d and ratio %.3f", limit, ratio)
	}

	count := int(size/target) + 1
	return SplitPlan{
		PartCount:       count,
		PartDuration:    duration / float64(count),
		TargetPartBytes: target,
	}, nil
}

// FormatSize renders a byte count in megabytes, e.g. "12.3MB"
func FormatSize(size int64) string {
	return fmt.Sprintf("%.1fMB", float64(size)/(1024*1024))
}
