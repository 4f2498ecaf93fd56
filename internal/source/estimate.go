package source

import (
	"github.com/yourusername/vidsplit-go/internal/domain"
)

// Policy holds the planner tolerances
type Policy struct {
	SafetyMultiplier float64
	HeightTolerance  int
}

// PolicyFromConfig builds a planner policy from transport configuration
func PolicyFromConfig(cfg domain.TransportConfig) Policy {
	return Policy{
		SafetyMultiplier: cfg.SafetyMultiplier,
		HeightTolerance:  cfg.HeightTolerance,
	}
}

// DefaultPolicy returns the standard tolerances: 1.5x the limit and 10px of height
func DefaultPolicy() Policy {
	return Policy{SafetyMultiplier: 1.5, HeightTolerance: 10}
}

// EstimateSize estimates the delivered size of the given height tier.
//
// It scans video-bearing streams whose height is within tolerance of the tier
// and returns the first one with a known size. Video-only streams are paired
// with the best audio-only stream of known size; if no such audio exists the
// stream yields no estimate and the scan continues.
func EstimateSize(meta *domain.VideoMetadata, height, tolerance int) (int64, bool) {
	if meta == nil {
		return 0, false
	}

	audioSize, audioKnown := bestAudioSize(meta.Formats)

	for _, f := range meta.Formats {
		if !f.HasVideo() || f.Height == nil {
			continue
		}
		if abs(*f.Height-height) > tolerance {
			continue
		}

		size, ok := f.KnownSize()
		if !ok {
			continue
		}
		if f.HasAudio() {
			return size, true
		}
		if !audioKnown {
			continue
		}
		return size + audioSize, true
	}

	return 0, false
}

// bestAudioSize returns the size of the highest bitrate audio-only stream with a known size
func bestAudioSize(formats []domain.StreamFormat) (int64, bool) {
	var (
		best    int64
		bestABR = -1.0
		found   bool
	)
	for _, f := range formats {
		if !f.IsAudioOnly() {
			continue
		}
		size, ok := f.KnownSize()
		if !ok {
			continue
		}
		if f.AudioBitrate > bestABR {
			best, bestABR, found = size, f.AudioBitrate, true
		}
	}
	return best, found
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
