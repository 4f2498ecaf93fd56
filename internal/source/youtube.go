package source

import (
	"fmt"
	"regexp"

	"github.com/yourusername/vidsplit-go/internal/domain"
)

var youtubePattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)

// LegacySelector is the pre-muxed 360p stream, the last resort for YouTube
const LegacySelector = "18"

type tier struct {
	height        int
	extractorArgs map[string]map[string]string
	gated         bool
}

var mediaconnectArgs = map[string]map[string]string{
	"youtube": {"player_client": "mediaconnect"},
}

var youtubeTiers = []tier{
	{height: 1080, extractorArgs: mediaconnectArgs, gated: true},
	{height: 720, extractorArgs: mediaconnectArgs, gated: true},
	{height: 480},
}

// YouTubeHandler plans a quality cascade for YouTube links
type YouTubeHandler struct {
	policy Policy
}

// NewYouTubeHandler creates a YouTube handler with the given tolerances
func NewYouTubeHandler(policy Policy) *YouTubeHandler {
	return &YouTubeHandler{policy: policy}
}

// Name returns the platform name
func (h *YouTubeHandler) Name() string {
	return "youtube"
}

// Matches reports whether url is a youtube.com or youtu.be link
func (h *YouTubeHandler) Matches(url string) bool {
	return youtubePattern.MatchString(url)
}

// CandidateFormats returns the cascade: gated 1080/720 tiers whose estimate
// fits within limit*multiplier, then 480 and the legacy stream unconditionally.
func (h *YouTubeHandler) CandidateFormats(meta *domain.VideoMetadata, limitBytes int64) []domain.FormatCandidate {
	ceiling := float64(limitBytes) * h.policy.SafetyMultiplier

	var candidates []domain.FormatCandidate
	for _, t := range youtubeTiers {
		if t.gated {
			size, ok := EstimateSize(meta, t.height, h.policy.HeightTolerance)
			if !ok || float64(size) > ceiling {
				continue
			}
		}
		candidates = append(candidates, domain.FormatCandidate{
			Label:         fmt.Sprintf("%dp", t.height),
			Selector:      heightSelector(t.height),
			ExtractorArgs: t.extractorArgs,
		})
	}

	return append(candidates, domain.FormatCandidate{
		Label:    "360p legacy",
		Selector: LegacySelector,
	})
}

func heightSelector(height int) string {
	return fmt.Sprintf("bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%d]+bestaudio", height, height)
}
