package source

import (
	"regexp"

	"github.com/yourusername/vidsplit-go/internal/domain"
)

var instagramPattern = regexp.MustCompile(`^(https?://)?(www\.)?instagram\.com/(p|reel)/.+$`)

// InstagramSelector picks the best mp4, or the best of anything
const InstagramSelector = "best[ext=mp4]/best"

// InstagramHandler handles Instagram posts and reels with a single best-effort candidate
type InstagramHandler struct{}

// NewInstagramHandler creates an Instagram handler
func NewInstagramHandler() *InstagramHandler {
	return &InstagramHandler{}
}

// Name returns the platform name
func (h *InstagramHandler) Name() string {
	return "instagram"
}

// Matches reports whether url is an Instagram post or reel
func (h *InstagramHandler) Matches(url string) bool {
	return instagramPattern.MatchString(url)
}

// CandidateFormats always returns exactly one candidate
func (h *InstagramHandler) CandidateFormats(_ *domain.VideoMetadata, _ int64) []domain.FormatCandidate {
	return []domain.FormatCandidate{{Label: "best", Selector: InstagramSelector}}
}
