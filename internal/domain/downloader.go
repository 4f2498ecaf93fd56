package domain

import "context"

// SourceHandler recognizes links of one platform and plans their format cascade
type SourceHandler interface {
	// Name returns the platform name, e.g. "youtube"
	Name() string

	// Matches reports whether the URL belongs to this platform
	Matches(url string) bool

	// CandidateFormats returns retrieval candidates ordered by preference
	CandidateFormats(meta *VideoMetadata, limitBytes int64) []FormatCandidate
}

// MetadataProber fetches the format list of a remote video without downloading it
type MetadataProber interface {
	Probe(ctx context.Context, url string) (*VideoMetadata, error)
}

// MediaRetriever downloads one format candidate to the given output template
type MediaRetriever interface {
	Retrieve(ctx context.Context, url string, candidate FormatCandidate, outputTemplate string) error
}

// MediaTool probes and trims local media files
type MediaTool interface {
	// Duration returns the container duration in seconds
	Duration(ctx context.Context, path string) (float64, error)

	// Trim copies [start, start+duration) of src into dst without re-encoding
	Trim(ctx context.Context, src, dst string, start, duration float64) error
}
