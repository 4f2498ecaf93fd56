package domain

import (
	"errors"
)

// Terminal and intermediate failure kinds. Callers wrap these with
// fmt.Errorf("%w") and match them with errors.Is.
var (
	ErrUnsupportedSource   = errors.New("unsupported source")
	ErrMetadataProbeFailed = errors.New("metadata probe failed")
	ErrNoViableFormat      = errors.New("no viable format")
	ErrDownloadFailed      = errors.New("download failed")
	ErrDurationProbeFailed = errors.New("duration probe failed")
	ErrSplitFailed         = errors.New("split failed")
	ErrUnsafePath          = errors.New("unsafe path")
	ErrAlreadyActive       = errors.New("session already active")
	ErrCancelled           = errors.New("session cancelled")
	ErrSessionNotFound     = errors.New("session not found")
)

// UserMessage translates an error into a single line suitable for an end user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedSource):
		return "Unsupported link. Send a YouTube or Instagram video URL."
	case errors.Is(err, ErrAlreadyActive):
		return "A download is already in progress. Wait for it to finish or cancel it first."
	case errors.Is(err, ErrCancelled):
		return "Download cancelled."
	case errors.Is(err, ErrMetadataProbeFailed):
		return "Could not read video information. The video may be private or unavailable."
	case errors.Is(err, ErrNoViableFormat):
		return "No downloadable format fits the size limit."
	case errors.Is(err, ErrDownloadFailed):
		return "Download failed for every available quality."
	case errors.Is(err, ErrUnsafePath):
		return "Internal storage error."
	case errors.Is(err, ErrDurationProbeFailed), errors.Is(err, ErrSplitFailed):
		return "The video is too large and could not be split into deliverable parts."
	case errors.Is(err, ErrSessionNotFound):
		return "No active download to cancel."
	default:
		return "Unexpected error: " + err.Error()
	}
}
