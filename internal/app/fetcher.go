package app

import (
	"context"
	"fmt"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
	"go.uber.org/zap"
)

// Fetcher walks a candidate cascade until one format materializes locally
type Fetcher struct {
	retriever domain.MediaRetriever
	guard     *infrastructure.PathGuard
	logger    *zap.Logger
}

// NewFetcher creates a fetcher writing into the guard's base directory
func NewFetcher(retriever domain.MediaRetriever, guard *infrastructure.PathGuard, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		retriever: retriever,
		guard:     guard,
		logger:    logger,
	}
}

// Fetch tries each candidate strictly in order and returns the first file that
// materializes. Files left by a failed candidate are removed before the next
// one starts.
func (f *Fetcher) Fetch(ctx context.Context, req *domain.DownloadRequest) (*domain.LocalMediaFile, error) {
	if len(req.Candidates) == 0 {
		return nil, domain.ErrNoViableFormat
	}

	prefix := req.SessionID + "_"
	template := f.guard.Join(prefix + "%(id)s.%(ext)s")

	for i, candidate := range req.Candidates {
		log := f.logger.With(
			zap.String("session_id", req.SessionID),
			zap.String("label", candidate.Label),
			zap.Int("attempt", i+1),
			zap.Int("candidates", len(req.Candidates)))

		if err := f.retriever.Retrieve(ctx, req.URL, candidate, template); err != nil {
			log.Warn("Format candidate failed", zap.Error(err))
			f.discard(prefix)
			continue
		}

		file, err := f.locate(req, prefix)
		if err != nil {
			log.Warn("Format candidate produced no file", zap.Error(err))
			f.discard(prefix)
			continue
		}

		log.Info("Format candidate retrieved",
			zap.String("path", file.Path),
			zap.String("size", domain.FormatSize(file.Size)))
		return file, nil
	}

	return nil, fmt.Errorf("%w: all %d candidates failed", domain.ErrDownloadFailed, len(req.Candidates))
}

// locate checks the expected output name first, then the newest session mp4
func (f *Fetcher) locate(req *domain.DownloadRequest, prefix string) (*domain.LocalMediaFile, error) {
	if req.VideoID != "" {
		expected := f.guard.Join(prefix + req.VideoID + ".mp4")
		if size, err := f.guard.Stat(expected); err == nil {
			return &domain.LocalMediaFile{Path: expected, Size: size}, nil
		}
	}

	path, err := f.guard.Newest(prefix, ".mp4")
	if err != nil {
		return nil, err
	}
	size, err := f.guard.Stat(path)
	if err != nil {
		return nil, err
	}
	return &domain.LocalMediaFile{Path: path, Size: size}, nil
}

func (f *Fetcher) discard(prefix string) {
	n, err := f.guard.RemoveMatching(prefix)
	if err != nil {
		f.logger.Warn("Failed to remove candidate artifacts", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	if n > 0 {
		f.logger.Debug("Removed candidate artifacts", zap.String("prefix", prefix), zap.Int("files", n))
	}
}
