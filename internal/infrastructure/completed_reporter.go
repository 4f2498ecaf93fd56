package infrastructure

import (
	"context"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

// CompletedDirReporter moves delivered files out of the work directory into
// the completed directory and rewrites the outcome paths accordingly.
type CompletedDirReporter struct {
	guard        *PathGuard
	completedDir string
	logger       *zap.Logger
}

// NewCompletedDirReporter creates a reporter moving files into completedDir
func NewCompletedDirReporter(guard *PathGuard, completedDir string, logger *zap.Logger) *CompletedDirReporter {
	return &CompletedDirReporter{
		guard:        guard,
		completedDir: completedDir,
		logger:       logger,
	}
}

// Report moves every delivered file; failed and cancelled outcomes are only logged
func (r *CompletedDirReporter) Report(_ context.Context, outcome *domain.Outcome) error {
	if outcome.Kind != domain.OutcomeDelivered {
		r.logger.Info("Session finished without delivery",
			zap.String("session_id", outcome.SessionID),
			zap.String("kind", string(outcome.Kind)),
			zap.String("reason", outcome.Reason))
		return nil
	}

	for i, f := range outcome.Files {
		dest, err := r.guard.MoveOut(f.Path, r.completedDir)
		if err != nil {
			return err
		}
		outcome.Files[i].Path = dest
	}

	r.logger.Info("Session delivered",
		zap.String("session_id", outcome.SessionID),
		zap.Int("files", len(outcome.Files)),
		zap.String("total_size", domain.FormatSize(outcome.TotalSize())))
	return nil
}
