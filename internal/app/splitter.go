package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
	"go.uber.org/zap"
)

// Checkpoint returns a non-nil error when the caller wants the work abandoned
type Checkpoint func() error

// Splitter partitions an oversized file into parts that each fit the limit
type Splitter struct {
	tool   domain.MediaTool
	guard  *infrastructure.PathGuard
	config *domain.SplitConfig
	logger *zap.Logger
}

// NewSplitter creates a splitter
func NewSplitter(tool domain.MediaTool, guard *infrastructure.PathGuard, config *domain.SplitConfig, logger *zap.Logger) *Splitter {
	return &Splitter{
		tool:   tool,
		guard:  guard,
		config: config,
		logger: logger,
	}
}

// Plan probes the duration of file and computes its initial partition
func (s *Splitter) Plan(ctx context.Context, file domain.LocalMediaFile, limit int64) (domain.SplitPlan, float64, error) {
	duration, err := s.tool.Duration(ctx, file.Path)
	if err != nil {
		return domain.SplitPlan{}, 0, fmt.Errorf("%w: %w", domain.ErrSplitFailed, err)
	}

	plan, err := domain.NewSplitPlan(file.Size, duration, limit, s.config.TargetRatio)
	if err != nil {
		return domain.SplitPlan{}, 0, fmt.Errorf("%w: %v", domain.ErrSplitFailed, err)
	}
	return plan, duration, nil
}

// Split cuts file into plan.PartCount parts of at most limit bytes each.
// Part i starts at i × PartDuration. An oversized part is deleted and re-cut
// from the same start with its duration multiplied by the shrink factor; the
// start of later parts is unaffected. Any failure removes every part produced
// so far; the source file is left to the caller.
func (s *Splitter) Split(ctx context.Context, file domain.LocalMediaFile, limit int64, checkpoint Checkpoint) ([]domain.LocalMediaFile, error) {
	plan, duration, err := s.Plan(ctx, file, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Splitting file",
		zap.String("path", file.Path),
		zap.String("size", domain.FormatSize(file.Size)),
		zap.Float64("duration", duration),
		zap.Int("parts", plan.PartCount),
		zap.Float64("part_duration", plan.PartDuration))

	base := strings.TrimSuffix(file.Path, filepath.Ext(file.Path))
	var parts []domain.LocalMediaFile

	fail := func(err error) ([]domain.LocalMediaFile, error) {
		s.discard(parts)
		return nil, err
	}

	for i := 0; i < plan.PartCount; i++ {
		if checkpoint != nil {
			if err := checkpoint(); err != nil {
				return fail(err)
			}
		}

		start := float64(i) * plan.PartDuration
		part, err := s.cutPart(ctx, file.Path, fmt.Sprintf("%s_part%d.mp4", base, i+1), i+1, start, plan.PartDuration, limit)
		if err != nil {
			return fail(err)
		}
		parts = append(parts, *part)
	}

	return parts, nil
}

// cutPart trims one part, shrinking it on overflow until it fits or attempts run out
func (s *Splitter) cutPart(ctx context.Context, src, dst string, index int, start, partDuration float64, limit int64) (*domain.LocalMediaFile, error) {
	if _, err := s.guard.Check(dst); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSplitFailed, err)
	}

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		if err := s.tool.Trim(ctx, src, dst, start, partDuration); err != nil {
			s.guard.Remove(dst)
			return nil, fmt.Errorf("%w: part %d: %w", domain.ErrSplitFailed, index, err)
		}

		size, err := s.guard.Stat(dst)
		if err != nil {
			return nil, fmt.Errorf("%w: part %d: %w", domain.ErrSplitFailed, index, err)
		}

		if size <= limit {
			s.logger.Info("Part accepted",
				zap.Int("part", index),
				zap.Int("attempt", attempt),
				zap.Float64("start", start),
				zap.Float64("duration", partDuration),
				zap.String("size", domain.FormatSize(size)))
			return &domain.LocalMediaFile{Path: dst, Size: size, Duration: partDuration}, nil
		}

		s.logger.Warn("Part exceeds limit",
			zap.Int("part", index),
			zap.Int("attempt", attempt),
			zap.String("size", domain.FormatSize(size)),
			zap.String("limit", domain.FormatSize(limit)))

		if err := s.guard.Remove(dst); err != nil {
			return nil, fmt.Errorf("%w: part %d: %w", domain.ErrSplitFailed, index, err)
		}
		partDuration *= s.config.ShrinkFactor
	}

	return nil, fmt.Errorf("%w: part %d still exceeds %s after %d attempts",
		domain.ErrSplitFailed, index, domain.FormatSize(limit), s.config.MaxAttempts)
}

func (s *Splitter) discard(parts []domain.LocalMediaFile) {
	for _, p := range parts {
		if err := s.guard.Remove(p.Path); err != nil {
			s.logger.Warn("Failed to remove part", zap.String("path", p.Path), zap.Error(err))
		}
	}
}
