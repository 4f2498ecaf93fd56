package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

// Reporter uploads delivered files to a chat and rewrites the status message
type Reporter struct {
	client          Client
	chatID          int64
	statusMessageID int
	logger          *zap.Logger
}

// NewReporter creates a reporter for one chat and status message
func NewReporter(client Client, chatID int64, statusMessageID int, logger *zap.Logger) *Reporter {
	return &Reporter{
		client:          client,
		chatID:          chatID,
		statusMessageID: statusMessageID,
		logger:          logger,
	}
}

// Report sends every delivered file in order; parts are captioned "Part i/N (size)"
func (r *Reporter) Report(_ context.Context, outcome *domain.Outcome) error {
	if outcome.Kind != domain.OutcomeDelivered {
		r.setStatus(outcome.Reason)
		return nil
	}

	total := len(outcome.Files)
	if total > 1 {
		r.setStatus(fmt.Sprintf("Sending %d parts...", total))
	}

	for i, f := range outcome.Files {
		video := tgbotapi.NewVideo(r.chatID, tgbotapi.FilePath(f.Path))
		video.SupportsStreaming = true
		if total == 1 {
			video.Caption = fmt.Sprintf("Your video is ready! (%s)", domain.FormatSize(f.Size))
		} else {
			video.Caption = fmt.Sprintf("Part %d/%d (%s)", i+1, total, domain.FormatSize(f.Size))
		}

		if _, err := r.client.Send(video); err != nil {
			r.setStatus("Upload failed. Please try again later.")
			return fmt.Errorf("failed to send file %d/%d: %w", i+1, total, err)
		}

		r.logger.Info("File sent",
			zap.String("session_id", outcome.SessionID),
			zap.Int("part", i+1),
			zap.Int("parts", total))
	}

	if total > 1 {
		r.setStatus(fmt.Sprintf("Video sent in %d parts!", total))
	} else {
		r.setStatus("Video sent!")
	}
	return nil
}

func (r *Reporter) setStatus(text string) {
	editMessage(r.client, r.logger, r.chatID, r.statusMessageID, text)
}
