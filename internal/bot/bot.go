package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

const startText = `Hi! I download videos from YouTube and Instagram.

Send a link and I will pick the best quality that fits Telegram's 50MB upload limit.
Larger videos are split into parts automatically.

Commands:
/start - this message
/help - usage details
/cancel - stop your current download`

const helpText = `How to use:
1. Send a video link
2. I download it in the best quality that fits
3. If it is over 50MB I split it into parts

Supported links:
YouTube: youtube.com/watch?v=..., youtu.be/..., youtube.com/shorts/...
Instagram: instagram.com/p/... (posts), instagram.com/reel/... (reels)

Quality: YouTube tries 1080p, 720p, 480p, then 360p. Instagram uses the best available.
Only public videos are supported.`

var stageText = map[domain.SessionStage]string{
	domain.StageQueued:     "Queued...",
	domain.StageProbing:    "Reading video info...",
	domain.StageFetching:   "Downloading...",
	domain.StageSplitting:  "Video is large, splitting into parts...",
	domain.StageDelivering: "Uploading...",
}

// Client is the subset of *tgbotapi.BotAPI the bot uses
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Sessions starts and cancels download sessions
type Sessions interface {
	Submit(ctx context.Context, req app.SubmitRequest) (*app.SessionHandle, error)
	Cancel(requesterID string) error
}

// Bot turns Telegram messages into download sessions
type Bot struct {
	client      Client
	sessions    Sessions
	pollTimeout int
	logger      *zap.Logger
}

// New creates a bot
func New(client Client, sessions Sessions, config *domain.TelegramConfig, logger *zap.Logger) *Bot {
	return &Bot{
		client:      client,
		sessions:    sessions,
		pollTimeout: config.PollTimeout,
		logger:      logger,
	}
}

// Run long-polls for updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.client.GetUpdatesChan(u)

	b.logger.Info("Telegram bot polling", zap.Int("timeout", b.pollTimeout))

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.handleMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil {
		return
	}
	chatID := m.Chat.ID
	requesterID := requesterOf(m)

	b.logger.Info("Message received",
		zap.Int64("chat_id", chatID),
		zap.String("requester_id", requesterID))

	if m.IsCommand() {
		switch m.Command() {
		case "start":
			b.reply(chatID, startText)
		case "help":
			b.reply(chatID, helpText)
		case "cancel":
			if err := b.sessions.Cancel(requesterID); err != nil {
				b.reply(chatID, domain.UserMessage(err))
				return
			}
			b.reply(chatID, "Cancelling your download...")
		default:
			b.reply(chatID, "Unknown command. Send a video link or /help.")
		}
		return
	}

	url := strings.TrimSpace(m.Text)
	if url == "" {
		return
	}

	status, err := b.client.Send(tgbotapi.NewMessage(chatID, stageText[domain.StageQueued]))
	if err != nil {
		b.logger.Warn("Failed to send status message", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	_, err = b.sessions.Submit(ctx, app.SubmitRequest{
		RequesterID: requesterID,
		URL:         url,
		Reporter:    NewReporter(b.client, chatID, status.MessageID, b.logger),
		OnStage:     b.stageUpdater(chatID, status.MessageID),
	})
	if err != nil {
		text := domain.UserMessage(err)
		if !errors.Is(err, domain.ErrUnsupportedSource) && !errors.Is(err, domain.ErrAlreadyActive) {
			b.logger.Error("Failed to submit session", zap.String("requester_id", requesterID), zap.Error(err))
		}
		b.edit(chatID, status.MessageID, text)
		return
	}

	b.logger.Info("Session submitted",
		zap.String("requester_id", requesterID),
		zap.String("url", url))
}

func (b *Bot) stageUpdater(chatID int64, messageID int) func(domain.Session) {
	return func(s domain.Session) {
		if text, ok := stageText[s.Stage]; ok {
			b.edit(chatID, messageID, text)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.client.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	editMessage(b.client, b.logger, chatID, messageID, text)
}

// requesterOf keys sessions by user, falling back to the chat for anonymous posts
func requesterOf(m *tgbotapi.Message) string {
	if m.From != nil {
		return strconv.FormatInt(m.From.ID, 10)
	}
	return fmt.Sprintf("chat:%d", m.Chat.ID)
}

func editMessage(client Client, logger *zap.Logger, chatID int64, messageID int, text string) {
	if _, err := client.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		logger.Debug("Failed to edit status message",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
}
