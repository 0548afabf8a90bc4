package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskbot/internal/bot"
)

// API is the subset of *tgbotapi.BotAPI the poller uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

// Config for the long-polling front end.
type Config struct {
	Token       string
	PollTimeout time.Duration
	Debug       bool
}

// Poller feeds Telegram messages to the bot one at a time.
type Poller struct {
	api         API
	bot         *bot.Bot
	log         *slog.Logger
	pollTimeout time.Duration
}

// Connect authenticates with the Bot API.
func Connect(cfg Config) (*tgbotapi.BotAPI, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	return api, nil
}

func NewPoller(api API, b *bot.Bot, pollTimeout time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = 60 * time.Second
	}
	return &Poller{api: api, bot: b, log: logger, pollTimeout: pollTimeout}
}

// ConversationID scopes dialogue state to one user in one chat.
func ConversationID(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(p.pollTimeout / time.Second)
	updates := p.api.GetUpdatesChan(u)
	p.log.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.log.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			p.handle(ctx, update)
		}
	}
}

func (p *Poller) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	conv := ConversationID(msg.Chat.ID, userID)
	reply := p.bot.Handle(ctx, bot.Event{ConversationID: conv, Text: msg.Text})
	if reply.Text == "" {
		return
	}
	for _, chunk := range SplitMessage(reply.Text, MaxMessageRunes) {
		if _, err := p.api.Send(tgbotapi.NewMessage(msg.Chat.ID, chunk)); err != nil {
			p.log.Error("sending telegram reply failed", "conversation", conv, "error", err)
			return
		}
	}
}

// MaxMessageRunes is the Bot API limit on the text of one message.
const MaxMessageRunes = 4096

// SplitMessage cuts text into chunks of at most limit runes, breaking after
// a newline when one falls inside the chunk.
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > 0; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		if len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
