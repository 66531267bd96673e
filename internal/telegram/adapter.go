// Package telegram bridges Telegram chats to the dispatcher. Inbound
// messages become runs; replies and scheduled task output flow back out
// through the delivery bus.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/agentd/internal/bus"
	"github.com/user/agentd/internal/dispatch"
	"github.com/user/agentd/internal/types"
)

const maxTelegramMessage = 4096

// Adapter connects one bot to the dispatcher.
type Adapter struct {
	bot        *tgbotapi.BotAPI
	dispatcher *dispatch.Dispatcher
	events     types.EventStore
	sessions   types.SessionStore
	allowed    map[int64]bool
}

// New creates a Telegram adapter. allowedUsers restricts who may talk to
// the bot; an empty list allows everyone.
func New(token string, d *dispatch.Dispatcher, events types.EventStore, sessions types.SessionStore, allowedUsers []int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	var allowed map[int64]bool
	if len(allowedUsers) > 0 {
		allowed = make(map[int64]bool, len(allowedUsers))
		for _, id := range allowedUsers {
			allowed[id] = true
		}
	}
	return &Adapter{
		bot:        bot,
		dispatcher: d,
		events:     events,
		sessions:   sessions,
		allowed:    allowed,
	}, nil
}

// SubscribeBus registers the adapter as the delivery handler for the
// "telegram" channel, so task output reaches the chat named by the
// session key ("telegram:<userID>:<chatID>").
func (a *Adapter) SubscribeBus(b *bus.Bus) {
	b.Subscribe("telegram", func(ev types.OutboundEvent) error {
		chatID, err := chatIDFromKey(ev.SessionKey)
		if err != nil {
			return err
		}
		a.sendResponse(chatID, ev.Text)
		return nil
	})
}

// Start long-polls for updates until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if a.allowed != nil && !a.allowed[msg.From.ID] {
		slog.Warn("message from unauthorized user", "user_id", msg.From.ID)
		return
	}
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	event := &types.InboundEvent{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, msg.Chat.ID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Text:       msg.Text,
	}

	err := a.dispatcher.HandleInbound(ctx, event, dispatch.WithOnComplete(func(response string) {
		if response != "" {
			a.sendResponse(chatID, response)
		}
	}))
	if err != nil {
		slog.Error("handle inbound", "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! Send me a message to get started.")

	case "status":
		key := buildSessionKey(msg.From.ID, msg.Chat.ID)
		sid, err := a.sessions.ResolveOrCreate(ctx, key, "default")
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		count, err := a.events.Count(ctx, sid)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nMessages: %d", sid, count))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status")
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Markdown parse failures are common; retry as plain text.
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message", "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}

// chatIDFromKey extracts the chat ID from "telegram:<userID>:<chatID>".
func chatIDFromKey(key types.SessionKey) (int64, error) {
	var userID, chatID int64
	if _, err := fmt.Sscanf(string(key), "telegram:%d:%d", &userID, &chatID); err != nil {
		return 0, fmt.Errorf("parse session key %q: %w", key, err)
	}
	return chatID, nil
}
