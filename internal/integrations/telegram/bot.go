package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"worklogbot/internal/domain"
	"worklogbot/internal/report"
	"worklogbot/internal/session"
)

// messageLimit is Telegram's cap on message length. Chunks are measured in
// bytes, which never undercounts Telegram's UTF-16 length.
const messageLimit = 4096

const pollTimeoutSeconds = 60

// Bot receives updates by long polling and replies in MarkdownV2.
type Bot struct {
	api *tgbotapi.BotAPI
}

func New(token string, httpClient *http.Client) (*Bot, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, httpClient)
}

// NewWithEndpoint points the bot at a custom Bot API server. endpoint is a
// format string taking the token and the method name.
func NewWithEndpoint(token, endpoint string, httpClient *http.Client) (*Bot, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	log.Printf("telegram authorized bot=%s", api.Self.UserName)
	return &Bot{api: api}, nil
}

func (b *Bot) Format() report.Format { return report.FormatMarkdownV2 }

// Run long-polls for updates and hands each message to h on its own
// goroutine until ctx is done. It returns after in-flight handlers finish.
func (b *Bot) Run(ctx context.Context, h session.Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)
	log.Println("Telegram bot polling for updates")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Println("Telegram bot stopping, waiting for in-flight handlers")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := inboundFromUpdate(update)
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Handle(ctx, in)
			}()
		}
	}
}

func inboundFromUpdate(update tgbotapi.Update) (session.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return session.Inbound{}, false
	}
	return session.Inbound{
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		UserName:  msg.From.UserName,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: strconv.Itoa(msg.MessageID),
		Text:      msg.Text,
	}, true
}

func (b *Bot) Reply(ctx context.Context, to session.Inbound, text string, format report.Format) error {
	chatID, err := strconv.ParseInt(to.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", to.ChatID, err)
	}
	return b.send(chatID, text, format)
}

func (b *Bot) Notify(ctx context.Context, userID, text string, format report.Format) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram user id %q: %w", userID, err)
	}
	return b.send(chatID, text, format)
}

// send delivers text in chunks. A rejected first MarkdownV2 chunk yields
// domain.ErrRendering with nothing delivered; a later rejected chunk is
// resent as plain text so earlier chunks are not repeated.
func (b *Bot) send(chatID int64, text string, format report.Format) error {
	if strings.TrimSpace(text) == "" {
		log.Printf("telegram skip empty message chat=%d", chatID)
		return nil
	}
	for i, chunk := range report.Split(text, messageLimit) {
		err := b.sendChunk(chatID, chunk, format)
		if err == nil {
			continue
		}
		if format != report.FormatMarkdownV2 || !isParseError(err) {
			return fmt.Errorf("telegram send: %w", err)
		}
		if i == 0 {
			return fmt.Errorf("%w: %v", domain.ErrRendering, err)
		}
		log.Printf("telegram markup rejected chat=%d chunk=%d, resending as plain: %v", chatID, i, err)
		if err := b.sendChunk(chatID, report.UnescapeMarkdownV2(chunk), report.FormatPlain); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func (b *Bot) sendChunk(chatID int64, chunk string, format report.Format) error {
	msg := tgbotapi.NewMessage(chatID, chunk)
	msg.DisableWebPagePreview = true
	if format == report.FormatMarkdownV2 {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) Delete(ctx context.Context, msg session.Inbound) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", msg.ChatID, err)
	}
	messageID, err := strconv.Atoi(msg.MessageID)
	if err != nil {
		return fmt.Errorf("telegram message id %q: %w", msg.MessageID, err)
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}
