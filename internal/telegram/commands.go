package telegram

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/batyrai/backend/internal/clock"
)

const (
	startButtonText = "🛡️ Создать портрет Батыра"

	welcomeTemplate = "👋 Ассалаумағалейкум, %s!\n\n" +
		"Я — BatyrAI. Готов превратить ваше фото в портрет легендарного батыра.\n\n" +
		"Нажмите кнопку ниже, чтобы начать магию!"

	followUpText = "Когда приложение откроется, просто загрузите ваше лучшее фото и доверьтесь мне. 😉"

	helpText = "<b>Как пользоваться ботом BatyrAI?</b>\n\n" +
		"1. Нажмите кнопку <b>'Меню'</b> внизу или введите команду /start.\n" +
		"2. В открывшемся приложении загрузите ваше фото.\n" +
		"3. Следуйте инструкциям на экране и дождитесь результата (1-2 минуты).\n\n" +
		"<b>Требования к фото:</b> лицо должно быть видно чётко, анфас, с хорошим освещением."
)

// Update is the part of a Bot API update the command loop reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from"`
	Text      string `json:"text"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

// GetUpdates long-polls for new updates starting at offset.
func (b *Bot) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := b.call(ctx, "getUpdates", map[string]interface{}{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}, &updates)
	return updates, err
}

// DeleteWebhook switches the bot to long polling.
func (b *Bot) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return b.call(ctx, "deleteWebhook", map[string]interface{}{
		"drop_pending_updates": dropPending,
	}, nil)
}

// SendHTML sends an HTML formatted message, optionally with a single
// inline button that opens a Mini App.
func (b *Bot) SendHTML(ctx context.Context, chatID int64, text, buttonText, webAppURL string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if buttonText != "" {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": [][]map[string]interface{}{{
				{"text": buttonText, "web_app": map[string]string{"url": webAppURL}},
			}},
		}
	}
	return b.call(ctx, "sendMessage", payload, nil)
}

// Commands answers the bot's chat commands and points users at the
// Mini App.
type Commands struct {
	bot       *Bot
	webAppURL string
	clock     clock.Clock

	followUpDelay time.Duration
	pollTimeout   time.Duration
	retryDelay    time.Duration
}

func NewCommands(bot *Bot, webAppURL string, clk clock.Clock) *Commands {
	return &Commands{
		bot:           bot,
		webAppURL:     webAppURL,
		clock:         clk,
		followUpDelay: time.Second,
		pollTimeout:   25 * time.Second,
		retryDelay:    5 * time.Second,
	}
}

// Run polls for updates until ctx is cancelled. Pending updates from
// before the start are dropped.
func (c *Commands) Run(ctx context.Context) error {
	if err := c.bot.DeleteWebhook(ctx, true); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	var offset int64
	for {
		updates, err := c.bot.GetUpdates(ctx, offset, c.pollTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("Bot: getUpdates failed (will retry): %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-c.clock.After(c.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			if err := c.Handle(ctx, u.Message); err != nil {
				log.Printf("Bot: failed to answer chat %d: %v", u.Message.Chat.ID, err)
			}
		}
	}
}

// Handle answers one message. Anything other than /start and /help is
// ignored.
func (c *Commands) Handle(ctx context.Context, m *Message) error {
	switch command(m.Text) {
	case "/start":
		return c.start(ctx, m)
	case "/help":
		return c.bot.SendHTML(ctx, m.Chat.ID, helpText, "", "")
	}
	return nil
}

func (c *Commands) start(ctx context.Context, m *Message) error {
	name := ""
	if m.From != nil {
		name = m.From.FirstName
	}
	welcome := fmt.Sprintf(welcomeTemplate, html.EscapeString(name))
	if err := c.bot.SendHTML(ctx, m.Chat.ID, welcome, startButtonText, c.webAppURL); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.followUpDelay):
	}
	return c.bot.SendHTML(ctx, m.Chat.ID, followUpText, "", "")
}

// command returns the bot command of a message text without its
// arguments or "@botname" suffix.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}
