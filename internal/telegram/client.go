// Package telegram adapts the Telegram Bot API to the chat interfaces.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"derroche/internal/chat"
)

// maxPhotoSize caps photo downloads; the Bot API serves files up to 20 MB.
const maxPhotoSize = 20 << 20

// Client sends messages through the Bot API, throttled to the platform rate limit.
type Client struct {
	api        *tgbotapi.BotAPI
	limiter    *rate.Limiter
	httpClient *http.Client
	log        *zap.SugaredLogger
}

var _ chat.Messenger = (*Client)(nil)

// New authenticates with the Bot API. perSecond and burst bound outbound calls.
func New(token string, perSecond float64, burst int, log *zap.SugaredLogger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	log.Infow("authorized on telegram", "bot", api.Self.UserName)

	return &Client{
		api:        api,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}, nil
}

// Send delivers msg, waiting for the rate limiter first.
func (c *Client) Send(ctx context.Context, msg chat.Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.Markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	switch {
	case len(msg.Inline) > 0:
		out.ReplyMarkup = inlineMarkup(msg.Inline)
	case len(msg.Reply) > 0:
		kb := replyMarkup(msg.Reply)
		kb.OneTimeKeyboard = true
		out.ReplyMarkup = kb
	case msg.RemoveReply:
		out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}

	if _, err := c.api.Send(out); err != nil {
		return fmt.Errorf("sending message to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

// Edit replaces the text and inline buttons of an earlier message.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string, markdown bool, inline chat.Keyboard) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var edit tgbotapi.EditMessageTextConfig
	if len(inline) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, inlineMarkup(inline))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}

	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("editing message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// FetchPhoto downloads an uploaded file by id.
func (c *Client) FetchPhoto(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file %s: unexpected status %d", fileID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize))
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", fileID, err)
	}
	return data, nil
}

// Poll long-polls for updates and passes each to handle until ctx is done.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, chat.Update)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			if update, ok := ToUpdate(raw); ok {
				handle(ctx, update)
			}
		}
	}
}

// ParseWebhook decodes an update posted by Telegram to the webhook endpoint.
func (c *Client) ParseWebhook(r *http.Request) (chat.Update, bool, error) {
	raw, err := c.api.HandleUpdate(r)
	if err != nil {
		return chat.Update{}, false, err
	}
	update, ok := ToUpdate(*raw)
	return update, ok, nil
}

// ToUpdate converts a Bot API update. Updates without a user or chat are skipped.
func ToUpdate(raw tgbotapi.Update) (chat.Update, bool) {
	if cb := raw.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return chat.Update{}, false
		}
		return chat.Update{
			ChatID:    cb.Message.Chat.ID,
			UserID:    cb.From.ID,
			MessageID: cb.Message.MessageID,
			Callback: &chat.Callback{
				ID:        cb.ID,
				Data:      cb.Data,
				MessageID: cb.Message.MessageID,
			},
		}, true
	}

	msg := raw.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return chat.Update{}, false
	}

	update := chat.Update{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	for _, p := range msg.Photo {
		update.Photos = append(update.Photos, chat.PhotoSize{
			FileID:   p.FileID,
			Width:    p.Width,
			Height:   p.Height,
			FileSize: p.FileSize,
		})
	}
	return update, true
}

func inlineMarkup(kb chat.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func replyMarkup(choices [][]string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(choices))
	for _, row := range choices {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// RegisterWebhook points Telegram at url. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) RegisterWebhook(url, secret string) error {
	params := tgbotapi.Params{}
	params["url"] = url
	params["secret_token"] = secret
	params.AddNonEmpty("allowed_updates", `["message","callback_query"]`)
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to long polling.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}
