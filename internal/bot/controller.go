// Package bot implements the conversation controller: the manual entry
// flow, the receipt photo hand-off and the callback button dispatcher.
package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"derroche/internal/chat"
	"derroche/internal/imagestore"
	"derroche/internal/notifier"
	"derroche/internal/queue"
	"derroche/internal/services"
)

// PhotoFetcher downloads an uploaded photo from the chat platform.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// Controller handles chat updates one at a time per user.
type Controller struct {
	records   services.RecordServicer
	queue     queue.Enqueuer
	images    imagestore.Store
	photos    PhotoFetcher
	messenger chat.Messenger
	notifier  *notifier.Notifier
	sessions  *SessionStore
	log       *zap.SugaredLogger
}

// NewController wires a controller. The notifier sends through messenger.
func NewController(
	records services.RecordServicer,
	q queue.Enqueuer,
	images imagestore.Store,
	photos PhotoFetcher,
	messenger chat.Messenger,
	log *zap.SugaredLogger,
) *Controller {
	return &Controller{
		records:   records,
		queue:     q,
		images:    images,
		photos:    photos,
		messenger: messenger,
		notifier:  notifier.New(messenger),
		sessions:  NewSessionStore(),
		log:       log,
	}
}

// HandleUpdate processes one inbound update to completion.
func (c *Controller) HandleUpdate(ctx context.Context, u chat.Update) {
	session, release := c.sessions.Acquire(u.UserID)
	defer release()

	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("panic handling update", "chat_id", u.ChatID, "user_id", u.UserID, "panic", r)
			session.reset()
			c.reply(ctx, u.ChatID, notifier.TextActionFailed)
		}
	}()

	if u.Callback != nil {
		c.handleCallback(ctx, session, u)
		return
	}

	switch u.Command() {
	case "nuevo":
		session.reset()
		session.Step = StepMenu
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextMenu, Reply: notifier.MainMenu})
		return
	case "cancel":
		session.reset()
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextCancelled, RemoveReply: true})
		return
	case "ayuda", "start":
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextHelp, Markdown: true})
		return
	}

	switch {
	case session.Step != StepIdle:
		c.handleStep(ctx, session, u)
	case session.Edit != nil:
		c.applyEdit(ctx, session, u)
	case len(u.Photos) > 0:
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextPhotoOutside, Markdown: true})
	default:
		c.reply(ctx, u.ChatID, notifier.TextGreeting)
	}
}

func (c *Controller) handleStep(ctx context.Context, session *Session, u chat.Update) {
	if session.Step == StepMenu {
		c.handleMenu(ctx, session, u)
		return
	}
	if session.Step == StepAwaitPhoto {
		if len(u.Photos) == 0 {
			c.reply(ctx, u.ChatID, notifier.TextNeedPhoto)
			return
		}
		c.handlePhoto(ctx, session, u)
		return
	}
	c.handleManualStep(ctx, session, u)
}

func (c *Controller) handleMenu(ctx context.Context, session *Session, u chat.Update) {
	choice := strings.ToLower(u.Text)
	switch {
	case strings.Contains(choice, "manual") || strings.Contains(choice, "🖋"):
		session.Step = StepDate
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextAskDate, RemoveReply: true})
	case strings.Contains(choice, "foto") || strings.Contains(choice, "boleta") || strings.Contains(choice, "📸"):
		session.Step = StepAwaitPhoto
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextAskPhoto, Markdown: true, RemoveReply: true})
	default:
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextInvalidMenu, Reply: notifier.MainMenu})
	}
}

func (c *Controller) reply(ctx context.Context, chatID int64, text string) {
	c.send(ctx, chat.Message{ChatID: chatID, Text: text})
}

// send logs delivery failures; a reply that cannot be delivered has no other recipient.
func (c *Controller) send(ctx context.Context, msg chat.Message) {
	if err := c.messenger.Send(ctx, msg); err != nil {
		c.log.Warnw("failed to send message", "chat_id", msg.ChatID, "error", err)
	}
}
