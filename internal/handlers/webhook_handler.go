package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"derroche/internal/chat"
	apperrors "derroche/internal/errors"
	"derroche/internal/logger"
)

// secretHeader carries the secret token registered with setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateParser decodes a webhook request into a chat update. ok is false for
// update types the bot ignores.
type UpdateParser interface {
	ParseWebhook(r *http.Request) (update chat.Update, ok bool, err error)
}

// UpdateHandler processes one chat update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u chat.Update)
}

// WebhookHandler receives updates pushed by Telegram.
type WebhookHandler struct {
	parser  UpdateParser
	handler UpdateHandler
	secret  string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(parser UpdateParser, handler UpdateHandler, secret string) *WebhookHandler {
	return &WebhookHandler{
		parser:  parser,
		handler: handler,
		secret:  secret,
	}
}

// Receive handles one update from Telegram
func (h *WebhookHandler) Receive(c *gin.Context) {
	token := c.GetHeader(secretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}

	update, ok, err := h.parser.ParseWebhook(c.Request)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid update"))
		return
	}
	if ok {
		logger.Get().Debugw("webhook update", "chat_id", update.ChatID, "callback", update.Callback != nil)
		h.handler.HandleUpdate(context.WithoutCancel(c.Request.Context()), update)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
