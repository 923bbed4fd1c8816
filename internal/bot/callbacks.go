package bot

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"derroche/internal/chat"
	apperrors "derroche/internal/errors"
	"derroche/internal/models"
	"derroche/internal/notifier"
	"derroche/internal/parsing"
	"derroche/internal/queue"
)

// callbackReply is the new content of the message whose button was pressed.
type callbackReply struct {
	text     string
	markdown bool
	inline   chat.Keyboard
}

func textReply(text string) callbackReply { return callbackReply{text: text} }

func (c *Controller) handleCallback(ctx context.Context, session *Session, u chat.Update) {
	cb := u.Callback
	if err := c.messenger.AnswerCallback(ctx, cb.ID, ""); err != nil {
		c.log.Warnw("failed to answer callback", "callback_id", cb.ID, "error", err)
	}

	var reply callbackReply
	action, err := chat.ParseAction(cb.Data)
	if err != nil {
		c.log.Warnw("rejected callback payload", "chat_id", u.ChatID, "data", cb.Data, "error", err)
		reply = textReply(notifier.TextBadAction)
	} else {
		reply = c.dispatch(ctx, session, action, u.UserID)
	}

	if err := c.messenger.Edit(ctx, u.ChatID, cb.MessageID, reply.text, reply.markdown, reply.inline); err != nil {
		c.log.Warnw("failed to edit callback message", "chat_id", u.ChatID, "error", err)
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: reply.text, Markdown: reply.markdown, Inline: reply.inline})
	}
}

func (c *Controller) dispatch(ctx context.Context, session *Session, action chat.Action, userID int64) callbackReply {
	log := c.log.With("record_id", action.RecordID, "action", action.Kind, "user_id", userID)

	rec, err := c.records.GetRecord(ctx, action.RecordID)
	if err == nil && rec.UserID != userID {
		log.Warnw("callback for record of another user", "owner_id", rec.UserID)
		err = apperrors.ErrRecordNotFound
	}
	if err != nil {
		return c.actionFailed(ctx, log, action, err)
	}

	switch action.Kind {
	case chat.ActionConfirm:
		_, changed, err := c.records.Confirm(ctx, action.RecordID)
		if err != nil {
			return c.actionFailed(ctx, log, action, err)
		}
		if !changed {
			return textReply(notifier.TextAlreadySaved)
		}
		return callbackReply{text: notifier.TextConfirmed, markdown: true}

	case chat.ActionCancel:
		return c.cancelRecord(ctx, log, action, rec)

	case chat.ActionRetry:
		return c.retryRecord(ctx, log, action)

	case chat.ActionManual:
		if rec.Status != models.RecordStatusError {
			return c.statusReply(rec.Status)
		}
		if session.formActive() && session.ReplaceRecordID != rec.ID {
			return textReply(notifier.TextFormActive)
		}
		c.startManual(session, rec.ID)
		return textReply(notifier.TextManualRedo)

	case chat.ActionEdit:
		if rec.Status == models.RecordStatusPending {
			return c.statusReply(rec.Status)
		}
		return callbackReply{text: notifier.TextEditMenu, markdown: true, inline: notifier.EditKeyboard(rec.ID)}

	case chat.ActionEditMonto:
		return armEdit(session, rec, models.EditFieldAmount, notifier.TextEditAmount)

	case chat.ActionEditDesc:
		return armEdit(session, rec, models.EditFieldDescription, notifier.TextEditDesc)

	case chat.ActionEditFecha:
		return armEdit(session, rec, models.EditFieldDate, notifier.TextEditDate)

	case chat.ActionEditCat:
		if rec.Status == models.RecordStatusPending {
			return textReply(notifier.TextStillPending)
		}
		return callbackReply{text: notifier.TextPickCategory, inline: notifier.CategoryKeyboard(rec.ID)}

	case chat.ActionSetCat:
		if !slices.Contains(notifier.CategoryChoices, action.Value) {
			log.Warnw("rejected category", "value", action.Value)
			return textReply(notifier.TextBadAction)
		}
		rec, err := c.records.UpdateField(ctx, action.RecordID, models.EditFieldCategory, action.Value)
		if err != nil {
			return c.actionFailed(ctx, log, action, err)
		}
		return summaryReply(rec)
	}

	log.Errorw("callback action without handler")
	return textReply(notifier.TextBadAction)
}

func (c *Controller) cancelRecord(ctx context.Context, log *zap.SugaredLogger, action chat.Action, rec *models.Record) callbackReply {
	if err := c.records.Delete(ctx, action.RecordID); err != nil {
		return c.actionFailed(ctx, log, action, err)
	}
	if rec.ImagePath != nil {
		if err := c.images.Delete(ctx, *rec.ImagePath); err != nil {
			log.Warnw("failed to remove photo of cancelled record", "image_ref", *rec.ImagePath, "error", err)
		}
	}
	log.Infow("record cancelled")
	return textReply(notifier.TextDeleted)
}

// retryRecord puts a failed record back to pending and queues exactly one
// new job for its stored photo.
func (c *Controller) retryRecord(ctx context.Context, log *zap.SugaredLogger, action chat.Action) callbackReply {
	rec, err := c.records.ResetForRetry(ctx, action.RecordID)
	if err != nil {
		return c.actionFailed(ctx, log, action, err)
	}

	handle, err := c.queue.Enqueue(ctx, queue.NewPhotoJob(rec.ID, *rec.ImagePath, rec.ChatID, rec.UserID))
	if err != nil {
		log.Errorw("failed to enqueue retry", "error", err)
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackTimeout)
		defer cancel()
		if markErr := c.records.MarkError(fctx, rec.ID, "enqueue failed: "+err.Error()); markErr != nil {
			log.Errorw("failed to mark record as error", "error", markErr)
		}
		return callbackReply{text: notifier.TextRetryFailed, inline: notifier.ErrorKeyboard(rec.ID)}
	}

	log.Infow("retry queued", "job_id", handle.ID)
	return callbackReply{text: notifier.TextRetrying, markdown: true}
}

// armEdit makes the user's next text message the new value of field.
// Pending records cannot be edited until extraction finishes, and a manual
// form in progress is never discarded for an edit.
func armEdit(session *Session, rec *models.Record, field models.EditField, prompt string) callbackReply {
	if rec.Status == models.RecordStatusPending {
		return textReply(notifier.TextStillPending)
	}
	if session.formActive() {
		return textReply(notifier.TextFormActive)
	}
	session.reset()
	session.Edit = &pendingEdit{RecordID: rec.ID, Field: field}
	return textReply(prompt)
}

// applyEdit consumes the text captured by an armed edit. Unparseable input
// keeps the edit armed and re-prompts.
func (c *Controller) applyEdit(ctx context.Context, session *Session, u chat.Update) {
	edit := *session.Edit
	log := c.log.With("record_id", edit.RecordID, "field", edit.Field)
	text := strings.TrimSpace(u.Text)

	var value any
	switch edit.Field {
	case models.EditFieldAmount:
		amount, err := parsing.ParseAmount(text)
		if err != nil {
			c.reply(ctx, u.ChatID, notifier.TextInvalidAmt)
			return
		}
		value = amount
	case models.EditFieldDate:
		date, err := parsing.ParseDate(text)
		if err != nil {
			c.reply(ctx, u.ChatID, notifier.TextInvalidDate)
			return
		}
		value = date
	default:
		if text == "" {
			c.reply(ctx, u.ChatID, notifier.TextEditDesc)
			return
		}
		value = text
	}

	session.Edit = nil
	rec, err := c.records.UpdateField(ctx, edit.RecordID, edit.Field, value)
	if err != nil {
		reply := c.actionFailed(ctx, log, chat.Action{Kind: chat.ActionEdit, RecordID: edit.RecordID}, err)
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: reply.text})
		return
	}

	log.Infow("record field edited")
	reply := summaryReply(rec)
	c.send(ctx, chat.Message{ChatID: u.ChatID, Text: reply.text, Markdown: reply.markdown, Inline: reply.inline})
}

// summaryReply shows a record after an edit with the buttons its status allows.
func summaryReply(rec *models.Record) callbackReply {
	reply := callbackReply{text: notifier.ExtractedSummary(rec), markdown: true}
	switch rec.Status {
	case models.RecordStatusProcessed:
		reply.inline = notifier.ReviewKeyboard(rec.ID)
	case models.RecordStatusError:
		reply.inline = notifier.ErrorKeyboard(rec.ID)
	case models.RecordStatusManual, models.RecordStatusConfirmed:
		reply.text = notifier.SavedSummary(rec)
	}
	return reply
}

// actionFailed turns a callback error into a message for the user.
func (c *Controller) actionFailed(ctx context.Context, log *zap.SugaredLogger, action chat.Action, err error) callbackReply {
	switch {
	case errors.Is(err, apperrors.ErrRecordNotFound):
		log.Warnw("callback for missing record")
		return textReply(notifier.TextNotFound)
	case errors.Is(err, apperrors.ErrImageMissing):
		log.Warnw("retry without stored photo")
		return textReply(notifier.TextNoImage)
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrStaleRecord):
		log.Warnw("callback not allowed in current status", "error", err)
		if rec, getErr := c.records.GetRecord(ctx, action.RecordID); getErr == nil {
			return c.statusReply(rec.Status)
		}
		return textReply(notifier.TextNotAllowed)
	default:
		log.Errorw("callback failed", "error", err)
		return textReply(notifier.TextActionFailed)
	}
}

func (c *Controller) statusReply(status models.RecordStatus) callbackReply {
	if status == models.RecordStatusPending {
		return textReply(notifier.TextStillPending)
	}
	return textReply(notifier.TextNotAllowed)
}
