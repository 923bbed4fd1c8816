package bot

import (
	"context"
	"fmt"
	"time"

	"derroche/internal/chat"
	"derroche/internal/notifier"
	"derroche/internal/queue"
)

// fallbackTimeout bounds the bookkeeping done after an enqueue failure.
const fallbackTimeout = 10 * time.Second

// handlePhoto stores the receipt, creates a pending record and queues it for
// extraction. The conversation ends here whatever the outcome.
func (c *Controller) handlePhoto(ctx context.Context, session *Session, u chat.Update) {
	session.reset()
	log := c.log.With("chat_id", u.ChatID, "user_id", u.UserID)

	photo, _ := u.LargestPhoto()
	data, err := c.photos.FetchPhoto(ctx, photo.FileID)
	if err != nil {
		log.Errorw("failed to download photo", "file_id", photo.FileID, "error", err)
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextPhotoFailed, Markdown: true})
		return
	}

	ref, err := c.images.Save(ctx, u.UserID, data)
	if err != nil {
		log.Errorw("failed to store photo", "error", err)
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextPhotoFailed, Markdown: true})
		return
	}

	rec, err := c.records.CreatePending(ctx, u.ChatID, u.UserID, ref)
	if err != nil {
		log.Errorw("failed to create pending record", "image_ref", ref, "error", err)
		if delErr := c.images.Delete(ctx, ref); delErr != nil {
			log.Warnw("failed to remove orphan photo", "image_ref", ref, "error", delErr)
		}
		c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextPhotoFailed, Markdown: true})
		return
	}
	log = log.With("record_id", rec.ID)

	handle, err := c.queue.Enqueue(ctx, queue.NewPhotoJob(rec.ID, ref, u.ChatID, u.UserID))
	if err != nil {
		log.Errorw("failed to enqueue photo job", "error", err)
		c.enqueueFailed(ctx, rec.ID, u.ChatID, err)
		return
	}

	log.Infow("photo queued", "job_id", handle.ID, "queue", handle.Queue, "image_ref", ref)
	c.send(ctx, chat.Message{ChatID: u.ChatID, Text: notifier.TextPhotoQueued, Markdown: true})
}

// enqueueFailed moves the record out of pending and offers manual entry,
// retry or discard.
func (c *Controller) enqueueFailed(ctx context.Context, recordID uint, chatID int64, cause error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackTimeout)
	defer cancel()

	if err := c.records.MarkError(fctx, recordID, fmt.Sprintf("enqueue failed: %v", cause)); err != nil {
		c.log.Errorw("failed to mark record as error", "record_id", recordID, "error", err)
	}
	if err := c.notifier.SendQueueUnavailable(fctx, chatID, recordID); err != nil {
		c.log.Errorw("failed to send queue fallback", "record_id", recordID, "error", err)
	}
}
