// Package notifier tells users about the outcome of receipt processing.
package notifier

import (
	"context"
	"fmt"

	"derroche/internal/chat"
	"derroche/internal/models"
)

// Notifier sends pipeline outcomes to the chat a record came from.
type Notifier struct {
	messenger chat.Messenger
}

// New creates a Notifier that sends through messenger.
func New(messenger chat.Messenger) *Notifier {
	return &Notifier{messenger: messenger}
}

// SendConfirmation shows the extracted values with save, edit and discard buttons.
func (n *Notifier) SendConfirmation(ctx context.Context, rec *models.Record) error {
	err := n.messenger.Send(ctx, chat.Message{
		ChatID:   rec.ChatID,
		Text:     ExtractedSummary(rec),
		Markdown: true,
		Inline:   ReviewKeyboard(rec.ID),
	})
	if err != nil {
		return fmt.Errorf("sending confirmation for record %d: %w", rec.ID, err)
	}
	return nil
}

// SendExtractionError offers manual entry, retry and discard for a failed record.
func (n *Notifier) SendExtractionError(ctx context.Context, chatID int64, recordID uint) error {
	return n.sendErrorPrompt(ctx, chatID, recordID, TextExtractError)
}

// SendQueueUnavailable tells the user the photo could not be queued and
// offers the same choices as a failed extraction.
func (n *Notifier) SendQueueUnavailable(ctx context.Context, chatID int64, recordID uint) error {
	return n.sendErrorPrompt(ctx, chatID, recordID, TextQueueDown)
}

func (n *Notifier) sendErrorPrompt(ctx context.Context, chatID int64, recordID uint, text string) error {
	err := n.messenger.Send(ctx, chat.Message{
		ChatID:   chatID,
		Text:     text,
		Markdown: true,
		Inline:   ErrorKeyboard(recordID),
	})
	if err != nil {
		return fmt.Errorf("sending error prompt for record %d: %w", recordID, err)
	}
	return nil
}
