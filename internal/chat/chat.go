// Package chat holds the platform-neutral message types exchanged between
// the conversation controller, the notifier and the chat platform adapter.
package chat

import (
	"context"
	"strings"
)

// Button is an inline button that sends Data back as a callback.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons.
type Keyboard [][]Button

// Message is an outbound message.
type Message struct {
	ChatID   int64
	Text     string
	Markdown bool
	Inline   Keyboard
	// Reply shows a one-time keyboard of suggested answers.
	Reply [][]string
	// RemoveReply hides a previously shown reply keyboard.
	RemoveReply bool
}

// Messenger sends and edits messages on the chat platform.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
	Edit(ctx context.Context, chatID int64, messageID int, text string, markdown bool, inline Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// PhotoSize is one resolution of an uploaded photo.
type PhotoSize struct {
	FileID   string
	Width    int
	Height   int
	FileSize int
}

// Callback is a button press.
type Callback struct {
	ID        string
	Data      string
	MessageID int
}

// Update is an inbound event from a user.
type Update struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	Photos    []PhotoSize
	Callback  *Callback
}

// Command returns the bot command in Text without its slash and bot
// mention, or "" when Text is not a command.
func (u Update) Command() string {
	if !strings.HasPrefix(u.Text, "/") {
		return ""
	}
	cmd := strings.Fields(u.Text)[0][1:]
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// LargestPhoto returns the highest resolution photo, if any.
func (u Update) LargestPhoto() (PhotoSize, bool) {
	if len(u.Photos) == 0 {
		return PhotoSize{}, false
	}
	best := u.Photos[0]
	for _, p := range u.Photos[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best, true
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes user or extracted text for legacy Markdown messages.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
