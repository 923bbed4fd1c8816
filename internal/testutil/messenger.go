package testutil

import (
	"context"
	"sync"

	"derroche/internal/chat"
)

// EditedMessage is an edit recorded by FakeMessenger.
type EditedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Inline    chat.Keyboard
}

// FakeMessenger records outbound messages instead of sending them.
// SendErr, when set, is returned by every Send.
type FakeMessenger struct {
	mu       sync.Mutex
	Sent     []chat.Message
	Edits    []EditedMessage
	Answered []string
	SendErr  error
}

var _ chat.Messenger = (*FakeMessenger)(nil)

// Send records msg.
func (m *FakeMessenger) Send(_ context.Context, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Edit records an edit.
func (m *FakeMessenger) Edit(_ context.Context, chatID int64, messageID int, text string, _ bool, inline chat.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, EditedMessage{ChatID: chatID, MessageID: messageID, Text: text, Inline: inline})
	return nil
}

// AnswerCallback records the callback id.
func (m *FakeMessenger) AnswerCallback(_ context.Context, callbackID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answered = append(m.Answered, callbackID)
	return nil
}

// Messages returns a copy of the sent messages.
func (m *FakeMessenger) Messages() []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Message(nil), m.Sent...)
}

// LastSent returns the latest sent message, or a zero Message.
func (m *FakeMessenger) LastSent() chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return chat.Message{}
	}
	return m.Sent[len(m.Sent)-1]
}

// LastEdit returns the latest edit, or a zero EditedMessage.
func (m *FakeMessenger) LastEdit() EditedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Edits) == 0 {
		return EditedMessage{}
	}
	return m.Edits[len(m.Edits)-1]
}

// Reset clears everything recorded so far.
func (m *FakeMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = nil
	m.Edits = nil
	m.Answered = nil
}
