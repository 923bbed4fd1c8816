package bot

import (
	"context"
	"slices"
	"strings"

	"derroche/internal/chat"
	"derroche/internal/models"
	"derroche/internal/notifier"
	"derroche/internal/parsing"
	"derroche/internal/services"
)

// noDescription is the answer that skips the description step.
const noDescription = "ninguna"

// handleManualStep consumes one answer of the manual form. Invalid answers
// re-prompt the same step.
func (c *Controller) handleManualStep(ctx context.Context, session *Session, u chat.Update) {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		c.promptStep(ctx, u.ChatID, session.Step)
		return
	}

	switch session.Step {
	case StepDate:
		date, err := parsing.ParseDate(text)
		if err != nil {
			c.reply(ctx, u.ChatID, notifier.TextInvalidDate)
			return
		}
		session.Draft.Date = date
		session.Step = StepAmount

	case StepAmount:
		amount, err := parsing.ParseAmount(text)
		if err != nil {
			c.reply(ctx, u.ChatID, notifier.TextInvalidAmt)
			return
		}
		session.Draft.Amount = amount
		session.Step = StepExpenseType

	case StepExpenseType:
		if !isChoice(notifier.ExpenseTypes, text) {
			c.promptStep(ctx, u.ChatID, session.Step)
			return
		}
		session.Draft.ExpenseType = text
		session.Step = StepCategory

	case StepCategory:
		if !isChoice(notifier.Categories, text) {
			c.promptStep(ctx, u.ChatID, session.Step)
			return
		}
		session.Draft.Category = text
		session.Step = StepBank

	case StepBank:
		session.Draft.Bank = text
		session.Step = StepDescription

	case StepDescription:
		if strings.EqualFold(text, noDescription) {
			text = models.EmptyDescription
		}
		session.Draft.Description = text
		session.Step = StepPaymentMethod

	case StepPaymentMethod:
		if !isChoice(notifier.PaymentMethods, text) {
			c.promptStep(ctx, u.ChatID, session.Step)
			return
		}
		session.Draft.PaymentMethod = text
		session.Draft.UserID = u.UserID
		session.Draft.ChatID = u.ChatID
		c.saveManual(ctx, session, u.ChatID)
		return
	}

	c.promptStep(ctx, u.ChatID, session.Step)
}

// saveManual stores the draft and ends the conversation either way.
func (c *Controller) saveManual(ctx context.Context, session *Session, chatID int64) {
	entry := session.Draft
	replaceID := session.ReplaceRecordID
	session.reset()

	var (
		rec *models.Record
		err error
	)
	if replaceID != 0 {
		rec, err = c.records.CompleteManually(ctx, replaceID, entry)
	} else {
		rec, err = c.records.CreateManual(ctx, entry)
	}
	if err != nil {
		c.log.Errorw("failed to save manual record", "chat_id", chatID, "record_id", replaceID, "error", err)
		c.send(ctx, chat.Message{ChatID: chatID, Text: notifier.TextSaveFailed, RemoveReply: true})
		return
	}

	c.log.Infow("manual record saved", "record_id", rec.ID, "chat_id", chatID)
	c.send(ctx, chat.Message{ChatID: chatID, Text: notifier.SavedSummary(rec), Markdown: true, RemoveReply: true})
}

func (c *Controller) promptStep(ctx context.Context, chatID int64, step Step) {
	msg := chat.Message{ChatID: chatID}
	switch step {
	case StepDate:
		msg.Text = notifier.TextAskDate
	case StepAmount:
		msg.Text = notifier.TextAskAmount
	case StepExpenseType:
		msg.Text, msg.Reply = notifier.TextAskType, notifier.ExpenseTypes
	case StepCategory:
		msg.Text, msg.Reply = notifier.TextAskCategory, notifier.Categories
	case StepBank:
		msg.Text, msg.RemoveReply = notifier.TextAskBank, true
	case StepDescription:
		msg.Text = notifier.TextAskDesc
	case StepPaymentMethod:
		msg.Text, msg.Reply = notifier.TextAskPayment, notifier.PaymentMethods
	default:
		return
	}
	c.send(ctx, msg)
}

// startManual begins the manual form, optionally completing a failed photo record.
func (c *Controller) startManual(session *Session, replaceID uint) {
	session.reset()
	session.Step = StepDate
	session.ReplaceRecordID = replaceID
	session.Draft = services.ManualEntry{}
}

func isChoice(keyboard [][]string, text string) bool {
	for _, row := range keyboard {
		if slices.Contains(row, text) {
			return true
		}
	}
	return false
}
