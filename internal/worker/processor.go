// Package worker turns queued receipt photos into filled-in records.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "derroche/internal/errors"
	"derroche/internal/extraction"
	"derroche/internal/imagestore"
	"derroche/internal/models"
	"derroche/internal/parsing"
	"derroche/internal/queue"
	"derroche/internal/services"
)

// finalizeTimeout bounds the error bookkeeping done after the job context
// may already have expired.
const finalizeTimeout = 10 * time.Second

// Extractor reads fields from a receipt image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (*extraction.Result, error)
}

// Notifier reports processing outcomes to the user.
type Notifier interface {
	SendConfirmation(ctx context.Context, rec *models.Record) error
	SendExtractionError(ctx context.Context, chatID int64, recordID uint) error
}

// PhotoProcessor handles photo jobs.
type PhotoProcessor struct {
	records   services.RecordServicer
	images    imagestore.Store
	extractor Extractor
	notifier  Notifier
	log       *zap.SugaredLogger
}

// NewPhotoProcessor creates a PhotoProcessor.
func NewPhotoProcessor(records services.RecordServicer, images imagestore.Store, extractor Extractor, notifier Notifier, log *zap.SugaredLogger) *PhotoProcessor {
	return &PhotoProcessor{
		records:   records,
		images:    images,
		extractor: extractor,
		notifier:  notifier,
		log:       log,
	}
}

var _ queue.Handler = (*PhotoProcessor)(nil)

// Handle processes one delivery of a photo job. Failures are returned so the
// queue can retry; only the final failure moves the record to error and
// notifies the user. Jobs whose record is gone or no longer pending are
// acknowledged without side effects.
func (p *PhotoProcessor) Handle(ctx context.Context, job queue.Job, attempt queue.Attempt) error {
	log := p.log.With("record_id", job.RecordID, "attempt", attempt.Number(), "max_attempts", attempt.MaxRetry+1)

	record, err := p.records.GetRecord(ctx, job.RecordID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			log.Infow("record no longer exists, dropping job")
			return nil
		}
		return p.fail(ctx, log, job, attempt, fmt.Errorf("loading record: %w", err))
	}
	if record.Status != models.RecordStatusPending {
		log.Infow("record is not pending, dropping job", "status", record.Status)
		return nil
	}

	image, err := p.images.Load(ctx, job.ImageRef)
	if err != nil {
		if errors.Is(err, apperrors.ErrImageNotFound) {
			err = queue.Permanent(err)
		}
		return p.fail(ctx, log, job, attempt, fmt.Errorf("loading image %s: %w", job.ImageRef, err))
	}

	log.Infow("extracting receipt", "image_ref", job.ImageRef, "bytes", len(image))
	result, err := p.extractor.Extract(ctx, image)
	if err != nil {
		if extraction.KindOf(err) == extraction.KindDecode {
			err = queue.Permanent(err)
		}
		return p.fail(ctx, log, job, attempt, err)
	}

	updated, err := p.records.ApplyExtraction(ctx, job.RecordID, p.normalize(log, result.Fields), result.Raw)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) || errors.Is(err, apperrors.ErrStaleRecord) {
			log.Infow("record changed while extracting, discarding result", "error", err)
			return nil
		}
		return p.fail(ctx, log, job, attempt, fmt.Errorf("storing extraction: %w", err))
	}
	log.Infow("receipt processed", "amount", updated.Amount.String(), "category", updated.Category)

	if err := p.notifier.SendConfirmation(ctx, updated); err != nil {
		log.Errorw("failed to send confirmation", "error", err)
	}
	return nil
}

// fail decides what a failed attempt means. Before the last attempt it only
// logs and hands the error back for a retry.
func (p *PhotoProcessor) fail(ctx context.Context, log *zap.SugaredLogger, job queue.Job, attempt queue.Attempt, cause error) error {
	if !attempt.Final() && !queue.IsPermanent(cause) {
		log.Warnw("receipt attempt failed, will retry", "error", cause, "kind", extraction.KindOf(cause))
		return cause
	}

	log.Errorw("receipt processing exhausted", "error", cause, "kind", extraction.KindOf(cause))

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := p.records.MarkError(fctx, job.RecordID, cause.Error()); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) || errors.Is(err, apperrors.ErrStaleRecord) {
			log.Infow("record left pending state before failure was recorded", "error", err)
			return cause
		}
		// The user is still told, so the record is not silently stuck in pending.
		log.Errorw("failed to mark record as error", "error", err)
	}

	if err := p.notifier.SendExtractionError(fctx, job.ChatID, job.RecordID); err != nil {
		log.Errorw("failed to send error prompt", "error", err)
	}
	return cause
}

// normalize converts extracted text into record values. Dates in an
// unknown format are dropped so the stored date stays.
func (p *PhotoProcessor) normalize(log *zap.SugaredLogger, f extraction.Fields) services.ExtractedFields {
	out := services.ExtractedFields{
		Amount:      f.Amount,
		Category:    f.Category,
		Description: f.Description,
		ExpenseType: f.ExpenseType,
		Bank:        f.Bank,
	}
	if f.Date != nil {
		if d, ok := parsing.ParseExtractedDate(*f.Date); ok {
			out.Date = &d
		} else {
			log.Warnw("ignoring unrecognized receipt date", "fecha", *f.Date)
		}
	}
	return out
}
