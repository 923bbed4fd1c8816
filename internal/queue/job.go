package queue

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "derroche/internal/errors"
)

// Kind names a job type. It doubles as the task type on the Redis backend.
type Kind string

// KindProcessPhoto reads a receipt photo into its pending record.
const KindProcessPhoto Kind = "photo:process"

// Job is the serialized unit of work. It carries only references: the
// record id and the stored image, never the image itself.
type Job struct {
	Kind       Kind      `json:"kind"`
	RecordID   uint      `json:"record_id"`
	ImageRef   string    `json:"image_ref"`
	ChatID     int64     `json:"chat_id"`
	UserID     int64     `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewPhotoJob builds the job that processes one receipt photo.
func NewPhotoJob(recordID uint, imageRef string, chatID, userID int64) Job {
	return Job{
		Kind:       KindProcessPhoto,
		RecordID:   recordID,
		ImageRef:   imageRef,
		ChatID:     chatID,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Validate rejects jobs no handler could act on.
func (j Job) Validate() error {
	if j.Kind != KindProcessPhoto {
		return apperrors.WithMessage(apperrors.ErrInvalidJob, fmt.Sprintf("unknown job kind %q", j.Kind))
	}
	if j.RecordID == 0 || j.ImageRef == "" || j.ChatID == 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidJob, "job is missing record, image or chat")
	}
	return nil
}

// Encode serializes the job payload.
func (j Job) Encode() ([]byte, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// Decode parses and validates a job payload.
func Decode(payload []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return Job{}, apperrors.Wrap(apperrors.ErrInvalidJob, err)
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}
