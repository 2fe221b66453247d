package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssessmentRecord is the persisted outcome of a submission.
type AssessmentRecord struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	SessionID     string       `db:"session_id" json:"session_id"`
	UserID        string       `db:"user_id" json:"user_id"`
	EmergencyType string       `db:"emergency_type" json:"emergency_type"`
	Title         string       `db:"title" json:"title"`
	IsSelf        bool         `db:"is_self" json:"is_self"`
	Prompt        string       `db:"prompt" json:"prompt"`
	Status        ResultStatus `db:"status" json:"status"`
	ResponseText  string       `db:"response_text" json:"response_text,omitempty"`
	FailureReason string       `db:"failure_reason" json:"failure_reason,omitempty"`
	Location      string       `db:"location" json:"location,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

type RecordRepository interface {
	Create(ctx context.Context, r *AssessmentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*AssessmentRecord, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*AssessmentRecord, int, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

func newRecord(s *Session) *AssessmentRecord {
	r := &AssessmentRecord{
		SessionID:     s.ID,
		UserID:        s.UserID,
		EmergencyType: s.Type.ID,
		Title:         s.Type.Title,
		IsSelf:        s.IsSelf(),
		Prompt:        s.prompt,
		Location:      s.location,
	}
	if s.result != nil {
		r.Status = s.result.Status
		r.ResponseText = s.result.Text
		r.FailureReason = s.result.Reason
	}
	return r
}
