package forms

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// Submission maps to the form_submission table.
type Submission struct {
	ID          uuid.UUID              `json:"id"`
	FormID      uuid.UUID              `json:"formId"`
	ClientID    *uuid.UUID             `json:"clientId,omitempty"`
	Values      map[string]interface{} `json:"values"`
	Progress    int                    `json:"progress"`
	Status      SubmissionStatus       `json:"status"`
	SubmittedBy string                 `json:"submittedBy"`
	SubmittedAt *time.Time             `json:"submittedAt,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}
