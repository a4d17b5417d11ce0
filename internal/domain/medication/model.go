package medication

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusGiven     Status = "given"
	StatusRefused   Status = "refused"
	StatusOmitted   Status = "omitted"
	StatusNotGiven  Status = "not-given"
)

// Outcomes are the statuses a scheduled dose can be recorded with.
var Outcomes = []Status{StatusGiven, StatusRefused, StatusOmitted, StatusNotGiven}

var validOutcomes = map[Status]bool{StatusGiven: true, StatusRefused: true, StatusOmitted: true, StatusNotGiven: true}

// OverdueAfter is how long a scheduled dose may wait before the chart
// flags it.
const OverdueAfter = time.Hour

// Administration maps to the medication_administration table: one
// scheduled dose and, once recorded, its outcome.
type Administration struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       uuid.UUID  `json:"clientId"`
	Medication     string     `json:"medication" validate:"required,max=255"`
	Dose           string     `json:"dose" validate:"required,max=100"`
	Route          string     `json:"route" validate:"required,max=50"`
	ScheduledAt    time.Time  `json:"scheduledAt" validate:"required"`
	AdministeredAt *time.Time `json:"administeredAt,omitempty"`
	Status         Status     `json:"status"`
	AdministeredBy string     `json:"administeredBy,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (a *Administration) Overdue(now time.Time) bool {
	return a.Status == StatusScheduled && now.Sub(a.ScheduledAt) > OverdueAfter
}

// Outcome is what a carer records against a scheduled dose.
type Outcome struct {
	Status         Status     `json:"status"`
	AdministeredAt *time.Time `json:"administeredAt,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}
