package careplan

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusReview   Status = "review"
	StatusArchived Status = "archived"
)

var validStatuses = map[Status]bool{StatusDraft: true, StatusActive: true, StatusReview: true, StatusArchived: true}

// transitions lists where each status may move. Archiving is always
// allowed and final.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusActive, StatusArchived},
	StatusActive: {StatusReview, StatusArchived},
	StatusReview: {StatusActive, StatusArchived},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

var validLevels = map[Level]bool{LevelLow: true, LevelMedium: true, LevelHigh: true}

type Need struct {
	ID          string `json:"id"`
	Area        string `json:"area" validate:"required,max=100"`
	Description string `json:"description" validate:"required"`
}

type GoalStatus string

const (
	GoalNotStarted GoalStatus = "not-started"
	GoalInProgress GoalStatus = "in-progress"
	GoalAchieved   GoalStatus = "achieved"
)

var validGoalStatuses = map[GoalStatus]bool{GoalNotStarted: true, GoalInProgress: true, GoalAchieved: true}

type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description" validate:"required"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Status      GoalStatus `json:"status"`
}

type Intervention struct {
	ID          string `json:"id"`
	Description string `json:"description" validate:"required"`
	Frequency   string `json:"frequency,omitempty" validate:"max=100"`
	Responsible string `json:"responsible,omitempty" validate:"max=255"`
}

type Risk struct {
	ID          string `json:"id"`
	Description string `json:"description" validate:"required"`
	Likelihood  Level  `json:"likelihood"`
	Impact      Level  `json:"impact"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// CarePlan maps to the care_plan table. The list sections are stored as
// JSONB.
type CarePlan struct {
	ID            uuid.UUID      `json:"id"`
	ClientID      uuid.UUID      `json:"clientId"`
	Title         string         `json:"title" validate:"required,max=255"`
	Summary       string         `json:"summary,omitempty"`
	Status        Status         `json:"status"`
	Needs         []Need         `json:"needs" validate:"dive"`
	Goals         []Goal         `json:"goals" validate:"dive"`
	Interventions []Intervention `json:"interventions" validate:"dive"`
	Risks         []Risk         `json:"risks" validate:"dive"`
	ReviewDate    *time.Time     `json:"reviewDate,omitempty"`
	ReviewNotes   string         `json:"reviewNotes,omitempty"`
	SignedOffBy   string         `json:"signedOffBy,omitempty"`
	SignedOffAt   *time.Time     `json:"signedOffAt,omitempty"`
	CreatedBy     string         `json:"createdBy"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ReviewDue reports whether the review date has been reached.
func (cp *CarePlan) ReviewDue(now time.Time) bool {
	return cp.ReviewDate != nil && !cp.ReviewDate.After(now) && cp.Status != StatusArchived
}
