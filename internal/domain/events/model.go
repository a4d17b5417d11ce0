package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/blobstore"
)

type Type string

const (
	TypeAccident        Type = "accident"
	TypeIncident        Type = "incident"
	TypeNearMiss        Type = "near-miss"
	TypeSafeguarding    Type = "safeguarding"
	TypeComplaint       Type = "complaint"
	TypeMedicationError Type = "medication-error"
	TypeBehaviour       Type = "behaviour"
	TypeOther           Type = "other"
)

type Category string

const (
	CategoryFall          Category = "fall"
	CategoryInjury        Category = "injury"
	CategorySkinIntegrity Category = "skin-integrity"
	CategoryMedication    Category = "medication"
	CategoryBehavioural   Category = "behavioural"
	CategoryEnvironmental Category = "environmental"
	CategorySafeguarding  Category = "safeguarding"
	CategoryOther         Category = "other"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under-review"
	StatusEscalated   Status = "escalated"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
)

var validTypes = map[Type]bool{
	TypeAccident: true, TypeIncident: true, TypeNearMiss: true, TypeSafeguarding: true,
	TypeComplaint: true, TypeMedicationError: true, TypeBehaviour: true, TypeOther: true,
}

var validCategories = map[Category]bool{
	CategoryFall: true, CategoryInjury: true, CategorySkinIntegrity: true, CategoryMedication: true,
	CategoryBehavioural: true, CategoryEnvironmental: true, CategorySafeguarding: true, CategoryOther: true,
}

var validSeverities = map[Severity]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

var validStatuses = map[Status]bool{
	StatusOpen: true, StatusUnderReview: true, StatusEscalated: true, StatusResolved: true, StatusClosed: true,
}

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusOpen:        {StatusUnderReview, StatusEscalated, StatusResolved},
	StatusUnderReview: {StatusEscalated, StatusResolved},
	StatusEscalated:   {StatusUnderReview, StatusResolved},
	StatusResolved:    {StatusClosed, StatusUnderReview},
	StatusClosed:      nil,
}

// CanTransition reports whether an event may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// BodyMapPoint marks an injury on the body diagram. X and Y are
// percentages of the diagram's width and height.
type BodyMapPoint struct {
	ID          string   `json:"id"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Side        Side     `json:"side"`
	InjuryType  string   `json:"injuryType"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
}

type FollowUp struct {
	Required    bool       `json:"required"`
	Actions     string     `json:"actions,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Compliance struct {
	NotifiableToRegulator bool       `json:"notifiableToRegulator"`
	RegulatorNotified     bool       `json:"regulatorNotified"`
	RegulatorNotifiedAt   *time.Time `json:"regulatorNotifiedAt,omitempty"`
	FamilyNotified        bool       `json:"familyNotified"`
	FamilyNotifiedAt      *time.Time `json:"familyNotifiedAt,omitempty"`
	RIDDORReportable      bool       `json:"riddorReportable"`
}

type Investigation struct {
	Required    bool       `json:"required"`
	Lead        string     `json:"lead,omitempty"`
	Findings    string     `json:"findings,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Event maps to the event_log table. Attachments live in the blob store
// and are listed by owner.
type Event struct {
	ID              uuid.UUID             `json:"id"`
	Type            Type                  `json:"type" validate:"required"`
	Category        Category              `json:"category" validate:"required"`
	Severity        Severity              `json:"severity" validate:"required"`
	Status          Status                `json:"status"`
	Title           string                `json:"title" validate:"required,max=255"`
	Description     string                `json:"description,omitempty"`
	ImmediateAction string                `json:"immediateAction,omitempty"`
	Location        string                `json:"location,omitempty" validate:"max=255"`
	OccurredAt      time.Time             `json:"occurredAt" validate:"required"`
	ClientID        *uuid.UUID            `json:"clientId,omitempty"`
	BranchID        string                `json:"branchId,omitempty"`
	ReportedBy      string                `json:"reportedBy"`
	BodyMapPoints   []BodyMapPoint        `json:"bodyMapPoints"`
	StaffInvolved   []string              `json:"staffInvolved"`
	Witnesses       []string              `json:"witnesses"`
	FollowUp        FollowUp              `json:"followUp"`
	Compliance      Compliance            `json:"compliance"`
	Investigation   Investigation         `json:"investigation"`
	Attachments     []*blobstore.Metadata `json:"attachments,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}
