package clients

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/blobstore"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusDischarged Status = "discharged"
)

var validStatuses = map[Status]bool{StatusActive: true, StatusInactive: true, StatusDischarged: true}

// Client maps to the client table.
type Client struct {
	ID            uuid.UUID  `json:"id"`
	FirstName     string     `json:"firstName" validate:"required,max=255"`
	LastName      string     `json:"lastName" validate:"required,max=255"`
	PreferredName string     `json:"preferredName,omitempty" validate:"max=255"`
	DateOfBirth   *time.Time `json:"dateOfBirth,omitempty"`
	NHSNumber     *string    `json:"nhsNumber,omitempty"`
	BranchID      string     `json:"branchId,omitempty" validate:"max=100"`
	Status        Status     `json:"status"`
	Address       string     `json:"address,omitempty"`
	Phone         string     `json:"phone,omitempty" validate:"max=50"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// DisplayName prefers the name the client likes to be called.
func (c *Client) DisplayName() string {
	first := c.FirstName
	if c.PreferredName != "" {
		first = c.PreferredName
	}
	return strings.TrimSpace(first + " " + c.LastName)
}

// NormalizeNHSNumber strips spaces and dashes. An empty result is nil.
func NormalizeNHSNumber(s *string) *string {
	if s == nil {
		return nil
	}
	n := strings.NewReplacer(" ", "", "-", "").Replace(*s)
	if n == "" {
		return nil
	}
	return &n
}

// ValidNHSNumber checks length and the modulus 11 check digit.
func ValidNHSNumber(n string) bool {
	if len(n) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		d := n[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * (10 - i)
	}
	last := n[9]
	if last < '0' || last > '9' {
		return false
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	if check == 10 {
		return false
	}
	return check == int(last-'0')
}

type AgreementStatus string

const (
	AgreementDraft  AgreementStatus = "draft"
	AgreementActive AgreementStatus = "active"
	AgreementEnded  AgreementStatus = "ended"
)

var validAgreementStatuses = map[AgreementStatus]bool{AgreementDraft: true, AgreementActive: true, AgreementEnded: true}

// Agreement is a tenancy or service agreement. The signed document is a
// blob owned by the agreement.
type Agreement struct {
	ID           uuid.UUID           `json:"id"`
	ClientID     uuid.UUID           `json:"clientId"`
	Title        string              `json:"title" validate:"required,max=255"`
	StartDate    time.Time           `json:"startDate" validate:"required"`
	EndDate      *time.Time          `json:"endDate,omitempty"`
	Status       AgreementStatus     `json:"status"`
	AttachmentID *string             `json:"attachmentId,omitempty"`
	Attachment   *blobstore.Metadata `json:"attachment,omitempty"`
	CreatedBy    string              `json:"createdBy"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}
