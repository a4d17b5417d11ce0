package news2

import (
	"time"

	"github.com/google/uuid"
)

// Consciousness is recorded on the ACVPU scale.
type Consciousness string

const (
	Alert        Consciousness = "A"
	NewConfusion Consciousness = "C"
	Voice        Consciousness = "V"
	Pain         Consciousness = "P"
	Unresponsive Consciousness = "U"
)

var validConsciousness = map[Consciousness]bool{
	Alert: true, NewConfusion: true, Voice: true, Pain: true, Unresponsive: true,
}

// Observation maps to the news2_observation table. Vital signs are
// optional; when all of them are present the score is computed,
// otherwise the recorded TotalScore is required.
type Observation struct {
	ID              uuid.UUID     `json:"id"`
	ClientID        uuid.UUID     `json:"clientId"`
	RespiratoryRate *int          `json:"respiratoryRate,omitempty" validate:"omitempty,min=0,max=80"`
	SpO2            *int          `json:"spo2,omitempty" validate:"omitempty,min=50,max=100"`
	SpO2Scale       int           `json:"spo2Scale"`
	OnOxygen        bool          `json:"onOxygen"`
	SystolicBP      *int          `json:"systolicBp,omitempty" validate:"omitempty,min=30,max=300"`
	PulseRate       *int          `json:"pulseRate,omitempty" validate:"omitempty,min=0,max=300"`
	Consciousness   Consciousness `json:"consciousness"`
	Temperature     *float64      `json:"temperature,omitempty" validate:"omitempty,min=25,max=45"`
	TotalScore      *int          `json:"totalScore,omitempty" validate:"omitempty,min=0,max=20"`
	RiskTier        Tier          `json:"riskTier"`
	Breakdown       *Breakdown    `json:"breakdown,omitempty"`
	RecordedBy      string        `json:"recordedBy"`
	ObservedAt      time.Time     `json:"observedAt"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// DashboardEntry is the latest observation of one client.
type DashboardEntry struct {
	ClientName  string       `json:"clientName"`
	Observation *Observation `json:"observation"`
}

// Dashboard lists the latest observation per client, highest score first,
// with counts per tier.
type Dashboard struct {
	Counts      map[Tier]int      `json:"counts"`
	Entries     []*DashboardEntry `json:"entries"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
