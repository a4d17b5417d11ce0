package events

import (
	"errors"
	"math"

	"github.com/carehub/carehub/internal/platform/validation"
)

type PlacementState string

const (
	PlacementIdle          PlacementState = "idle"
	PlacementPlacing       PlacementState = "placing"
	PlacementPointSelected PlacementState = "point-selected"
)

var ErrPlacementState = errors.New("body map placement is not in the required state")

// Rect is the on-screen box of the diagram image.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PointDetails is what the user fills in after picking a spot.
type PointDetails struct {
	InjuryType  string   `json:"injuryType"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
}

// Placement tracks adding one point to a body map:
// idle -> placing -> point-selected -> idle.
type Placement struct {
	side  Side
	phase PlacementState
	x, y  float64
	newID func() string
}

func NewPlacement(newID func() string) *Placement {
	return &Placement{phase: PlacementIdle, newID: newID}
}

func (p *Placement) State() PlacementState { return p.phase }

// Pending returns the selected coordinates while a point is selected.
func (p *Placement) Pending() (x, y float64, ok bool) {
	if p.phase != PlacementPointSelected {
		return 0, 0, false
	}
	return p.x, p.y, true
}

func (p *Placement) BeginPlacing(side Side) {
	p.side = side
	p.phase = PlacementPlacing
}

// Click converts a pointer position into percentages of rect, clamped to
// 0-100. Clicks outside placing mode are ignored.
func (p *Placement) Click(clientX, clientY float64, rect Rect) bool {
	if p.phase != PlacementPlacing || rect.Width <= 0 || rect.Height <= 0 {
		return false
	}
	p.x = percent(clientX-rect.Left, rect.Width)
	p.y = percent(clientY-rect.Top, rect.Height)
	p.phase = PlacementPointSelected
	return true
}

func percent(offset, size float64) float64 {
	v := offset / size * 100
	v = math.Round(v*100) / 100
	return math.Max(0, math.Min(100, v))
}

// Save turns the selected coordinates into a point and returns to idle.
func (p *Placement) Save(d PointDetails) (BodyMapPoint, error) {
	if p.phase != PlacementPointSelected {
		return BodyMapPoint{}, ErrPlacementState
	}
	pt := BodyMapPoint{
		ID:          p.newID(),
		X:           p.x,
		Y:           p.y,
		Side:        p.side,
		InjuryType:  d.InjuryType,
		Severity:    d.Severity,
		Description: d.Description,
		Color:       d.Color,
	}
	if pt.Color == "" {
		pt.Color = SeverityColor(pt.Severity)
	}
	p.reset()
	return pt, nil
}

func (p *Placement) Cancel() { p.reset() }

func (p *Placement) reset() {
	p.phase = PlacementIdle
	p.x, p.y = 0, 0
}

// SeverityColor is the marker colour used when none was picked.
func SeverityColor(s Severity) string {
	switch s {
	case SeverityCritical:
		return "#7f1d1d"
	case SeverityHigh:
		return "#dc2626"
	case SeverityMedium:
		return "#f59e0b"
	default:
		return "#16a34a"
	}
}

// ValidatePoint checks a point sent by a client.
func ValidatePoint(pt BodyMapPoint) validation.Errors {
	errs := validation.Errors{}
	if pt.Side != SideFront && pt.Side != SideBack {
		errs["side"] = "must be one of: front, back"
	}
	if pt.X < 0 || pt.X > 100 {
		errs["x"] = "must be between 0 and 100"
	}
	if pt.Y < 0 || pt.Y > 100 {
		errs["y"] = "must be between 0 and 100"
	}
	if pt.InjuryType == "" {
		errs["injuryType"] = "is required"
	}
	if pt.Severity != "" && !validSeverities[pt.Severity] {
		errs["severity"] = "must be one of: low, medium, high, critical"
	}
	return errs
}
