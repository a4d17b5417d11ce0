package events

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/validation"
)

// Filter narrows the event log. Every set field must match.
type Filter struct {
	Type     Type       `json:"type,omitempty"`
	Category Category   `json:"category,omitempty"`
	Severity Severity   `json:"severity,omitempty"`
	Status   Status     `json:"status,omitempty"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	Search   string     `json:"search,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
}

// ParseFilter reads a filter from query parameters. Dates are either
// RFC 3339 or 2006-01-02; a bare "to" date covers the whole day.
func ParseFilter(q url.Values) (Filter, error) {
	errs := validation.Errors{}
	f := Filter{
		Type:     Type(q.Get("type")),
		Category: Category(q.Get("category")),
		Severity: Severity(q.Get("severity")),
		Status:   Status(q.Get("status")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if f.Type != "" && !validTypes[f.Type] {
		errs.Add("type", "is not a known event type")
	}
	if f.Category != "" && !validCategories[f.Category] {
		errs.Add("category", "is not a known category")
	}
	if f.Severity != "" && !validSeverities[f.Severity] {
		errs.Add("severity", "is not a known severity")
	}
	if f.Status != "" && !validStatuses[f.Status] {
		errs.Add("status", "is not a known status")
	}
	if v := q.Get("clientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			errs.Add("clientId", "must be a valid UUID")
		} else {
			f.ClientID = &id
		}
	}
	if v := q.Get("from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			errs.Add("from", "must be a date")
		} else {
			f.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			errs.Add("to", "must be a date")
		} else {
			if dateOnly {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			f.To = &t
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		errs.Add("to", "must not be before from")
	}
	return f, errs.Err()
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", v)
	return t, true, err
}

// Matches reports whether e passes every set criterion.
func (f Filter) Matches(e *Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.ClientID != nil && (e.ClientID == nil || *e.ClientID != *f.ClientID) {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hay := strings.ToLower(e.Title + "\n" + e.Description + "\n" + e.Location)
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

// Apply returns the events that match, keeping their order.
func (f Filter) Apply(in []*Event) []*Event {
	out := make([]*Event, 0, len(in))
	for _, e := range in {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
