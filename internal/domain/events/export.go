package events

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/carehub/carehub/internal/platform/pdf"
)

// CSVColumns is the fixed header of the event log export.
var CSVColumns = []string{
	"ID", "Occurred At", "Title", "Type", "Category", "Severity", "Status",
	"Client ID", "Location", "Reported By", "Staff Involved", "Body Map Points",
	"Follow-up Required", "Regulator Notified", "Family Notified", "Created At",
}

func csvRow(e *Event) []string {
	client := ""
	if e.ClientID != nil {
		client = e.ClientID.String()
	}
	return []string{
		e.ID.String(),
		e.OccurredAt.UTC().Format(time.RFC3339),
		csvSafe(e.Title),
		string(e.Type),
		string(e.Category),
		string(e.Severity),
		string(e.Status),
		client,
		csvSafe(e.Location),
		csvSafe(e.ReportedBy),
		csvSafe(strings.Join(e.StaffInvolved, "; ")),
		strconv.Itoa(len(e.BodyMapPoints)),
		yesNo(e.FollowUp.Required),
		yesNo(e.Compliance.RegulatorNotified),
		yesNo(e.Compliance.FamilyNotified),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// csvSafe stops spreadsheet applications from evaluating free text as a
// formula.
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// WriteCSV writes the header followed by one row per event.
func WriteCSV(w io.Writer, events []*Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write(csvRow(e)); err != nil {
			return fmt.Errorf("write event %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFilename names a log export taken on date.
func CSVFilename(date time.Time) string {
	return "event-log-" + date.Format("2006-01-02") + ".csv"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// Document lays out a single event for printing.
func Document(e *Event, now time.Time) pdf.Document {
	client := "Not linked"
	if e.ClientID != nil {
		client = e.ClientID.String()
	}
	details := pdf.Section{
		Heading: "Details",
		Fields: []pdf.Field{
			{Label: "Type", Value: string(e.Type)},
			{Label: "Category", Value: string(e.Category)},
			{Label: "Severity", Value: string(e.Severity)},
			{Label: "Status", Value: string(e.Status)},
			{Label: "Occurred at", Value: formatTime(&e.OccurredAt)},
			{Label: "Location", Value: e.Location},
			{Label: "Client", Value: client},
			{Label: "Reported by", Value: e.ReportedBy},
			{Label: "Staff involved", Value: strings.Join(e.StaffInvolved, ", ")},
			{Label: "Witnesses", Value: strings.Join(e.Witnesses, ", ")},
		},
	}

	var narrative []string
	if e.Description != "" {
		narrative = append(narrative, e.Description)
	}
	if e.ImmediateAction != "" {
		narrative = append(narrative, "Immediate action: "+e.ImmediateAction)
	}

	bodyMap := pdf.Section{Heading: "Body map", Empty: "No injuries recorded."}
	if len(e.BodyMapPoints) > 0 {
		t := &pdf.Table{Columns: []string{"Side", "Position", "Injury", "Severity", "Notes"}}
		for _, p := range e.BodyMapPoints {
			t.Rows = append(t.Rows, []string{
				string(p.Side),
				fmt.Sprintf("%.1f%%, %.1f%%", p.X, p.Y),
				p.InjuryType,
				string(p.Severity),
				p.Description,
			})
		}
		bodyMap.Table = t
	}

	followUp := pdf.Section{
		Heading: "Follow-up",
		Fields: []pdf.Field{
			{Label: "Required", Value: yesNo(e.FollowUp.Required)},
			{Label: "Actions", Value: e.FollowUp.Actions},
			{Label: "Due", Value: formatTime(e.FollowUp.DueDate)},
			{Label: "Completed", Value: formatTime(e.FollowUp.CompletedAt)},
		},
	}

	compliance := pdf.Section{
		Heading: "Notifications",
		Fields: []pdf.Field{
			{Label: "Notifiable to regulator", Value: yesNo(e.Compliance.NotifiableToRegulator)},
			{Label: "Regulator notified", Value: yesNo(e.Compliance.RegulatorNotified)},
			{Label: "Regulator notified at", Value: formatTime(e.Compliance.RegulatorNotifiedAt)},
			{Label: "Family notified", Value: yesNo(e.Compliance.FamilyNotified)},
			{Label: "Family notified at", Value: formatTime(e.Compliance.FamilyNotifiedAt)},
			{Label: "RIDDOR reportable", Value: yesNo(e.Compliance.RIDDORReportable)},
		},
	}

	investigation := pdf.Section{Heading: "Investigation", Empty: "No investigation required."}
	if e.Investigation.Required {
		investigation.Fields = []pdf.Field{
			{Label: "Lead", Value: e.Investigation.Lead},
			{Label: "Findings", Value: e.Investigation.Findings},
			{Label: "Outcome", Value: e.Investigation.Outcome},
			{Label: "Completed", Value: formatTime(e.Investigation.CompletedAt)},
		}
	}

	attachments := pdf.Section{Heading: "Attachments", Empty: "No attachments."}
	for _, a := range e.Attachments {
		attachments.Paragraphs = append(attachments.Paragraphs, fmt.Sprintf("%s (%s, %d bytes)", a.FileName, a.ContentType, a.Size))
	}

	return pdf.Document{
		Kind:        "event",
		Title:       e.Title,
		Subtitle:    fmt.Sprintf("Event %s", e.ID),
		GeneratedAt: now,
		Sections: []pdf.Section{
			details,
			{Heading: "Description", Paragraphs: narrative, Empty: "No description."},
			bodyMap,
			followUp,
			compliance,
			investigation,
			attachments,
		},
	}
}
