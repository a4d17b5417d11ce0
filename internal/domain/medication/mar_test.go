package medication

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestDayBounds(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("time zone data unavailable")
	}
	// 23:30 UTC on 1 June is 00:30 on 2 June in London (BST).
	start, end := DayBounds(time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC), london)
	if got := start.UTC(); !got.Equal(time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", got)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("unexpected day length %v", end.Sub(start))
	}
}

func TestBuildChart(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	given := at(8)
	doses := []*Administration{
		{ID: uuid.New(), Medication: "Paracetamol", Dose: "1g", Route: "oral", ScheduledAt: at(18), Status: StatusScheduled},
		{ID: uuid.New(), Medication: "Paracetamol", Dose: "1g", Route: "oral", ScheduledAt: at(8), Status: StatusGiven, AdministeredAt: &given},
		{ID: uuid.New(), Medication: "Amlodipine", Dose: "5mg", Route: "oral", ScheduledAt: at(8), Status: StatusRefused, Notes: "Asleep"},
		{ID: uuid.New(), Medication: "Paracetamol", Dose: "1g", Route: "oral", ScheduledAt: at(12), Status: StatusScheduled},
	}

	chart := BuildChart(uuid.New(), day, doses, at(14))

	if chart.Date != "2024-05-01" {
		t.Errorf("unexpected date %s", chart.Date)
	}
	var names []string
	for _, r := range chart.Rows {
		names = append(names, r.Medication)
	}
	if diff := cmp.Diff([]string{"Amlodipine", "Paracetamol"}, names); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	para := chart.Rows[1]
	if len(para.Doses) != 3 || !para.Doses[0].ScheduledAt.Equal(at(8)) || !para.Doses[2].ScheduledAt.Equal(at(18)) {
		t.Errorf("doses should be in scheduled order")
	}
	wantCounts := map[Status]int{StatusScheduled: 2, StatusGiven: 1, StatusRefused: 1, StatusOmitted: 0, StatusNotGiven: 0}
	if diff := cmp.Diff(wantCounts, chart.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if len(chart.Overdue) != 1 || chart.Overdue[0] != doses[3].ID {
		t.Errorf("expected the noon dose to be overdue, got %v", chart.Overdue)
	}
}
