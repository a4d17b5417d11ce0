package medication

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Row groups the doses of one medication, dose and route on the chart.
type Row struct {
	Medication string            `json:"medication"`
	Dose       string            `json:"dose"`
	Route      string            `json:"route"`
	Doses      []*Administration `json:"doses"`
}

// Chart is the medication administration record of one client for one day.
type Chart struct {
	ClientID uuid.UUID      `json:"clientId"`
	Date     string         `json:"date"`
	Rows     []*Row         `json:"rows"`
	Counts   map[Status]int `json:"counts"`
	Overdue  []uuid.UUID    `json:"overdue"`
}

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// BuildChart groups doses into rows sorted by medication name, each row's
// doses in scheduled order.
func BuildChart(clientID uuid.UUID, day time.Time, doses []*Administration, now time.Time) *Chart {
	c := &Chart{
		ClientID: clientID,
		Date:     day.Format("2006-01-02"),
		Counts:   make(map[Status]int, len(Outcomes)+1),
		Overdue:  []uuid.UUID{},
	}
	c.Counts[StatusScheduled] = 0
	for _, s := range Outcomes {
		c.Counts[s] = 0
	}

	type key struct{ medication, dose, route string }
	rows := make(map[key]*Row)
	for _, d := range doses {
		k := key{d.Medication, d.Dose, d.Route}
		row, ok := rows[k]
		if !ok {
			row = &Row{Medication: d.Medication, Dose: d.Dose, Route: d.Route}
			rows[k] = row
			c.Rows = append(c.Rows, row)
		}
		row.Doses = append(row.Doses, d)
		c.Counts[d.Status]++
		if d.Overdue(now) {
			c.Overdue = append(c.Overdue, d.ID)
		}
	}

	sort.SliceStable(c.Rows, func(i, j int) bool {
		a, b := c.Rows[i], c.Rows[j]
		if a.Medication != b.Medication {
			return a.Medication < b.Medication
		}
		return a.Dose < b.Dose
	})
	for _, row := range c.Rows {
		sort.SliceStable(row.Doses, func(i, j int) bool {
			return row.Doses[i].ScheduledAt.Before(row.Doses[j].ScheduledAt)
		})
	}
	return c
}
