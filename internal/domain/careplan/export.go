package careplan

import (
	"fmt"
	"time"

	"github.com/carehub/carehub/internal/platform/pdf"
)

// SectionOrder is the fixed order of a printed care plan.
var SectionOrder = []string{"Summary", "Needs", "Goals", "Interventions", "Risks", "Review", "Sign-off"}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2 January 2006")
}

// Document lays out cp for printing. clientName heads the document.
func Document(cp *CarePlan, clientName string, now time.Time) pdf.Document {
	summary := pdf.Section{
		Heading: "Summary",
		Fields: []pdf.Field{
			{Label: "Client", Value: clientName},
			{Label: "Status", Value: string(cp.Status)},
			{Label: "Last updated", Value: dateString(&cp.UpdatedAt)},
		},
	}
	if cp.Summary != "" {
		summary.Paragraphs = []string{cp.Summary}
	}

	needs := pdf.Section{Heading: "Needs", Empty: "No needs recorded."}
	if len(cp.Needs) > 0 {
		needs.Table = &pdf.Table{Columns: []string{"Area", "Description"}}
		for _, n := range cp.Needs {
			needs.Table.Rows = append(needs.Table.Rows, []string{n.Area, n.Description})
		}
	}

	goals := pdf.Section{Heading: "Goals", Empty: "No goals recorded."}
	if len(cp.Goals) > 0 {
		goals.Table = &pdf.Table{Columns: []string{"Goal", "Target date", "Status"}}
		for _, g := range cp.Goals {
			goals.Table.Rows = append(goals.Table.Rows, []string{g.Description, dateString(g.TargetDate), string(g.Status)})
		}
	}

	interventions := pdf.Section{Heading: "Interventions", Empty: "No interventions recorded."}
	if len(cp.Interventions) > 0 {
		interventions.Table = &pdf.Table{Columns: []string{"Intervention", "Frequency", "Responsible"}}
		for _, iv := range cp.Interventions {
			interventions.Table.Rows = append(interventions.Table.Rows, []string{iv.Description, iv.Frequency, iv.Responsible})
		}
	}

	risks := pdf.Section{Heading: "Risks", Empty: "No risks identified."}
	if len(cp.Risks) > 0 {
		risks.Table = &pdf.Table{Columns: []string{"Risk", "Likelihood", "Impact", "Mitigation"}}
		for _, r := range cp.Risks {
			risks.Table.Rows = append(risks.Table.Rows, []string{r.Description, string(r.Likelihood), string(r.Impact), r.Mitigation})
		}
	}

	review := pdf.Section{Heading: "Review", Empty: "No review scheduled."}
	if cp.ReviewDate != nil {
		review.Fields = []pdf.Field{{Label: "Review date", Value: dateString(cp.ReviewDate)}}
	}
	if cp.ReviewNotes != "" {
		review.Paragraphs = []string{cp.ReviewNotes}
	}

	signOff := pdf.Section{Heading: "Sign-off", Empty: "Not signed off."}
	if cp.SignedOffAt != nil {
		signOff.Fields = []pdf.Field{
			{Label: "Signed off by", Value: cp.SignedOffBy},
			{Label: "Signed off on", Value: dateString(cp.SignedOffAt)},
		}
	}

	return pdf.Document{
		Kind:        "care-plan",
		Title:       cp.Title,
		Subtitle:    fmt.Sprintf("Care plan for %s", clientName),
		GeneratedAt: now,
		Sections:    []pdf.Section{summary, needs, goals, interventions, risks, review, signOff},
	}
}
