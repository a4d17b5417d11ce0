package pdf

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	date := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "care-plan-margaret-o-neil-2024-03-09.pdf", Filename("care-plan", "Margaret O'Neil", date))
	assert.Equal(t, "event-fall-in-lounge-2024-03-09.pdf", Filename("event", "  Fall in lounge!! ", date))
	assert.Equal(t, "event-untitled-2024-03-09.pdf", Filename("event", "", date))
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Room 12 / Bed A": "room-12-bed-a",
		"---":             "untitled",
		"Zoë":             "zo",
		"already-slugged": "already-slugged",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestWriteHTML_SectionOrderAndEscaping(t *testing.T) {
	doc := Document{
		Kind:        "care-plan",
		Title:       "Care plan <script>",
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
		Sections: []Section{
			{Heading: "Summary", Fields: []Field{{Label: "Client", Value: "Ada"}}},
			{Heading: "Needs", Paragraphs: []string{"Mobility support"}},
			{Heading: "Goals"},
			{Heading: "Risks", Table: &Table{Columns: []string{"Risk", "Level"}, Rows: [][]string{{"Falls", "high"}}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, Branding{OrgName: "Sunrise Care"}, doc))
	html := buf.String()

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "Sunrise Care")
	assert.Contains(t, html, "None recorded")
	assert.Contains(t, html, "<td>Falls</td>")

	summary := strings.Index(html, "<h2>Summary</h2>")
	needs := strings.Index(html, "<h2>Needs</h2>")
	goals := strings.Index(html, "<h2>Goals</h2>")
	risks := strings.Index(html, "<h2>Risks</h2>")
	assert.True(t, summary < needs && needs < goals && goals < risks)
}

func TestHeaderFooter(t *testing.T) {
	header, err := HeaderHTML(Branding{OrgName: "Sunrise Care", LogoURL: "https://cdn.test/logo.png"})
	require.NoError(t, err)
	assert.Contains(t, header, "Sunrise Care")
	assert.Contains(t, header, "logo.png")

	footer, err := FooterHTML()
	require.NoError(t, err)
	assert.Contains(t, footer, `class="pageNumber"`)
	assert.Contains(t, footer, `class="totalPages"`)
	assert.Contains(t, footer, "CONFIDENTIAL")
}

func TestChromeRenderer(t *testing.T) {
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no chrome binary available")
	}

	r := NewChromeRenderer(Branding{OrgName: "Sunrise Care"}, 30*time.Second, zerolog.Nop())
	out, err := r.Render(context.Background(), Document{Kind: "event", Title: "Fall", GeneratedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
