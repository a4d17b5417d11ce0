// Package pdf turns record exports into printable documents: an HTML body
// rendered with html/template and printed to PDF by headless Chrome with a
// fixed organization header and paginated footer.
package pdf

import (
	"bytes"
	"html/template"
	"io"
	"time"
)

const ConfidentialityNotice = "CONFIDENTIAL: contains personal care information. Do not share outside the care team."

// Branding is the organization header printed on every page.
type Branding struct {
	OrgName string
	LogoURL string
}

// Document is a format-neutral export. Sections print in slice order.
type Document struct {
	Kind        string
	Title       string
	Subtitle    string
	GeneratedAt time.Time
	Sections    []Section
}

type Section struct {
	Heading    string
	Fields     []Field
	Paragraphs []string
	Table      *Table
	// Empty is printed when the section has no content.
	Empty string
}

type Field struct {
	Label string
	Value string
}

type Table struct {
	Columns []string
	Rows    [][]string
}

func (s Section) IsEmpty() bool {
	return len(s.Fields) == 0 && len(s.Paragraphs) == 0 && (s.Table == nil || len(s.Table.Rows) == 0)
}

var bodyTmpl = template.Must(template.New("body").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Doc.Title}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;font-size:11px;color:#1f2933;margin:0}
h1{font-size:20px;margin:0 0 4px}
h2{font-size:14px;border-bottom:1px solid #cbd2d9;padding-bottom:2px;margin:18px 0 6px}
.sub{color:#616e7c;margin-bottom:12px}
dl{display:grid;grid-template-columns:180px 1fr;gap:3px 12px;margin:0}
dt{font-weight:bold}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #cbd2d9;padding:3px 5px;text-align:left;vertical-align:top}
th{background:#f5f7fa}
.empty{color:#9aa5b1;font-style:italic}
</style></head>
<body>
<h1>{{.Doc.Title}}</h1>
<div class="sub">{{if .Doc.Subtitle}}{{.Doc.Subtitle}} · {{end}}Generated {{.Doc.GeneratedAt.Format "02 Jan 2006 15:04"}} by {{.Brand.OrgName}}</div>
{{range .Doc.Sections}}<section>
<h2>{{.Heading}}</h2>
{{if .IsEmpty}}<p class="empty">{{if .Empty}}{{.Empty}}{{else}}None recorded{{end}}</p>{{end}}
{{with .Fields}}<dl>{{range .}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
{{range .Paragraphs}}<p>{{.}}</p>{{end}}
{{with .Table}}{{if .Rows}}<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>{{end}}{{end}}
</section>
{{end}}</body></html>`))

var headerTmpl = template.Must(template.New("header").Parse(
	`<div style="font-size:9px;width:100%;padding:0 12mm;display:flex;justify-content:space-between;align-items:center">` +
		`<span>{{if .LogoURL}}<img src="{{.LogoURL}}" style="height:14px;vertical-align:middle"> {{end}}<strong>{{.OrgName}}</strong></span>` +
		`<span class="title"></span></div>`))

var footerTmpl = template.Must(template.New("footer").Parse(
	`<div style="font-size:8px;width:100%;padding:0 12mm;display:flex;justify-content:space-between">` +
		`<span>{{.}}</span>` +
		`<span>Page <span class="pageNumber"></span> of <span class="totalPages"></span></span></div>`))

// WriteHTML renders the document body.
func WriteHTML(w io.Writer, brand Branding, doc Document) error {
	return bodyTmpl.Execute(w, struct {
		Brand Branding
		Doc   Document
	}{brand, doc})
}

// HeaderHTML is the per-page header template passed to the printer.
func HeaderHTML(brand Branding) (string, error) {
	var buf bytes.Buffer
	if err := headerTmpl.Execute(&buf, brand); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FooterHTML carries the page counter and the confidentiality notice.
func FooterHTML() (string, error) {
	var buf bytes.Buffer
	if err := footerTmpl.Execute(&buf, ConfidentialityNotice); err != nil {
		return "", err
	}
	return buf.String(), nil
}
