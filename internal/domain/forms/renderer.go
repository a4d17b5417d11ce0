package forms

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/carehub/carehub/internal/platform/sanitize"
)

// NodeKind selects how a node is drawn.
type NodeKind string

const (
	NodeInput     NodeKind = "input"
	NodeTextarea  NodeKind = "textarea"
	NodeChoice    NodeKind = "choice"
	NodeSelect    NodeKind = "select"
	NodeFile      NodeKind = "file"
	NodeSignature NodeKind = "signature"
	NodeHeading   NodeKind = "heading"
	NodeParagraph NodeKind = "paragraph"
	NodeSection   NodeKind = "section"
	NodeDivider   NodeKind = "divider"
)

type NodeOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Node is the display tree produced by Render. Text of paragraph nodes is
// already sanitized HTML.
type Node struct {
	Kind        NodeKind     `json:"kind"`
	ElementID   string       `json:"elementId"`
	Type        ElementType  `json:"type"`
	Label       string       `json:"label,omitempty"`
	Required    bool         `json:"required,omitempty"`
	Disabled    bool         `json:"disabled"`
	InputType   string       `json:"inputType,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
	Value       interface{}  `json:"value,omitempty"`
	Options     []NodeOption `json:"options,omitempty"`
	Multiple    bool         `json:"multiple,omitempty"`
	Accept      []string     `json:"accept,omitempty"`
	Level       int          `json:"level,omitempty"`
	Text        string       `json:"text,omitempty"`
	Error       string       `json:"error,omitempty"`
	Children    []Node       `json:"children,omitempty"`

	// Change forwards an edit to RenderOptions.OnChange. It is nil in
	// design mode.
	Change func(v interface{}) `json:"-"`
}

// RenderOptions controls one render pass. With Preview false the tree is
// the designer canvas: every input is disabled and shows its default.
type RenderOptions struct {
	Preview bool
	// Value overrides Values for the element passed to Render.
	Value    interface{}
	Values   map[string]interface{}
	Errors   map[string]string
	OnChange func(elementID string, v interface{})
}

// RenderAll renders a scope in order.
func RenderAll(elements []Element, opts RenderOptions) []Node {
	opts.Value = nil
	nodes := make([]Node, 0, len(elements))
	for _, e := range elements {
		nodes = append(nodes, Render(e, opts))
	}
	return nodes
}

// Render maps one element to its display node. It has no side effects.
func Render(e Element, opts RenderOptions) Node {
	n := Node{
		ElementID: e.ID,
		Type:      e.Type,
		Label:     e.Label,
		Required:  e.Required,
		Disabled:  !opts.Preview,
	}
	if opts.Preview {
		n.Error = opts.Errors[e.ID]
		if opts.OnChange != nil && !e.Type.IsLayout() {
			id, fn := e.ID, opts.OnChange
			n.Change = func(v interface{}) { fn(id, v) }
		}
	}
	value := opts.Value
	if value == nil && opts.Preview {
		value = opts.Values[e.ID]
	}

	switch p := e.Props.(type) {
	case *InputProps:
		n.Kind = NodeInput
		if e.Type == TypeTextarea {
			n.Kind = NodeTextarea
		} else {
			n.InputType = htmlInputType(e.Type)
		}
		n.Placeholder = p.Placeholder
		if opts.Preview && value != nil {
			n.Value = value
		} else if p.DefaultValue != "" {
			n.Value = p.DefaultValue
		}
	case *ChoiceProps:
		n.Kind = NodeChoice
		if e.Type == TypeSelect || e.Type == TypeMultiselect {
			n.Kind = NodeSelect
		}
		n.Multiple = e.Type.MultiValued()
		if opts.Preview {
			n.Value = value
		}
		selected := map[string]bool{}
		if opts.Preview {
			for _, s := range valueStrings(value) {
				selected[s] = true
			}
		}
		for _, o := range p.Options {
			n.Options = append(n.Options, NodeOption{ID: o.ID, Label: o.Label, Value: o.Value, Selected: selected[o.Value]})
		}
	case *FileProps:
		n.Kind = NodeFile
		n.Accept = p.Accept
		n.Multiple = p.Multiple
		if opts.Preview {
			n.Value = value
		}
	case *SignatureProps:
		n.Kind = NodeSignature
		if opts.Preview {
			n.Value = value
		}
	case *HeadingProps:
		n.Kind = NodeHeading
		n.Level = clampLevel(p.Level)
		n.Text = p.Text
	case *ParagraphProps:
		n.Kind = NodeParagraph
		n.Text = sanitize.RichText(p.Text)
	case *SectionProps:
		n.Kind = NodeSection
		n.Children = RenderAll(p.Children, opts)
	case *DividerProps:
		n.Kind = NodeDivider
	default:
		panic(fmt.Sprintf("forms: element %s has no properties", e.ID))
	}
	return n
}

func htmlInputType(t ElementType) string {
	switch t {
	case TypeNumber, TypeEmail, TypeTel, TypeDate, TypeTime:
		return string(t)
	}
	return "text"
}

// valueStrings flattens a scalar or list value to strings.
func valueStrings(v interface{}) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []string:
		return x
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

var nodeTemplate = template.Must(template.New("form").Funcs(template.FuncMap{
	"safe": func(s string) template.HTML { return template.HTML(s) },
	"str":  func(v interface{}) string { return strings.Join(valueStrings(v), ", ") },
}).Parse(`{{define "nodes"}}{{range .}}{{template "node" .}}{{end}}{{end}}
{{define "node"}}<div class="form-element form-element--{{.Type}}" data-element-id="{{.ElementID}}">
{{- if eq .Kind "heading"}}{{if eq .Level 1}}<h1>{{.Text}}</h1>{{else if eq .Level 2}}<h2>{{.Text}}</h2>{{else if eq .Level 3}}<h3>{{.Text}}</h3>{{else if eq .Level 4}}<h4>{{.Text}}</h4>{{else if eq .Level 5}}<h5>{{.Text}}</h5>{{else}}<h6>{{.Text}}</h6>{{end}}
{{- else if eq .Kind "paragraph"}}<div class="form-paragraph">{{safe .Text}}</div>
{{- else if eq .Kind "divider"}}<hr>
{{- else if eq .Kind "section"}}<fieldset><legend>{{.Label}}</legend>{{template "nodes" .Children}}</fieldset>
{{- else}}<label for="{{.ElementID}}">{{.Label}}{{if .Required}} <span class="required">*</span>{{end}}</label>
{{- if eq .Kind "textarea"}}<textarea id="{{.ElementID}}" name="{{.ElementID}}" placeholder="{{.Placeholder}}"{{if .Disabled}} disabled{{end}}>{{str .Value}}</textarea>
{{- else if eq .Kind "input"}}<input id="{{.ElementID}}" name="{{.ElementID}}" type="{{.InputType}}" placeholder="{{.Placeholder}}" value="{{str .Value}}"{{if .Disabled}} disabled{{end}}>
{{- else if eq .Kind "select"}}<select id="{{.ElementID}}" name="{{.ElementID}}"{{if .Multiple}} multiple{{end}}{{if .Disabled}} disabled{{end}}>{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}</select>
{{- else if eq .Kind "choice"}}{{$n := .}}{{range .Options}}<label><input type="{{if $n.Multiple}}checkbox{{else}}radio{{end}}" name="{{$n.ElementID}}" value="{{.Value}}"{{if .Selected}} checked{{end}}{{if $n.Disabled}} disabled{{end}}> {{.Label}}</label>{{end}}
{{- else if eq .Kind "file"}}<input id="{{.ElementID}}" name="{{.ElementID}}" type="file" accept="{{range $i, $a := .Accept}}{{if $i}},{{end}}{{$a}}{{end}}"{{if .Multiple}} multiple{{end}}{{if .Disabled}} disabled{{end}}>
{{- else if eq .Kind "signature"}}<div class="signature-pad{{if .Disabled}} signature-pad--disabled{{end}}" data-value="{{str .Value}}"></div>
{{- end}}{{if .Error}}<p class="form-error">{{.Error}}</p>{{end}}
{{- end}}</div>
{{end}}`))

// WriteHTML renders nodes as static HTML, e.g. for the preview iframe.
func WriteHTML(w io.Writer, nodes []Node) error {
	return nodeTemplate.ExecuteTemplate(w, "nodes", nodes)
}
