package forms

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const yamlTemplate = `
title: Skin integrity check
settings:
  showProgressBar: false
  allowDraft: true
  autosave:
    enabled: true
    intervalSeconds: 60
  submitLabel: Save check
elements:
  - id: site
    type: select
    label: Site
    required: true
    options:
      - {id: o1, label: Sacrum, value: sacrum}
      - {id: o2, label: Heel, value: heel}
  - id: grade
    type: number
    label: Grade
    order: 1
  - id: photos
    type: section
    label: Photos
    order: 2
    children:
      - id: photo
        type: file
        label: Photo
        accept: [image/*]
        multiple: true
`

func TestParseTemplate_YAML(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(yamlTemplate))
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Settings.SubmitLabel != "Save check" || tmpl.Settings.Autosave.IntervalSeconds != 60 {
		t.Errorf("settings = %+v", tmpl.Settings)
	}
	sc := tmpl.Schema()
	if errs := sc.Validate(); len(errs) != 0 {
		t.Fatalf("imported schema invalid: %v", errs)
	}
	photo := sc.Elements[2].Children()[0]
	if diff := cmp.Diff(&FileProps{Accept: []string{"image/*"}, Multiple: true}, photo.Props); diff != "" {
		t.Errorf("file props mismatch:\n%s", diff)
	}
}

func TestParseTemplate_JSON(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(`{"title":"Quick note","elements":[{"id":"n","type":"textarea","label":"Note"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Settings != DefaultSettings() {
		t.Errorf("missing settings should default, got %+v", tmpl.Settings)
	}
	if tmpl.Elements[0].Type != TypeTextarea {
		t.Errorf("type = %s", tmpl.Elements[0].Type)
	}
}

func TestParseTemplate_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":        "  ",
		"unknown type": "title: x\nelements:\n  - id: a\n    type: slider\n",
		"bad json":     `{"title":`,
	} {
		if _, err := ParseTemplate([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestTemplate_ExportImport(t *testing.T) {
	sample := SampleTemplate(seqIDs())
	out, err := sample.YAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "type: signature") {
		t.Errorf("export missing nested signature:\n%s", out)
	}
	back, err := ParseTemplate(out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sample, back); diff != "" {
		t.Errorf("template changed through export (-want +got):\n%s", diff)
	}
}

func TestSampleTemplate_Valid(t *testing.T) {
	sc := SampleTemplate(seqIDs()).Schema()
	if errs := sc.Validate(); len(errs) != 0 {
		t.Errorf("sample invalid: %v", errs)
	}
}
