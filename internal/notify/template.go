package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Fee {{.EventLabel}}]
School: {{.SchoolID}}
Student: {{.StudentID}}
Academic Year: {{.AcademicYear}}
{{ if .ReceiptNumber }}Receipt: {{.ReceiptNumber}}
{{ end }}{{ if .Amount }}Amount: {{.Amount}}
{{ end }}Balance Due: {{.BalanceDue}}
Status: {{.Status}}
{{ if .Reason }}Reason: {{.Reason}}
{{ end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	SchoolID      string
	StudentID     string
	AcademicYear  string
	ReceiptNumber string
	Amount        string
	BalanceDue    string
	Status        string
	Reason        string
	Event         string
	EventLabel    string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("fee-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("fee template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
