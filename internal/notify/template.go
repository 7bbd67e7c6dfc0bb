package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Maintenance Overdue]
Equipment: {{.EqpID}}
Type: {{.MaintenanceType}}
Due: {{.DueDate}}
Days Overdue: {{.DaysOverdue}}
Location: {{.Location}}`

// TemplateData provides fields for rendering reminder content.
type TemplateData struct {
	EqpID           string
	InstrumentID    string
	MaintenanceType string
	DueDate         string
	DaysOverdue     int
	Location        string
}

// Template renders reminder content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a reminder template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("overdue-reminder").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("reminder template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
