// Package web holds the embedded HTML templates and the view models they render.
package web

import (
	"embed"
	"html/template"
	"time"

	"github.com/workpulse/survey/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Template names.
const (
	FormTemplate    = "form.html"
	SuccessTemplate = "success.html"
	AdminTemplate   = "admin.html"
	ErrorTemplate   = "error.html"
)

// Templates parses the embedded templates for gin's SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"datetime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	}).ParseFS(templatesFS, "templates/*.html"))
}

// Option is one obstacle checkbox.
type Option struct {
	Label   string
	Checked bool
}

// FormPage is the view model for form.html.
type FormPage struct {
	Values  map[string]string
	Options []Option
	Errors  map[string]string
}

// NewFormPage builds the form with the default obstacle labels plus any custom labels
// the client already submitted, keeping their selection.
func NewFormPage(values map[string]string, selected []string, errs map[string]string) FormPage {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	opts := make([]Option, 0, len(models.DefaultObstacles)+len(selected))
	known := make(map[string]bool, len(models.DefaultObstacles))
	for _, label := range models.DefaultObstacles {
		known[label] = true
		opts = append(opts, Option{Label: label, Checked: chosen[label]})
	}
	for _, s := range selected {
		if s != "" && !known[s] {
			known[s] = true
			opts = append(opts, Option{Label: s, Checked: true})
		}
	}
	if values == nil {
		values = map[string]string{}
	}
	return FormPage{Values: values, Options: opts, Errors: errs}
}

// AdminPage is the view model for admin.html.
type AdminPage struct {
	Total       int64
	Departments []models.DepartmentCount
	Recent      []models.SurveyResponse
	Timezone    string
}

// ErrorPage is the view model for error.html.
type ErrorPage struct {
	Status  int
	Message string
}
