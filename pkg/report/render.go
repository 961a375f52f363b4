package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"igtracker/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
	"pct": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"unfollow": func(k models.EventKind) bool { return k == models.EventUnfollow },
	"profile": func(id string) string { return "https://www.instagram.com/" + id + "/" },
}

var templates = template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// Formats accepted by Write
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// page wraps Data with its JSON encoding for the embedded data block
type page struct {
	*Data
	JSON   template.JS
	Events []models.HistoryEvent
	Title  string
}

// WriteHTML renders the standalone report
func WriteHTML(w io.Writer, data *Data) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report data: %w", err)
	}
	return templates.ExecuteTemplate(w, "report.html", page{Data: data, JSON: template.JS(raw), Title: "Following report"})
}

// WriteJSON renders the report as indented JSON
func WriteJSON(w io.Writer, data *Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteDashboard renders the dashboard home page
func WriteDashboard(w io.Writer, data *Data) error {
	return templates.ExecuteTemplate(w, "dashboard.html", page{Data: data, Title: "Dashboard"})
}

// WriteHistory renders the full history page
func WriteHistory(w io.Writer, events []models.HistoryEvent, now time.Time) error {
	return templates.ExecuteTemplate(w, "history.html", page{
		Data:   &Data{GeneratedAt: now},
		Events: events,
		Title:  "History",
	})
}

// Write renders data in format
func Write(w io.Writer, format string, data *Data) error {
	switch format {
	case FormatHTML, "":
		return WriteHTML(w, data)
	case FormatJSON:
		return WriteJSON(w, data)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
