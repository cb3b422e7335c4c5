// Package dashboard provides the web UI and JSON API for scan results.
package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
	"github.com/yuin/goldmark"
)

//go:embed templates static
var embeddedFS embed.FS

// Dashboard serves the web UI for viewing scans.
type Dashboard struct {
	store        *store.Store
	overviewTmpl *template.Template
	projectTmpl  *template.Template
	scanTmpl     *template.Template
	partialsTmpl *template.Template
	staticFS     fs.FS
	logger       *slog.Logger
}

// New creates a Dashboard over an already loaded store.
func New(st *store.Store, logger *slog.Logger) (*Dashboard, error) {
	md := goldmark.New()

	funcMap := template.FuncMap{
		"shortID":    shortID,
		"timeAgo":    timeAgo,
		"colorClass": colorClass,
		"gradeClass": gradeClass,
		"sevClass":   sevClass,
		"severities": func() []rating.Severity { return rating.Severities },
		"markdown": func(s string) template.HTML {
			return renderMarkdown(md, s)
		},
	}

	// Parse separate template sets so each page's {{define "content"}} doesn't conflict
	sharedFiles := []string{
		"templates/layout.html",
		"templates/partials/project_cards.html",
		"templates/partials/breakdown.html",
	}

	overviewTmpl, err := template.New("").Funcs(funcMap).ParseFS(embeddedFS,
		append(sharedFiles, "templates/overview.html")...)
	if err != nil {
		return nil, fmt.Errorf("parsing overview templates: %w", err)
	}

	projectTmpl, err := template.New("").Funcs(funcMap).ParseFS(embeddedFS,
		append(sharedFiles, "templates/project.html")...)
	if err != nil {
		return nil, fmt.Errorf("parsing project templates: %w", err)
	}

	scanTmpl, err := template.New("").Funcs(funcMap).ParseFS(embeddedFS,
		append(sharedFiles, "templates/scan.html")...)
	if err != nil {
		return nil, fmt.Errorf("parsing scan templates: %w", err)
	}

	// Partials-only template for htmx partial responses
	partialsTmpl, err := template.New("").Funcs(funcMap).ParseFS(embeddedFS,
		"templates/partials/project_cards.html",
		"templates/partials/breakdown.html",
	)
	if err != nil {
		return nil, fmt.Errorf("parsing partial templates: %w", err)
	}

	staticFS, err := fs.Sub(embeddedFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static FS: %w", err)
	}

	return &Dashboard{
		store:        st,
		overviewTmpl: overviewTmpl,
		projectTmpl:  projectTmpl,
		scanTmpl:     scanTmpl,
		partialsTmpl: partialsTmpl,
		staticFS:     staticFS,
		logger:       logger,
	}, nil
}

// RegisterRoutes adds dashboard routes to the given mux.
func (d *Dashboard) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ui", d.handleOverview)
	mux.HandleFunc("GET /ui/", d.handleOverview)
	mux.HandleFunc("GET /ui/projects/{project}", d.handleProject)
	mux.HandleFunc("GET /ui/scans/{id}", d.handleScan)
	mux.HandleFunc("GET /ui/partials/cards", d.handlePartialCards)
	mux.Handle("GET /ui/static/", http.StripPrefix("/ui/static/", http.FileServer(http.FS(d.staticFS))))

	mux.HandleFunc("GET /api/stats", d.handleAPIStats)
	mux.HandleFunc("GET /api/projects", d.handleAPIProjects)
	mux.HandleFunc("GET /api/projects/{project}", d.handleAPIProject)
	mux.HandleFunc("GET /api/projects/{project}/history", d.handleAPIHistory)
	mux.HandleFunc("GET /api/scans", d.handleAPIScans)
	mux.HandleFunc("GET /api/scans/{id}", d.handleAPIScan)
}

// Refresh reloads scans from the storage directory, picking up files
// written by other processes.
func (d *Dashboard) Refresh() error {
	if err := d.store.Load(); err != nil {
		d.logger.Error("dashboard refresh failed", "error", err)
		return err
	}
	d.logger.Debug("dashboard refreshed", "scans", d.store.Count())
	return nil
}

// Template helper functions

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}

// colorClass maps a rating color category to a CSS class.
func colorClass(c rating.ColorCategory) string {
	switch c {
	case rating.ColorGood:
		return "rating-good"
	case rating.ColorCaution:
		return "rating-caution"
	case rating.ColorBad:
		return "rating-bad"
	default:
		return "rating-unknown"
	}
}

func gradeClass(g rating.Grade) string {
	r, ok := rating.RatingFor(g)
	if !ok {
		return "rating-unknown"
	}
	return colorClass(r.Color)
}

func sevClass(f rating.Finding) string {
	if s, ok := f.Level(); ok {
		return "sev-" + string(s)
	}
	return "sev-unknown"
}

func renderMarkdown(md goldmark.Markdown, s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	// goldmark escapes raw HTML unless WithUnsafe is set.
	return template.HTML(buf.String())
}

// Page data types

type overviewData struct {
	Title    string
	Stats    Stats
	Projects []ProjectSummary
	Recent   []store.Entry
}

type projectData struct {
	Title   string
	Stats   Stats
	Summary ProjectSummary
	History []HistoryPoint
}

type scanData struct {
	Title        string
	Stats        Stats
	Scan         *store.Scan
	Overview     rating.Assessment
	Latest       rating.Assessment
	Findings     []rating.Finding // most severe first
	Unrecognized []string
}
