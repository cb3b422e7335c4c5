package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
)

const recentScans = 10

func (d *Dashboard) handleOverview(w http.ResponseWriter, r *http.Request) {
	// Redirect /ui/ to /ui (avoid duplicate pages)
	if r.URL.Path == "/ui/" {
		http.Redirect(w, r, "/ui", http.StatusMovedPermanently)
		return
	}

	stats, projects, err := d.overview()
	if err != nil {
		d.logger.Error("building overview", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := overviewData{
		Title:    "Overview",
		Stats:    stats,
		Projects: projects,
		Recent:   d.store.List(store.ListOptions{SortDesc: true, Limit: recentScans}),
	}

	d.render(w, d.overviewTmpl, "layout", data)
}

func (d *Dashboard) handleProject(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	summary, history, err := d.project(project)
	if err != nil {
		d.notFoundOrError(w, r, err)
		return
	}
	stats, _, err := d.overview()
	if err != nil {
		d.logger.Error("building overview", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := projectData{
		Title:   project,
		Stats:   stats,
		Summary: summary,
		History: historyPoints(history),
	}

	d.render(w, d.projectTmpl, "layout", data)
}

func (d *Dashboard) handleScan(w http.ResponseWriter, r *http.Request) {
	scan, err := d.store.Get(r.PathValue("id"))
	if err != nil {
		d.notFoundOrError(w, r, err)
		return
	}

	agg := rating.Aggregate(scan.Findings)
	overview, err := rating.AssessCounts(agg.Counts, rating.PolicyScoreBanded)
	if err != nil {
		d.logger.Error("assessing scan", "scan_id", scan.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	latest, err := rating.AssessCounts(agg.Counts, rating.PolicySeverityGated)
	if err != nil {
		d.logger.Error("assessing scan", "scan_id", scan.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	stats, _, err := d.overview()
	if err != nil {
		d.logger.Error("building overview", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := scanData{
		Title:        scan.Project + " scan " + shortID(scan.ID),
		Stats:        stats,
		Scan:         scan,
		Overview:     overview,
		Latest:       latest,
		Findings:     sortedFindings(scan.Findings),
		Unrecognized: agg.Unrecognized,
	}

	d.render(w, d.scanTmpl, "layout", data)
}

func (d *Dashboard) handlePartialCards(w http.ResponseWriter, r *http.Request) {
	_, projects, err := d.overview()
	if err != nil {
		d.logger.Error("building overview", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	d.render(w, d.partialsTmpl, "project_cards_content", projects)
}

func (d *Dashboard) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, _, err := d.overview()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (d *Dashboard) handleAPIProjects(w http.ResponseWriter, r *http.Request) {
	_, projects, err := d.overview()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (d *Dashboard) handleAPIProject(w http.ResponseWriter, r *http.Request) {
	summary, _, err := d.project(r.PathValue("project"))
	if err != nil {
		d.apiNotFoundOrError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (d *Dashboard) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	history, err := d.store.History(r.PathValue("project"))
	if err != nil {
		d.apiNotFoundOrError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyPoints(history))
}

func (d *Dashboard) handleAPIScans(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := d.store.List(opts)
	points := make([]scanListItem, 0, len(entries))
	for _, e := range entries {
		points = append(points, newScanListItem(e))
	}
	writeJSON(w, http.StatusOK, points)
}

// scanDetail is a stored scan together with its index summary.
type scanDetail struct {
	*store.Scan
	Summary scanListItem `json:"summary"`
}

func (d *Dashboard) handleAPIScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, err := d.store.Entry(id)
	if err != nil {
		d.apiNotFoundOrError(w, err)
		return
	}
	scan, err := d.store.Get(id)
	if err != nil {
		d.apiNotFoundOrError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scanDetail{Scan: scan, Summary: newScanListItem(entry)})
}

// overview builds the aggregate stats and per-project summaries.
func (d *Dashboard) overview() (Stats, []ProjectSummary, error) {
	latest := d.store.Projects()
	stats, err := ComputeStats(latest, d.store.Count())
	if err != nil {
		return Stats{}, nil, err
	}

	projects := make([]ProjectSummary, 0, len(latest))
	for _, e := range latest {
		history, err := d.store.History(e.Project)
		if err != nil {
			return Stats{}, nil, err
		}
		summary, err := summarizeProject(e, history)
		if err != nil {
			return Stats{}, nil, err
		}
		projects = append(projects, summary)
	}
	return stats, projects, nil
}

func (d *Dashboard) project(name string) (ProjectSummary, []store.Entry, error) {
	history, err := d.store.History(name)
	if err != nil {
		return ProjectSummary{}, nil, err
	}
	summary, err := summarizeProject(history[len(history)-1], history)
	if err != nil {
		return ProjectSummary{}, nil, err
	}
	return summary, history, nil
}

// render executes a template into a buffer so a failed render never sends
// a partial page.
func (d *Dashboard) render(w http.ResponseWriter, tmpl *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		d.logger.Error("rendering template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (d *Dashboard) notFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	d.logger.Error("loading page data", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (d *Dashboard) apiNotFoundOrError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	d.logger.Error("loading api data", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

type scanListItem struct {
	ID           string                `json:"id"`
	Project      string                `json:"project"`
	TargetURL    string                `json:"target_url"`
	Status       string                `json:"status"`
	Timestamp    time.Time             `json:"timestamp"`
	Score        int                   `json:"score"`
	Rating       rating.Grade          `json:"rating"`
	GatedRating  rating.Grade          `json:"gated_rating"`
	Counts       rating.SeverityCounts `json:"counts"`
	Unclassified int                   `json:"unclassified"`
}

func newScanListItem(e store.Entry) scanListItem {
	return scanListItem{
		ID:           e.ID,
		Project:      e.Project,
		TargetURL:    e.TargetURL,
		Status:       e.Status,
		Timestamp:    e.Timestamp,
		Score:        e.Score,
		Rating:       e.Grade,
		GatedRating:  e.GatedGrade,
		Counts:       e.Counts,
		Unclassified: e.Unclassified,
	}
}

// sortedFindings returns a copy of findings ordered most severe first.
// Unclassified findings sort last.
func sortedFindings(findings []rating.Finding) []rating.Finding {
	sorted := make([]rating.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := sorted[i].Level()
		b, _ := sorted[j].Level()
		return a.Rank() > b.Rank()
	})
	return sorted
}

func parseListOptions(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Project:   q.Get("project"),
		Status:    q.Get("status"),
		Grade:     q.Get("grade"),
		SortField: q.Get("sort"),
		SortDesc:  q.Get("desc") == "true",
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.ListOptions{}, errors.New("limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
