// Package store keeps scan records as JSON files in a directory and serves
// them from an in-memory index.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/build-flow-labs/scanboard/rating"
	"github.com/google/uuid"
)

const fileSuffix = ".scan.json"

// ErrNotFound is returned when a scan or project does not exist.
var ErrNotFound = errors.New("not found")

// Scan statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var projectRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidProject reports whether name can be used as a project name.
func ValidProject(name string) bool {
	return projectRe.MatchString(name)
}

// Scan is a stored scan run with its raw findings. Counts, score and grade
// are never stored; they are derived from Findings on every load.
type Scan struct {
	ID          string           `json:"id"`
	Project     string           `json:"project"`
	TargetURL   string           `json:"target_url"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Findings    []rating.Finding `json:"findings"`
}

// Entry is a scan summary held in the index.
type Entry struct {
	ID           string
	Project      string
	TargetURL    string
	Status       string
	Timestamp    time.Time
	Counts       rating.SeverityCounts
	Unclassified int
	Score        int
	Grade        rating.Grade // score-banded
	GatedGrade   rating.Grade // severity-gated
	Color        rating.ColorCategory
	FilePath     string
}

// ListOptions controls filtering and sorting of scan listings.
type ListOptions struct {
	Project   string // filter by project name substring (case-insensitive)
	Status    string
	Grade     string // filter by score-banded grade
	SortField string // "timestamp", "project", "score", "grade"
	SortDesc  bool
	Limit     int
}

// Store is a directory of scan files with an in-memory index.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	dir     string
	logger  *slog.Logger
}

// New creates a store backed by dir. Call Load to index existing scans.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads all scan files from the storage directory into the index.
// Corrupt files are skipped and logged.
func (s *Store) Load() error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.entries = nil
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading storage dir: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		scan, err := readScan(path)
		if err != nil {
			s.logger.Warn("skipping scan file", "path", path, "error", err)
			continue
		}
		entry, err := s.summarize(scan, path)
		if err != nil {
			s.logger.Warn("skipping scan file", "path", path, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func readScan(path string) (*Scan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scan Scan
	if err := json.Unmarshal(data, &scan); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if scan.ID == "" {
		return nil, fmt.Errorf("%s: missing scan id", filepath.Base(path))
	}
	return &scan, nil
}

// summarize derives an index entry from a scan.
func (s *Store) summarize(scan *Scan, path string) (Entry, error) {
	agg := rating.Aggregate(scan.Findings)
	if agg.Unclassified > 0 {
		s.logger.Warn("scan has unclassified findings",
			"scan_id", scan.ID,
			"count", agg.Unclassified,
			"values", agg.Unrecognized,
		)
	}

	banded, err := rating.AssessCounts(agg.Counts, rating.PolicyScoreBanded)
	if err != nil {
		return Entry{}, err
	}
	gated, err := rating.ClassifyFromCounts(agg.Counts)
	if err != nil {
		return Entry{}, err
	}

	ts := scan.StartedAt
	if scan.CompletedAt != nil {
		ts = *scan.CompletedAt
	}

	return Entry{
		ID:           scan.ID,
		Project:      scan.Project,
		TargetURL:    scan.TargetURL,
		Status:       scan.Status,
		Timestamp:    ts,
		Counts:       agg.Counts,
		Unclassified: agg.Unclassified,
		Score:        banded.Score,
		Grade:        banded.Rating,
		GatedGrade:   gated.Grade,
		Color:        banded.Color,
		FilePath:     path,
	}, nil
}

// Put validates and writes a scan, assigning an ID if it has none, and
// updates the index. The file is replaced atomically.
func (s *Store) Put(scan *Scan) error {
	if !ValidProject(scan.Project) {
		return fmt.Errorf("invalid project name %q", scan.Project)
	}
	if scan.ID == "" {
		scan.ID = uuid.NewString()
	} else if _, err := uuid.Parse(scan.ID); err != nil {
		return fmt.Errorf("invalid scan id %q: %w", scan.ID, err)
	}
	if scan.Status == "" {
		scan.Status = StatusCompleted
	}

	data, err := json.MarshalIndent(scan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling scan: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating storage dir: %w", err)
	}

	path := filepath.Join(s.dir, scan.ID+fileSuffix)
	tmp, err := os.CreateTemp(s.dir, ".scan-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing scan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing scan: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storing scan: %w", err)
	}

	entry, err := s.summarize(scan, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.upsert(entry)
	s.mu.Unlock()

	s.logger.Debug("scan stored", "scan_id", scan.ID, "project", scan.Project, "grade", entry.Grade)
	return nil
}

func (s *Store) upsert(entry Entry) {
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			s.entries[i] = entry
			return
		}
	}
	s.entries = append(s.entries, entry)
}

// Get returns the full scan with the given ID.
func (s *Store) Get(id string) (*Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return readScan(e.FilePath)
		}
	}
	return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
}

// Entry returns the index entry for a scan ID.
func (s *Store) Entry(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("scan %s: %w", id, ErrNotFound)
}

// List returns entries matching the given options.
func (s *Store) List(opts ListOptions) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Entry
	for _, e := range s.entries {
		if opts.Project != "" && !strings.Contains(strings.ToLower(e.Project), strings.ToLower(opts.Project)) {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.Grade != "" && !strings.EqualFold(string(e.Grade), opts.Grade) {
			continue
		}
		filtered = append(filtered, e)
	}

	sortEntries(filtered, opts.SortField, opts.SortDesc)
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

// Projects returns the most recent completed scan of every project, sorted
// by project name.
func (s *Store) Projects() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]Entry)
	for _, e := range s.entries {
		if e.Status != StatusCompleted {
			continue
		}
		if existing, ok := latest[e.Project]; !ok || e.Timestamp.After(existing.Timestamp) {
			latest[e.Project] = e
		}
	}

	result := make([]Entry, 0, len(latest))
	for _, e := range latest {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Project < result[j].Project
	})
	return result
}

// History returns the completed scans of a project, oldest first.
func (s *Store) History(project string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []Entry
	for _, e := range s.entries {
		if e.Project == project && e.Status == StatusCompleted {
			history = append(history, e)
		}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("project %s: %w", project, ErrNotFound)
	}
	sortEntries(history, "timestamp", false)
	return history, nil
}

// Count returns the total number of indexed scans.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func sortEntries(entries []Entry, field string, desc bool) {
	less := func(a, b Entry) bool {
		switch field {
		case "project":
			return a.Project < b.Project
		case "score":
			return a.Score < b.Score
		case "grade":
			return a.Grade.Rank() < b.Grade.Rank()
		default: // "timestamp" or empty
			return a.Timestamp.Before(b.Timestamp)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}
