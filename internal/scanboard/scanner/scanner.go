// Package scanner simulates a website security scan.
//
// No crawling or probing happens here. A scan waits for a configurable delay
// and returns a canned finding set chosen by keywords in the target URL, so
// the rest of the system can be exercised end to end.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
	"github.com/google/uuid"
)

// DefaultDelay is how long a simulated scan takes.
const DefaultDelay = 2 * time.Second

// Scanner runs simulated scans.
type Scanner struct {
	Delay  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a scanner with the given delay.
func New(delay time.Duration, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		Delay:  delay,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ValidateTarget checks that raw is an absolute http(s) URL with a host.
func ValidateTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("target URL must use http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("target URL %q has no host", raw)
	}
	return u, nil
}

// Scan simulates a scan of target for project. It blocks for the scanner's
// delay unless ctx is cancelled first.
func (s *Scanner) Scan(ctx context.Context, project, target string) (*store.Scan, error) {
	u, err := ValidateTarget(target)
	if err != nil {
		return nil, err
	}

	started := s.now()
	s.logger.Info("scan started", "project", project, "target", u.String())

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("scan of %s cancelled: %w", u.Host, ctx.Err())
		case <-timer.C:
		}
	}

	findings := CannedFindings(u)
	completed := s.now()

	s.logger.Info("scan completed",
		"project", project,
		"target", u.String(),
		"findings", len(findings),
		"duration", completed.Sub(started),
	)

	return &store.Scan{
		ID:          uuid.NewString(),
		Project:     project,
		TargetURL:   u.String(),
		Status:      store.StatusCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
		Findings:    findings,
	}, nil
}

// profile is a canned set of findings selected by URL keywords.
type profile struct {
	keywords []string
	findings []rating.Finding
}

// profiles are checked in order; the first keyword hit wins.
var profiles = []profile{
	{
		keywords: []string{"vulnerable", "insecure"},
		findings: []rating.Finding{
			{ID: "sqli", Title: "SQL Injection", Severity: "critical", Description: "User input reaches a SQL query without parameterization.", Solution: "Use **prepared statements** for every query."},
			{ID: "xss-reflected", Title: "Cross Site Scripting (Reflected)", Severity: "high", Description: "Request parameters are echoed into the page without encoding.", Solution: "Encode output for the HTML context."},
			{ID: "csrf", Title: "Absence of Anti-CSRF Tokens", Severity: "high", Description: "State-changing forms carry no anti-CSRF token.", Solution: "Add a per-session token to every form."},
			{ID: "csp-missing", Title: "Content Security Policy Header Not Set", Severity: "medium", Description: "No `Content-Security-Policy` header is sent."},
			{ID: "cookie-httponly", Title: "Cookie No HttpOnly Flag", Severity: "low", Description: "A session cookie is readable from JavaScript."},
			{ID: "server-banner", Title: "Server Leaks Version Information", Severity: "info", Description: "The `Server` header reveals the web server version."},
		},
	},
	{
		keywords: []string{"test", "staging", "demo"},
		findings: []rating.Finding{
			{ID: "csp-missing", Title: "Content Security Policy Header Not Set", Severity: "medium", Description: "No `Content-Security-Policy` header is sent."},
			{ID: "clickjacking", Title: "Missing Anti-clickjacking Header", Severity: "medium", Description: "Neither `X-Frame-Options` nor `frame-ancestors` is set."},
			{ID: "hsts-missing", Title: "Strict-Transport-Security Header Not Set", Severity: "low", Description: "HSTS is not enabled."},
			{ID: "cookie-samesite", Title: "Cookie without SameSite Attribute", Severity: "low", Description: "A cookie is set without `SameSite`."},
		},
	},
	{
		keywords: []string{"secure"},
	},
}

var baseline = []rating.Finding{
	{ID: "hsts-missing", Title: "Strict-Transport-Security Header Not Set", Severity: "low", Description: "HSTS is not enabled."},
	{ID: "server-banner", Title: "Server Leaks Version Information", Severity: "info", Description: "The `Server` header reveals the web server version."},
}

// CannedFindings returns the simulated findings for a target URL.
func CannedFindings(u *url.URL) []rating.Finding {
	haystack := strings.ToLower(u.Host + u.Path)

	for _, p := range profiles {
		for _, kw := range p.keywords {
			if strings.Contains(haystack, kw) {
				return withURL(p.findings, u)
			}
		}
	}
	return withURL(baseline, u)
}

func withURL(src []rating.Finding, u *url.URL) []rating.Finding {
	out := make([]rating.Finding, len(src))
	for i, f := range src {
		f.URL = u.String()
		out[i] = f
	}
	return out
}
