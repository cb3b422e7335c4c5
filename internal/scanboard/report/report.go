// Package report publishes scan assessments as GitHub issues.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// Label is applied to every issue the publisher creates.
const Label = "security-scan"

// Result describes a published issue.
type Result struct {
	Number  int
	URL     string
	Created bool // false when an existing issue was updated
}

// Publisher writes scan reports to a GitHub repository.
type Publisher struct {
	client *github.Client
	owner  string
	repo   string
	logger *slog.Logger
}

// NewPublisher creates a publisher authenticated with token. baseURL may be
// empty for github.com.
func NewPublisher(ctx context.Context, token, owner, repo, baseURL string, logger *slog.Logger) (*Publisher, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token required (--token or GITHUB_TOKEN env var)")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("GitHub owner and repo required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &Publisher{client: client, owner: owner, repo: repo, logger: logger}, nil
}

// Title returns the issue title for a project's rating.
func Title(project string, grade rating.Grade) string {
	return fmt.Sprintf("Security rating %s for %s", grade, project)
}

func titleSuffix(project string) string {
	return " for " + project
}

// Publish creates or updates the project's open report issue.
func (p *Publisher) Publish(ctx context.Context, scan *store.Scan) (*Result, error) {
	latest, err := rating.Assess(scan.Findings, rating.PolicySeverityGated)
	if err != nil {
		return nil, fmt.Errorf("assessing scan: %w", err)
	}
	overview, err := rating.Assess(scan.Findings, rating.PolicyScoreBanded)
	if err != nil {
		return nil, fmt.Errorf("assessing scan: %w", err)
	}

	title := Title(scan.Project, latest.Rating)
	body := Markdown(scan, overview, latest)

	existing, err := p.findOpenIssue(ctx, scan.Project)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		issue, _, err := p.client.Issues.Edit(ctx, p.owner, p.repo, existing.GetNumber(), &github.IssueRequest{
			Title: github.String(title),
			Body:  github.String(body),
		})
		if err != nil {
			return nil, fmt.Errorf("updating issue #%d: %w", existing.GetNumber(), err)
		}
		p.logger.Info("report issue updated", "number", issue.GetNumber(), "scan_id", scan.ID)
		return &Result{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
	}

	issue, _, err := p.client.Issues.Create(ctx, p.owner, p.repo, &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &[]string{Label},
	})
	if err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}
	p.logger.Info("report issue created", "number", issue.GetNumber(), "scan_id", scan.ID)
	return &Result{Number: issue.GetNumber(), URL: issue.GetHTMLURL(), Created: true}, nil
}

// findOpenIssue returns the open labelled issue for project, if any.
func (p *Publisher) findOpenIssue(ctx context.Context, project string) (*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{Label},
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := p.client.Issues.ListByRepo(ctx, p.owner, p.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			if strings.HasSuffix(issue.GetTitle(), titleSuffix(project)) {
				return issue, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// Markdown renders the issue body for a scan.
func Markdown(scan *store.Scan, overview, latest rating.Assessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s: %s (%s)\n\n", scan.Project, latest.Rating, latest.Label)
	fmt.Fprintf(&b, "%s\n\n", latest.Description)
	fmt.Fprintf(&b, "- Target: %s\n", scan.TargetURL)
	fmt.Fprintf(&b, "- Scan: `%s`\n", scan.ID)
	fmt.Fprintf(&b, "- Security score: **%d/100** (%s)\n\n", overview.Score, overview.Rating)

	b.WriteString("| Severity | Count |\n|---|---|\n")
	for _, s := range rating.Severities {
		fmt.Fprintf(&b, "| %s | %d |\n", s, latest.Counts.Get(s))
	}
	fmt.Fprintf(&b, "| **total** | **%d** |\n", latest.Counts.Total())
	if latest.Unclassified > 0 {
		fmt.Fprintf(&b, "\n> %d finding(s) had an unrecognized severity and were not counted.\n", latest.Unclassified)
	}

	if len(scan.Findings) > 0 {
		b.WriteString("\n### Findings\n\n")
		for _, f := range scan.Findings {
			sev := f.RawSeverity()
			if s, ok := f.Level(); ok {
				sev = string(s)
			}
			fmt.Fprintf(&b, "- **[%s]** %s", sev, f.Title)
			if f.URL != "" {
				fmt.Fprintf(&b, " (%s)", f.URL)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
