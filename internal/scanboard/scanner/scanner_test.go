package scanner

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/build-flow-labs/scanboard/rating"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestCannedFindingsProfiles(t *testing.T) {
	tests := []struct {
		url       string
		wantGated rating.Grade
		wantCount int
	}{
		{"https://vulnerable.example.com", rating.GradeF, 6},
		{"https://example.com/insecure/login", rating.GradeF, 6},
		{"https://staging.example.com", rating.GradeB, 4},
		{"https://demo.shop.io", rating.GradeB, 4},
		{"https://secure.example.com", rating.GradeAPlus, 0},
		{"https://example.com", rating.GradeA, 2},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			findings := CannedFindings(mustURL(t, tt.url))
			if len(findings) != tt.wantCount {
				t.Fatalf("expected %d findings, got %d", tt.wantCount, len(findings))
			}
			for _, f := range findings {
				if f.URL != tt.url {
					t.Errorf("expected finding URL %s, got %s", tt.url, f.URL)
				}
			}
			a, err := rating.Assess(findings, rating.PolicySeverityGated)
			if err != nil {
				t.Fatal(err)
			}
			if a.Rating != tt.wantGated {
				t.Errorf("expected gated grade %s, got %s", tt.wantGated, a.Rating)
			}
			if a.Unclassified != 0 {
				t.Errorf("canned findings must all be classified, got %d unclassified", a.Unclassified)
			}
		})
	}
}

func TestCannedFindingsDoNotShareState(t *testing.T) {
	a := CannedFindings(mustURL(t, "https://one.test"))
	a[0].Title = "changed"
	b := CannedFindings(mustURL(t, "https://two.test"))
	if b[0].Title == "changed" {
		t.Error("canned findings were mutated through a returned slice")
	}
}

func TestValidateTarget(t *testing.T) {
	for _, bad := range []string{"", "ftp://example.com", "example.com", "https://", "://x"} {
		if _, err := ValidateTarget(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
	if _, err := ValidateTarget(" https://example.com/path "); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScan(t *testing.T) {
	s := New(0, nil)
	scan, err := s.Scan(context.Background(), "shop", "https://staging.shop.io")
	if err != nil {
		t.Fatal(err)
	}
	if scan.ID == "" || scan.Project != "shop" {
		t.Errorf("unexpected scan %+v", scan)
	}
	if scan.CompletedAt == nil || scan.CompletedAt.Before(scan.StartedAt) {
		t.Error("expected completion after start")
	}
	if len(scan.Findings) != 4 {
		t.Errorf("expected 4 findings, got %d", len(scan.Findings))
	}
}

func TestScanCancelled(t *testing.T) {
	s := New(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, "shop", "https://shop.io")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanInvalidTarget(t *testing.T) {
	s := New(0, nil)
	if _, err := s.Scan(context.Background(), "shop", "not a url"); err == nil {
		t.Fatal("expected error")
	}
}
