package news

import (
	"strings"
	"testing"
	"time"

	"github.com/ronguha/hedge-fund-agent/models"
)

func TestQueryTerms(t *testing.T) {
	q := Query{
		ScenarioDescription: "Oil supply-shock: refinery outages!",
		Instruments:         []string{" CL ", "USO", ""},
		Window:              7 * 24 * time.Hour,
	}
	terms := q.QueryTerms()
	want := []string{"oil", "supply", "shock", "refinery", "outages", "cl", "uso"}
	if len(terms) != len(want) {
		t.Fatalf("got %v want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("term %d: got %q want %q", i, terms[i], want[i])
		}
	}
}

func TestScoreByOverlap(t *testing.T) {
	terms := []string{"oil", "refinery", "crude", "opec", "outage", "inventory"}

	article := models.NewsArticle{Title: "Oil prices jump", Summary: "Refinery outage tightens crude supply"}
	got := ScoreByOverlap(article, terms)
	// oil, refinery, crude, outage = 4 hits of a 5-hit saturation
	if got != 0.8 {
		t.Fatalf("expected 0.8, got %v", got)
	}

	irrelevant := models.NewsArticle{Title: "Celebrity gossip roundup", Summary: "none of the above"}
	if got := ScoreByOverlap(irrelevant, terms); got != 0 {
		t.Fatalf("irrelevant article must score 0, got %v", got)
	}

	saturated := models.NewsArticle{Title: "oil refinery crude opec outage inventory", Summary: ""}
	if got := ScoreByOverlap(saturated, terms); got != 1.0 {
		t.Fatalf("score must saturate at 1.0, got %v", got)
	}
}

func TestTruncateSummary(t *testing.T) {
	short := "a concise summary"
	if got := TruncateSummary(short); got != short {
		t.Fatalf("short summary must pass through, got %q", got)
	}

	long := strings.Repeat("é", 300)
	got := TruncateSummary(long)
	if n := len([]rune(got)); n != 200 {
		t.Fatalf("expected 200 runes, got %d", n)
	}
	if !strings.HasPrefix(long, got) {
		t.Fatal("truncation split a rune boundary")
	}
}
