package news

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/internal/telemetry"
	"github.com/ronguha/hedge-fund-agent/models"
)

// Query carries the search context handed to every adapter.
type Query struct {
	ScenarioDescription string
	Instruments         []string
	Window              time.Duration
}

// Adapter fetches candidate articles from one external provider. Adapters
// normalize into models.NewsArticle and score within their own source; they
// must return an empty slice (not panic) on transient upstream failure.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]models.NewsArticle, error)
}

// Aggregator fans out to the configured adapters, merges and dedupes their
// results, and returns a bounded, ranked snapshot. The fallback tier is only
// queried when the primary tier comes back thin.
type Aggregator struct {
	primary     []Adapter
	fallback    []Adapter
	maxArticles int
	minPrimary  int
	window      time.Duration
	logger      *log.Logger
}

func NewAggregator(cfg config.NewsConfig, primary, fallback []Adapter) *Aggregator {
	maxArticles := cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 10
	}
	minPrimary := cfg.MinPrimaryResults
	if minPrimary <= 0 {
		minPrimary = 5
	}
	window := cfg.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Aggregator{
		primary:     primary,
		fallback:    fallback,
		maxArticles: maxArticles,
		minPrimary:  minPrimary,
		window:      window,
		logger:      log.New(log.Writer(), "[NEWS] ", log.LstdFlags),
	}
}

// Aggregate returns the ranked top-N articles for a scenario and its
// instruments. Adapter failures degrade to fewer articles, never to an error;
// only context cancellation aborts the pass.
func (a *Aggregator) Aggregate(ctx context.Context, description string, instruments []string) ([]models.NewsArticle, error) {
	q := Query{ScenarioDescription: description, Instruments: instruments, Window: a.window}

	articles, err := a.fanOut(ctx, a.primary, q)
	if err != nil {
		return nil, err
	}
	if len(articles) < a.minPrimary && len(a.fallback) > 0 {
		more, err := a.fanOut(ctx, a.fallback, q)
		if err != nil {
			return nil, err
		}
		articles = append(articles, more...)
	}

	articles = Deduplicate(articles)
	SortByRelevance(articles)
	if len(articles) > a.maxArticles {
		articles = articles[:a.maxArticles]
	}
	return articles, nil
}

type fetchResult struct {
	adapter  string
	articles []models.NewsArticle
	err      error
}

// fanOut queries every adapter in the tier concurrently so the pass is bounded
// by the slowest single adapter rather than the sum.
func (a *Aggregator) fanOut(ctx context.Context, tier []Adapter, q Query) ([]models.NewsArticle, error) {
	if len(tier) == 0 {
		return nil, nil
	}
	results := make(chan fetchResult, len(tier))
	for _, ad := range tier {
		go func(ad Adapter) {
			start := time.Now()
			articles, err := ad.Fetch(ctx, q)
			telemetry.ObserveAdapterFetch(ad.Name(), time.Since(start), len(articles), err)
			results <- fetchResult{adapter: ad.Name(), articles: articles, err: err}
		}(ad)
	}

	var out []models.NewsArticle
	for range tier {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-results:
			if r.err != nil {
				a.logger.Printf("adapter %s failed: %v", r.adapter, r.err)
				continue
			}
			out = append(out, r.articles...)
		}
	}
	return out, nil
}

// Deduplicate merges articles by exact URL, keeping the higher-scoring
// duplicate and breaking ties with the more recent publish time.
func Deduplicate(in []models.NewsArticle) []models.NewsArticle {
	seen := make(map[string]models.NewsArticle, len(in))
	order := make([]string, 0, len(in))
	for _, art := range in {
		prev, ok := seen[art.URL]
		if !ok {
			seen[art.URL] = art
			order = append(order, art.URL)
			continue
		}
		if art.RelevanceScore > prev.RelevanceScore ||
			(art.RelevanceScore == prev.RelevanceScore && art.PublishedAt.After(prev.PublishedAt)) {
			seen[art.URL] = art
		}
	}
	out := make([]models.NewsArticle, 0, len(seen))
	for _, u := range order {
		out = append(out, seen[u])
	}
	return out
}

// SortByRelevance orders articles by (relevance desc, published_at desc).
func SortByRelevance(articles []models.NewsArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].RelevanceScore != articles[j].RelevanceScore {
			return articles[i].RelevanceScore > articles[j].RelevanceScore
		}
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}
