package feeds

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/models"
	"github.com/ronguha/hedge-fund-agent/news"
)

// Client implements news.Adapter over a set of RSS/Atom feeds. Feed entries
// carry no upstream ranking, so relevance is computed by keyword overlap and
// zero-hit entries are dropped entirely.
type Client struct {
	urls         []string
	perFeedLimit int
	parser       *gofeed.Parser
	sanitizer    *bluemonday.Policy
	logger       *log.Logger
}

func New(cfg config.FeedsConfig) *Client {
	perFeed := cfg.PerFeedLimit
	if perFeed <= 0 {
		perFeed = 5
	}
	parser := gofeed.NewParser()
	if cfg.Timeout > 0 {
		parser.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		urls:         cfg.URLs,
		perFeedLimit: perFeed,
		parser:       parser,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       log.New(log.Writer(), "[FEEDS] ", log.LstdFlags),
	}
}

func (c *Client) Name() string { return "feeds" }

// Fetch parses every configured feed, scoring entries against the query
// terms. A feed that fails to parse is skipped and logged; only when all
// feeds fail does Fetch return an error.
func (c *Client) Fetch(ctx context.Context, q news.Query) ([]models.NewsArticle, error) {
	terms := q.QueryTerms()
	var out []models.NewsArticle
	failures := 0
	for _, feedURL := range c.urls {
		feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Printf("error parsing feed %s: %v", feedURL, err)
			failures++
			continue
		}
		out = append(out, c.collect(feed, terms)...)
	}
	if failures > 0 && failures == len(c.urls) {
		return nil, fmt.Errorf("all %d feeds failed", failures)
	}
	return out, nil
}

func (c *Client) collect(feed *gofeed.Feed, terms []string) []models.NewsArticle {
	source := feed.Title
	if source == "" {
		source = "RSS Feed"
	}
	limit := c.perFeedLimit
	if limit > len(feed.Items) {
		limit = len(feed.Items)
	}

	var out []models.NewsArticle
	for _, item := range feed.Items[:limit] {
		published := time.Now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}
		art := models.NewsArticle{
			Title:       item.Title,
			URL:         item.Link,
			Source:      source,
			PublishedAt: published,
			Summary:     news.TruncateSummary(c.sanitizer.Sanitize(item.Description)),
		}
		score := news.ScoreByOverlap(art, terms)
		if score == 0 {
			continue
		}
		art.RelevanceScore = score
		out = append(out, art)
	}
	return out
}
