// Package discovery crawls configured source index pages and feeds listing
// URLs into the ingestion queue.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	colly "github.com/gocolly/colly/v2"

	"github.com/ikanisa/dar-ingest/internal/config"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

// Collector defaults.
const (
	defaultMaxDepth    = 2
	defaultRateLimit   = 2 * time.Second
	defaultParallelism = 2
)

// Enqueuer adds discovered listing URLs to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, url, domainName string) (bool, error)
}

// Options configures the discovery crawl.
type Options struct {
	UserAgent string
	MaxDepth  int
	RateLimit time.Duration
}

// Stats summarizes one source crawl.
type Stats struct {
	Visited  int `json:"visited"`
	Matched  int `json:"matched"`
	Enqueued int `json:"enqueued"`
}

// Crawler walks source index pages and enqueues links matching the source's
// listing URL pattern. Pagination links on the same host are followed up to
// the depth limit; listing pages themselves are never fetched here.
type Crawler struct {
	enqueuer Enqueuer
	opts     Options
	log      logger.Interface
}

// NewCrawler creates a discovery crawler.
func NewCrawler(enqueuer Enqueuer, opts Options, log logger.Interface) *Crawler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	return &Crawler{enqueuer: enqueuer, opts: opts, log: log}
}

// Discover crawls one source's index pages.
func (c *Crawler) Discover(ctx context.Context, source config.DiscoverySource) (*Stats, error) {
	pattern, err := regexp.Compile(source.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid link pattern for %s: %w", source.Domain, err)
	}

	indexURL, err := url.Parse(source.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index URL for %s: %w", source.Domain, err)
	}

	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.MaxDepth(c.opts.MaxDepth),
		colly.UserAgent(c.opts.UserAgent),
		colly.AllowedDomains(indexURL.Hostname()),
	)
	if limitErr := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       c.opts.RateLimit,
		Parallelism: defaultParallelism,
	}); limitErr != nil {
		return nil, fmt.Errorf("failed to set rate limit: %w", limitErr)
	}

	stats := &Stats{}

	collector.OnResponse(func(r *colly.Response) {
		stats.Visited++
		c.log.Debug("index page fetched", "url", r.Request.URL.String(), "status", r.StatusCode)
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}

		if pattern.MatchString(link) {
			stats.Matched++
			inserted, enqueueErr := c.enqueuer.Enqueue(ctx, link, source.Domain)
			if enqueueErr != nil {
				c.log.Error("enqueue failed", "url", link, "error", enqueueErr.Error())
				return
			}
			if inserted {
				stats.Enqueued++
			}
			return
		}

		// Non-listing links are pagination candidates; depth limits the walk.
		if visitErr := e.Request.Visit(link); visitErr != nil {
			c.log.Debug("skipping link", "url", link, "reason", visitErr.Error())
		}
	})

	collector.OnError(func(r *colly.Response, visitErr error) {
		c.log.Warn("index page fetch failed",
			"url", r.Request.URL.String(),
			"status", r.StatusCode,
			"error", visitErr.Error())
	})

	if visitErr := collector.Visit(source.IndexURL); visitErr != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", source.IndexURL, visitErr)
	}
	collector.Wait()

	c.log.Info("source discovery complete",
		"domain", source.Domain,
		"visited", stats.Visited,
		"matched", stats.Matched,
		"enqueued", stats.Enqueued)

	return stats, nil
}

// DiscoverAll crawls every configured source. A failing source is logged
// and skipped; combined stats are returned.
func (c *Crawler) DiscoverAll(ctx context.Context, sources []config.DiscoverySource) *Stats {
	total := &Stats{}
	for _, source := range sources {
		stats, err := c.Discover(ctx, source)
		if err != nil {
			c.log.Error("source discovery failed", "domain", source.Domain, "error", err.Error())
			continue
		}
		total.Visited += stats.Visited
		total.Matched += stats.Matched
		total.Enqueued += stats.Enqueued
	}
	return total
}
