package backend

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	log "gopkg.in/inconshreveable/log15.v2"
)

const DefaultWorkers = 4

// CheckResult pairs a monitored feed with the observation made of it. Observation
// is nil when the feed could not be fetched or parsed.
type CheckResult struct {
	Feed        MonitoredFeed
	Observation *Observation
}

type FeedChecker struct {
	fetcher Fetcher
	workers int
	logger  log.Logger
	now     func() time.Time
}

func NewFeedChecker(fetcher Fetcher, workers int, logger log.Logger) *FeedChecker {
	if workers < 1 {
		workers = DefaultWorkers
	}

	return &FeedChecker{
		fetcher: fetcher,
		workers: workers,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckFeed fetches and parses feed. Failures are logged and reported as a nil
// Observation; they are never retried.
func (c *FeedChecker) CheckFeed(ctx context.Context, feed MonitoredFeed) *Observation {
	body, err := c.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		c.logger.Warn("fetch failed", "id", feed.ID, "url", feed.URL, "error", err)
		return nil
	}

	parsed, err := ParseFeed(feed.Kind, body)
	if err != nil {
		c.logger.Warn("parse failed", "id", feed.ID, "url", feed.URL, "kind", feed.Kind, "error", err)
		return nil
	}

	obs, err := NewObservation(parsed, c.now().UTC())
	if err != nil {
		c.logger.Warn("parse failed", "id", feed.ID, "url", feed.URL, "kind", feed.Kind, "error", err)
		return nil
	}

	c.logger.Debug("check succeeded", "id", feed.ID, "url", feed.URL, "entries", len(parsed.Entries))
	return &obs
}

// CheckFeeds checks feeds on a fixed pool of workers. Results arrive in the order
// checks complete. The returned channel is closed after every feed has been
// checked.
func (c *FeedChecker) CheckFeeds(ctx context.Context, feeds []MonitoredFeed) <-chan CheckResult {
	work := make(chan MonitoredFeed, 2*c.workers)
	results := make(chan CheckResult, 2*c.workers)

	go func() {
		for _, feed := range feeds {
			work <- feed
		}
		close(work)
	}()

	var g errgroup.Group
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for feed := range work {
				results <- CheckResult{Feed: feed, Observation: c.CheckFeed(ctx, feed)}
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	return results
}
