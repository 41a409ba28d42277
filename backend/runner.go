package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "gopkg.in/inconshreveable/log15.v2"
)

type RunOptions struct {
	// DryRun classifies and notifies without writing checks to the repository.
	DryRun bool
}

// Runner performs check runs. It is the only writer of check history: every
// result of the worker pool passes through Run on a single goroutine, and
// concurrent calls to Run are serialized.
type Runner struct {
	repo     Repository
	checker  *FeedChecker
	notifier Notifier
	logger   log.Logger

	mutex sync.Mutex
}

func NewRunner(repo Repository, checker *FeedChecker, notifier Notifier, logger log.Logger) *Runner {
	return &Runner{
		repo:     repo,
		checker:  checker,
		notifier: notifier,
		logger:   logger,
	}
}

// Run checks every monitored feed once and returns the updates found. The
// notifier is called exactly once, even when there are no updates. An error
// is returned only when the monitored feeds cannot be loaded or the notifier
// fails.
func (r *Runner) Run(ctx context.Context, opts RunOptions) ([]Update, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	logger := r.logger.New("run", uuid.NewString())

	feeds, err := r.repo.GetMonitoredFeeds(ctx)
	if err != nil {
		logger.Error("GetMonitoredFeeds failed", "error", err)
		return nil, fmt.Errorf("load monitored feeds: %w", err)
	}
	logger.Info("run started", "feeds", len(feeds), "dry_run", opts.DryRun)

	var updates []Update
	var skipped, unchanged int

	for result := range r.checker.CheckFeeds(ctx, feeds) {
		feed := result.Feed

		if result.Observation == nil {
			skipped++
			logger.Warn("feed skipped", "id", feed.ID, "url", feed.URL)
			continue
		}

		kind, ok := Classify(feed.LastCheck, *result.Observation)
		if !ok {
			unchanged++
			logger.Info("feed unchanged", "id", feed.ID, "url", feed.URL)
			continue
		}

		if !opts.DryRun {
			if err := r.repo.AddCheck(ctx, feed, *result.Observation); err != nil {
				logger.Error("AddCheck failed", "id", feed.ID, "url", feed.URL, "error", err)
			}
		}

		logger.Info("feed updated", "id", feed.ID, "url", feed.URL, "kind", kind)
		updates = append(updates, Update{Feed: feed, Kind: kind, Observation: *result.Observation})
	}

	logger.Info("run finished", "updated", len(updates), "unchanged", unchanged, "skipped", skipped)

	if err := r.notifier.Notify(ctx, updates); err != nil {
		logger.Error("Notify failed", "error", err)
		return updates, fmt.Errorf("notify: %w", err)
	}

	return updates, nil
}
