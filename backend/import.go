package backend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	log "gopkg.in/inconshreveable/log15.v2"
)

type Subscription struct {
	URL  string   `json:"url"`
	Kind FeedKind `json:"kind"`
}

// ReadSubscriptionsCSV reads url,kind rows after a header row. Rows that cannot
// be used are logged and skipped. Repeated rows are returned once.
func ReadSubscriptionsCSV(r io.Reader, logger log.Logger) ([]Subscription, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var subs []Subscription
	seen := make(map[Subscription]struct{})

	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("Found bad line (unreadable)", "line", line, "error", err)
				continue
			}
			return nil, fmt.Errorf("read subscriptions: %w", err)
		}

		if line == 1 {
			continue
		}

		if len(record) != 2 {
			logger.Warn("Found bad line (invalid column count)", "line", line, "record", strings.Join(record, ","))
			continue
		}

		url := strings.TrimSpace(record[0])
		if url == "" {
			logger.Warn("Found bad line (empty url)", "line", line)
			continue
		}

		kind, err := ParseFeedKind(record[1])
		if err != nil {
			logger.Warn("Found bad line (invalid feed kind)", "line", line, "kind", record[1])
			continue
		}

		sub := Subscription{URL: url, Kind: kind}
		if _, ok := seen[sub]; ok {
			continue
		}
		seen[sub] = struct{}{}
		subs = append(subs, sub)
	}

	return subs, nil
}

// ImportSubscriptions adds the subscriptions that are not already monitored.
func ImportSubscriptions(ctx context.Context, repo Repository, subs []Subscription, logger log.Logger) (int, error) {
	feeds, err := repo.GetMonitoredFeeds(ctx)
	if err != nil {
		return 0, err
	}

	existing := make(map[Subscription]struct{}, len(feeds))
	for _, f := range feeds {
		existing[Subscription{URL: f.URL, Kind: f.Kind}] = struct{}{}
	}

	added := 0
	for _, sub := range subs {
		if _, ok := existing[sub]; ok {
			continue
		}

		_, err := repo.AddSub(ctx, sub.URL, sub.Kind)
		if err != nil {
			var dupErr DuplicationError
			if errors.As(err, &dupErr) {
				logger.Warn("Subscription already exists with another kind", "url", sub.URL, "kind", sub.Kind)
				continue
			}
			return added, err
		}

		logger.Info("Adding new feed", "url", sub.URL, "kind", sub.Kind)
		added++
	}

	return added, nil
}
