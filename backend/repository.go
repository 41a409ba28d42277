package backend

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type DuplicationError struct {
	Field string // Field or fields that caused the rejection
}

func (e DuplicationError) Error() string {
	return fmt.Sprintf("%s is already taken", e.Field)
}

// Repository stores subscriptions and their check history. Checks are only
// ever appended. Implementations must be safe for concurrent use.
type Repository interface {
	Init(ctx context.Context) error
	GetMonitoredFeeds(ctx context.Context) ([]MonitoredFeed, error)
	AddSub(ctx context.Context, url string, kind FeedKind) (feedID int32, err error)
	AddCheck(ctx context.Context, feed MonitoredFeed, obs Observation) error
}
