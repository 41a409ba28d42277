package backend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// DetectKind fetches url and reports which dialect the document is written in.
func DetectKind(ctx context.Context, fetcher Fetcher, url string) (FeedKind, error) {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	return DetectKindOf(body)
}

func DetectKindOf(document []byte) (FeedKind, error) {
	if len(bytes.TrimSpace(document)) == 0 {
		return 0, ErrEmpty
	}

	switch t := gofeed.DetectFeedType(bytes.NewReader(document)); t {
	case gofeed.FeedTypeRSS:
		return KindRSS, nil
	case gofeed.FeedTypeAtom:
		return KindAtom, nil
	default:
		return 0, fmt.Errorf("unsupported feed type: %v", t)
	}
}
