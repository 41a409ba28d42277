package testdata

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/stretchr/testify/require"
)

var counter atomic.Int64

func CreateSubscription(t testing.TB, db pgxutil.DB, ctx context.Context, attrs map[string]any) map[string]any {
	n := counter.Add(1)

	if attrs == nil {
		attrs = make(map[string]any)
	}

	if _, ok := attrs["url"]; !ok {
		attrs["url"] = fmt.Sprintf("http://localhost/%v/feed.xml", n)
	}
	if _, ok := attrs["kind"]; !ok {
		attrs["kind"] = "rss"
	}

	sub, err := pgxutil.InsertRowReturning(ctx, db, "subscription", attrs, "*", pgx.RowToMap)
	require.NoError(t, err)

	return sub
}

func CreateCheck(t testing.TB, db pgxutil.DB, ctx context.Context, attrs map[string]any) map[string]any {
	n := counter.Add(1)

	if attrs == nil {
		attrs = make(map[string]any)
	}

	if _, ok := attrs["subscription_id"]; !ok {
		attrs["subscription_id"] = CreateSubscription(t, db, ctx, nil)["id"]
	}
	if _, ok := attrs["check_date"]; !ok {
		attrs["check_date"] = time.Now()
	}
	if _, ok := attrs["title"]; !ok {
		attrs["title"] = fmt.Sprintf("Feed %v", n)
	}
	if _, ok := attrs["last_article_guid"]; !ok {
		attrs["last_article_guid"] = fmt.Sprintf("urn:article:%v", n)
	}

	check, err := pgxutil.InsertRowReturning(ctx, db, "subscription_check", attrs, "*", pgx.RowToMap)
	require.NoError(t, err)

	return check
}
