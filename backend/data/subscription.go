package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgxutil"
)

type DuplicationError struct {
	Field string // Field or fields that caused the rejection
}

func (e DuplicationError) Error() string {
	return fmt.Sprintf("%s is already taken", e.Field)
}

type Subscription struct {
	ID   pgtype.Int4
	URL  pgtype.Text
	Kind pgtype.Text
}

// MonitoredFeed is a subscription joined with its most recent check. The check
// columns are all null when the subscription has never been checked.
type MonitoredFeed struct {
	SubscriptionID     int32
	URL                string
	Kind               string
	CheckID            pgtype.Int4
	CheckDate          pgtype.Timestamptz
	Title              pgtype.Text
	PubDate            pgtype.Text
	LastArticleTitle   pgtype.Text
	LastArticleGUID    pgtype.Text
	LastArticlePubDate pgtype.Text
	LastArticleHash    pgtype.Text
}

const selectMonitoredFeedsSQL = `select s.id, s.url, s.kind,
  c.id, c.check_date, c.title, c.pub_date,
  c.last_article_title, c.last_article_guid, c.last_article_pub_date, c.last_article_hash
from subscription s
  left join lateral (
    select *
    from subscription_check
    where subscription_id = s.id
    order by check_date desc, id desc
    limit 1
  ) c on true
order by s.id`

func RowToMonitoredFeed(row pgx.CollectableRow) (MonitoredFeed, error) {
	var mf MonitoredFeed
	err := row.Scan(
		&mf.SubscriptionID,
		&mf.URL,
		&mf.Kind,
		&mf.CheckID,
		&mf.CheckDate,
		&mf.Title,
		&mf.PubDate,
		&mf.LastArticleTitle,
		&mf.LastArticleGUID,
		&mf.LastArticlePubDate,
		&mf.LastArticleHash,
	)
	return mf, err
}

func SelectMonitoredFeeds(ctx context.Context, db pgxutil.DB) ([]MonitoredFeed, error) {
	return pgxutil.Select(ctx, db, selectMonitoredFeedsSQL, nil, RowToMonitoredFeed)
}

func InsertSubscription(ctx context.Context, db Queryer, row *Subscription) error {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `url`)
	values = append(values, args.Use(&row.URL).String())
	columns = append(columns, `kind`)
	values = append(values, args.Use(&row.Kind).String())

	sql := `insert into "subscription"(` + strings.Join(columns, ", ") + `)
values(` + strings.Join(values, ",") + `)
returning "id"
  `

	err := db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "subscription_url_key" {
			return DuplicationError{Field: "url"}
		}
		return err
	}

	return nil
}
