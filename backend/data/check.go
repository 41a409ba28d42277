package data

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type Check struct {
	ID                 pgtype.Int4
	SubscriptionID     pgtype.Int4
	CheckDate          pgtype.Timestamptz
	Title              pgtype.Text
	PubDate            pgtype.Text
	LastArticleTitle   pgtype.Text
	LastArticleGUID    pgtype.Text
	LastArticlePubDate pgtype.Text
	LastArticleHash    pgtype.Text
}

// InsertCheck appends a check. It returns ErrNotFound when the subscription
// does not exist.
func InsertCheck(ctx context.Context, db Queryer, row *Check) error {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `subscription_id`)
	values = append(values, args.Use(&row.SubscriptionID).String()+"::int4")
	columns = append(columns, `check_date`)
	values = append(values, args.Use(&row.CheckDate).String()+"::timestamptz")
	columns = append(columns, `title`)
	values = append(values, args.Use(&row.Title).String()+"::text")
	columns = append(columns, `pub_date`)
	values = append(values, args.Use(&row.PubDate).String()+"::text")
	columns = append(columns, `last_article_title`)
	values = append(values, args.Use(&row.LastArticleTitle).String()+"::text")
	columns = append(columns, `last_article_guid`)
	values = append(values, args.Use(&row.LastArticleGUID).String()+"::text")
	columns = append(columns, `last_article_pub_date`)
	values = append(values, args.Use(&row.LastArticlePubDate).String()+"::text")
	columns = append(columns, `last_article_hash`)
	values = append(values, args.Use(&row.LastArticleHash).String()+"::text")

	// Selecting the values from subscription inserts nothing for an unknown id.
	// The select list has no target types of its own, so every value is cast.
	sql := `insert into "subscription_check"(` + strings.Join(columns, ", ") + `)
select ` + strings.Join(values, ",") + `
from "subscription"
where "id" = ` + args.Use(&row.SubscriptionID).String() + `
returning "id"
  `

	err := db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
