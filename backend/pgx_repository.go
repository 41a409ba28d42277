package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodmorning-rss/goodmorning/backend/data"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	log "gopkg.in/inconshreveable/log15.v2"
)

const pgxSchemaSQL = `
create table if not exists subscription (
  id serial primary key,
  url text not null,
  kind text not null,
  constraint subscription_url_key unique (url)
);

create table if not exists subscription_check (
  id serial primary key,
  subscription_id integer not null references subscription(id),
  check_date timestamptz not null,
  title text not null,
  pub_date text,
  last_article_title text,
  last_article_guid text,
  last_article_pub_date text,
  last_article_hash text
);

create index if not exists subscription_check_subscription_id_idx on subscription_check (subscription_id, check_date);
`

type PgxRepository struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, logger log.Logger) *PgxRepository {
	return &PgxRepository{pool: pool, logger: logger}
}

func (repo *PgxRepository) Init(ctx context.Context) error {
	repo.logger.Debug("Init database")

	_, err := repo.pool.Exec(ctx, pgxSchemaSQL)
	if err != nil {
		return fmt.Errorf("init postgres schema: %w", err)
	}
	return nil
}

func (repo *PgxRepository) GetMonitoredFeeds(ctx context.Context) ([]MonitoredFeed, error) {
	repo.logger.Debug("Retrieving monitored feeds")

	rows, err := data.SelectMonitoredFeeds(ctx, repo.pool)
	if err != nil {
		return nil, err
	}

	feeds := make([]MonitoredFeed, 0, len(rows))
	for _, row := range rows {
		kind, err := ParseFeedKind(row.Kind)
		if err != nil {
			return nil, fmt.Errorf("subscription %d: %w", row.SubscriptionID, err)
		}

		feed := MonitoredFeed{ID: row.SubscriptionID, URL: row.URL, Kind: kind}
		if row.CheckID.Valid {
			feed.LastCheck = &Observation{
				CheckDate:          row.CheckDate.Time,
				Title:              row.Title.String,
				PubDate:            fromText(row.PubDate),
				LastArticleTitle:   fromText(row.LastArticleTitle),
				LastArticleGUID:    fromText(row.LastArticleGUID),
				LastArticlePubDate: fromText(row.LastArticlePubDate),
				LastArticleHash:    fromText(row.LastArticleHash),
			}
		}
		feeds = append(feeds, feed)
	}

	return feeds, nil
}

func (repo *PgxRepository) AddSub(ctx context.Context, url string, kind FeedKind) (int32, error) {
	repo.logger.Debug("Adding feed", "url", url)

	row := &data.Subscription{
		URL:  pgtype.Text{String: url, Valid: true},
		Kind: pgtype.Text{String: kind.String(), Valid: true},
	}
	err := data.InsertSubscription(ctx, repo.pool, row)
	if err != nil {
		var dupErr data.DuplicationError
		if errors.As(err, &dupErr) {
			return 0, DuplicationError{Field: dupErr.Field}
		}
		return 0, err
	}

	return row.ID.Int32, nil
}

func (repo *PgxRepository) AddCheck(ctx context.Context, feed MonitoredFeed, obs Observation) error {
	repo.logger.Debug("Adding check", "id", feed.ID)

	err := data.InsertCheck(ctx, repo.pool, &data.Check{
		SubscriptionID:     pgtype.Int4{Int32: feed.ID, Valid: true},
		CheckDate:          pgtype.Timestamptz{Time: obs.CheckDate, Valid: true},
		Title:              pgtype.Text{String: obs.Title, Valid: true},
		PubDate:            toText(obs.PubDate),
		LastArticleTitle:   toText(obs.LastArticleTitle),
		LastArticleGUID:    toText(obs.LastArticleGUID),
		LastArticlePubDate: toText(obs.LastArticlePubDate),
		LastArticleHash:    toText(obs.LastArticleHash),
	})
	if errors.Is(err, data.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func toText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func fromText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return newString(t.String)
}
