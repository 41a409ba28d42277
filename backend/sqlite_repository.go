package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// checkDateFormat is fixed width so check dates sort as text.
const checkDateFormat = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db     *sql.DB
	logger log.Logger
}

func NewSQLiteRepository(path string, logger log.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db, logger: logger}, nil
}

// sqliteDSN enables foreign keys on every connection the pool opens.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

func (repo *SQLiteRepository) Close() error {
	return repo.db.Close()
}

func (repo *SQLiteRepository) Init(ctx context.Context) error {
	repo.logger.Debug("Init database")

	for _, stmt := range []string{
		`create table if not exists subscription (
  id integer primary key,
  url text not null unique,
  kind text not null
)`,
		`create table if not exists subscription_check (
  id integer primary key,
  subscription_id integer not null references subscription(id),
  check_date text not null,
  title text not null,
  pub_date text,
  last_article_title text,
  last_article_guid text,
  last_article_pub_date text,
  last_article_hash text
)`,
		`create index if not exists subscription_check_subscription_id_idx on subscription_check (subscription_id, check_date)`,
	} {
		if _, err := repo.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return nil
}

const sqliteSelectMonitoredFeedsSQL = `select s.id, s.url, s.kind,
  c.id, c.check_date, c.title, c.pub_date,
  c.last_article_title, c.last_article_guid, c.last_article_pub_date, c.last_article_hash
from subscription s
  left join (
    select *, row_number() over (partition by subscription_id order by check_date desc, id desc) as rownumber
    from subscription_check
  ) c on c.subscription_id = s.id and c.rownumber = 1
order by s.id`

func (repo *SQLiteRepository) GetMonitoredFeeds(ctx context.Context) ([]MonitoredFeed, error) {
	repo.logger.Debug("Retrieving monitored feeds")

	rows, err := repo.db.QueryContext(ctx, sqliteSelectMonitoredFeedsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []MonitoredFeed
	for rows.Next() {
		var feed MonitoredFeed
		var kind string
		var checkID sql.NullInt64
		var checkDate, title, pubDate, lastTitle, lastGUID, lastPubDate, lastHash sql.NullString

		err := rows.Scan(&feed.ID, &feed.URL, &kind,
			&checkID, &checkDate, &title, &pubDate,
			&lastTitle, &lastGUID, &lastPubDate, &lastHash,
		)
		if err != nil {
			return nil, err
		}

		feed.Kind, err = ParseFeedKind(kind)
		if err != nil {
			return nil, fmt.Errorf("subscription %d: %w", feed.ID, err)
		}

		if checkID.Valid {
			date, err := time.Parse(checkDateFormat, checkDate.String)
			if err != nil {
				return nil, fmt.Errorf("subscription %d: bad check_date: %w", feed.ID, err)
			}

			feed.LastCheck = &Observation{
				CheckDate:          date,
				Title:              title.String,
				PubDate:            fromNullString(pubDate),
				LastArticleTitle:   fromNullString(lastTitle),
				LastArticleGUID:    fromNullString(lastGUID),
				LastArticlePubDate: fromNullString(lastPubDate),
				LastArticleHash:    fromNullString(lastHash),
			}
		}

		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

func (repo *SQLiteRepository) AddSub(ctx context.Context, url string, kind FeedKind) (int32, error) {
	repo.logger.Debug("Adding feed", "url", url)

	result, err := repo.db.ExecContext(ctx, `insert into subscription(url, kind) values(?, ?)`, url, kind.String())
	if err != nil {
		var serr *sqlite.Error
		if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return 0, DuplicationError{Field: "url"}
		}
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	return int32(id), nil
}

func (repo *SQLiteRepository) AddCheck(ctx context.Context, feed MonitoredFeed, obs Observation) error {
	repo.logger.Debug("Adding check", "id", feed.ID)

	var exists int
	err := repo.db.QueryRowContext(ctx, `select count(*) from subscription where id = ?`, feed.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = repo.db.ExecContext(ctx, `insert into subscription_check(
  subscription_id, check_date, title, pub_date,
  last_article_title, last_article_guid, last_article_pub_date, last_article_hash
) values(?, ?, ?, ?, ?, ?, ?, ?)`,
		feed.ID,
		obs.CheckDate.UTC().Format(checkDateFormat),
		obs.Title,
		toNullString(obs.PubDate),
		toNullString(obs.LastArticleTitle),
		toNullString(obs.LastArticleGUID),
		toNullString(obs.LastArticlePubDate),
		toNullString(obs.LastArticleHash),
	)
	return err
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return newString(ns.String)
}
