package backend

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

type FeedKind int

const (
	KindRSS FeedKind = iota + 1
	KindAtom
)

func (k FeedKind) String() string {
	switch k {
	case KindRSS:
		return "rss"
	case KindAtom:
		return "atom"
	default:
		return fmt.Sprintf("FeedKind(%d)", int(k))
	}
}

// ParseFeedKind converts the stored or imported name of a feed kind back into a FeedKind.
func ParseFeedKind(s string) (FeedKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rss":
		return KindRSS, nil
	case "atom":
		return KindAtom, nil
	default:
		return 0, fmt.Errorf("unknown feed kind %q", s)
	}
}

func (k FeedKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FeedKind) UnmarshalText(text []byte) error {
	kind, err := ParseFeedKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Feed is one parsed feed document. Entries are in document order, which for
// both dialects means newest first.
type Feed struct {
	Title   string
	Link    string
	Updated *string
	Entries []Entry
}

type Entry struct {
	Title     *string
	Link      *string
	GUID      *string
	Published *string
}

// Observation summarizes the state of a feed at one check.
type Observation struct {
	CheckDate          time.Time `json:"check_date"`
	Title              string    `json:"title"`
	PubDate            *string   `json:"pub_date"`
	LastArticleTitle   *string   `json:"last_article_title"`
	LastArticleGUID    *string   `json:"last_article_guid"`
	LastArticlePubDate *string   `json:"last_article_pub_date"`
	LastArticleHash    *string   `json:"last_article_hash"`
}

// NewObservation builds the observation for feed as of checkDate. The first
// entry is taken as the latest article.
func NewObservation(feed *Feed, checkDate time.Time) (Observation, error) {
	if feed == nil || feed.Title == "" || len(feed.Entries) == 0 {
		return Observation{}, ErrMissingFeedInfo
	}

	latest := feed.Entries[0]
	hash := entryHash(latest)

	return Observation{
		CheckDate:          checkDate,
		Title:              feed.Title,
		PubDate:            feed.Updated,
		LastArticleTitle:   latest.Title,
		LastArticleGUID:    latest.GUID,
		LastArticlePubDate: latest.Published,
		LastArticleHash:    &hash,
	}, nil
}

func entryHash(e Entry) string {
	var sb strings.Builder
	for _, s := range []*string{e.Title, e.Link, e.GUID, e.Published} {
		if s != nil {
			sb.WriteString(*s)
		}
		sb.WriteByte(0)
	}
	sum := blake2b.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

type MonitoredFeed struct {
	ID        int32        `json:"id"`
	URL       string       `json:"url"`
	Kind      FeedKind     `json:"kind"`
	LastCheck *Observation `json:"last_check"`
}

type UpdateKind int

const (
	FirstCheck UpdateKind = iota + 1
	Title
	NewArticle
	LastArticle
)

func (k UpdateKind) String() string {
	switch k {
	case FirstCheck:
		return "FirstCheck"
	case Title:
		return "Title"
	case NewArticle:
		return "NewArticle"
	case LastArticle:
		return "LastArticle"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

func (k UpdateKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Update is one classified change found by a run.
type Update struct {
	Feed        MonitoredFeed `json:"feed"`
	Kind        UpdateKind    `json:"kind"`
	Observation Observation   `json:"observation"`
}

func newString(s string) *string {
	return &s
}
