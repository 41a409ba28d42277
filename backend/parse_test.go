package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var feedParsingTests = []struct {
	name string
	kind FeedKind
	body []byte
	feed *Feed
	err  error
}{
	{"RSS - Minimal",
		KindRSS,
		[]byte(`<?xml version='1.0' encoding='UTF-8'?>
<rss>
  <channel>
    <title>News</title>
    <link>http://example.org/</link>
    <item>
      <title>Snow Storm</title>
      <link>http://example.org/snow-storm</link>
      <guid>http://example.org/snow-storm</guid>
      <pubDate>Fri, 03 Jan 2014 22:45:00 GMT</pubDate>
    </item>
    <item>
      <title>Blizzard</title>
      <link>http://example.org/blizzard</link>
      <pubDate>Sat, 04 Jan 2014 08:15:00 GMT</pubDate>
    </item>
  </channel>
</rss>`),
		&Feed{
			Title: "News",
			Link:  "http://example.org/",
			Entries: []Entry{
				{
					Title:     newString("Snow Storm"),
					Link:      newString("http://example.org/snow-storm"),
					GUID:      newString("http://example.org/snow-storm"),
					Published: newString("Fri, 03 Jan 2014 22:45:00 GMT"),
				},
				{
					Title:     newString("Blizzard"),
					Link:      newString("http://example.org/blizzard"),
					Published: newString("Sat, 04 Jan 2014 08:15:00 GMT"),
				},
			}},
		nil,
	},
	{"RSS - lastBuildDate preferred over pubDate",
		KindRSS,
		[]byte(`<rss version="2.0">
  <channel>
    <title>News</title>
    <link>http://example.org/</link>
    <pubDate>Thu, 02 Jan 2014 00:00:00 GMT</pubDate>
    <lastBuildDate>Sat, 04 Jan 2014 09:00:00 GMT</lastBuildDate>
    <item><title>Blizzard</title></item>
  </channel>
</rss>`),
		&Feed{
			Title:   "News",
			Link:    "http://example.org/",
			Updated: newString("Sat, 04 Jan 2014 09:00:00 GMT"),
			Entries: []Entry{{Title: newString("Blizzard")}},
		},
		nil,
	},
	{"RSS - pubDate when there is no lastBuildDate",
		KindRSS,
		[]byte(`<rss version="2.0">
  <channel>
    <title>News</title>
    <link>http://example.org/</link>
    <pubDate>Thu, 02 Jan 2014 00:00:00 GMT</pubDate>
    <item><guid>1</guid></item>
  </channel>
</rss>`),
		&Feed{
			Title:   "News",
			Link:    "http://example.org/",
			Updated: newString("Thu, 02 Jan 2014 00:00:00 GMT"),
			Entries: []Entry{{GUID: newString("1")}},
		},
		nil,
	},
	{"RSS - atom:link does not replace link",
		KindRSS,
		[]byte(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <atom:link href="http://example.org/feed.xml" rel="self" type="application/rss+xml" />
    <title>News</title>
    <link>http://example.org/</link>
    <atom:link href="http://example.org/other.xml" rel="self" />
    <item><title>Blizzard</title><link>http://example.org/blizzard</link></item>
  </channel>
</rss>`),
		&Feed{
			Title:   "News",
			Link:    "http://example.org/",
			Entries: []Entry{{Title: newString("Blizzard"), Link: newString("http://example.org/blizzard")}},
		},
		nil,
	},
	{"RSS - first well-formed channel wins",
		KindRSS,
		[]byte(`<rss>
  <channel>
    <title>No items</title>
    <link>http://example.org/empty</link>
  </channel>
  <channel>
    <title>Second</title>
    <link>http://example.org/second</link>
    <item><title>Two</title></item>
  </channel>
  <channel>
    <title>Third</title>
    <link>http://example.org/third</link>
    <item><title>Three</title></item>
  </channel>
</rss>`),
		&Feed{
			Title:   "Second",
			Link:    "http://example.org/second",
			Entries: []Entry{{Title: newString("Two")}},
		},
		nil,
	},
	{"RSS - HTML entities and CDATA",
		KindRSS,
		[]byte(`<rss>
  <channel>
    <title>Tom &amp; Jerry&nbsp;News</title>
    <link>http://example.org/</link>
    <item>
      <title><![CDATA[Caf&eacute; <b>opens</b>]]></title>
      <description>&copy; skipped</description>
    </item>
  </channel>
</rss>`),
		&Feed{
			Title:   "Tom & Jerry\u00a0News",
			Link:    "http://example.org/",
			Entries: []Entry{{Title: newString("Caf&eacute; <b>opens</b>")}},
		},
		nil,
	},
	{"RSS - empty item fields are present",
		KindRSS,
		[]byte(`<rss><channel><title>News</title><link>http://example.org/</link><item><title></title><guid/></item></channel></rss>`),
		&Feed{
			Title:   "News",
			Link:    "http://example.org/",
			Entries: []Entry{{Title: newString(""), GUID: newString("")}},
		},
		nil,
	},
	{"RSS - ISO-8859-1",
		KindRSS,
		append(append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<rss><channel><title>Caf`), 0xe9), []byte(`</title><link>http://example.org/</link><item><title>x</title></item></channel></rss>`)...),
		&Feed{
			Title:   "Café",
			Link:    "http://example.org/",
			Entries: []Entry{{Title: newString("x")}},
		},
		nil,
	},
	{"RSS - missing link",
		KindRSS,
		[]byte(`<rss><channel><title>News</title><item><title>x</title></item></channel></rss>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"RSS - no items",
		KindRSS,
		[]byte(`<rss><channel><title>News</title><link>http://example.org/</link></channel></rss>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"RSS - empty",
		KindRSS,
		[]byte(""),
		nil,
		ErrEmpty,
	},
	{"RSS - whitespace only",
		KindRSS,
		[]byte(" \n\t "),
		nil,
		ErrEmpty,
	},
	{"Atom - Minimal",
		KindAtom,
		[]byte(`<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <link href="http://example.org/feed/" rel="self" />
  <link href="http://example.org/" />
  <updated>2003-12-13T18:30:02Z</updated>
  <author><name>John Doe</name></author>
  <id>urn:uuid:60a76c80-d399-11d9-b93C-0003939e0af6</id>
  <entry>
    <title>Atom-Powered Robots Run Amok</title>
    <link rel="alternate" href="http://example.org/2003/12/13/atom03" />
    <link rel="edit" href="http://example.org/2003/12/13/atom03/edit" />
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <updated>2003-12-13T18:30:02Z</updated>
    <summary>Some text.</summary>
  </entry>
</feed>`),
		&Feed{
			Title:   "Example Feed",
			Link:    "http://example.org/",
			Updated: newString("2003-12-13T18:30:02Z"),
			Entries: []Entry{
				{
					Title:     newString("Atom-Powered Robots Run Amok"),
					Link:      newString("http://example.org/2003/12/13/atom03"),
					GUID:      newString("urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a"),
					Published: newString("2003-12-13T18:30:02Z"),
				},
			}},
		nil,
	},
	{"Atom - link falls back to first href",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <link rel="self" href="http://example.org/feed/" />
  <updated>2003-12-13T18:30:02Z</updated>
  <entry>
    <title>One</title>
    <link rel="related" href="http://example.org/one" />
    <id>1</id>
    <updated>2003-12-13T18:30:02Z</updated>
  </entry>
</feed>`),
		&Feed{
			Title:   "Example Feed",
			Link:    "http://example.org/feed/",
			Updated: newString("2003-12-13T18:30:02Z"),
			Entries: []Entry{
				{
					Title:     newString("One"),
					Link:      newString("http://example.org/one"),
					GUID:      newString("1"),
					Published: newString("2003-12-13T18:30:02Z"),
				},
			}},
		nil,
	},
	{"Atom - missing updated",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <link href="http://example.org/" />
  <entry>
    <title>One</title>
    <link href="http://example.org/one" />
    <id>1</id>
    <updated>2003-12-13T18:30:02Z</updated>
  </entry>
</feed>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"Atom - entry missing id",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <link href="http://example.org/" />
  <updated>2003-12-13T18:30:02Z</updated>
  <entry>
    <title>One</title>
    <link href="http://example.org/one" />
    <updated>2003-12-13T18:30:02Z</updated>
  </entry>
</feed>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"Atom - link text is not an href",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <link>http://example.org/</link>
  <updated>2003-12-13T18:30:02Z</updated>
  <entry>
    <title>One</title>
    <link href="http://example.org/one" />
    <id>1</id>
    <updated>2003-12-13T18:30:02Z</updated>
  </entry>
</feed>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"Atom - no entries",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><title>T</title><link href="http://example.org/" /><updated>2003-12-13T18:30:02Z</updated></feed>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"Atom - RSS document",
		KindAtom,
		[]byte(`<rss><channel><title>News</title><link>http://example.org/</link><item><title>x</title></item></channel></rss>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"Atom - extension elements do not replace Atom elements",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/">
  <title>Example Feed</title>
  <link href="http://example.org/" />
  <updated>2003-12-13T18:30:02Z</updated>
  <entry>
    <title>Real</title>
    <link href="http://example.org/one" />
    <id>1</id>
    <updated>2003-12-13T18:30:02Z</updated>
    <media:title>Other</media:title>
  </entry>
</feed>`),
		&Feed{
			Title:   "Example Feed",
			Link:    "http://example.org/",
			Updated: newString("2003-12-13T18:30:02Z"),
			Entries: []Entry{{
				Title:     newString("Real"),
				Link:      newString("http://example.org/one"),
				GUID:      newString("1"),
				Published: newString("2003-12-13T18:30:02Z"),
			}},
		},
		nil,
	},
	{"Atom - extension updated does not count",
		KindAtom,
		[]byte(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:x="http://example.org/ext">
  <title>Example Feed</title>
  <link href="http://example.org/" />
  <x:updated>fake</x:updated>
  <entry>
    <title>One</title>
    <link href="http://example.org/one" />
    <id>1</id>
    <updated>2003-12-13T18:30:02Z</updated>
  </entry>
</feed>`),
		nil,
		ErrMissingFeedInfo,
	},
	{"Atom - empty",
		KindAtom,
		[]byte(""),
		nil,
		ErrEmpty,
	},
}

func TestParseFeed(t *testing.T) {
	for _, tt := range feedParsingTests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := ParseFeed(tt.kind, tt.body)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Nil(t, actual)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.feed, actual)
		})
	}
}

func TestParseMalformedXML(t *testing.T) {
	for _, tt := range []struct {
		name string
		kind FeedKind
		body string
	}{
		{"RSS - unterminated channel", KindRSS, `<rss><channel><title>News</title><link>http://example.org/</link><item><title>x</title></item>`},
		{"RSS - mismatched tags", KindRSS, `<rss><channel><title>News</link></channel></rss>`},
		{"RSS - unknown entity", KindRSS, `<rss><channel><title>&bogus;</title></channel></rss>`},
		{"Atom - unterminated entry", KindAtom, `<feed><title>T</title><entry><title>x</title>`},
		{"Atom - bad attribute", KindAtom, `<feed><link href=http://example.org/ /></feed>`},
		{"RSS - missing closing rss tag", KindRSS, `<rss><channel><title>A</title><link>http://example.org/</link><item><title>x</title></item></channel>`},
		{"RSS - garbage after document", KindRSS, `<rss><channel><title>A</title><link>http://example.org/</link><item><title>x</title></item></channel></rss><<<garbage`},
		{"RSS - later channel mismatched", KindRSS, `<rss><channel><title>A</title><link>http://example.org/</link><item><title>x</title></item></channel><channel><title>B</wrong></rss>`},
		{"Atom - garbage after document", KindAtom, `<feed><title>T</title><link href="http://example.org/"/><updated>u</updated><entry><title>x</title><link href="http://example.org/x"/><id>1</id><updated>u</updated></entry></feed><<<`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := ParseFeed(tt.kind, []byte(tt.body))
			assert.Nil(t, actual)

			var xpe *XMLParseError
			require.ErrorAs(t, err, &xpe)
			assert.Greater(t, xpe.Offset, int64(0))
			assert.LessOrEqual(t, xpe.Offset, int64(len(tt.body)))
		})
	}
}

func TestParseRSSEntriesMatchItems(t *testing.T) {
	body := []byte(`<rss><channel><title>News</title><link>http://example.org/</link>
<item><title>1</title><link>http://example.org/1</link><guid>g1</guid><pubDate>d1</pubDate></item>
<item><title>2</title><link>http://example.org/2</link></item>
<item><title>3</title><link>http://example.org/3</link></item>
</channel></rss>`)

	feed, err := ParseRSS(body)
	require.NoError(t, err)
	require.Len(t, feed.Entries, 3)
	assert.Equal(t, Entry{
		Title:     newString("1"),
		Link:      newString("http://example.org/1"),
		GUID:      newString("g1"),
		Published: newString("d1"),
	}, feed.Entries[0])
}

func TestParseFeedUnknownKind(t *testing.T) {
	_, err := ParseFeed(FeedKind(0), []byte("<rss/>"))
	require.Error(t, err)
}
