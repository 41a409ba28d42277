package backend

import (
	"encoding/xml"
	"io"
)

type rssChannel struct {
	title         string
	link          string
	lastBuildDate *string
	pubDate       *string
	items         []Entry
}

func (c *rssChannel) isValid() bool {
	return c.title != "" && c.link != "" && len(c.items) > 0
}

// ParseRSS parses an RSS document. The first well-formed channel becomes the
// Feed; channels missing a title, a link, or items are passed over. Later
// channels only have to be well-formed XML.
func ParseRSS(document []byte) (*Feed, error) {
	r, err := newTokenReader(document)
	if err != nil {
		return nil, err
	}

	for {
		tok, err := r.next()
		if err == io.EOF {
			return nil, ErrMissingFeedInfo
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok || !isRSSElement(se, "channel") {
			continue
		}

		channel, err := parseRSSChannel(r)
		if err != nil {
			return nil, err
		}
		if !channel.isValid() {
			continue
		}

		feed := &Feed{
			Title:   channel.title,
			Link:    channel.link,
			Updated: channel.lastBuildDate,
			Entries: channel.items,
		}
		if feed.Updated == nil {
			feed.Updated = channel.pubDate
		}
		if err := r.finish(); err != nil {
			return nil, err
		}
		return feed, nil
	}
}

// isRSSElement reports whether se is the un-namespaced element local. Elements
// from extension namespaces such as atom:link share local names with RSS
// elements.
func isRSSElement(se xml.StartElement, local string) bool {
	return se.Name.Space == "" && se.Name.Local == local
}

func parseRSSChannel(r *tokenReader) (*rssChannel, error) {
	channel := &rssChannel{}

	for {
		tok, err := r.next()
		if err == io.EOF {
			return nil, r.wrap(io.ErrUnexpectedEOF)
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return channel, nil
		case xml.StartElement:
			if t.Name.Space != "" {
				if err := r.skip(); err != nil {
					return nil, err
				}
				continue
			}

			switch t.Name.Local {
			case "title":
				if channel.title, err = r.text(); err != nil {
					return nil, err
				}
			case "link":
				if channel.link, err = r.text(); err != nil {
					return nil, err
				}
			case "lastBuildDate":
				if channel.lastBuildDate, err = optionalText(r); err != nil {
					return nil, err
				}
			case "pubDate":
				if channel.pubDate, err = optionalText(r); err != nil {
					return nil, err
				}
			case "item":
				item, err := parseRSSItem(r)
				if err != nil {
					return nil, err
				}
				channel.items = append(channel.items, item)
			default:
				if err := r.skip(); err != nil {
					return nil, err
				}
			}
		}
	}
}

func parseRSSItem(r *tokenReader) (Entry, error) {
	var item Entry

	for {
		tok, err := r.next()
		if err == io.EOF {
			return item, r.wrap(io.ErrUnexpectedEOF)
		}
		if err != nil {
			return item, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return item, nil
		case xml.StartElement:
			var field **string
			if t.Name.Space == "" {
				switch t.Name.Local {
				case "title":
					field = &item.Title
				case "link":
					field = &item.Link
				case "guid":
					field = &item.GUID
				case "pubDate":
					field = &item.Published
				}
			}

			if field == nil {
				if err := r.skip(); err != nil {
					return item, err
				}
				continue
			}

			if *field, err = optionalText(r); err != nil {
				return item, err
			}
		}
	}
}

func optionalText(r *tokenReader) (*string, error) {
	s, err := r.text()
	if err != nil {
		return nil, err
	}
	return &s, nil
}
