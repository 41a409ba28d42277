package backend

import (
	"encoding/xml"
	"io"
)

const atomNamespace = "http://www.w3.org/2005/Atom"

// atomElement returns the local name of se when it belongs to Atom, and ""
// for elements of extension namespaces.
func atomElement(se xml.StartElement) string {
	if se.Name.Space != atomNamespace && se.Name.Space != "" {
		return ""
	}
	return se.Name.Local
}

// ParseAtom parses an Atom document. The feed and every entry must carry all
// of their mandatory elements or the whole document is rejected with
// ErrMissingFeedInfo.
func ParseAtom(document []byte) (*Feed, error) {
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
		if !ok {
			continue
		}
		if atomElement(se) != "feed" {
			return nil, ErrMissingFeedInfo
		}

		feed, err := parseAtomFeed(r)
		if err != nil && err != ErrMissingFeedInfo {
			return nil, err
		}
		if err := r.finish(); err != nil {
			return nil, err
		}
		return feed, err
	}
}

func parseAtomFeed(r *tokenReader) (*Feed, error) {
	feed := &Feed{}
	var links atomLinks

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
			feed.Link = links.best()
			if feed.Title == "" || feed.Link == "" || feed.Updated == nil || *feed.Updated == "" || len(feed.Entries) == 0 {
				return nil, ErrMissingFeedInfo
			}
			return feed, nil
		case xml.StartElement:
			switch atomElement(t) {
			case "title":
				if feed.Title, err = r.text(); err != nil {
					return nil, err
				}
			case "updated":
				if feed.Updated, err = optionalText(r); err != nil {
					return nil, err
				}
			case "link":
				links.add(t)
				if err := r.skip(); err != nil {
					return nil, err
				}
			case "entry":
				entry, err := parseAtomEntry(r)
				if err != nil {
					return nil, err
				}
				feed.Entries = append(feed.Entries, entry)
			default:
				if err := r.skip(); err != nil {
					return nil, err
				}
			}
		}
	}
}

func parseAtomEntry(r *tokenReader) (Entry, error) {
	var entry Entry
	var links atomLinks

	for {
		tok, err := r.next()
		if err == io.EOF {
			return entry, r.wrap(io.ErrUnexpectedEOF)
		}
		if err != nil {
			return entry, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			if href := links.best(); href != "" {
				entry.Link = &href
			}
			if isBlank(entry.Title) || isBlank(entry.Link) || isBlank(entry.GUID) || isBlank(entry.Published) {
				return entry, ErrMissingFeedInfo
			}
			return entry, nil
		case xml.StartElement:
			switch atomElement(t) {
			case "title":
				if entry.Title, err = optionalText(r); err != nil {
					return entry, err
				}
			case "id":
				if entry.GUID, err = optionalText(r); err != nil {
					return entry, err
				}
			case "updated":
				if entry.Published, err = optionalText(r); err != nil {
					return entry, err
				}
			case "link":
				links.add(t)
				if err := r.skip(); err != nil {
					return entry, err
				}
			default:
				if err := r.skip(); err != nil {
					return entry, err
				}
			}
		}
	}
}

// atomLinks collects the link elements of a feed or entry. The alternate link
// is preferred; a link without rel is alternate by definition.
type atomLinks struct {
	alternate string
	first     string
}

func (l *atomLinks) add(se xml.StartElement) {
	href, _ := attr(se, "href")
	if href == "" {
		return
	}
	if l.first == "" {
		l.first = href
	}
	rel, _ := attr(se, "rel")
	if (rel == "" || rel == "alternate") && l.alternate == "" {
		l.alternate = href
	}
}

func (l *atomLinks) best() string {
	if l.alternate != "" {
		return l.alternate
	}
	return l.first
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
