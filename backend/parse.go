package backend

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

var (
	ErrEmpty           = errors.New("empty document")
	ErrMissingFeedInfo = errors.New("some mandatory information is missing from the feed")
)

// XMLParseError reports malformed markup. Offset is the byte offset at which
// the decoder detected the problem.
type XMLParseError struct {
	Offset int64
	Err    error
}

func (e *XMLParseError) Error() string {
	return fmt.Sprintf("xml parse error at offset %d: %v", e.Offset, e.Err)
}

func (e *XMLParseError) Unwrap() error {
	return e.Err
}

// ParseFeed parses document with the parser for kind.
func ParseFeed(kind FeedKind, document []byte) (*Feed, error) {
	switch kind {
	case KindRSS:
		return ParseRSS(document)
	case KindAtom:
		return ParseAtom(document)
	default:
		return nil, fmt.Errorf("no parser for %v", kind)
	}
}

// tokenReader walks a document one token at a time. Errors are converted to
// *XMLParseError with the offset at which they occurred.
type tokenReader struct {
	decoder *xml.Decoder
}

func newTokenReader(document []byte) (*tokenReader, error) {
	if len(bytes.TrimSpace(document)) == 0 {
		return nil, ErrEmpty
	}

	decoder := xml.NewDecoder(bytes.NewReader(document))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	return &tokenReader{decoder: decoder}, nil
}

// next returns the next token. At the end of the document it returns io.EOF.
func (r *tokenReader) next() (xml.Token, error) {
	tok, err := r.decoder.Token()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.wrap(err)
	}
	return tok, nil
}

func (r *tokenReader) wrap(err error) error {
	var xpe *XMLParseError
	if errors.As(err, &xpe) {
		return err
	}
	return &XMLParseError{Offset: r.decoder.InputOffset(), Err: err}
}

// skip consumes the rest of the element whose start tag was just read.
func (r *tokenReader) skip() error {
	if err := r.decoder.Skip(); err != nil {
		return r.wrap(err)
	}
	return nil
}

// finish reads the remainder of the document so malformed markup after the
// part that was used is still reported.
func (r *tokenReader) finish() error {
	for {
		_, err := r.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// text reads the character data of the element whose start tag was just
// read, up to and including its end tag. Text of nested elements is
// included.
func (r *tokenReader) text() (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := r.next()
		if err == io.EOF {
			return "", r.wrap(io.ErrUnexpectedEOF)
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

func attr(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}
