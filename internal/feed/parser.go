package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/feedsearch/internal/models"
)

// Placeholders for items missing a title or any body text.
const (
	NoTitle   = "No Title"
	NoContent = "No Content"
)

// recordSeparator is a control byte some feeds emit that XML 1.0 does not allow.
const recordSeparator = 0x1E

// contentNS is the RSS content module namespace of <content:encoded>.
const contentNS = "http://purl.org/rss/1.0/modules/content/"

// Item is one <item> of a feed page. Nil pointers mean the element was absent.
// Encoded is <content:encoded> from the RSS content module.
type Item struct {
	Title       *string
	Link        *string
	Description *string
	Encoded     *string
	Categories  []string
}

// UnmarshalXML reads the direct children of an <item>. Title, link, description
// and category match only un-namespaced elements, so extension siblings such as
// <atom:link> or <media:title> never replace them. The first occurrence wins.
func (it *Item) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			var text string
			if err := d.DecodeElement(&text, &t); err != nil {
				return err
			}
			if t.Name.Space == contentNS && t.Name.Local == "encoded" {
				setOnce(&it.Encoded, text)
				continue
			}
			if t.Name.Space != "" {
				continue
			}
			switch t.Name.Local {
			case "title":
				setOnce(&it.Title, text)
			case "link":
				setOnce(&it.Link, text)
			case "description":
				setOnce(&it.Description, text)
			case "category":
				it.Categories = append(it.Categories, text)
			}
		}
	}
}

func setOnce(field **string, v string) {
	if *field == nil {
		*field = &v
	}
}

// Sanitize strips bytes that are known to corrupt upstream feeds.
func Sanitize(raw []byte) []byte {
	if bytes.IndexByte(raw, recordSeparator) < 0 {
		return raw
	}
	return bytes.ReplaceAll(raw, []byte{recordSeparator}, nil)
}

// ParseItems sanitizes raw and returns every <item> element in document order,
// wherever it appears. A payload with no items (including an empty one) yields
// an empty slice and no error. Structural failures wrap models.ErrMalformedContent.
func ParseItems(raw []byte) ([]*Item, error) {
	dec := xml.NewDecoder(bytes.NewReader(Sanitize(raw)))
	dec.Entity = xml.HTMLEntity

	items := make([]*Item, 0)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedContent, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "item" {
			continue
		}
		var item Item
		if err := dec.DecodeElement(&item, &start); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", models.ErrMalformedContent, len(items)+1, err)
		}
		items = append(items, &item)
	}
}

// Document maps an item to a Document. Each field falls back independently:
// title to NoTitle, content to description then NoContent, link to "".
func (it *Item) Document() *models.Document {
	title := NoTitle
	if it.Title != nil {
		title = *it.Title
	}
	content := NoContent
	switch {
	case it.Encoded != nil:
		content = *it.Encoded
	case it.Description != nil:
		content = *it.Description
	}
	link := ""
	if it.Link != nil {
		link = strings.TrimSpace(*it.Link)
	}
	categories := make([]string, len(it.Categories))
	copy(categories, it.Categories)
	return models.NewDocument(title, content, link, categories)
}
