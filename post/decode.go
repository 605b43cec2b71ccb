package post

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var errNotObject = errors.New("expected a JSON object")

// Text is a JSON string that also accepts a bare number, as some feeds emit
// numeric ids and tags. Any other JSON value decodes as empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	*t = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case c == '-' || ('0' <= c && c <= '9'):
		*t = Text(b)
	}
	return nil
}

func (t Text) trimmed() string { return strings.TrimSpace(string(t)) }

// textList decodes a JSON array of strings or numbers. A value that is not
// an array decodes as empty; other elements are skipped.
type textList []Text

func (l *textList) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, r := range raw {
		var t Text
		if err := json.Unmarshal(r, &t); err == nil && t != "" {
			*l = append(*l, t)
		}
	}
	return nil
}

// number holds a JSON number. Strings, numeric or not, decode as absent.
type number struct {
	value float64
	ok    bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == 'n' {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = number{value: f, ok: true}
	}
	return nil
}

func (n number) ptr() *float64 {
	if !n.ok {
		return nil
	}
	v := n.value
	return &v
}

type attachmentJSON struct {
	URL      Text `json:"url"`
	MIMEType Text `json:"mime_type"`
}

// attachmentList keeps the object elements of a JSON array and decodes
// anything else as empty.
type attachmentList []Attachment

func (l *attachmentList) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, r := range raw {
		if !isObject(r) {
			continue
		}
		var a attachmentJSON
		if err := json.Unmarshal(r, &a); err == nil {
			*l = append(*l, Attachment{URL: string(a.URL), MIMEType: string(a.MIMEType)})
		}
	}
	return nil
}

type localRecordJSON struct {
	ID              Text     `json:"id"`
	Title           Text     `json:"title"`
	Summary         Text     `json:"summary"`
	ContentHTML     Text     `json:"contentHtml"`
	URL             Text     `json:"url"`
	PublishedAt     Text     `json:"publishedAt"`
	Tags            textList `json:"tags"`
	ReadTimeMinutes number   `json:"readTimeMinutes"`
	ImageURL        Text     `json:"imageUrl"`
	Source          Text     `json:"source"`
}

// UnmarshalJSON implements json.Unmarshaler. Only a value that is not a JSON
// object is an error.
func (r *LocalRecord) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return errNotObject
	}
	var w localRecordJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = LocalRecord{
		ID:              w.ID,
		Title:           string(w.Title),
		Summary:         string(w.Summary),
		ContentHTML:     string(w.ContentHTML),
		URL:             string(w.URL),
		PublishedAt:     string(w.PublishedAt),
		Tags:            []Text(w.Tags),
		ReadTimeMinutes: w.ReadTimeMinutes.ptr(),
		ImageURL:        string(w.ImageURL),
		Source:          string(w.Source),
	}
	return nil
}

type feedItemJSON struct {
	ID            Text           `json:"id"`
	URL           Text           `json:"url"`
	Title         Text           `json:"title"`
	Summary       Text           `json:"summary"`
	ContentHTML   Text           `json:"content_html"`
	ContentText   Text           `json:"content_text"`
	DatePublished Text           `json:"date_published"`
	DateModified  Text           `json:"date_modified"`
	Image         Text           `json:"image"`
	BannerImage   Text           `json:"banner_image"`
	Tags          textList       `json:"tags"`
	Attachments   attachmentList `json:"attachments"`
}

// UnmarshalJSON implements json.Unmarshaler. Only a value that is not a JSON
// object is an error.
func (item *FeedItem) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return errNotObject
	}
	var w feedItemJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*item = FeedItem{
		ID:            w.ID,
		URL:           string(w.URL),
		Title:         string(w.Title),
		Summary:       string(w.Summary),
		ContentHTML:   string(w.ContentHTML),
		ContentText:   string(w.ContentText),
		DatePublished: string(w.DatePublished),
		DateModified:  string(w.DateModified),
		Image:         string(w.Image),
		BannerImage:   string(w.BannerImage),
		Tags:          []Text(w.Tags),
		Attachments:   []Attachment(w.Attachments),
	}
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}
