package post

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	summaryLength  = 220
	titleLength    = 84
	untitledPost   = "Untitled post"
	imageMIMEStart = "image/"
)

// LocalRecord is one entry of the local dataset. Like FeedItem it decodes
// leniently: a readTimeMinutes that is not a JSON number is treated as
// missing, and so is a tags value that is not an array.
type LocalRecord struct {
	ID              Text     `json:"id"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	ContentHTML     string   `json:"contentHtml"`
	URL             string   `json:"url"`
	PublishedAt     string   `json:"publishedAt"`
	Tags            []Text   `json:"tags"`
	ReadTimeMinutes *float64 `json:"readTimeMinutes"`
	ImageURL        string   `json:"imageUrl"`
	Source          string   `json:"source"`
}

// FeedItem is one entry of a JSON Feed "items" array. Fields holding a JSON
// value of an unexpected shape decode as absent.
type FeedItem struct {
	ID            Text         `json:"id"`
	URL           string       `json:"url"`
	Title         string       `json:"title"`
	Summary       string       `json:"summary"`
	ContentHTML   string       `json:"content_html"`
	ContentText   string       `json:"content_text"`
	DatePublished string       `json:"date_published"`
	DateModified  string       `json:"date_modified"`
	Image         string       `json:"image"`
	BannerImage   string       `json:"banner_image"`
	Tags          []Text       `json:"tags"`
	Attachments   []Attachment `json:"attachments"`
}

// Attachment is a JSON Feed attachment.
type Attachment struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
}

// Accept reports whether a feed item can become a Post: it needs an id or a
// url, and at least one of content_text, content_html, summary or title.
func Accept(item FeedItem) bool {
	hasIdentity := item.ID.trimmed() != "" || strings.TrimSpace(item.URL) != ""
	hasContent := strings.TrimSpace(item.ContentText) != "" ||
		strings.TrimSpace(item.ContentHTML) != "" ||
		strings.TrimSpace(item.Summary) != "" ||
		strings.TrimSpace(item.Title) != ""
	return hasIdentity && hasContent
}

// Normalizer converts raw records to Posts. The zero value is ready to use;
// the fields exist so tests can pin the clock and generated ids.
type Normalizer struct {
	Now            func() time.Time
	NewID          func() string
	WordsPerMinute int
}

func (n Normalizer) now() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func (n Normalizer) id(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	if n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// Local converts a local dataset record.
func (n Normalizer) Local(r LocalRecord) Post {
	text := StripHTML(r.ContentHTML)

	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		summary = Truncate(text, summaryLength)
	}

	readTime := 0
	if r.ReadTimeMinutes != nil {
		if v := *r.ReadTimeMinutes; v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			readTime = int(math.Ceil(v))
		}
	}
	if readTime == 0 {
		basis := text
		if basis == "" {
			basis = summary
		}
		readTime = EstimateReadTime(basis, n.WordsPerMinute)
	}

	source := strings.TrimSpace(r.Source)
	if source == "" {
		source = SourceLocal
	}

	return Post{
		ID:              n.id(string(r.ID), r.URL),
		Title:           firstNonEmpty(r.Title, Truncate(text, titleLength), untitledPost),
		Summary:         summary,
		ContentHTML:     r.ContentHTML,
		URL:             strings.TrimSpace(r.URL),
		PublishedAt:     firstNonEmpty(r.PublishedAt, n.now()),
		Tags:            NormalizeTags(texts(r.Tags)),
		ReadTimeMinutes: readTime,
		ImageURL:        strings.TrimSpace(r.ImageURL),
		Source:          source,
	}
}

// Feed converts a JSON Feed item. Callers filter with Accept first.
func (n Normalizer) Feed(item FeedItem) Post {
	htmlText := StripHTML(item.ContentHTML)
	summary := firstNonEmpty(item.Summary, Truncate(htmlText, summaryLength))

	tags := NormalizeTags(texts(item.Tags))
	if len(tags) == 0 {
		tags = ExtractHashtags(item.ContentText + " " + htmlText)
	}

	return Post{
		ID:              n.id(string(item.ID), item.URL),
		Title:           firstNonEmpty(item.Title, Truncate(htmlText, titleLength), untitledPost),
		Summary:         summary,
		ContentHTML:     item.ContentHTML,
		URL:             strings.TrimSpace(item.URL),
		PublishedAt:     firstNonEmpty(item.DatePublished, item.DateModified, n.now()),
		Tags:            tags,
		ReadTimeMinutes: EstimateReadTime(item.ContentText+" "+firstNonEmpty(htmlText, summary), n.WordsPerMinute),
		ImageURL:        firstNonEmpty(item.Image, item.BannerImage, attachmentImage(item.Attachments)),
		Source:          SourceMicroblog,
	}
}

func attachmentImage(attachments []Attachment) string {
	for _, a := range attachments {
		if strings.HasPrefix(strings.ToLower(a.MIMEType), imageMIMEStart) && a.URL != "" {
			return a.URL
		}
	}
	return ""
}

func texts(in []Text) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = string(t)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
