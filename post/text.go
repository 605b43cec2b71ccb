package post

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultWordsPerMinute is the reading speed used for read-time estimates.
const DefaultWordsPerMinute = 220

// hashtagPattern treats Unicode separators (no-break space among them) as
// whitespace.
var hashtagPattern = regexp.MustCompile(`(?i)(?:^|[\s\v\p{Z}\x{FEFF}])#([a-z0-9_-]+)`)

// StripHTML returns the plain text of an HTML fragment: tags become
// whitespace, entities are decoded, script and style bodies are dropped and
// runs of whitespace collapse to one space.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if isRawTextTag(z) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isRawTextTag(z) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most n runes of s with surrounding whitespace removed.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.TrimSpace(string(r))
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateReadTime returns ceil(words/wpm), never less than 1. A non-positive
// wpm uses DefaultWordsPerMinute.
func EstimateReadTime(text string, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	words := WordCount(text)
	if words == 0 {
		return 1
	}
	return max(1, (words+wpm-1)/wpm)
}

// NormalizeTag trims and lower-cases a tag.
func NormalizeTag(tag string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(tag))
}

// NormalizeTags lower-cases tags, drops empty ones and removes duplicates,
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ExtractHashtags finds #tokens that start the text or follow whitespace.
// Results are lower-cased and unique.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return NormalizeTags(tags)
}
