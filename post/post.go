// Package post defines the canonical Post and the transforms that build it
// from the local dataset schema and the JSON Feed schema.
package post

import (
	"slices"
	"time"

	"github.com/araddon/dateparse"
)

// Provenance values carried in Post.Source.
const (
	SourceLocal     = "local"
	SourceMicroblog = "microblog"
)

// Post is the source-agnostic representation every provider converges to.
// Treat it as a value: providers build a fresh slice on every query.
type Post struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	ContentHTML     string   `json:"contentHtml"`
	URL             string   `json:"url"`
	PublishedAt     string   `json:"publishedAt"`
	Tags            []string `json:"tags"`
	ReadTimeMinutes int      `json:"readTimeMinutes"`
	ImageURL        string   `json:"imageUrl"`
	Source          string   `json:"source"`
}

// PublishedTime parses PublishedAt. Dates without a zone are read as UTC.
func (p Post) PublishedTime() (time.Time, error) {
	return dateparse.ParseIn(p.PublishedAt, time.UTC)
}

// HasTag reports whether tag is one of p's tags. The comparison is exact.
func (p Post) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// Dedupe keeps one post per ID. A later duplicate replaces the earlier one
// in the earlier one's position.
func Dedupe(posts []Post) []Post {
	out := make([]Post, 0, len(posts))
	index := make(map[string]int, len(posts))
	for _, p := range posts {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

// SortNewest orders posts by descending PublishedAt in place. Ties keep their
// input order; posts whose date cannot be parsed go last.
func SortNewest(posts []Post) {
	type keyed struct {
		post Post
		at   time.Time
		ok   bool
	}
	keys := make([]keyed, len(posts))
	for i, p := range posts {
		at, err := p.PublishedTime()
		keys[i] = keyed{post: p, at: at, ok: err == nil}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case a.ok && b.ok:
			return b.at.Compare(a.at)
		case a.ok:
			return -1
		case b.ok:
			return 1
		default:
			return 0
		}
	})

	for i, k := range keys {
		posts[i] = k.post
	}
}
