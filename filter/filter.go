// Package filter narrows a post listing by tag and free-text query and maps
// that filter state to and from URL query parameters.
package filter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/oliverames/ames-consulting/post"
)

// View identifies the page a listing is rendered for.
type View string

const (
	ViewHome View = "home"
	ViewBlog View = "blog"
	// ViewWork is tag-scoped: without an explicit tag it shows the portfolio tag.
	ViewWork View = "work"
)

// ParseView maps a view name to a View. Unknown or empty names are the home view.
func ParseView(name string) View {
	switch View(fold(strings.TrimSpace(name))) {
	case ViewBlog:
		return ViewBlog
	case ViewWork:
		return ViewWork
	default:
		return ViewHome
	}
}

// State is the user-controlled filter: a free-text query and a single tag.
type State struct {
	Query string `json:"query"`
	Tag   string `json:"tag"`
}

// IsZero reports whether s filters nothing.
func (s State) IsZero() bool { return s.Query == "" && s.Tag == "" }

// Apply returns the posts matching state, in input order. An empty tag or
// query matches everything. On the home view the filtered result is capped at
// homePreviewLimit; a non-positive limit leaves it uncapped. posts is not
// modified.
func Apply(posts []post.Post, state State, view View, homePreviewLimit int) []post.Post {
	needle := fold(state.Query)

	out := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		if state.Tag != "" && !p.HasTag(state.Tag) {
			continue
		}
		if needle != "" && !strings.Contains(haystack(p), needle) {
			continue
		}
		out = append(out, p)
	}

	if view == ViewHome && homePreviewLimit > 0 && len(out) > homePreviewLimit {
		out = out[:homePreviewLimit]
	}
	return out
}

func haystack(p post.Post) string {
	return fold(p.Title + " " + p.Summary + " " + strings.Join(p.Tags, " "))
}

func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}
