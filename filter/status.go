package filter

import (
	"fmt"
	"strings"
)

// Status summarizes a filtered listing for display.
type Status struct {
	Total    int    `json:"total"`
	Tag      string `json:"tag"`
	Query    string `json:"query"`
	Provider string `json:"provider"`
	Degraded bool   `json:"degraded"`
}

// NewStatus describes a listing of total posts filtered by state.
func NewStatus(total int, state State, provider string, degraded bool) Status {
	return Status{
		Total:    total,
		Tag:      state.Tag,
		Query:    state.Query,
		Provider: provider,
		Degraded: degraded,
	}
}

// String renders the status line, e.g.
//
//	3 posts • tagged #work • matching “go” • source: local
func (s Status) String() string {
	parts := make([]string, 0, 4)
	if s.Total == 1 {
		parts = append(parts, "1 post")
	} else {
		parts = append(parts, fmt.Sprintf("%d posts", s.Total))
	}
	if s.Tag != "" {
		parts = append(parts, "tagged #"+s.Tag)
	}
	if s.Query != "" {
		parts = append(parts, "matching “"+s.Query+"”")
	}
	parts = append(parts, "source: "+s.Provider)
	return strings.Join(parts, " • ")
}
