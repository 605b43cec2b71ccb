package filter

import (
	"maps"
	"net/url"
	"strings"

	"github.com/oliverames/ames-consulting/post"
)

// Query parameter names. The codec is their only reader and writer.
const (
	ParamQuery = "q"
	ParamTag   = "tag"
)

// Codec maps State to and from query parameters for one view.
//
// In the work view an absent tag parameter means DefaultTag, while a tag
// parameter that is present but empty is an explicit clear and is kept.
type Codec struct {
	View       View
	DefaultTag string
}

func (c Codec) tagScoped() bool { return c.View == ViewWork }

func (c Codec) defaultTag() string { return post.NormalizeTag(c.DefaultTag) }

// Decode reads the filter state from v.
func (c Codec) Decode(v url.Values) State {
	state := State{Query: strings.TrimSpace(v.Get(ParamQuery))}

	if _, present := v[ParamTag]; present {
		state.Tag = post.NormalizeTag(v.Get(ParamTag))
	} else if c.tagScoped() {
		state.Tag = c.defaultTag()
	}
	return state
}

// Encode returns a copy of v with the q and tag parameters set from state.
// Empty values are removed, except that in the work view an empty tag is kept
// as "tag=" so it does not decode back to the default tag. Other parameters
// are left untouched.
func (c Codec) Encode(v url.Values, state State) url.Values {
	out := maps.Clone(v)
	if out == nil {
		out = url.Values{}
	}

	if q := strings.TrimSpace(state.Query); q != "" {
		out.Set(ParamQuery, q)
	} else {
		out.Del(ParamQuery)
	}

	tag := post.NormalizeTag(state.Tag)
	switch {
	case tag != "":
		out.Set(ParamTag, tag)
	case c.tagScoped():
		out.Set(ParamTag, "")
	default:
		out.Del(ParamTag)
	}
	return out
}

// Reset is the state after the user clears all filters.
func (c Codec) Reset() State {
	if c.tagScoped() {
		return State{Tag: c.defaultTag()}
	}
	return State{}
}
