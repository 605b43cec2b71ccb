// Package source fetches posts from the local dataset or a JSON Feed and
// picks between them.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/oliverames/ames-consulting/fetch"
	"github.com/oliverames/ames-consulting/post"
)

// Provider names accepted in configuration.
const (
	ProviderLocal = post.SourceLocal
	ProviderFeed  = post.SourceMicroblog
)

// ProvenanceFallback marks a listing served by the local provider after the
// feed provider came back empty.
const ProvenanceFallback = "local-fallback"

// ErrSourcesExhausted is returned when the feed provider and the local
// fallback both produced no posts.
var ErrSourcesExhausted = errors.New("all sources exhausted")

// Provider lists posts from one origin. ListPosts never fails: acquisition
// errors are reported to Diagnostics and collapse to an empty slice.
type Provider interface {
	Name() string
	ListPosts(ctx context.Context) []post.Post
}

// Event describes one acquisition attempt or one served listing.
type Event struct {
	Provider string
	Stage    string
	URL      string
	Posts    int
	Err      error
	Duration time.Duration
}

// Stages reported in Event.Stage.
const (
	StageEnhanced = "enhanced"
	StageBaseline = "baseline"
	StageFeed     = "feed"
	StageListing  = "listing"
)

// Diagnostics receives events that never reach the pipeline's return value.
type Diagnostics interface {
	Record(ctx context.Context, e Event)
}

// LogDiagnostics writes events to a zap logger.
type LogDiagnostics struct {
	Logger *zap.Logger
}

// Record implements Diagnostics.
func (d LogDiagnostics) Record(_ context.Context, e Event) {
	if d.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("provider", e.Provider),
		zap.String("stage", e.Stage),
		zap.Int("posts", e.Posts),
		zap.Duration("duration", e.Duration),
	}
	if e.URL != "" {
		fields = append(fields, zap.String("url", e.URL))
	}
	if e.Err != nil {
		fields = append(fields, zap.Stringer("kind", fetch.KindOf(e.Err)), zap.Error(e.Err))
		d.Logger.Warn("ingestion degraded", fields...)
		return
	}
	d.Logger.Debug("ingestion event", fields...)
}

// Tee fans events out to several sinks. Nil sinks are skipped.
type Tee []Diagnostics

// Record implements Diagnostics.
func (t Tee) Record(ctx context.Context, e Event) {
	for _, d := range t {
		if d != nil {
			d.Record(ctx, e)
		}
	}
}

type nopDiagnostics struct{}

func (nopDiagnostics) Record(context.Context, Event) {}

// decodeEach unmarshals every raw element into a T and hands it to keep.
// Elements that do not decode, which for the post record types means
// elements that are not JSON objects, are counted and skipped.
func decodeEach[T any](raw []json.RawMessage, keep func(T) bool) (dropped int) {
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			dropped++
			continue
		}
		if !keep(v) {
			dropped++
		}
	}
	return dropped
}

// finish gives every provider the same output contract: unique ids,
// newest first, never nil.
func finish(posts []post.Post) []post.Post {
	posts = post.Dedupe(posts)
	post.SortNewest(posts)
	return posts
}
