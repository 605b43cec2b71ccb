package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oliverames/ames-consulting/fetch"
	"github.com/oliverames/ames-consulting/post"
)

// Config is the part of the site configuration the selector needs.
type Config struct {
	Provider string
	FeedURL  string
	Local    LocalOptions
}

// Listing is the ordered post list with the provenance that produced it.
type Listing struct {
	Posts    []post.Post
	Provider string
	// Degraded is set when the configured provider yielded nothing and the
	// posts, if any, come from the fallback.
	Degraded bool
}

// Selector builds the configured provider and applies the one-level
// feed-to-local fallback.
type Selector struct {
	cfg    Config
	client *fetch.Client
	diag   Diagnostics
	logger *zap.Logger
}

// NewSelector creates a Selector. diag and logger may be nil.
func NewSelector(cfg Config, client *fetch.Client, diag Diagnostics, logger *zap.Logger) *Selector {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		cfg:    cfg,
		client: client,
		diag:   diag,
		logger: logger,
	}
}

// Provider returns a fresh instance of the named provider. Anything other
// than the feed provider resolves to the local one.
func (s *Selector) Provider(name string) Provider {
	if name == ProviderFeed {
		return NewFeedSource(s.client, s.cfg.FeedURL, s.diag, s.logger)
	}
	return NewLocalSource(s.client, s.cfg.Local, s.diag, s.logger)
}

// List queries the configured provider. Only when that provider is the feed
// and it returned no posts is the local provider queried, with provenance
// ProvenanceFallback. ErrSourcesExhausted is returned, alongside the empty
// listing, when the fallback is empty too.
func (s *Selector) List(ctx context.Context) (Listing, error) {
	start := time.Now()
	primary := s.Provider(s.cfg.Provider)
	listing := Listing{
		Posts:    primary.ListPosts(ctx),
		Provider: primary.Name(),
	}

	var err error
	if len(listing.Posts) == 0 && primary.Name() == ProviderFeed {
		s.logger.Info("feed returned no posts, falling back to local dataset", zap.String("feed_url", s.cfg.FeedURL))
		listing = Listing{
			Posts:    s.Provider(ProviderLocal).ListPosts(ctx),
			Provider: ProvenanceFallback,
			Degraded: true,
		}
		if len(listing.Posts) == 0 {
			err = ErrSourcesExhausted
		}
	}

	s.diag.Record(ctx, Event{
		Provider: listing.Provider,
		Stage:    StageListing,
		Posts:    len(listing.Posts),
		Err:      err,
		Duration: time.Since(start),
	})
	return listing, err
}
