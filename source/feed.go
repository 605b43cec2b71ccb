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

var feedFetch = fetch.Options{Retries: 2, Timeout: 8 * time.Second, RetryDelay: 300 * time.Millisecond}

type feedDocument struct {
	Items []json.RawMessage `json:"items"`
}

// FeedSource reads a JSON Feed, such as a Micro.blog account feed.
type FeedSource struct {
	client     *fetch.Client
	url        string
	normalizer post.Normalizer
	diag       Diagnostics
	logger     *zap.Logger
}

// NewFeedSource creates a FeedSource for url. An empty url yields no posts
// and makes no request. diag and logger may be nil.
func NewFeedSource(client *fetch.Client, url string, diag Diagnostics, logger *zap.Logger) *FeedSource {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedSource{
		client: client,
		url:    url,
		diag:   diag,
		logger: logger,
	}
}

// Name implements Provider.
func (s *FeedSource) Name() string { return ProviderFeed }

// ListPosts implements Provider.
func (s *FeedSource) ListPosts(ctx context.Context) []post.Post {
	start := time.Now()
	posts, err := s.fetchPosts(ctx)
	s.diag.Record(ctx, Event{
		Provider: ProviderFeed,
		Stage:    StageFeed,
		URL:      s.url,
		Posts:    len(posts),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		return []post.Post{}
	}
	return posts
}

func (s *FeedSource) fetchPosts(ctx context.Context) ([]post.Post, error) {
	if s.url == "" {
		return nil, &fetch.Error{Kind: fetch.ConfigurationFailure, Err: errors.New("no feed url configured")}
	}

	var doc feedDocument
	if err := s.client.GetJSON(ctx, s.url, feedFetch, &doc); err != nil {
		return nil, err
	}
	if doc.Items == nil {
		return nil, &fetch.Error{Kind: fetch.ParseFailure, URL: s.url, Err: errors.New(`document has no "items" array`)}
	}

	posts := make([]post.Post, 0, len(doc.Items))
	dropped := decodeEach(doc.Items, func(item post.FeedItem) bool {
		if !post.Accept(item) {
			return false
		}
		posts = append(posts, s.normalizer.Feed(item))
		return true
	})
	if dropped > 0 {
		s.logger.Debug("dropped feed items", zap.String("url", s.url), zap.Int("dropped", dropped))
	}
	return finish(posts), nil
}
