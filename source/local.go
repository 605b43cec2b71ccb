package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oliverames/ames-consulting/fetch"
	"github.com/oliverames/ames-consulting/post"
)

// Default dataset locations, resolved against the local dataset filesystem.
const (
	DefaultEnhancedURL = "file:///posts-with-ai-summaries.json"
	DefaultBaselineURL = "file:///content.example.json"
)

var (
	enhancedFetch = fetch.Options{Retries: 0, Timeout: 3 * time.Second}
	baselineFetch = fetch.Options{Retries: 1, Timeout: 5 * time.Second, RetryDelay: 250 * time.Millisecond}
)

// LocalOptions locates the bundled datasets.
type LocalOptions struct {
	EnhancedURL    string
	BaselineURL    string
	PreferEnhanced bool
}

// DefaultLocalOptions prefers the enhanced dataset and falls back to the
// example content.
func DefaultLocalOptions() LocalOptions {
	return LocalOptions{
		EnhancedURL:    DefaultEnhancedURL,
		BaselineURL:    DefaultBaselineURL,
		PreferEnhanced: true,
	}
}

type localDocument struct {
	Posts []json.RawMessage `json:"posts"`
}

// LocalSource reads the bundled JSON dataset.
type LocalSource struct {
	client     *fetch.Client
	opts       LocalOptions
	normalizer post.Normalizer
	diag       Diagnostics
	logger     *zap.Logger
}

// NewLocalSource creates a LocalSource. diag and logger may be nil.
func NewLocalSource(client *fetch.Client, opts LocalOptions, diag Diagnostics, logger *zap.Logger) *LocalSource {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaselineURL == "" {
		opts.BaselineURL = DefaultBaselineURL
	}
	return &LocalSource{
		client: client,
		opts:   opts,
		diag:   diag,
		logger: logger,
	}
}

// Name implements Provider.
func (s *LocalSource) Name() string { return ProviderLocal }

// ListPosts implements Provider.
func (s *LocalSource) ListPosts(ctx context.Context) []post.Post {
	posts, err := s.fetchPosts(ctx)
	if err != nil {
		return []post.Post{}
	}
	return posts
}

func (s *LocalSource) fetchPosts(ctx context.Context) ([]post.Post, error) {
	if s.opts.PreferEnhanced && s.opts.EnhancedURL != "" {
		doc, err := s.load(ctx, StageEnhanced, s.opts.EnhancedURL, enhancedFetch)
		if err == nil {
			s.logger.Debug("using enhanced dataset", zap.String("url", s.opts.EnhancedURL))
			return s.build(doc), nil
		}
	}

	doc, err := s.load(ctx, StageBaseline, s.opts.BaselineURL, baselineFetch)
	if err != nil {
		return nil, fmt.Errorf("loading local dataset: %w", err)
	}
	return s.build(doc), nil
}

func (s *LocalSource) load(ctx context.Context, stage, url string, opts fetch.Options) (localDocument, error) {
	start := time.Now()
	var doc localDocument
	err := s.client.GetJSON(ctx, url, opts, &doc)
	s.diag.Record(ctx, Event{
		Provider: ProviderLocal,
		Stage:    stage,
		URL:      url,
		Posts:    len(doc.Posts),
		Err:      err,
		Duration: time.Since(start),
	})
	return doc, err
}

func (s *LocalSource) build(doc localDocument) []post.Post {
	posts := make([]post.Post, 0, len(doc.Posts))
	dropped := decodeEach(doc.Posts, func(r post.LocalRecord) bool {
		posts = append(posts, s.normalizer.Local(r))
		return true
	})
	if dropped > 0 {
		s.logger.Debug("dropped malformed local records", zap.Int("dropped", dropped))
	}
	return finish(posts)
}
