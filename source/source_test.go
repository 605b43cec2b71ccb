package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliverames/ames-consulting/fetch"
	"github.com/oliverames/ames-consulting/post"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Record(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

const baselineJSON = `{"posts": [
	{"id": "old", "title": "Old", "publishedAt": "2023-12-01", "tags": ["Life"]},
	{"id": "new", "title": "New", "publishedAt": "2024-06-01", "tags": ["work"]},
	{"id": "mid", "title": "Mid", "publishedAt": "2024-01-01"},
	"not a record"
]}`

const enhancedJSON = `{"posts": [
	{"id": "ai", "title": "AI summary", "summary": "Generated", "publishedAt": "2024-02-01"}
]}`

// newClient serves file:// from fsys and http(s) through the default transport.
func newClient(fsys fstest.MapFS) *fetch.Client {
	return fetch.NewClient(&http.Client{Transport: fetch.NewTransport(fsys)}, nil)
}

func feedServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/feed+json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func titles(posts []post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestLocalSource_BaselineNewestFirst(t *testing.T) {
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	src := NewLocalSource(client, DefaultLocalOptions(), nil, nil)

	posts := src.ListPosts(context.Background())
	require.Len(t, posts, 3, "the non-object element is dropped")
	assert.Equal(t, []string{"2024-06-01", "2024-01-01", "2023-12-01"},
		[]string{posts[0].PublishedAt, posts[1].PublishedAt, posts[2].PublishedAt})
	assert.Equal(t, []string{"life"}, posts[2].Tags)
}

func TestLocalSource_PrefersEnhancedDataset(t *testing.T) {
	rec := &recorder{}
	client := newClient(fstest.MapFS{
		"content.example.json":        {Data: []byte(baselineJSON)},
		"posts-with-ai-summaries.json": {Data: []byte(enhancedJSON)},
	})
	src := NewLocalSource(client, DefaultLocalOptions(), rec, nil)

	posts := src.ListPosts(context.Background())
	assert.Equal(t, []string{"AI summary"}, titles(posts))
	assert.Equal(t, []string{StageEnhanced}, rec.stages())
}

func TestLocalSource_FallsBackToBaseline(t *testing.T) {
	rec := &recorder{}
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	src := NewLocalSource(client, DefaultLocalOptions(), rec, nil)

	posts := src.ListPosts(context.Background())
	assert.Equal(t, []string{"New", "Mid", "Old"}, titles(posts))
	assert.Equal(t, []string{StageEnhanced, StageBaseline}, rec.stages())
	require.Error(t, rec.events[0].Err)
	assert.Equal(t, fetch.HTTPFailure, fetch.KindOf(rec.events[0].Err))
	assert.NoError(t, rec.events[1].Err)
}

func TestLocalSource_SkipsEnhancedWhenNotPreferred(t *testing.T) {
	client := newClient(fstest.MapFS{
		"content.example.json":        {Data: []byte(baselineJSON)},
		"posts-with-ai-summaries.json": {Data: []byte(enhancedJSON)},
	})
	opts := DefaultLocalOptions()
	opts.PreferEnhanced = false

	posts := NewLocalSource(client, opts, nil, nil).ListPosts(context.Background())
	assert.Equal(t, []string{"New", "Mid", "Old"}, titles(posts))
}

func TestLocalSource_BothDatasetsMissing(t *testing.T) {
	client := newClient(fstest.MapFS{})
	posts := NewLocalSource(client, DefaultLocalOptions(), nil, nil).ListPosts(context.Background())
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestFeedSource_EmptyURLMakesNoRequest(t *testing.T) {
	rec := &recorder{}
	client := fetch.NewClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("unexpected request")
		return nil, nil
	})}, nil)

	posts := NewFeedSource(client, "", rec, nil).ListPosts(context.Background())
	assert.Empty(t, posts)
	require.Len(t, rec.events, 1)
	assert.Equal(t, fetch.ConfigurationFailure, fetch.KindOf(rec.events[0].Err))
}

func TestFeedSource_FiltersAndNormalizes(t *testing.T) {
	server, _ := feedServer(t, `{
		"version": "https://jsonfeed.org/version/1.1",
		"items": [
			{"id": "1", "content_text": "first #Go", "date_published": "2024-01-01T00:00:00Z"},
			{"title": "no identity", "content_text": "dropped"},
			{"id": "2", "url": "https://x.test/2"},
			"not an object",
			{"id": "3", "title": "Third", "date_published": "2024-06-01T00:00:00Z", "tags": ["Work"]},
			{"id": "1", "content_html": "<p>first, edited #go</p>", "date_published": "2024-01-01T00:00:00Z"}
		]
	}`, http.StatusOK)

	posts := NewFeedSource(newClient(nil), server.URL, nil, nil).ListPosts(context.Background())
	require.Len(t, posts, 2)
	assert.Equal(t, "Third", posts[0].Title)
	assert.Equal(t, []string{"work"}, posts[0].Tags)
	assert.Equal(t, "first, edited #go", posts[1].Title)
	assert.Equal(t, []string{"go"}, posts[1].Tags)
	for _, p := range posts {
		assert.Equal(t, post.SourceMicroblog, p.Source)
	}
}

func TestFeedSource_KeepsItemsWithWrongShapedFields(t *testing.T) {
	server, _ := feedServer(t, `{"items": [
		{"id": "a", "title": "x", "attachments": {"url": "https://x.test/a.jpg"}, "date_published": "2024-03-01"},
		{"id": "b", "title": "y", "tags": "go", "date_published": "2024-02-01"},
		{"id": "c", "title": 42, "date_published": "2024-01-01"}
	]}`, http.StatusOK)

	posts := NewFeedSource(newClient(nil), server.URL, nil, nil).ListPosts(context.Background())
	assert.Equal(t, []string{"x", "y", "42"}, titles(posts))
	assert.Empty(t, posts[1].Tags)
}

func TestLocalSource_KeepsRecordsWithWrongShapedFields(t *testing.T) {
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(`{"posts": [
		{"id": "one", "title": "One", "summary": "short", "readTimeMinutes": "5", "publishedAt": "2024-02-01"},
		{"id": "two", "title": "Two", "tags": "work", "publishedAt": "2024-01-01"},
		{"id": "three", "title": "Three", "tags": true, "publishedAt": "2023-01-01"}
	]}`)}})
	opts := DefaultLocalOptions()
	opts.PreferEnhanced = false

	posts := NewLocalSource(client, opts, nil, nil).ListPosts(context.Background())
	require.Equal(t, []string{"One", "Two", "Three"}, titles(posts))
	assert.Equal(t, 1, posts[0].ReadTimeMinutes)
	assert.Empty(t, posts[1].Tags)
}

func TestFeedSource_MissingItemsArray(t *testing.T) {
	rec := &recorder{}
	server, _ := feedServer(t, `{"title": "not a feed"}`, http.StatusOK)

	posts := NewFeedSource(newClient(nil), server.URL, rec, nil).ListPosts(context.Background())
	assert.Empty(t, posts)
	require.Len(t, rec.events, 1)
	assert.Equal(t, fetch.ParseFailure, fetch.KindOf(rec.events[0].Err))
}

func TestFeedSource_ServerErrorRetriesThenEmpty(t *testing.T) {
	server, calls := feedServer(t, `oops`, http.StatusInternalServerError)

	posts := NewFeedSource(newClient(nil), server.URL, nil, nil).ListPosts(context.Background())
	assert.Empty(t, posts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSelector_LocalProvider(t *testing.T) {
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	sel := NewSelector(Config{Provider: ProviderLocal, Local: DefaultLocalOptions()}, client, nil, nil)

	listing, err := sel.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, listing.Provider)
	assert.False(t, listing.Degraded)
	assert.Len(t, listing.Posts, 3)
}

func TestSelector_FeedProvider(t *testing.T) {
	server, _ := feedServer(t, `{"items": [{"id": "1", "title": "From feed"}]}`, http.StatusOK)
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	sel := NewSelector(Config{Provider: ProviderFeed, FeedURL: server.URL, Local: DefaultLocalOptions()}, client, nil, nil)

	listing, err := sel.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderFeed, listing.Provider)
	assert.Equal(t, []string{"From feed"}, titles(listing.Posts))
}

func TestSelector_FallsBackWhenFeedIsEmpty(t *testing.T) {
	rec := &recorder{}
	server, _ := feedServer(t, `{"items": []}`, http.StatusOK)
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	sel := NewSelector(Config{Provider: ProviderFeed, FeedURL: server.URL, Local: DefaultLocalOptions()}, client, rec, nil)

	listing, err := sel.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProvenanceFallback, listing.Provider)
	assert.NotEqual(t, ProviderLocal, listing.Provider)
	assert.True(t, listing.Degraded)
	assert.Equal(t, []string{"New", "Mid", "Old"}, titles(listing.Posts))
	assert.Equal(t, []string{StageFeed, StageEnhanced, StageBaseline, StageListing}, rec.stages())
}

func TestSelector_LenientFeedItemsKeepFeedProvenance(t *testing.T) {
	server, _ := feedServer(t, `{"items": [{"id": "a", "title": "x", "tags": "go", "attachments": {}}]}`, http.StatusOK)
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	sel := NewSelector(Config{Provider: ProviderFeed, FeedURL: server.URL, Local: DefaultLocalOptions()}, client, nil, nil)

	listing, err := sel.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderFeed, listing.Provider)
	assert.False(t, listing.Degraded)
	assert.Equal(t, []string{"x"}, titles(listing.Posts))
}

func TestSelector_FallsBackWhenFeedURLMissing(t *testing.T) {
	client := newClient(fstest.MapFS{"content.example.json": {Data: []byte(baselineJSON)}})
	sel := NewSelector(Config{Provider: ProviderFeed, Local: DefaultLocalOptions()}, client, nil, nil)

	listing, err := sel.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProvenanceFallback, listing.Provider)
	assert.Len(t, listing.Posts, 3)
}

func TestSelector_AllSourcesExhausted(t *testing.T) {
	rec := &recorder{}
	server, _ := feedServer(t, `{"items": []}`, http.StatusOK)
	sel := NewSelector(Config{Provider: ProviderFeed, FeedURL: server.URL, Local: DefaultLocalOptions()}, newClient(fstest.MapFS{}), rec, nil)

	listing, err := sel.List(context.Background())
	assert.ErrorIs(t, err, ErrSourcesExhausted)
	assert.Equal(t, ProvenanceFallback, listing.Provider)
	assert.NotNil(t, listing.Posts)
	assert.Empty(t, listing.Posts)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, StageListing, last.Stage)
	assert.ErrorIs(t, last.Err, ErrSourcesExhausted)
}

func TestSelector_EmptyLocalIsNotAnError(t *testing.T) {
	sel := NewSelector(Config{Provider: ProviderLocal, Local: DefaultLocalOptions()}, newClient(fstest.MapFS{}), nil, nil)

	listing, err := sel.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, listing.Provider)
	assert.Empty(t, listing.Posts)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
