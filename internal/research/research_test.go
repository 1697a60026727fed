package research

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/songprompt/internal/config"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[string][]string
	errs    map[string]error
	fail    error
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, query string) ([]string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func TestResearch_NotConfigured(t *testing.T) {
	r := NewResearcher(nil, 0, nil)
	got := r.Research(context.Background(), "The Weeknd")

	assert.Equal(t, StatusNotConfigured, got.Status)
	assert.False(t, got.Usable())
	assert.Contains(t, got.Describe(), "no search provider")
}

func TestResearch_ConcatenatesInQueryOrder(t *testing.T) {
	q := Queries("The Weeknd")
	fake := &fakeSearcher{results: map[string][]string{
		q[0]: {"dark R&B", "80s synth"},
		q[1]: {"  108 BPM  "},
		q[2]: {"Michael Jackson"},
	}}

	got := NewResearcher(fake, 0, nil).Research(context.Background(), "The Weeknd")

	require.Equal(t, StatusFound, got.Status)
	assert.True(t, got.Usable())
	assert.Equal(t, "dark R&B\n80s synth\n108 BPM\nMichael Jackson", got.Text)
	assert.Len(t, fake.queries, 3)
}

func TestResearch_TruncatesToCap(t *testing.T) {
	long := strings.Repeat("é", 5000)
	fake := &fakeSearcher{results: map[string][]string{Queries("X Y")[0]: {long}}}

	got := NewResearcher(fake, 0, nil).Research(context.Background(), "X Y")

	assert.Equal(t, StatusFound, got.Status)
	assert.Equal(t, DefaultMaxChars, len([]rune(got.Text)))
}

func TestResearch_AllQueriesFail(t *testing.T) {
	fake := &fakeSearcher{fail: errors.New("connection refused")}

	got := NewResearcher(fake, 0, nil).Research(context.Background(), "Daft Punk")

	assert.Equal(t, StatusFailed, got.Status)
	assert.EqualError(t, got.Err, "connection refused")
	assert.Empty(t, got.Text)
	assert.False(t, got.Usable())
}

func TestResearch_PartialFailureStillFound(t *testing.T) {
	q := Queries("Daft Punk")
	fake := &fakeSearcher{
		results: map[string][]string{q[2]: {"Justice", "Cassius"}},
		errs:    map[string]error{q[0]: errors.New("timeout")},
	}

	got := NewResearcher(fake, 0, nil).Research(context.Background(), "Daft Punk")

	assert.Equal(t, StatusFound, got.Status)
	assert.Equal(t, "Justice\nCassius", got.Text)
}

func TestResearch_Empty(t *testing.T) {
	fake := &fakeSearcher{results: map[string][]string{Queries("Nobody Known")[0]: {"   "}}}

	got := NewResearcher(fake, 0, nil).Research(context.Background(), "Nobody Known")

	assert.Equal(t, StatusEmpty, got.Status)
	assert.False(t, got.Usable())
}

func TestSerperSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"knowledgeGraph":{"description":"Canadian singer"},"organic":[{"snippet":"synth-pop"},{"snippet":""}]}`))
	}))
	defer srv.Close()

	got, err := NewSerperSearcher("key", srv.URL, time.Second).Search(context.Background(), "The Weeknd")
	require.NoError(t, err)
	assert.Equal(t, []string{"Canadian singer", "synth-pop"}, got)
}

func TestSerperSearcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewSerperSearcher("key", srv.URL, time.Second).Search(context.Background(), "q")
	assert.ErrorContains(t, err, "status 403")
}

func TestDuckDuckGoSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "Daft Punk", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"AbstractText":"French electronic duo","RelatedTopics":[{"Text":"Homework"},{"Topics":[{"Text":"Discovery"}]}]}`))
	}))
	defer srv.Close()

	got, err := NewDuckDuckGoSearcher(srv.URL, time.Second).Search(context.Background(), "Daft Punk")
	require.NoError(t, err)
	assert.Equal(t, []string{"French electronic duo", "Homework", "Discovery"}, got)
}

func TestCachedSearcher_FallsThroughWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	fake := &fakeSearcher{results: map[string][]string{"q": {"snippet"}}}
	c := NewCachedSearcher(fake, rdb, time.Hour, nil)

	got, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"snippet"}, got)
	assert.Equal(t, "fake", c.Name())
	assert.Equal(t, c.key(" Q "), c.key("q"))
}

func TestNewSearcher(t *testing.T) {
	assert.Nil(t, NewSearcher(&config.ResearchConfig{Provider: "none"}, nil, nil))
	assert.Nil(t, NewSearcher(&config.ResearchConfig{Provider: "serper"}, nil, nil))

	s := NewSearcher(&config.ResearchConfig{Provider: "serper", APIKey: "k"}, nil, nil)
	require.NotNil(t, s)
	assert.Equal(t, "serper", s.Name())

	s = NewSearcher(&config.ResearchConfig{Provider: "duckduckgo"}, nil, nil)
	require.NotNil(t, s)
	assert.Equal(t, "duckduckgo", s.Name())
}
