package prismic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{
		Endpoint:       srv.URL + "/api/v2",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg, testLogger()), srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func apiRoot(w http.ResponseWriter) {
	writeJSON(w, API{Refs: []Ref{
		{ID: "preview", Ref: "preview-ref"},
		{ID: "master", Ref: "master-ref", Label: "Master", IsMasterRef: true},
	}})
}

func TestQueryBuildsSearchRequest(t *testing.T) {
	var got *http.Request
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) { apiRoot(w) })
	mux.HandleFunc("/api/v2/documents/search", func(w http.ResponseWriter, r *http.Request) {
		got = r
		next := "http://cms.test/api/v2/documents/search?page=2"
		writeJSON(w, SearchResponse{
			Page:     1,
			NextPage: &next,
			Results:  []Document{{ID: "d1", UID: "first", Type: "posts", Data: json.RawMessage(`{}`)}},
		})
	})
	c, _ := newTestClient(t, mux)

	resp, err := c.Query(context.Background(),
		[]Predicate{At("document.type", "posts")},
		PageSize(10),
		Orderings("document.first_publication_date desc"),
	)
	require.NoError(t, err)
	require.NotNil(t, got)

	q := got.URL.Query()
	assert.Equal(t, "master-ref", q.Get("ref"))
	assert.Equal(t, `[[at(document.type,"posts")]]`, q.Get("q"))
	assert.Equal(t, "10", q.Get("pageSize"))
	assert.Equal(t, "[document.first_publication_date desc]", q.Get("orderings"))
	assert.Empty(t, q.Get("access_token"))
	assert.Equal(t, "spacetraveling/1.0", got.Header.Get("User-Agent"))

	assert.Equal(t, "http://cms.test/api/v2/documents/search?page=2", resp.Cursor())
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "first", resp.Results[0].UID)
}

func TestRefIsCached(t *testing.T) {
	var rootHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		rootHits.Add(1)
		apiRoot(w)
	})
	c, _ := newTestClient(t, mux, func(cfg *Config) { cfg.RefTTL = time.Hour })

	for i := 0; i < 3; i++ {
		ref, err := c.Ref(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "master-ref", ref)
	}
	assert.Equal(t, int32(1), rootHits.Load())
}

func TestFetchPageRequestsCursorVerbatim(t *testing.T) {
	var rawQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/cursor", func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		writeJSON(w, SearchResponse{Page: 2, Results: []Document{{ID: "d2"}}})
	})
	c, srv := newTestClient(t, mux)

	resp, err := c.FetchPage(context.Background(), srv.URL+"/cursor?z=1&a=2&page=2")
	require.NoError(t, err)
	assert.Equal(t, "z=1&a=2&page=2", rawQuery)
	assert.Equal(t, "", resp.Cursor())
	assert.Len(t, resp.Results, 1)
}

func TestFetchPageAppendsAccessToken(t *testing.T) {
	var rawQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/cursor", func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		writeJSON(w, SearchResponse{})
	})
	c, srv := newTestClient(t, mux, func(cfg *Config) { cfg.AccessToken = "s3cr3t" })

	_, err := c.FetchPage(context.Background(), srv.URL+"/cursor?page=2")
	require.NoError(t, err)
	assert.Equal(t, "page=2&access_token=s3cr3t", rawQuery)

	_, err = c.FetchPage(context.Background(), srv.URL+"/cursor?access_token=other&page=3")
	require.NoError(t, err)
	assert.Equal(t, "access_token=other&page=3", rawQuery)
}

func TestFetchPageEmptyCursor(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.FetchPage(context.Background(), "")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestGetByUID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) { apiRoot(w) })
	mux.HandleFunc("/api/v2/documents/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == `[[at(my.posts.uid,"como-utilizar-hooks")]]` {
			writeJSON(w, SearchResponse{Results: []Document{{ID: "d1", UID: "como-utilizar-hooks", Type: "posts"}}})
			return
		}
		writeJSON(w, SearchResponse{})
	})
	c, _ := newTestClient(t, mux)

	doc, err := c.GetByUID(context.Background(), "posts", "como-utilizar-hooks")
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)

	_, err = c.GetByUID(context.Background(), "posts", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrFetchFailed)
}

func TestRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, SearchResponse{Page: 2})
	})
	c, srv := newTestClient(t, mux)

	resp, err := c.FetchPage(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, srv := newTestClient(t, mux)

	_, err := c.FetchPage(context.Background(), srv.URL+"/page")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), hits.Load())
}

func TestDoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"results": [`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			_, err := c.FetchPage(context.Background(), srv.URL+"/page")
			assert.ErrorIs(t, err, ErrFetchFailed)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestCanceledContextStopsRetries(t *testing.T) {
	var hits atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}), func(cfg *Config) { cfg.InitialBackoff = time.Minute; cfg.MaxBackoff = time.Minute })

	start := time.Now()
	_, err := c.FetchPage(ctx, srv.URL+"/page")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(1), hits.Load())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestPredicateString(t *testing.T) {
	tests := []struct {
		pred     Predicate
		expected string
	}{
		{At("document.type", "posts"), `[at(document.type,"posts")]`},
		{At("my.posts.uid", `a"b`), `[at(my.posts.uid,"a\"b")]`},
		{Any("document.tags", "go", "web"), `[any(document.tags,["go","web"])]`},
		{Fulltext("document", "hooks"), `[fulltext(document,"hooks")]`},
	}
	for _, tt := range tests {
		if got := tt.pred.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
	got := encodeQuery([]Predicate{At("document.type", "posts"), Any("document.tags", "go")})
	want := `[[at(document.type,"posts")][any(document.tags,["go"])]]`
	if got != want {
		t.Errorf("encodeQuery = %q, want %q", got, want)
	}
}

func TestDocumentTimestamps(t *testing.T) {
	raw := `{"id":"d1","type":"posts","first_publication_date":"2021-03-15T19:25:28+0000","last_publication_date":null,"data":{"title":"x"}}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.NotNil(t, doc.FirstPublicationDate)
	assert.True(t, doc.FirstPublicationDate.Equal(time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC)))
	assert.Nil(t, doc.LastPublicationDate)

	var data struct {
		Title string `json:"title"`
	}
	require.NoError(t, doc.DecodeData(&data))
	assert.Equal(t, "x", data.Title)

	var bad Time
	assert.Error(t, json.Unmarshal([]byte(`"15/03/2021"`), &bad))
}
