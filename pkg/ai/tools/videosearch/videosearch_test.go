package videosearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallFormatsResults(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search/videos", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "relevance", r.URL.Query().Get("sort"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"total": 2,
				"videos": [
					{"title": "Redis in depth", "author_name": "ops", "view_count": 120, "play_url": "http://v/1"},
					{"title": "Go concurrency", "description": "channels and goroutines"}
				]
			}
		}`))
	}))
	defer srv.Close()

	tool := New(srv.URL)
	result, err := tool.Call(context.Background(), `{"query":"redis"}`)

	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)

	assert.Equal(t, "redis", gotQuery)
	assert.Contains(t, text, "found 2 matching videos")
	assert.Contains(t, text, "[Redis in depth] by @ops (views: 120)")
	assert.Contains(t, text, "link: http://v/1")
	assert.Contains(t, text, "about: channels and goroutines")
}

func TestCallClampsPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		w.Write([]byte(`{"success": true, "data": {"total": 0, "videos": []}}`))
	}))
	defer srv.Close()

	tool := New(srv.URL)
	result, err := tool.Call(context.Background(), `{"query":"redis","page_size":500}`)

	require.NoError(t, err)
	assert.Contains(t, result.(string), "no videos found")
}

func TestCallDegradesWithoutErroring(t *testing.T) {
	t.Run("invalid arguments", func(t *testing.T) {
		tool := New("http://unused")
		result, err := tool.Call(context.Background(), `{broken`)
		require.NoError(t, err)
		assert.Contains(t, result.(string), "invalid search arguments")
	})

	t.Run("empty query", func(t *testing.T) {
		tool := New("http://unused")
		result, err := tool.Call(context.Background(), `{"query":"  "}`)
		require.NoError(t, err)
		assert.Contains(t, result.(string), "non-empty query")
	})

	t.Run("upstream 500", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		tool := New(srv.URL)
		result, err := tool.Call(context.Background(), `{"query":"redis"}`)
		require.NoError(t, err)
		assert.Contains(t, result.(string), "temporarily unavailable")
	})

	t.Run("upstream reports failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": false, "message": "index rebuilding"}`))
		}))
		defer srv.Close()

		tool := New(srv.URL)
		result, err := tool.Call(context.Background(), `{"query":"redis"}`)
		require.NoError(t, err)
		assert.Contains(t, result.(string), "index rebuilding")
	})
}

func TestGetToolSchema(t *testing.T) {
	tool := New("http://unused")
	def := tool.GetTool()

	assert.Equal(t, "search_videos", def.Function.Name)

	params, ok := def.Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, params["required"])
}
