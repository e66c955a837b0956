package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/pkg/event"
)

func TestShortFormFetch(t *testing.T) {
	created := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trending", r.URL.Path)
		assert.Equal(t, "dance", r.URL.Query().Get("tag"))
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		fmt.Fprintf(w, `{"clips": [
			{"id": "c1", "caption": "amazing moves", "author": "dancer", "views": 50000,
			 "likes": 4000, "shares": 300, "comments": 120, "duration_seconds": 45,
			 "created_at": %q},
			{"id": "", "caption": "missing id"}
		]}`, created)
	}))
	defer srv.Close()

	conn := NewShortForm(srv.URL, "sekrit", []config.SearchQuery{{Query: "dance", Category: "entertainment"}})

	events, err := conn.Fetch(context.Background(), FetchParams{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, event.PlatformShortForm, ev.Platform)
	assert.Equal(t, "c1", ev.ContentID)
	assert.Equal(t, "entertainment", ev.Category)
	assert.Equal(t, event.ShortFormMetrics{Views: 50000, Likes: 4000, Shares: 300, Comments: 120}, ev.Metrics)
	assert.Equal(t, 45, ev.Metadata["duration_seconds"])
	require.NoError(t, ev.Validate())
}

func TestShortFormFetchSinceFilter(t *testing.T) {
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"clips": [{"id": "stale", "created_at": %q}]}`, old)
	}))
	defer srv.Close()

	conn := NewShortForm(srv.URL, "", nil)

	events, err := conn.Fetch(context.Background(), FetchParams{Since: time.Now().Add(-24 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestShortFormFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conn := NewShortForm(srv.URL, "", nil)

	events, err := conn.Fetch(context.Background(), FetchParams{})
	assert.Error(t, err)
	assert.Empty(t, events)
}

func TestShortFormRequiresBaseURL(t *testing.T) {
	conn := NewShortForm("", "", nil)
	_, err := conn.Fetch(context.Background(), FetchParams{})
	assert.Error(t, err)
}
