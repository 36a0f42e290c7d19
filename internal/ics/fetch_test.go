package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOne_FreshThenNotModified(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(crlf(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "family", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.NotEmpty(t, first.Body)

	// Second round sends the stored ETag, gets a 304 and answers from cache.
	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, 2, hits)
}

func TestFetchOne_StaleBodyOnServerError(t *testing.T) {
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(crlf(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "family", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	failing = true
	stale, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, stale.FromCache)
	assert.Equal(t, first.Body, stale.Body)
}

func TestFetchOne_ErrorWithoutCachedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.FetchOne(context.Background(), Source{ID: "family", URL: srv.URL})
	require.Error(t, err)
}

func TestFetchOne_EmptyURLRejected(t *testing.T) {
	f := NewFetcher(t.TempDir())
	_, err := f.FetchOne(context.Background(), Source{ID: "family"})
	require.Error(t, err)
}

func TestFetchAll_CollectsPerSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(crlf(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "good", URL: srv.URL},
		{ID: "broken", URL: ""},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Source.ID)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken")
}
