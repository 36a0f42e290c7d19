package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "famcal/internal/log"
)

// Source identifies one ICS subscription.
type Source struct {
	ID   string // stable identifier, prefixed onto event UIDs
	Name string // human label, surfaced as the event category
	URL  string
}

// FetchResult is one fetched feed body.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// Fetcher retrieves ICS feeds with conditional requests (ETag and
// Last-Modified) backed by an on-disk body cache per URL. An unreachable feed
// degrades to its last good body, so a flaky subscription shows stale events
// instead of an empty calendar.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher builds a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		// Relative fallback so development runs without root permissions.
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches every source. Per-source failures are collected, not
// fatal; the result slice holds each source that produced a body, fresh or
// cached.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch %s: %w", src.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches one source, answering 304s from the cache and falling
// back to the cached body when the feed cannot be reached.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cache, err := f.cacheFor(src.URL)
	if err != nil {
		return FetchResult{}, err
	}
	meta, cached := cache.load()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	stale := func(reason string, cause error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, cause
		}
		appLog.Error("ics fetch degraded to cached body", cause,
			"id", src.ID, "url", redactURL(src.URL), "reason", reason)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return stale("network", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics feed unchanged", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	case resp.StatusCode != http.StatusOK:
		return stale("status", fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stale("read", err)
	}

	next := feedMeta{
		URL:          src.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    time.Now().UTC(),
	}
	if err := cache.store(next, body); err != nil {
		// The fresh body is still good; only future conditional requests
		// lose out.
		appLog.Error("ics cache write failed", err, "id", src.ID, "url", redactURL(src.URL))
	}

	appLog.Info("ics feed fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

// feedMeta is the conditional-request state stored next to a cached body.
type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// feedCache is the on-disk cache slot for one feed URL.
type feedCache struct {
	dir string
}

func (f *Fetcher) cacheFor(url string) (feedCache, error) {
	sum := sha256.Sum256([]byte(url))
	dir := filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return feedCache{}, err
	}
	return feedCache{dir: dir}, nil
}

// load returns whatever survives on disk; a missing or corrupt slot reads as
// empty and forces an unconditional fetch.
func (c feedCache) load() (feedMeta, []byte) {
	var meta feedMeta
	if data, err := os.ReadFile(filepath.Join(c.dir, "meta.json")); err == nil {
		if json.Unmarshal(data, &meta) != nil {
			meta = feedMeta{}
		}
	}
	body, _ := os.ReadFile(filepath.Join(c.dir, "body.ics"))
	return meta, body
}

func (c feedCache) store(meta feedMeta, body []byte) error {
	// Body first, so meta never describes a missing body.
	if err := os.WriteFile(filepath.Join(c.dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "meta.json"), data, 0o600)
}

// redactURL trims an ICS URL to its host for logging; private feed URLs
// routinely embed access tokens in the path or query.
func redactURL(u string) string {
	const suffix = "/...(redacted)"
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + suffix
}
