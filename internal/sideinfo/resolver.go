// Resolver dispatch: a side-info reference is resolved as a local file
// path, an HTTP(S) URL, or an opaque catalog key handed to a pluggable
// fetcher, tried in that order.
package sideinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher resolves an opaque catalog key to a SideInfo record, backed by
// whatever external store the caller wires in (e.g. the filesystem
// catalog, or a future remote lookup).
type Fetcher func(ctx context.Context, key string) (*SideInfo, error)

// Resolver resolves a side-info reference of unknown shape into a parsed
// record plus a human-readable label of how it was resolved.
type Resolver struct {
	fetcher     Fetcher
	httpClient  *http.Client
	limiter     *rate.Limiter
	fetchTimeout time.Duration
}

// NewResolver builds a Resolver. fetcher may be nil if no catalog-key
// backend is wired. rateHz bounds outbound URL fetches per second so a
// misbehaving remote side-info host cannot be hammered by repeated
// extract calls.
func NewResolver(fetcher Fetcher, rateHz float64, timeout time.Duration) *Resolver {
	if rateHz <= 0 {
		rateHz = 2.0
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resolver{
		fetcher:      fetcher,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rateHz), 1),
		fetchTimeout: timeout,
	}
}

// Resolve tries, in order: local file path, HTTP(S) URL, then the
// pluggable fetcher. It returns (record, label, nil) on success, or
// (nil, "", err) when ref cannot be resolved by any means — callers map
// that to a SkipBadMeta outcome, never a fatal error.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*SideInfo, string, error) {
	if ref == "" {
		return nil, "", fmt.Errorf("sideinfo: empty reference")
	}

	if data, err := os.ReadFile(ref); err == nil {
		s, perr := Parse(data)
		if perr != nil {
			return nil, "", fmt.Errorf("sideinfo: parsing local file %q: %w", ref, perr)
		}
		return s, ref, nil
	}

	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		s, err := r.fetchURL(ctx, ref)
		if err != nil {
			return nil, "", fmt.Errorf("sideinfo: fetching %q: %w", ref, err)
		}
		return s, ref, nil
	}

	if r.fetcher != nil {
		s, err := r.fetcher(ctx, ref)
		if err != nil {
			return nil, "", fmt.Errorf("sideinfo: fetcher lookup for %q: %w", ref, err)
		}
		return s, "db:" + ref, nil
	}

	return nil, "", fmt.Errorf("sideinfo: %q is not a local path, a URL, and no fetcher is configured", ref)
}

func (r *Resolver) fetchURL(ctx context.Context, url string) (*SideInfo, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return Parse(body)
}
