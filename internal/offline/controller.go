package offline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tasktusk/internal/cachestore"
)

const offlineHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>TaskTusk</title></head>
<body>
<h1>You are offline</h1>
<p>TaskTusk could not reach the network and this page is not cached yet. Reconnect and reload.</p>
</body>
</html>
`

// Options configures a Controller. Generation names the single cache
// generation this controller writes to; StaticAssets is the shell manifest
// populated at install time.
type Options struct {
	Origin        string // origin base URL, no trailing slash
	OriginHost    string // public host used for cross-origin exclusion
	Generation    string
	StaticAssets  []string
	Client        *http.Client
	LogStatsEvery time.Duration
}

// Controller intercepts every request bound for the origin and serves it per
// the class strategy: network-first for navigations and code, cache-first for
// shell assets and media, best-effort passthrough for the rest. Cache writes
// are fire-and-forget; their failure never changes what the client receives.
type Controller struct {
	origin     string
	originURL  *url.URL
	generation string
	manifest   []string
	classifier *Classifier
	store      *cachestore.Store
	client     *http.Client
	stats      *statsCollector

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(store *cachestore.Store, opts Options) (*Controller, error) {
	origin := strings.TrimRight(opts.Origin, "/")
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("origin %q: missing host", opts.Origin)
	}
	if opts.Generation == "" {
		return nil, fmt.Errorf("generation name is required")
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Controller{
		origin:     origin,
		originURL:  u,
		generation: opts.Generation,
		manifest:   append([]string(nil), opts.StaticAssets...),
		classifier: NewClassifier(opts.OriginHost, opts.StaticAssets),
		store:      store,
		client:     client,
		stats:      newStatsCollector(),
		stopCh:     make(chan struct{}),
	}

	if opts.LogStatsEvery > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.statsLoop(opts.LogStatsEvery)
		}()
	}

	return c, nil
}

func (c *Controller) Close() {
	close(c.stopCh)
	c.wg.Wait()
}

// Generation is the name of the generation this controller writes to.
func (c *Controller) Generation() string { return c.generation }

// Install populates the current generation from the shell manifest. Failures
// are logged and skipped; serving never waits on a warm cache, so a partial
// install is acceptable and the next install retries naturally.
func (c *Controller) Install(ctx context.Context) {
	stored, failed := 0, 0
	for _, p := range c.manifest {
		up, err := c.fetchOrigin(ctx, p, nil)
		if err != nil {
			failed++
			slog.Warn("install: manifest fetch failed", "path", p, "error", err)
			continue
		}
		if !up.cacheable() {
			failed++
			slog.Warn("install: manifest response not cacheable", "path", p, "status", up.Status)
			continue
		}
		if err := c.store.Put(c.generation, p, up.entry()); err != nil {
			failed++
			slog.Warn("install: store failed", "path", p, "error", err)
			continue
		}
		stored++
	}
	slog.Info("cache install finished", "generation", c.generation, "stored", stored, "failed", failed)
}

// Activate evicts every generation except the current one, bounding storage
// across version upgrades to a single generation.
func (c *Controller) Activate() {
	gens, err := c.store.Generations()
	if err != nil {
		slog.Error("activate: list generations failed", "error", err)
		return
	}
	for _, g := range gens {
		if g == c.generation {
			continue
		}
		if err := c.store.DropGeneration(g); err != nil {
			slog.Error("activate: drop generation failed", "generation", g, "error", err)
			continue
		}
		slog.Info("evicted stale cache generation", "generation", g)
	}
}

// Status describes the current generation and serving counters.
type Status struct {
	Generation string        `json:"generation"`
	Entries    int           `json:"entries"`
	Stats      StatsSnapshot `json:"stats"`
}

func (c *Controller) Status() (Status, error) {
	n, err := c.store.EntryCount(c.generation)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Generation: c.generation,
		Entries:    n,
		Stats:      c.stats.Snapshot(),
	}, nil
}

func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch c.classifier.Classify(r.Method, r.URL, isNavigate(r)) {
	case ClassExcluded:
		c.stats.excluded.Add(1)
		c.tunnel(w, r)
	case ClassNavigationOrCode:
		c.networkFirst(w, r)
	case ClassStaticOrMedia:
		c.cacheFirst(w, r)
	default:
		c.passthrough(w, r)
	}
}

// networkFirst always prefers a live response so a fresh deploy is never
// shadowed by the cache; the cache is consulted only after the network fails.
func (c *Controller) networkFirst(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	up, err := c.fetchOrigin(r.Context(), key, r.Header)
	if err == nil {
		c.storeAsync(key, up)
		c.stats.network.Add(1)
		writeUpstream(w, up, "network")
		return
	}
	if ent, ok := c.store.Get(c.generation, key); ok {
		c.stats.fallbacks.Add(1)
		writeEntry(w, ent, "fallback")
		return
	}
	c.stats.synthetic.Add(1)
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	setCacheHeader(h, "offline")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, offlineHTML)
}

// cacheFirst serves a present entry without any network round-trip; a miss
// triggers exactly one network attempt.
func (c *Controller) cacheFirst(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	if ent, ok := c.store.Get(c.generation, key); ok {
		c.stats.hits.Add(1)
		writeEntry(w, ent, "hit")
		return
	}
	up, err := c.fetchOrigin(r.Context(), key, r.Header)
	if err == nil {
		c.storeAsync(key, up)
		c.stats.network.Add(1)
		writeUpstream(w, up, "miss")
		return
	}
	c.stats.synthetic.Add(1)
	setCacheHeader(w.Header(), "unavailable")
	w.WriteHeader(http.StatusRequestTimeout)
}

// passthrough forwards unclassified GETs, keeping a best-effort copy so the
// cache can answer when the origin is down.
func (c *Controller) passthrough(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	up, err := c.fetchOrigin(r.Context(), key, r.Header)
	if err == nil {
		c.storeAsync(key, up)
		c.stats.network.Add(1)
		writeUpstream(w, up, "network")
		return
	}
	if ent, ok := c.store.Get(c.generation, key); ok {
		c.stats.fallbacks.Add(1)
		writeEntry(w, ent, "fallback")
		return
	}
	c.stats.synthetic.Add(1)
	setCacheHeader(w.Header(), "unavailable")
	w.WriteHeader(http.StatusServiceUnavailable)
}

// tunnel forwards an excluded request untouched: original method, streamed
// body, no cache reads or writes.
func (c *Controller) tunnel(w http.ResponseWriter, r *http.Request) {
	target := c.origin + r.URL.RequestURI()
	if r.URL.IsAbs() {
		target = r.URL.String()
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	copyHeaders(req.Header, r.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// upstream is a fully buffered origin response. Basic means the final
// response came from the origin itself with HTTP 200; only basic responses
// with a successfully read body may be stored.
type upstream struct {
	Status   int
	Header   http.Header
	Body     []byte
	Basic    bool
	BodyRead bool
}

func (u *upstream) cacheable() bool {
	return u != nil && u.Basic && u.BodyRead
}

func (u *upstream) entry() cachestore.Entry {
	return cachestore.Entry{
		Status:   u.Status,
		Header:   u.Header,
		Body:     u.Body,
		StoredAt: time.Now().Unix(),
	}
}

// fetchOrigin fetches requestURI from the origin exactly once, bypassing any
// intermediate HTTP cache. A body read error counts as a network failure.
func (c *Controller) fetchOrigin(ctx context.Context, requestURI string, hdr http.Header) (*upstream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+requestURI, nil)
	if err != nil {
		return nil, err
	}
	if hdr != nil {
		copyHeaders(req.Header, hdr)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	up := &upstream{
		Status:   resp.StatusCode,
		Header:   cloneHeader(resp.Header),
		Body:     body,
		Basic:    resp.StatusCode == http.StatusOK && c.sameOrigin(resp.Request.URL),
		BodyRead: true,
	}
	up.Header.Del("Content-Length")
	return up, nil
}

// sameOrigin reports whether the final request URL (after redirects) still
// points at the configured origin. Redirected-away responses are returned to
// the client but never cached.
func (c *Controller) sameOrigin(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Host, c.originURL.Host)
}

// storeAsync queues a cache write without joining it to the response path.
func (c *Controller) storeAsync(key string, up *upstream) {
	if !up.cacheable() {
		return
	}
	c.store.PutAsync(c.generation, key, up.entry())
}

func writeUpstream(w http.ResponseWriter, up *upstream, outcome string) {
	for k, vs := range up.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	setCacheHeader(w.Header(), outcome)
	w.WriteHeader(up.Status)
	_, _ = w.Write(up.Body)
}

func writeEntry(w http.ResponseWriter, ent cachestore.Entry, outcome string) {
	for k, vs := range ent.Header {
		if strings.EqualFold(k, "x-tusk-cache") {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	setCacheHeader(w.Header(), outcome)
	w.WriteHeader(ent.Status)
	_, _ = w.Write(ent.Body)
}

func setCacheHeader(h http.Header, outcome string) {
	if outcome != "" {
		h.Set("X-Tusk-Cache", outcome)
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}
