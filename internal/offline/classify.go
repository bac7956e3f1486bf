package offline

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Class is the cache-handling category of a request. Classification is pure:
// no I/O, no side effects, deterministic for a given request shape.
type Class int

const (
	// ClassExcluded requests bypass caching entirely: non-GET methods and
	// cross-origin targets are tunneled to the network untouched.
	ClassExcluded Class = iota
	// ClassNavigationOrCode covers document navigations and script/style
	// files; served network-first so a deploy is picked up immediately.
	ClassNavigationOrCode
	// ClassStaticOrMedia covers the app shell manifest and media/font
	// files; served cache-first.
	ClassStaticOrMedia
	// ClassOther is everything else (API calls and the like); served
	// passthrough with a best-effort cache behind it.
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassExcluded:
		return "excluded"
	case ClassNavigationOrCode:
		return "navigation-or-code"
	case ClassStaticOrMedia:
		return "static-or-media"
	case ClassOther:
		return "other"
	}
	return "unknown"
}

var codeExts = map[string]struct{}{
	".js": {}, ".css": {}, ".ts": {}, ".tsx": {}, ".jsx": {},
}

var mediaExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {},
	".ico": {}, ".woff": {}, ".woff2": {},
}

// Classifier assigns a Class from a request's method, URL and navigation
// mode. The shell manifest and host are fixed at construction so the
// classifier stays swappable in tests.
type Classifier struct {
	host     string
	manifest map[string]struct{}
}

func NewClassifier(host string, staticAssets []string) *Classifier {
	m := make(map[string]struct{}, len(staticAssets))
	for _, p := range staticAssets {
		m[p] = struct{}{}
	}
	return &Classifier{host: host, manifest: m}
}

// Classify applies the filter (non-GET, cross-origin) before any class rule,
// then checks navigation-or-code ahead of static-or-media.
func (c *Classifier) Classify(method string, u *url.URL, navigate bool) Class {
	if method != http.MethodGet {
		return ClassExcluded
	}
	if u.Host != "" && c.host != "" && !strings.EqualFold(u.Host, c.host) {
		return ClassExcluded
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if navigate {
		return ClassNavigationOrCode
	}
	if _, ok := codeExts[ext]; ok {
		return ClassNavigationOrCode
	}
	if _, ok := c.manifest[u.Path]; ok {
		return ClassStaticOrMedia
	}
	if _, ok := mediaExts[ext]; ok {
		return ClassStaticOrMedia
	}
	return ClassOther
}

// isNavigate reports whether a request is a document navigation. Browsers
// mark these with Sec-Fetch-Mode; for clients without fetch metadata an
// Accept header asking for HTML is the closest signal.
func isNavigate(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
