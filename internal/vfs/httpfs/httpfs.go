// Package httpfs resolves http/https locations. A URL serving HTML counts as
// a browsable container: listing parses the anchors of the page, which is how
// index pages expose their "children". Redirects are followed and the final
// URL becomes the canonical path.
package httpfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/vfs"
)

// Resolver resolves http and https locations.
type Resolver struct {
	client *retryablehttp.Client
}

// NewResolver creates an HTTP resolver with retry and timeout defaults.
func NewResolver(logger *logging.Logger) *Resolver {
	client := retryablehttp.NewClient()
	client.RetryMax = constants.HTTPRetryMax
	client.HTTPClient.Timeout = constants.HTTPTimeout
	client.Logger = retryLogger{logger}
	return &Resolver{client: client}
}

// retryLogger adapts the zerolog wrapper to retryablehttp's leveled
// interface. Retry chatter goes to debug.
type retryLogger struct {
	l *logging.Logger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debug().Fields(kv).Msg(msg) }

// Resolve implements vfs.Resolver. It probes the URL with a HEAD request
// (falling back to GET for servers that reject HEAD) and classifies the
// response: 401 maps to an authentication error, 404 to a handle that does
// not exist, HTML content to a browsable container.
func (r *Resolver) Resolve(ctx context.Context, loc location.Location) (vfs.Handle, error) {
	h := &Handle{loc: loc, client: r.client}

	resp, err := h.probe(ctx, http.MethodHead)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp.Body.Close()
		resp, err = h.probe(ctx, http.MethodGet)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, vfs.NewAuthError(loc, fmt.Errorf("server returned %s", resp.Status))
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", loc.Redacted(), vfs.ErrPermissionDenied)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		h.exists = false
		return h, nil
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s: unexpected status %s", loc.Redacted(), resp.Status)
	}

	h.exists = true
	h.html = strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html")
	h.finalURL = resp.Request.URL.String()
	return h, nil
}

// Handle is a resolved http/https URL.
type Handle struct {
	loc    location.Location
	client *retryablehttp.Client

	exists   bool
	html     bool
	finalURL string // URL after redirects, "" if the probe 404ed
}

// rawURL rebuilds the request URL from the location, without credentials;
// those travel in the Authorization header.
func (h *Handle) rawURL() string {
	return h.loc.Scheme() + "://" + h.loc.Host() + h.loc.Path()
}

func (h *Handle) probe(ctx context.Context, method string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, h.rawURL(), nil)
	if err != nil {
		return nil, err
	}
	if creds := h.loc.Credentials(); !creds.IsEmpty() {
		req.SetBasicAuth(creds.User, creds.Password)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", h.loc.Redacted(), err)
	}
	return resp, nil
}

// Location implements vfs.Handle.
func (h *Handle) Location() location.Location { return h.loc }

// Exists implements vfs.Handle using the probe result.
func (h *Handle) Exists(ctx context.Context) (bool, error) { return h.exists, nil }

// IsDirectory implements vfs.Handle: URLs are never plain directories.
func (h *Handle) IsDirectory() bool { return false }

// IsBrowsable implements vfs.Handle: HTML pages are browsable containers.
func (h *Handle) IsBrowsable() bool { return h.html }

// CanRead implements vfs.Handle. An existing URL that probed successfully is
// readable.
func (h *Handle) CanRead(ctx context.Context) (bool, error) { return h.exists, nil }

// CanonicalPath implements vfs.Handle: the URL after redirects.
func (h *Handle) CanonicalPath(ctx context.Context) (string, error) {
	if h.finalURL == "" {
		return h.rawURL(), nil
	}
	return h.finalURL, nil
}

// Parent implements vfs.Handle without network I/O.
func (h *Handle) Parent() (vfs.Handle, bool) {
	parentLoc, ok := h.loc.Parent()
	if !ok {
		return nil, false
	}
	// Parents of URL paths are assumed to exist and be browsable; anything
	// else surfaces on the next probe.
	return &Handle{loc: parentLoc, client: h.client, exists: true, html: true}, true
}

// List implements vfs.Handle by fetching the page and collecting its links.
// Only same-host links at or below the page's path are treated as children.
func (h *Handle) List(ctx context.Context) ([]vfs.Entry, error) {
	resp, err := h.probe(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, vfs.NewAuthError(h.loc, fmt.Errorf("server returned %s", resp.Status))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: unexpected status %s", h.loc.Redacted(), resp.Status)
	}

	// The page is being listed as a container: force a trailing slash so
	// relative hrefs resolve below it rather than beside it.
	base := *resp.Request.URL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	hrefs, err := extractLinks(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", h.loc.Redacted(), err)
	}

	seen := make(map[string]vfs.Entry)
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			continue
		}
		child, dir, ok := childName(base.Path, abs.Path)
		if !ok {
			continue
		}
		if _, dup := seen[child]; dup {
			continue
		}
		seen[child] = vfs.Entry{
			Name:      child,
			Location:  h.loc.WithPath(strings.TrimSuffix(base.Path, "/") + "/" + child),
			Directory: dir,
		}
	}

	out := make([]vfs.Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// childName extracts the immediate child segment of base from target, with a
// directory hint from a trailing slash. Returns ok=false for the page
// itself, parent links and unrelated paths.
func childName(base, target string) (name string, dir bool, ok bool) {
	b := strings.TrimSuffix(base, "/")
	t := strings.TrimSuffix(target, "/")
	if t == b || !strings.HasPrefix(t, b+"/") {
		return "", false, false
	}
	rest := t[len(b)+1:]
	seg, _, nested := strings.Cut(rest, "/")
	if seg == "" || seg == ".." {
		return "", false, false
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return seg, nested || strings.HasSuffix(target, "/"), true
}

// extractLinks collects href attributes of anchor tags.
func extractLinks(body io.Reader) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					out = append(out, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}
