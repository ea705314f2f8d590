// Package location defines the addressable reference type used throughout
// the navigation core. A Location identifies a file-system object by scheme,
// host and path, optionally carrying embedded credentials and a property bag.
// Locations are immutable values: all With* methods return copies.
package location

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Supported schemes. SchemeZip addresses an entry inside a zip archive,
// with the archive path and inner path separated by "!".
const (
	SchemeFile  = "file"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeS3    = "s3"
	SchemeZip   = "zip"
)

// Credentials holds a user/password pair embedded in a Location.
type Credentials struct {
	User     string
	Password string
}

// IsEmpty returns true if no user is set.
func (c Credentials) IsEmpty() bool {
	return c.User == ""
}

// Location is an immutable reference to a file-system object.
// Two Locations are equal iff their normalized string forms match.
type Location struct {
	scheme string
	host   string
	path   string
	creds  Credentials
	props  map[string]string
}

// Parse builds a Location from a URL-like string. Strings without a scheme
// are treated as local file paths. The path component is cleaned: redundant
// separators and "." / ".." elements are removed.
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	// Bare paths (no scheme) are local files.
	if !strings.Contains(raw, "://") {
		return Location{scheme: SchemeFile, path: cleanPath(raw)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("malformed location %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return Location{}, fmt.Errorf("location %q has no scheme", raw)
	}

	loc := Location{
		scheme: strings.ToLower(u.Scheme),
		host:   strings.ToLower(u.Host),
		path:   cleanPath(u.Path),
	}
	if u.User != nil {
		pass, _ := u.User.Password()
		loc.creds = Credentials{User: u.User.Username(), Password: pass}
	}
	return loc, nil
}

// MustParse is a test/constant helper that panics on a malformed string.
func MustParse(raw string) Location {
	loc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	// Keep the zip separator intact; clean both sides independently.
	if i := strings.Index(p, "!"); i >= 0 {
		return path.Clean(strings.ReplaceAll(p[:i], "\\", "/")) + "!" + path.Clean(strings.ReplaceAll(p[i+1:], "\\", "/"))
	}
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// Scheme returns the lower-cased scheme.
func (l Location) Scheme() string { return l.scheme }

// Host returns the lower-cased host, empty for local files.
func (l Location) Host() string { return l.host }

// Path returns the cleaned path component.
func (l Location) Path() string { return l.path }

// Credentials returns the embedded credentials, if any.
func (l Location) Credentials() Credentials { return l.creds }

// HasCredentials returns true if the Location embeds a non-empty user.
func (l Location) HasCredentials() bool { return !l.creds.IsEmpty() }

// IsZero reports whether the Location is the zero value.
func (l Location) IsZero() bool { return l.scheme == "" }

// WithCredentials returns a copy carrying the given credentials.
func (l Location) WithCredentials(c Credentials) Location {
	out := l.copy()
	out.creds = c
	return out
}

// WithPath returns a copy with the path replaced (and cleaned). Credentials
// and properties are preserved.
func (l Location) WithPath(p string) Location {
	out := l.copy()
	out.path = cleanPath(p)
	return out
}

// WithProperty returns a copy with the given property set.
func (l Location) WithProperty(key, value string) Location {
	out := l.copy()
	if out.props == nil {
		out.props = make(map[string]string, 1)
	}
	out.props[key] = value
	return out
}

// Property returns a property value and whether it is set.
func (l Location) Property(key string) (string, bool) {
	v, ok := l.props[key]
	return v, ok
}

func (l Location) copy() Location {
	out := l
	if l.props != nil {
		out.props = make(map[string]string, len(l.props))
		for k, v := range l.props {
			out.props[k] = v
		}
	}
	return out
}

// Parent returns the Location of the parent path and false when the Location
// is already a root (or a host-only remote location).
func (l Location) Parent() (Location, bool) {
	p := l.path
	if i := strings.Index(p, "!"); i >= 0 {
		inner := p[i+1:]
		if inner == "/" || inner == "." {
			// Parent of the archive root is the archive file itself.
			parent := l.copy()
			parent.scheme = SchemeFile
			parent.host = ""
			parent.path = p[:i]
			return parent, true
		}
		parent := l.copy()
		parent.path = p[:i] + "!" + path.Dir(inner)
		return parent, true
	}
	if p == "/" || p == "." || p == "" {
		return Location{}, false
	}
	parent := l.copy()
	parent.path = path.Dir(p)
	return parent, true
}

// WithCanonical rebuilds the Location from a canonical path while keeping
// credentials and properties. The canonical form may be a bare path (symlink
// resolution) or a full URL (redirect following), in which case scheme and
// host are replaced too.
func (l Location) WithCanonical(canonical string) (Location, error) {
	if !strings.Contains(canonical, "://") {
		return l.WithPath(canonical), nil
	}
	parsed, err := Parse(canonical)
	if err != nil {
		return Location{}, err
	}
	out := l.copy()
	out.scheme = parsed.scheme
	out.host = parsed.host
	out.path = parsed.path
	return out, nil
}

// String returns the normalized form, including embedded credentials.
// Use Redacted for anything that ends up in logs.
func (l Location) String() string {
	var sb strings.Builder
	sb.WriteString(l.scheme)
	sb.WriteString("://")
	if !l.creds.IsEmpty() {
		sb.WriteString(url.User(l.creds.User).String())
		if l.creds.Password != "" {
			sb.WriteString(":")
			sb.WriteString(l.creds.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(l.host)
	sb.WriteString(l.path)
	if len(l.props) > 0 {
		keys := make([]string, 0, len(l.props))
		for k := range l.props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sep := "?"
		for _, k := range keys {
			sb.WriteString(sep)
			sb.WriteString(url.QueryEscape(k))
			sb.WriteString("=")
			sb.WriteString(url.QueryEscape(l.props[k]))
			sep = "&"
		}
	}
	return sb.String()
}

// Redacted returns the normalized form with the password masked.
func (l Location) Redacted() string {
	if l.creds.Password == "" {
		return l.String()
	}
	masked := l.copy()
	masked.creds.Password = "xxxxx"
	return masked.String()
}

// Equal reports whether two Locations have the same normalized string form.
// Embedded credentials and properties participate in equality, matching the
// "normalized string forms match" contract.
func (l Location) Equal(other Location) bool {
	return l.String() == other.String()
}

// SameResource reports whether two Locations address the same object,
// ignoring credentials and properties. The history store and the
// browse-or-download heuristic compare with this weaker form so that the
// same folder visited with different credentials is still recognized.
func (l Location) SameResource(other Location) bool {
	return l.scheme == other.scheme && l.host == other.host && l.path == other.path
}
