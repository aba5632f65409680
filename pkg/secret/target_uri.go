package secret

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
	"ftp":   21,
	"ssh":   22,
	"git":   9418,
}

// TargetURI identifies the resource credentials are requested for.
//
// The query URI drives routing and storage keys. The proxy URI, when set, is used for
// outbound requests. The actual URI is the literal remote the caller invoked with and is
// only kept for display.
type TargetURI struct {
	query  *url.URL
	proxy  *url.URL
	actual *url.URL
}

// NewTargetURI parses an absolute URI. Surrounding whitespace is ignored.
func NewTargetURI(raw string) (TargetURI, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return TargetURI{}, err
	}
	return TargetURI{query: u}, nil
}

// MustTargetURI is NewTargetURI for literals known to be valid.
func MustTargetURI(raw string) TargetURI {
	t, err := NewTargetURI(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// WithProxy returns a copy that routes requests through proxy. An empty proxy clears it.
func (t TargetURI) WithProxy(proxy string) (TargetURI, error) {
	if strings.TrimSpace(proxy) == "" {
		t.proxy = nil
		return t, nil
	}
	u, err := parseAbsolute(proxy)
	if err != nil {
		return TargetURI{}, fmt.Errorf("proxy: %w", err)
	}
	t.proxy = u
	return t, nil
}

// WithActual returns a copy remembering the literal remote the caller used.
func (t TargetURI) WithActual(actual string) (TargetURI, error) {
	u, err := parseAbsolute(actual)
	if err != nil {
		return TargetURI{}, fmt.Errorf("actual: %w", err)
	}
	t.actual = u
	return t, nil
}

// Validate reports ErrInvalidTargetURI for the zero value.
func (t TargetURI) Validate() error {
	if t.query == nil || !t.query.IsAbs() || t.query.Hostname() == "" {
		return ErrInvalidTargetURI
	}
	return nil
}

// IsZero reports whether t was never initialised.
func (t TargetURI) IsZero() bool { return t.query == nil }

func (t TargetURI) Scheme() string {
	if t.query == nil {
		return ""
	}
	return strings.ToLower(t.query.Scheme)
}

// Host is the lower-cased host name without port, trailing separators or whitespace.
func (t TargetURI) Host() string {
	if t.query == nil {
		return ""
	}
	return trimHost(t.query.Hostname())
}

// Port returns the explicit port or the scheme default, -1 when neither is known.
func (t TargetURI) Port() int {
	if t.query == nil {
		return -1
	}
	if p := t.query.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if n, ok := defaultPorts[t.Scheme()]; ok {
		return n
	}
	return -1
}

// IsDefaultPort reports whether Port is the scheme default.
func (t TargetURI) IsDefaultPort() bool {
	if t.query == nil {
		return false
	}
	if t.query.Port() == "" {
		return true
	}
	n, ok := defaultPorts[t.Scheme()]
	return ok && n == t.Port()
}

// AbsolutePath is the URI path, "/" when empty.
func (t TargetURI) AbsolutePath() string {
	if t.query == nil || t.query.Path == "" {
		return "/"
	}
	return t.query.Path
}

// Username is the userinfo name embedded in the query URI, if any.
func (t TargetURI) Username() string {
	if t.query == nil || t.query.User == nil {
		return ""
	}
	return t.query.User.Username()
}

// QueryURI returns a copy of the query URI.
func (t TargetURI) QueryURI() *url.URL { return cloneURL(t.query) }

// ProxyURI returns a copy of the proxy URI or nil.
func (t TargetURI) ProxyURI() *url.URL { return cloneURL(t.proxy) }

// ActualURI returns the literal remote, falling back to the query URI.
func (t TargetURI) ActualURI() *url.URL {
	if t.actual != nil {
		return cloneURL(t.actual)
	}
	return cloneURL(t.query)
}

func (t TargetURI) HasProxy() bool { return t.proxy != nil }

// FormatOptions selects the optional parts rendered by Format.
type FormatOptions struct {
	Username bool
	Port     bool
	Path     bool
}

// Format renders scheme://host with the selected optional parts.
func (t TargetURI) Format(opts FormatOptions) string {
	if t.query == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.Scheme())
	b.WriteString("://")
	if opts.Username && t.Username() != "" {
		b.WriteString(url.PathEscape(t.Username()))
		b.WriteByte('@')
	}
	b.WriteString(t.Host())
	if opts.Port && !t.IsDefaultPort() && t.Port() > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(t.Port()))
	}
	if opts.Path {
		b.WriteString(t.AbsolutePath())
	}
	return b.String()
}

// String renders the query URI with its port and path.
func (t TargetURI) String() string {
	return t.Format(FormatOptions{Port: true, Path: true})
}

// Resolve returns a new target for a path relative to this one, keeping the proxy.
func (t TargetURI) Resolve(ref string) (TargetURI, error) {
	if err := t.Validate(); err != nil {
		return TargetURI{}, err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return TargetURI{}, fmt.Errorf("%w: %v", ErrInvalidTargetURI, err)
	}
	out := t
	out.query = t.query.ResolveReference(r)
	out.actual = nil
	return out, nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidTargetURI
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTargetURI, err)
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetURI, raw)
	}
	return u, nil
}

func trimHost(host string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(host, "/\\")))
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
