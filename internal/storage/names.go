package storage

import (
	"net/url"
	"strings"
)

// uriParts is a loosely split URI. Editors write authorities such as
// "ssh-remote%2Bhost" that net/url rejects, so we split by hand.
type uriParts struct {
	scheme    string
	authority string
	path      string
}

func splitURI(uri string) (uriParts, bool) {
	i := strings.IndexByte(uri, ':')
	if i <= 0 || !validScheme(uri[:i]) {
		return uriParts{}, false
	}

	p := uriParts{scheme: strings.ToLower(uri[:i])}
	rest := uri[i+1:]
	if j := strings.IndexAny(rest, "?#"); j >= 0 {
		rest = rest[:j]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		j := strings.IndexByte(rest, '/')
		if j < 0 {
			p.authority = rest
			return p, true
		}
		p.authority, rest = rest[:j], rest[j:]
	}
	p.path = rest
	return p, true
}

func validScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// DisplayName returns the percent-decoded last path segment of a URI, or the
// raw URI when there is no path-like tail.
func DisplayName(uri string) string {
	path := uri
	if p, ok := splitURI(uri); ok {
		path = p.path
	}

	if name := lastSegment(decode(path)); name != "" {
		return name
	}
	return uri
}

// Describe returns a human readable location for a URI: the local path for
// host-less file URIs, with the home directory shortened to "~", and the
// decoded URI otherwise.
func Describe(uri, home string) string {
	if p, ok := splitURI(uri); ok && p.scheme == "file" && p.authority == "" {
		return AbbreviateHome(decode(p.path), home)
	}
	return decode(uri)
}

// AbbreviateHome replaces a leading home directory with "~".
func AbbreviateHome(path, home string) string {
	home = strings.TrimRight(home, "/")
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+"/") {
		return "~" + path[len(home):]
	}
	return path
}

// DecodedURI returns the percent-decoded form of a URI for matching.
func DecodedURI(uri string) string {
	return decode(uri)
}

func decode(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

func lastSegment(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return seg
		}
	}
	return ""
}
