package refresh

import (
	"fmt"
	"net/url"
	"strings"
)

// normalizeCourseURL canonicalizes a course URL so the same course
// reached through differently-cased or fragment-decorated links maps
// to one cache entry. The query string is kept: course identity often
// lives there.
func normalizeCourseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid course url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid course url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("course url has no host: %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}
