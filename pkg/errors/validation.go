package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// refRegex matches tree refs and record ids issued by the backend:
// alphanumerics with dashes, underscores, dots or colons.
var refRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// ValidateRef checks a tree ref or record id before it is placed in a URL
// path. Refs are at most 128 characters and may not contain "..".
func ValidateRef(ref string) error {
	if ref == "" {
		return New(ErrCodeInvalidRef, "ref cannot be empty")
	}
	if len(ref) > 128 {
		return New(ErrCodeInvalidRef, "ref too long (max 128 characters)")
	}
	for _, r := range ref {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidRef, "ref contains invalid control characters")
		}
	}
	if strings.Contains(ref, "..") {
		return New(ErrCodeInvalidRef, "ref contains invalid characters: %q", "..")
	}
	if !refRegex.MatchString(ref) {
		return New(ErrCodeInvalidRef, "invalid ref: %q", ref)
	}
	return nil
}

// ValidateDepth checks a traversal depth against the allowed window.
func ValidateDepth(name string, depth, maxDepth int) error {
	if depth < 0 || depth > maxDepth {
		return New(ErrCodeInvalidDepth, "%s must be between 0 and %d, got %d", name, maxDepth, depth)
	}
	return nil
}

// ValidateURL checks that rawURL is an absolute http or https URL with a
// host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}
	return nil
}
