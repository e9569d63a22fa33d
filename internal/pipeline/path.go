package pipeline

import "strings"

// CanonicalPath normalizes a stored path per spec.md §4.2: backslashes
// become forward slashes, runs of "/" collapse, and leading "./" plus
// leading/trailing "/" are stripped.
func CanonicalPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")

	var b strings.Builder
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	p = b.String()

	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	return p
}

// JoinStoredPath combines an optional prefix with a path relative to
// the scanned root, producing the canonical stored path.
func JoinStoredPath(prefix, relative string) string {
	relative = CanonicalPath(relative)
	if prefix == "" {
		return relative
	}
	return CanonicalPath(prefix + "/" + relative)
}
