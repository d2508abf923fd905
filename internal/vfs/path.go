package vfs

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPathLen bounds absolute paths so every storage engine can index them.
const MaxPathLen = 767

// Segments may not contain separators, backslashes, NUL or other control
// characters, so "a//b" and "a\b" are rejected. U+10FFFF is the storage range
// sentinel and is not allowed either.
var folderPathGrammar = regexp.MustCompile(`^/?(?:[^/\\\x00-\x1f\x7f\x{10FFFF}]+/)*[^/\\\x00-\x1f\x7f\x{10FFFF}]*$`)

// IsFolderPath reports whether p is syntactically a path. p must be valid
// UTF-8. "." and ".." segments are not allowed; callers resolve them first
// with Resolve.
func IsFolderPath(p string) bool {
	if len(p) > MaxPathLen || !utf8.ValidString(p) || !folderPathGrammar.MatchString(p) {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func IsAbsolutePath(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Resolve interprets p relative to base and returns a clean absolute path.
func Resolve(base, p string) string {
	if base == "" {
		base = "/"
	}
	if p == "" {
		return path.Clean(base)
	}
	if IsAbsolutePath(p) {
		return path.Clean(p)
	}
	return path.Join(base, p)
}

// normalize drops a trailing separator so "/a/" and "/a" name one entry.
func normalize(p string) string {
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

// split returns the non-empty segments of p.
func split(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

// parentOf returns the parent of an absolute path given its segments.
func parentOf(parts []string) string {
	if len(parts) <= 1 {
		return "/"
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/")
}

// Join appends p to base without cleaning, so malformed input such as "a//b"
// still fails validation in the absolute form.
func Join(base, p string) string {
	if IsAbsolutePath(p) {
		return p
	}
	if base == "/" || base == "" {
		return "/" + p
	}
	return strings.TrimSuffix(base, "/") + "/" + p
}
