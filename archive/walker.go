// Package archive walks content bundles packed with "archive/zip".
package archive

import (
	"archive/zip"
	"context"
	"path"
	"strings"
)

// WalkFunc is called for every entry of the bundle which satisfies match
// condition. Archive is the path passed to Walk. Returning error stops the
// walk.
type WalkFunc func(archive string, file *zip.File) error

// Match decides whether entry with the given slash separated name is visited.
type Match func(name string) bool

// Under matches entries whose name starts with prefix, empty prefix matches
// everything. Matching is case sensitive as names inside zip are.
func Under(prefix string) Match {
	return func(name string) bool {
		return strings.HasPrefix(name, prefix)
	}
}

// WithExt matches entries with one of the extensions, case insensitive.
func WithExt(exts ...string) Match {
	return func(name string) bool {
		ext := path.Ext(name)
		for _, e := range exts {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
		return false
	}
}

// All matches entries satisfying every condition.
func All(ms ...Match) Match {
	return func(name string) bool {
		for _, m := range ms {
			if m != nil && !m(name) {
				return false
			}
		}
		return true
	}
}

// SkipFunc is told about entries Walk refuses to visit.
type SkipFunc func(name, reason string)

// Walk visits regular files of the bundle satisfying match in archive order.
// Entries with absolute names or ".." components are never visited, they are
// reported to skip when it is not nil. Context is checked before every entry.
func Walk(ctx context.Context, archive string, match Match, walkFn WalkFunc, skip SkipFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := f.FileHeader.Name
		if f.FileInfo().IsDir() {
			continue
		}
		if !isSafePath(name) {
			if skip != nil {
				skip(name, "unsafe path (absolute or contains path traversal)")
			}
			continue
		}
		if match != nil && !match(name) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || (len(name) > 1 && name[1] == ':') {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}
