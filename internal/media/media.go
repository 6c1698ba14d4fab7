// Package media resolves scene video references into locators the host can
// open: through the static asset layer, or as opaque pass-through strings.
package media

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	ModeStatic      = "static"
	ModePassthrough = "passthrough"
)

type Resolver struct {
	mode  string
	base  string
	asURL bool
}

// ForDir resolves static references against a directory on disk, which is
// what ffmpeg needs.
func ForDir(mode, dir string) (*Resolver, error) {
	return newResolver(mode, dir, false)
}

// ForURL resolves static references against a URL prefix such as "/static",
// which is what browser clients of the preview server need.
func ForURL(mode, prefix string) (*Resolver, error) {
	return newResolver(mode, strings.TrimSuffix(prefix, "/"), true)
}

func newResolver(mode, base string, asURL bool) (*Resolver, error) {
	switch mode {
	case ModeStatic, ModePassthrough:
	default:
		return nil, fmt.Errorf("unknown media mode %q", mode)
	}
	return &Resolver{mode: mode, base: base, asURL: asURL}, nil
}

func (r *Resolver) Mode() string {
	return r.mode
}

// Resolve maps a video_file reference. URLs are never rewritten.
func (r *Resolver) Resolve(ref string) string {
	if r.mode == ModePassthrough || ref == "" || IsURL(ref) {
		return ref
	}
	rel := path.Clean("/" + filepath.ToSlash(ref))[1:]
	if r.asURL {
		return r.base + "/" + escapePath(rel)
	}
	return filepath.Join(r.base, filepath.FromSlash(rel))
}

func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
