// Package model resolves 3D model sources to local files. Bundled assets
// go through an injected lookup, file paths are verified on disk, and
// remote URLs are downloaded with optional caching under deterministic
// names derived from the URL.
package model

import (
	"net/url"

	"github.com/arlow/armature/pkg/status"
)

// SourceKind names where model bytes come from.
type SourceKind string

const (
	// SourceAsset is a key into the host's bundled asset catalog.
	SourceAsset SourceKind = "asset"
	// SourceFile is a path on the local filesystem, bare or file://.
	SourceFile SourceKind = "file"
	// SourceURL is an http(s) URL.
	SourceURL SourceKind = "url"
)

// Source identifies a model. It is an immutable value; two sources are
// the same model when Kind and Path match, regardless of CacheRemote.
type Source struct {
	Kind SourceKind
	Path string

	// CacheRemote keeps downloaded bytes in the model cache. Only
	// meaningful for SourceURL.
	CacheRemote bool
}

// Equal reports identity by (Kind, Path).
func (s Source) Equal(o Source) bool {
	return s.Kind == o.Kind && s.Path == o.Path
}

// ParseSource validates host input into a Source. URL sources must parse
// and use an http or https scheme; every kind requires a non-empty path.
func ParseSource(kind, path string, cacheRemote bool) (Source, error) {
	if path == "" {
		return Source{}, status.Newf(status.InvalidArguments, "empty %s source path", kind)
	}
	switch SourceKind(kind) {
	case SourceAsset, SourceFile:
		return Source{Kind: SourceKind(kind), Path: path, CacheRemote: cacheRemote}, nil
	case SourceURL:
		u, err := url.Parse(path)
		if err != nil {
			return Source{}, status.Wrapf(status.InvalidURL, err, "parse %q", path)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return Source{}, status.Newf(status.InvalidURL, "unsupported scheme %q in %q", u.Scheme, path)
		}
		if u.Host == "" {
			return Source{}, status.Newf(status.InvalidURL, "missing host in %q", path)
		}
		return Source{Kind: SourceURL, Path: path, CacheRemote: cacheRemote}, nil
	default:
		return Source{}, status.Newf(status.InvalidArguments, "unknown source kind %q", kind)
	}
}
