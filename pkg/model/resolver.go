package model

import (
	"context"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arlow/armature/pkg/status"
)

// AssetLookup maps a host asset key to a local file path. Absent keys
// report false.
type AssetLookup func(key string) (string, bool)

// Local is a resolved model location on disk.
type Local struct {
	Path string

	// FromCache is true when the path was served from the cache without
	// a transfer.
	FromCache bool

	// Temporary marks an uncached download; the caller owns the file and
	// removes it when done.
	Temporary bool
}

// Resolver turns Sources into local files: asset keys via the injected
// lookup, file paths via stat, URLs via the downloader with optional
// caching.
type Resolver struct {
	cache  *Cache
	dl     *Downloader
	assets AssetLookup
	log    *zap.Logger

	// flight collapses concurrent cold misses of one URL into a single
	// transfer.
	flight singleflight.Group
}

// NewResolver builds a resolver. assets may be nil when the host bundles
// no assets.
func NewResolver(cache *Cache, dl *Downloader, assets AssetLookup, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{cache: cache, dl: dl, assets: assets, log: log}
}

// Resolve returns a local file for the source. Download progress is
// reported through progress when a transfer happens; cache hits emit
// nothing.
func (r *Resolver) Resolve(ctx context.Context, src Source, progress ProgressFunc) (Local, error) {
	switch src.Kind {
	case SourceAsset:
		return r.resolveAsset(src.Path)
	case SourceFile:
		return r.resolveFile(src.Path)
	case SourceURL:
		if src.CacheRemote {
			return r.resolveCached(ctx, src.Path, progress)
		}
		return r.resolveThrowaway(ctx, src.Path, progress)
	default:
		return Local{}, status.Newf(status.InvalidArguments, "unknown source kind %q", src.Kind)
	}
}

func (r *Resolver) resolveAsset(key string) (Local, error) {
	if r.assets == nil {
		return Local{}, status.Newf(status.AssetNotFound, "no asset catalog configured, cannot resolve %q", key)
	}
	path, ok := r.assets(key)
	if !ok {
		return Local{}, status.Newf(status.AssetNotFound, "asset %q not in catalog", key)
	}
	if _, err := os.Stat(path); err != nil {
		return Local{}, status.Wrapf(status.AssetNotFound, err, "asset %q resolved to missing file %s", key, path)
	}
	return Local{Path: path}, nil
}

func (r *Resolver) resolveFile(p string) (Local, error) {
	path := localPath(p)
	fi, err := os.Stat(path)
	if err != nil {
		return Local{}, status.Wrapf(status.FileNotFound, err, "model file %s", path)
	}
	if fi.IsDir() {
		return Local{}, status.Newf(status.FileNotFound, "model path %s is a directory", path)
	}
	return Local{Path: path}, nil
}

// resolveCached serves from the cache when the entry is valid, and
// otherwise downloads once per URL regardless of how many callers are
// waiting. The first caller's context governs the shared transfer, and
// only its progress callback observes it.
func (r *Resolver) resolveCached(ctx context.Context, rawURL string, progress ProgressFunc) (Local, error) {
	if path, ok := r.cache.Lookup(rawURL); ok {
		r.log.Debug("model cache hit", zap.String("url", rawURL))
		return Local{Path: path, FromCache: true}, nil
	}

	v, err, _ := r.flight.Do(r.cache.FileName(rawURL), func() (any, error) {
		if path, ok := r.cache.Lookup(rawURL); ok {
			return path, nil
		}
		tmp, err := r.cache.TempFile(rawURL)
		if err != nil {
			return nil, err
		}
		if _, err := r.dl.Fetch(ctx, rawURL, tmp, progress); err != nil {
			return nil, err
		}
		return r.cache.Store(rawURL, tmp)
	})
	if err != nil {
		return Local{}, err
	}
	return Local{Path: v.(string)}, nil
}

// resolveThrowaway downloads to a caller-owned temp file outside the
// cache.
func (r *Resolver) resolveThrowaway(ctx context.Context, rawURL string, progress ProgressFunc) (Local, error) {
	f, err := os.CreateTemp("", "armature-model-*"+extensionFor(rawURL))
	if err != nil {
		return Local{}, status.Wrapf(status.DownloadFailed, err, "create temp file for %s", rawURL)
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Local{}, status.Wrapf(status.DownloadFailed, err, "close temp file %s", tmp)
	}

	if _, err := r.dl.Fetch(ctx, rawURL, tmp, progress); err != nil {
		return Local{}, err
	}
	return Local{Path: tmp, Temporary: true}, nil
}

// localPath strips a file:// scheme, accepting bare paths as-is.
func localPath(p string) string {
	if !strings.HasPrefix(p, "file://") {
		return p
	}
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		return u.Path
	}
	return strings.TrimPrefix(p, "file://")
}
