package model

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/status"
)

const (
	defaultConnectTimeout = 15 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// ProgressFunc receives transfer progress: the completed fraction in
// [0, 1], or -1 when the total size is unknown.
type ProgressFunc func(fraction float64)

// DownloaderOptions configures transfer behavior. Zero values take
// defaults.
type DownloaderOptions struct {
	// ConnectTimeout bounds dialing; RequestTimeout bounds the whole
	// transfer including the body.
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	Logger  *zap.Logger
	Metrics Metrics
}

// Downloader fetches URLs to local files. Each remote host gets a
// circuit breaker so a dead host fails fast instead of eating the full
// timeout on every attempt.
type Downloader struct {
	client  *http.Client
	log     *zap.Logger
	metrics Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewDownloader builds a downloader with its own HTTP client.
func NewDownloader(o DownloaderOptions) *Downloader {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return &Downloader{
		client: &http.Client{
			Timeout: o.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: o.ConnectTimeout,
				}).DialContext,
			},
		},
		log:      o.Logger,
		metrics:  o.Metrics,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// breakerFor returns the host's breaker, creating it on first use.
// Thresholds are generous: five consecutive failures open the circuit,
// and cancellations do not count against the host.
func (d *Downloader) breakerFor(host string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[host]; ok {
		return cb
	}
	log := d.log
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("download breaker state changed",
				zap.String("host", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	d.breakers[host] = cb
	return cb
}

// Fetch downloads rawURL to dest, reporting progress per chunk. On any
// failure (including cancellation) dest is removed and the number of
// bytes written is zero.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string, progress ProgressFunc) (int64, error) {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	d.metrics.DownloadStarted(rawURL)
	res, err := d.breakerFor(host).Execute(func() (any, error) {
		return d.fetch(ctx, rawURL, dest, progress)
	})
	if err != nil {
		os.Remove(dest)
		d.metrics.DownloadFinished(rawURL, 0, err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, status.Wrapf(status.DownloadFailed, err, "host %s unavailable", host)
		}
		var se *status.Error
		if errors.As(err, &se) {
			return 0, err
		}
		return 0, status.Wrapf(status.DownloadFailed, err, "download %s", rawURL)
	}

	n := res.(int64)
	d.metrics.DownloadFinished(rawURL, n, nil)
	return n, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL, dest string, progress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, status.Wrapf(status.DownloadFailed, err, "build request for %s", rawURL)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, status.Wrapf(status.DownloadFailed, err, "fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, status.Newf(status.DownloadFailed, "fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, status.Wrapf(status.DownloadFailed, err, "open %s", dest)
	}

	w := &progressWriter{dst: f, total: resp.ContentLength, report: progress}
	w.emit()
	n, err := io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, status.Wrapf(status.DownloadFailed, err, "transfer %s", rawURL)
	}
	if progress != nil {
		progress(1)
	}

	d.log.Debug("model downloaded",
		zap.String("url", rawURL),
		zap.Int64("bytes", n))
	return n, nil
}

// progressWriter counts bytes into the destination and reports the
// completed fraction, or -1 throughout when the total is unknown.
type progressWriter struct {
	dst     io.Writer
	total   int64
	written int64
	report  ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)
	if n > 0 {
		w.emit()
	}
	return n, err
}

func (w *progressWriter) emit() {
	if w.report == nil {
		return
	}
	if w.total <= 0 {
		w.report(-1)
		return
	}
	f := float64(w.written) / float64(w.total)
	if f > 1 {
		f = 1
	}
	w.report(f)
}
