package model

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arlow/armature/pkg/status"
)

func TestFetchReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	dl := NewDownloader(DownloaderOptions{Logger: zaptest.NewLogger(t)})
	dest := filepath.Join(t.TempDir(), "model.glb")

	var fractions []float64
	n, err := dl.Fetch(context.Background(), srv.URL+"/model.glb", dest, func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NotEmpty(t, fractions)
	assert.Equal(t, 0.0, fractions[0])
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1], "progress went backwards")
	}
}

func TestFetchUnknownLength(t *testing.T) {
	chunk := bytes.Repeat([]byte("y"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			w.Write(chunk)
			fl.Flush()
		}
	}))
	defer srv.Close()

	dl := NewDownloader(DownloaderOptions{})
	dest := filepath.Join(t.TempDir(), "model.bin")

	var fractions []float64
	n, err := dl.Fetch(context.Background(), srv.URL, dest, func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4*len(chunk)), n)

	require.NotEmpty(t, fractions)
	assert.Equal(t, -1.0, fractions[0], "unknown length should report indeterminate")
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dl := NewDownloader(DownloaderOptions{})
	dest := filepath.Join(t.TempDir(), "model.glb")
	require.NoError(t, os.WriteFile(dest, []byte("stale partial"), 0o644))

	_, err := dl.Fetch(context.Background(), srv.URL+"/missing.glb", dest, nil)
	require.Error(t, err)
	assert.Equal(t, status.DownloadFailed, status.CodeOf(err))
	assert.NoFileExists(t, dest, "failed fetch left the destination behind")
}

func TestFetchCancelRemovesPartial(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial bytes"))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	dl := NewDownloader(DownloaderOptions{})
	dest := filepath.Join(t.TempDir(), "model.glb")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := dl.Fetch(ctx, srv.URL, dest, nil)
		errCh <- err
	}()

	<-started
	cancel()
	err := <-errCh
	require.Error(t, err)
	assert.Equal(t, status.DownloadFailed, status.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest, "canceled fetch left a partial file")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dl := NewDownloader(DownloaderOptions{Logger: zaptest.NewLogger(t)})
	dest := filepath.Join(t.TempDir(), "model.bin")

	for i := 0; i < 5; i++ {
		_, err := dl.Fetch(context.Background(), srv.URL+"/m.glb", dest, nil)
		require.Error(t, err, "attempt %d", i)
		assert.Equal(t, status.DownloadFailed, status.CodeOf(err))
	}

	// The sixth attempt is rejected without reaching the host.
	_, err := dl.Fetch(context.Background(), srv.URL+"/m.glb", dest, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, status.DownloadFailed, status.CodeOf(err))
	assert.EqualValues(t, 5, atomic.LoadInt32(&hits))
}

func TestBreakerIsPerHost(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4")
		w.Write([]byte("data"))
	}))
	defer good.Close()

	dl := NewDownloader(DownloaderOptions{})
	dir := t.TempDir()

	for i := 0; i < 6; i++ {
		dl.Fetch(context.Background(), bad.URL+"/m.glb", filepath.Join(dir, "bad.bin"), nil)
	}

	n, err := dl.Fetch(context.Background(), good.URL+"/m.glb", filepath.Join(dir, "good.bin"), nil)
	require.NoError(t, err, "open circuit on one host blocked another")
	assert.EqualValues(t, 4, n)
}

type recordingMetrics struct {
	started  int32
	finished int32
	bytes    int64
	failed   int32
}

func (m *recordingMetrics) DownloadStarted(string) { atomic.AddInt32(&m.started, 1) }
func (m *recordingMetrics) DownloadFinished(_ string, n int64, err error) {
	atomic.AddInt32(&m.finished, 1)
	atomic.AddInt64(&m.bytes, n)
	if err != nil {
		atomic.AddInt32(&m.failed, 1)
	}
}

func TestMetricsHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	m := &recordingMetrics{}
	dl := NewDownloader(DownloaderOptions{Metrics: m})

	_, err := dl.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "m.bin"), nil)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&m.started))
	assert.EqualValues(t, 1, atomic.LoadInt32(&m.finished))
	assert.EqualValues(t, 5, atomic.LoadInt64(&m.bytes))
	assert.EqualValues(t, 0, atomic.LoadInt32(&m.failed))
}
