package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	spallerrors "github.com/spall/spall/internal/errors"
)

// downloadBreaker guards repeated download attempts against a
// persistently unreachable model host: once it trips, Load fails
// fast instead of waiting out a full retry backoff on every Load call.
// Its state lives in this process only and resets when the daemon
// restarts.
// Grounded on the teacher's internal/errors circuit breaker, formerly
// wrapping internal/embed's HTTP provider calls.
var downloadBreaker = spallerrors.NewCircuitBreaker("model-download",
	spallerrors.WithMaxFailures(3),
	spallerrors.WithResetTimeout(30*time.Second),
)

// downloadLock serializes model downloads across processes sharing the
// same model directory, mirroring the teacher's FileLock
// (internal/embed/lock.go) over gofrs/flock.
type downloadLock struct {
	fl *flock.Flock
}

func newDownloadLock(dir string) *downloadLock {
	return &downloadLock{fl: flock.New(filepath.Join(dir, ".download.lock"))}
}

func (l *downloadLock) lock() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("create model download lock directory: %w", err)
	}
	return l.fl.Lock()
}

func (l *downloadLock) unlock() error {
	return l.fl.Unlock()
}

// downloadFile fetches url to destPath, reporting progress via
// onProgress as bytes arrive. Downloads are skipped entirely when
// destPath already exists — the adapter never re-downloads a model
// it finds on disk. The fetch itself retries transient failures with
// backoff, all gated by downloadBreaker so a persistently unreachable
// host fails fast on subsequent calls instead of retrying every time.
func downloadFile(ctx context.Context, url, destPath string, onProgress func(read, total int64)) error {
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	if !downloadBreaker.Allow() {
		return fmt.Errorf("download %q: %w", url, spallerrors.ErrCircuitOpen)
	}

	return downloadBreaker.Execute(func() error {
		return spallerrors.Retry(ctx, spallerrors.DefaultRetryConfig(), func() error {
			return fetchOnce(url, destPath, onProgress)
		})
	})
}

func fetchOnce(url, destPath string, onProgress func(read, total int64)) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("download %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %q: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	tmp := destPath + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}

	total := resp.ContentLength
	var read int64
	pr := &progressReader{r: resp.Body, onRead: func(n int64) {
		read += n
		if onProgress != nil {
			onProgress(read, total)
		}
	}}

	if _, err := io.Copy(f, pr); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write model file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, destPath)
}

type progressReader struct {
	r      io.Reader
	onRead func(n int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.onRead(int64(n))
	}
	return n, err
}
