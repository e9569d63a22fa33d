package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall/spall/internal/bus"
	"github.com/spall/spall/internal/model"
	"github.com/spall/spall/internal/store"
)

func newTestDaemon(t *testing.T, dataDir string) *Daemon {
	t.Helper()
	s, err := store.OpenInMemory(context.Background(), dataDir, 8)
	require.NoError(t, err)

	b := bus.New()
	m := model.New(model.Config{ModelDir: filepath.Join(dataDir, "models"), Dimensions: 8}, b)

	cfg := ConfigFromEnv(Config{DataDir: dataDir, IdleTimeout: 100 * time.Millisecond, Persist: true})
	return New(cfg, s, m, b)
}

func TestDaemonStartBecomesLeaderAndServesHealth(t *testing.T) {
	dir := t.TempDir()
	d := newTestDaemon(t, dir)

	result, err := d.Start(context.Background(), os.Getpid())
	require.NoError(t, err)
	require.True(t, result.Leader)
	require.NotEmpty(t, result.BaseURL)

	client := http.Client{Timeout: time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var herr error
		resp, herr = client.Get(result.BaseURL + "/health")
		return herr == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	d.Shutdown(context.Background(), os.Getpid())

	_, err = os.Stat(NewLock(dir).Path())
	assert.True(t, os.IsNotExist(err), "lock file should be removed on shutdown")
}

func TestDaemonStartDefersToExistingLeader(t *testing.T) {
	dir := t.TempDir()
	leader := newTestDaemon(t, dir)
	result, err := leader.Start(context.Background(), os.Getpid())
	require.NoError(t, err)
	require.True(t, result.Leader)
	defer leader.Shutdown(context.Background(), os.Getpid())

	client := http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, herr := client.Get(result.BaseURL + "/health")
		if herr != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	follower := newTestDaemon(t, dir)
	followerResult, err := follower.Start(context.Background(), os.Getpid()+1)
	require.NoError(t, err)
	assert.False(t, followerResult.Leader)
	assert.Equal(t, result.BaseURL, followerResult.BaseURL)
}

func TestDaemonIdleTimeoutShutsItselfDown(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenInMemory(context.Background(), dir, 8)
	require.NoError(t, err)

	b := bus.New()
	m := model.New(model.Config{ModelDir: filepath.Join(dir, "models"), Dimensions: 8}, b)
	cfg := Config{DataDir: dir, IdleTimeout: 50 * time.Millisecond, Persist: false}
	d := New(cfg, s, m, b)

	result, err := d.Start(context.Background(), os.Getpid())
	require.NoError(t, err)
	require.True(t, result.Leader)

	require.Eventually(t, func() bool {
		_, err := os.Stat(NewLock(dir).Path())
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "idle timeout should release the lock")
}
