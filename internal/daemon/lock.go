package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockInfo is the JSON content of the daemon's lock file, per spec.md
// §4.4: a pid plus the ephemeral port it ends up bound to (null while
// the leader is still starting).
type LockInfo struct {
	PID  int  `json:"pid"`
	Port *int `json:"port"`
}

// Lock manages the leader-election lock file at {data-dir}/server.lock.
type Lock struct {
	path string
}

// NewLock creates a Lock manager rooted at dataDir.
func NewLock(dataDir string) *Lock {
	return &Lock{path: filepath.Join(dataDir, "server.lock")}
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }

// Read reads and parses the current lock contents.
func (l *Lock) Read() (*LockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	return &info, nil
}

// createExclusive attempts an exclusive create of the lock file with
// the given contents, failing if it already exists.
func (l *Lock) createExclusive(info LockInfo) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// write overwrites the lock file's contents unconditionally — used by
// the leader once it owns the file (after createExclusive or --force).
func (l *Lock) write(info LockInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}

// Remove deletes the lock file. Returns nil if it doesn't exist.
func (l *Lock) Remove() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AcquireResult reports the outcome of Acquire.
type AcquireResult struct {
	Leader  bool
	BaseURL string // set when Leader is false
}

// Acquire runs the leader-election protocol of spec.md §4.4: attempt
// an exclusive create; on failure, inspect the existing lock and
// decide whether to wait for its owner, reclaim a stale one, or
// become the leader after a raced-away file.
func (l *Lock) Acquire(selfPID int) (*AcquireResult, error) {
	for {
		if err := l.createExclusive(LockInfo{PID: selfPID, Port: nil}); err == nil {
			return &AcquireResult{Leader: true}, nil
		} else if !os.IsExist(err) {
			return nil, err
		}

		info, err := l.Read()
		if err != nil {
			if os.IsNotExist(err) {
				continue // raced away, retry from 1
			}
			return nil, err
		}

		if info.Port != nil {
			baseURL := fmt.Sprintf("http://127.0.0.1:%d", *info.Port)
			if healthOK(baseURL) {
				return &AcquireResult{Leader: false, BaseURL: baseURL}, nil
			}
			_ = l.Remove()
			continue
		}

		if !processAlive(info.PID) {
			_ = l.Remove()
			continue
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Force implements --force: reads the existing lock, takes it over
// unconditionally, signals the prior owner, and waits up to ~2s for it
// to die. It does not probe the prior owner's /health before taking
// over.
func (l *Lock) Force(selfPID int) error {
	info, err := l.Read()
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := l.write(LockInfo{PID: selfPID, Port: nil}); err != nil {
		return err
	}

	if info != nil && info.PID != selfPID {
		_ = signalProcess(info.PID, syscall.SIGTERM)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if !processAlive(info.PID) {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	return nil
}

// PublishPort rewrites the lock with the bound port once the server
// is ready to accept connections.
func (l *Lock) PublishPort(selfPID, port int) error {
	return l.write(LockInfo{PID: selfPID, Port: &port})
}

// ReleaseIfOwned removes the lock only if its pid still equals self,
// so a --force takeover by another process is never clobbered.
func (l *Lock) ReleaseIfOwned(selfPID int) error {
	info, err := l.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.PID != selfPID {
		return nil
	}
	return l.Remove()
}

// WaitForPort polls a still-starting leader's lock for its published
// port, up to ~2s (40 x 50ms) per spec.md §5.
func (l *Lock) WaitForPort() (string, error) {
	for i := 0; i < 40; i++ {
		info, err := l.Read()
		if err == nil && info.Port != nil {
			return fmt.Sprintf("http://127.0.0.1:%d", *info.Port), nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return "", fmt.Errorf("timed out waiting for daemon to publish its port")
}

func healthOK(baseURL string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
