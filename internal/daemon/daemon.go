package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spall/spall/internal/api"
	"github.com/spall/spall/internal/bus"
	"github.com/spall/spall/internal/model"
	"github.com/spall/spall/internal/scope"
	"github.com/spall/spall/internal/store"
)

// Daemon wires the storage engine, model adapter, event bus, query
// scope and HTTP API into the single-process server of spec.md §4.4,
// plus the lock-file leader election and idle-shutdown lifecycle
// around it. It replaces the teacher's Unix-socket Server/RequestHandler
// pair (server.go, protocol.go) with an HTTP listener on an ephemeral
// port, since spec.md's transport is HTTP+SSE rather than a length-
// prefixed JSON-RPC socket protocol.
type Daemon struct {
	cfg   Config
	store *store.Store
	model *model.Adapter
	bus   *bus.Bus
	scope *scope.Scope
	lock  *Lock
	idle  *IdleMonitor

	httpServer *http.Server
	listener   net.Listener
}

// New builds a Daemon over an already-open storage engine and model
// adapter. Call Start to acquire leadership, bind a listener, and
// begin serving.
func New(cfg Config, s *store.Store, m *model.Adapter, b *bus.Bus) *Daemon {
	sc := scope.New(s, m)
	d := &Daemon{cfg: cfg, store: s, model: m, bus: b, scope: sc, lock: NewLock(cfg.DataDir)}
	d.idle = NewIdleMonitor(cfg.IdleTimeout, cfg.Persist, d.onIdle)

	server := &api.Server{Store: s, Scope: sc, Model: m, Bus: b, Idle: d.idle}
	d.httpServer = &http.Server{Handler: api.NewRouter(server)}
	return d
}

// Start runs the leader-election protocol of spec.md §4.4. If another
// healthy daemon already owns the workspace's lock, Start returns its
// base URL and Leader=false without binding anything. Otherwise it
// binds an ephemeral port, publishes it to the lock file, and begins
// serving in the background.
func (d *Daemon) Start(ctx context.Context, selfPID int) (*AcquireResult, error) {
	if d.cfg.Force {
		if err := d.lock.Force(selfPID); err != nil {
			return nil, fmt.Errorf("force takeover of lock: %w", err)
		}
	} else {
		result, err := d.lock.Acquire(selfPID)
		if err != nil {
			return nil, fmt.Errorf("acquire daemon lock: %w", err)
		}
		if !result.Leader {
			return result, nil
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = d.lock.Remove()
		return nil, fmt.Errorf("bind ephemeral port: %w", err)
	}
	d.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	if err := d.lock.PublishPort(selfPID, port); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("publish port: %w", err)
	}

	d.idle.Arm()

	go func() {
		slog.Info("daemon listening", slog.String("addr", listener.Addr().String()))
		if err := d.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("http server exited", slog.String("error", err.Error()))
		}
	}()

	return &AcquireResult{Leader: true, BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port)}, nil
}

// onIdle fires when both active_requests and active_sse have been
// zero for the configured idle timeout; it shuts the daemon down the
// same way a SIGTERM would.
func (d *Daemon) onIdle() {
	slog.Info("idle timeout elapsed, shutting down")
	d.Shutdown(context.Background(), os.Getpid())
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives, then shuts
// the daemon down and returns.
func (d *Daemon) WaitForSignal(selfPID int) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	slog.Info("received signal, shutting down", slog.String("signal", sig.String()))
	d.Shutdown(context.Background(), selfPID)
}

// Shutdown stops accepting new connections, drains in-flight ones,
// closes the storage engine and model backend, and releases the lock
// file only if it still points at this process (so a --force takeover
// by a newer daemon is never clobbered).
func (d *Daemon) Shutdown(ctx context.Context, selfPID int) {
	d.idle.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := d.model.Dispose(); err != nil {
		slog.Warn("model adapter dispose error", slog.String("error", err.Error()))
	}
	if err := d.store.Close(); err != nil {
		slog.Warn("store close error", slog.String("error", err.Error()))
	}

	if err := d.lock.ReleaseIfOwned(selfPID); err != nil {
		slog.Warn("lock release error", slog.String("error", err.Error()))
	}
}
