package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spall/spall/internal/bus"
	"github.com/spall/spall/internal/config"
	"github.com/spall/spall/internal/daemon"
	"github.com/spall/spall/internal/logging"
	"github.com/spall/spall/internal/model"
	"github.com/spall/spall/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		persist     bool
		force       bool
		idleTimeout time.Duration
		dims        int
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the spall daemon for the current workspace",
		Long: `serve starts (or defers to an already-running) daemon for the
workspace rooted at the nearest ancestor directory containing .spall/,
binding an ephemeral HTTP port and publishing it to the lock file at
{data-dir}/server.lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, runServeOpts{
				persist:     persist,
				force:       force,
				idleTimeout: idleTimeout,
				dims:        dims,
				debug:       debug,
			})
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "Never idle-shutdown")
	cmd.Flags().BoolVar(&force, "force", false, "Take over the workspace lock from an unhealthy daemon")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "Idle-shutdown window (0 uses the default)")
	cmd.Flags().IntVar(&dims, "dims", 256, "Embedding vector dimensionality")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level rotating file logging")

	return cmd
}

type runServeOpts struct {
	persist     bool
	force       bool
	idleTimeout time.Duration
	dims        int
	debug       bool
}

func runServe(cmd *cobra.Command, opts runServeOpts) error {
	ctx := cmd.Context()

	logCfg := logging.DefaultConfig()
	if opts.debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	workspaceDir, ok := config.FindWorkspaceDir(cwd)
	if !ok {
		workspaceDir = cwd
	}

	wsCfg, err := config.Load(workspaceDir)
	if err != nil {
		return fmt.Errorf("load workspace config: %w", err)
	}

	dataDir, cacheDir := config.Dirs(workspaceDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	dCfg := daemon.ConfigFromEnv(daemon.Config{
		DataDir:     dataDir,
		IdleTimeout: opts.idleTimeout,
		Persist:     opts.persist,
		Force:       opts.force,
	})

	b := bus.New()

	s, err := store.Open(ctx, store.Config{
		DataDir:       dataDir,
		EmbeddingDims: opts.dims,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	m := model.New(model.Config{
		ModelDir:   filepath.Join(cacheDir, "models"),
		Dimensions: opts.dims,
	}, b)

	d := daemon.New(dCfg, s, m, b)

	selfPID := os.Getpid()
	result, err := d.Start(ctx, selfPID)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("start daemon: %w", err)
	}
	if !result.Leader {
		_ = s.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "daemon already running for %s (%s): %s\n",
			wsCfg.Workspace.Name, workspaceDir, result.BaseURL)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "spall serving %s\n", workspaceDir)
	d.WaitForSignal(selfPID)
	return nil
}
