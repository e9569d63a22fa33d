package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spall/spall/internal/config"
	"github.com/spall/spall/internal/daemon"
)

// doctorCheck is one read-only diagnostic result.
type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check data-dir writability, lock-file staleness, and model cache presence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	workspaceDir, ok := config.FindWorkspaceDir(cwd)
	if !ok {
		workspaceDir = cwd
	}
	dataDir, cacheDir := config.Dirs(workspaceDir)

	checks := []doctorCheck{
		checkWritable("data-dir writable", dataDir),
		checkWritable("cache-dir writable", cacheDir),
		checkLock(dataDir),
		checkModelCache(cacheDir),
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(checks)
	}

	failed := false
	for _, c := range checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
			failed = true
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", mark, c.Name, c.Message)
	}
	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func checkWritable(name, dir string) doctorCheck {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return doctorCheck{Name: name, OK: false, Message: err.Error()}
	}
	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return doctorCheck{Name: name, OK: false, Message: err.Error()}
	}
	_ = os.Remove(probe)
	return doctorCheck{Name: name, OK: true, Message: dir}
}

func checkLock(dataDir string) doctorCheck {
	lock := daemon.NewLock(dataDir)
	info, err := lock.Read()
	if os.IsNotExist(err) {
		return doctorCheck{Name: "lock file", OK: true, Message: "no daemon running"}
	}
	if err != nil {
		return doctorCheck{Name: "lock file", OK: false, Message: err.Error()}
	}
	if info.Port == nil {
		return doctorCheck{Name: "lock file", OK: false, Message: fmt.Sprintf("stale: pid %d never published a port", info.PID)}
	}
	return doctorCheck{Name: "lock file", OK: true, Message: fmt.Sprintf("pid %d on port %d", info.PID, *info.Port)}
}

func checkModelCache(cacheDir string) doctorCheck {
	entries, err := os.ReadDir(filepath.Join(cacheDir, "models"))
	if os.IsNotExist(err) || (err == nil && len(entries) == 0) {
		return doctorCheck{Name: "model cache", OK: false, Message: "no model files downloaded yet"}
	}
	if err != nil {
		return doctorCheck{Name: "model cache", OK: false, Message: err.Error()}
	}
	return doctorCheck{Name: "model cache", OK: true, Message: fmt.Sprintf("%d file(s) cached", len(entries))}
}
