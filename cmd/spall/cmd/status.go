package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spall/spall/internal/config"
	"github.com/spall/spall/internal/daemon"
)

// statusInfo is the CLI-facing summary of a running daemon, assembled
// from /health plus the workspace/corpus list endpoints.
type statusInfo struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid,omitempty"`
	BaseURL    string `json:"baseUrl,omitempty"`
	Workspaces int    `json:"workspaces"`
	Corpora    int    `json:"corpora"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report daemon PID and workspace/corpus counts for the current workspace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	workspaceDir, ok := config.FindWorkspaceDir(cwd)
	if !ok {
		workspaceDir = cwd
	}
	dataDir, _ := config.Dirs(workspaceDir)

	info := statusInfo{}

	lock := daemon.NewLock(dataDir)
	lockInfo, err := lock.Read()
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read lock file: %w", err)
		}
		return renderStatus(cmd, info, jsonOutput)
	}
	if lockInfo.Port == nil {
		return renderStatus(cmd, info, jsonOutput)
	}

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", *lockInfo.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		return renderStatus(cmd, info, jsonOutput)
	}
	resp.Body.Close()

	info.Running = true
	info.PID = lockInfo.PID
	info.BaseURL = baseURL

	if n, err := countJSONArray(client, baseURL+"/workspace/list"); err == nil {
		info.Workspaces = n
	}
	if n, err := countJSONArray(client, baseURL+"/corpus/list"); err == nil {
		info.Corpora = n
	}

	return renderStatus(cmd, info, jsonOutput)
}

func countJSONArray(client *http.Client, url string) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return 0, err
	}
	return len(items), nil
}

func renderStatus(cmd *cobra.Command, info statusInfo, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	if !info.Running {
		fmt.Fprintln(cmd.OutOrStdout(), "no daemon running")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "daemon running (pid %d) at %s\n", info.PID, info.BaseURL)
	fmt.Fprintf(cmd.OutOrStdout(), "workspaces: %d, corpora: %d\n", info.Workspaces, info.Corpora)
	return nil
}
