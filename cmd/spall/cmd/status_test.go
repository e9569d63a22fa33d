package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStatusNotRunningPlainText(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, renderStatus(cmd, statusInfo{}, false))
	assert.Contains(t, out.String(), "no daemon running")
}

func TestRenderStatusRunningPlainText(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	info := statusInfo{Running: true, PID: 42, BaseURL: "http://127.0.0.1:9999", Workspaces: 2, Corpora: 3}
	require.NoError(t, renderStatus(cmd, info, false))
	assert.Contains(t, out.String(), "pid 42")
	assert.Contains(t, out.String(), "workspaces: 2, corpora: 3")
}

func TestRenderStatusJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	info := statusInfo{Running: true, PID: 7}
	require.NoError(t, renderStatus(cmd, info, true))

	var decoded statusInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, info, decoded)
}

func TestCountJSONArrayCountsElements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer srv.Close()

	n, err := countJSONArray(srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCountJSONArrayEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	n, err := countJSONArray(srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunStatusNoWorkspaceReportsNotRunning(t *testing.T) {
	t.Setenv("SPALL_DATA_DIR", t.TempDir())

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, runStatus(cmd, false))
	assert.Contains(t, out.String(), "no daemon running")
}
