/* Copyright 2025, Pulumi Corporation.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUPID = "UPID:pve1:00001234:00000000:65000000:vzdump:100:root@pam:"

// fakeNode serves canned Proxmox API replies keyed by "METHOD /path" and records the requests.
type fakeNode struct {
	mu       sync.Mutex
	replies  map[string]any
	requests []string
	bodies   map[string]map[string]any
}

func newFakeNode(t *testing.T, replies map[string]any) *httptest.Server {
	t.Helper()
	node := &fakeNode{replies: replies, bodies: map[string]map[string]any{}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		var body map[string]any
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		node.mu.Lock()
		node.requests = append(node.requests, key)
		node.bodies[key] = body
		data, ok := node.replies[key]
		node.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"data":null}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(server.Close)
	return server
}

func connectionArgs(url string) []string {
	return []string{"--api-url", url, "--api-user", "root@pam!ci", "--api-token", "secret", "--poll-interval", "1"}
}

func runCLI(t *testing.T, args ...string) (int, map[string]any, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), args, &stdout, &stderr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result), "stdout: %s", stdout.String())
	return code, result, stderr.String()
}

func taskStatus(exitStatus string) map[string]any {
	return map[string]any{
		"upid": testUPID, "node": "pve1", "type": "vzdump", "id": "100",
		"status": "stopped", "exitstatus": exitStatus, "starttime": 1700000000,
	}
}

func TestBackupCommand(t *testing.T) {
	t.Parallel()

	t.Run("submits without waiting", func(t *testing.T) {
		t.Parallel()

		server := newFakeNode(t, map[string]any{"POST /nodes/pve1/vzdump": testUPID})
		args := append(connectionArgs(server.URL), "backup", "--node", "pve1", "--storage", "local", "--vmid", "100")

		code, result, _ := runCLI(t, args...)
		require.Equal(t, 0, code, result)

		assert.Equal(t, true, result["changed"])
		assert.Equal(t, testUPID, result["task_id"])
		assert.Nil(t, result["status"])
	})

	t.Run("waits for a successful task", func(t *testing.T) {
		t.Parallel()

		server := newFakeNode(t, map[string]any{
			"POST /nodes/pve1/vzdump":                      testUPID,
			"GET /nodes/pve1/tasks/" + testUPID + "/status": taskStatus("OK"),
		})
		args := append(connectionArgs(server.URL),
			"backup", "--node", "pve1", "--storage", "local", "--vmid", "100", "--mode", "snapshot", "--wait")

		code, result, _ := runCLI(t, args...)
		require.Equal(t, 0, code, result)

		status, ok := result["status"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "stopped", status["status"])
		assert.Equal(t, "OK", status["exitstatus"])
	})

	t.Run("task failure is reported with its status", func(t *testing.T) {
		t.Parallel()

		server := newFakeNode(t, map[string]any{
			"POST /nodes/pve1/vzdump":                      testUPID,
			"GET /nodes/pve1/tasks/" + testUPID + "/status": taskStatus("job errors"),
		})
		args := append(connectionArgs(server.URL),
			"backup", "--node", "pve1", "--storage", "local", "--vmid", "100", "--wait")

		code, result, _ := runCLI(t, args...)
		assert.Equal(t, 1, code)

		assert.Equal(t, true, result["failed"])
		assert.Contains(t, result["msg"], "job errors")
		assert.Equal(t, testUPID, result["task_id"])
		status, ok := result["status"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "job errors", status["exitstatus"])
	})

	t.Run("invalid mode fails before any request", func(t *testing.T) {
		t.Parallel()

		server := newFakeNode(t, map[string]any{})
		args := append(connectionArgs(server.URL),
			"backup", "--node", "pve1", "--storage", "local", "--vmid", "100", "--mode", "fast")

		code, result, _ := runCLI(t, args...)
		assert.Equal(t, 1, code)
		assert.Equal(t, true, result["failed"])
		assert.Contains(t, result["msg"], "backup mode")
	})
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	server := newFakeNode(t, map[string]any{
		"GET /nodes/pve1/storage": []map[string]any{{"storage": "local"}, {"storage": "pbs"}},
		"GET /nodes/pve1/storage/local/content": []map[string]any{
			{"volid": "local:backup/vzdump-qemu-100-old.vma.zst", "vmid": 100, "ctime": 1000, "content": "backup"},
			{"volid": "local:backup/vzdump-qemu-101-new.vma.zst", "vmid": 101, "ctime": 3000, "content": "backup"},
		},
		"GET /nodes/pve1/storage/pbs/content": []map[string]any{
			{"volid": "pbs:backup/vm/100/2024-01-01T00:00:00Z", "vmid": 100, "ctime": 2000, "content": "backup"},
		},
	})

	t.Run("lists every storage", func(t *testing.T) {
		t.Parallel()

		code, result, _ := runCLI(t, append(connectionArgs(server.URL), "list", "--node", "pve1")...)
		require.Equal(t, 0, code, result)

		assert.Equal(t, false, result["changed"])
		backups, ok := result["backups"].([]any)
		require.True(t, ok)
		assert.Len(t, backups, 3)
		latest, ok := result["latest"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "local:backup/vzdump-qemu-101-new.vma.zst", latest["volid"])
	})

	t.Run("filters by guest", func(t *testing.T) {
		t.Parallel()

		code, result, _ := runCLI(t, append(connectionArgs(server.URL), "list", "--node", "pve1", "--vmid", "100")...)
		require.Equal(t, 0, code, result)

		backups, ok := result["backups"].([]any)
		require.True(t, ok)
		assert.Len(t, backups, 2)
		latest, ok := result["latest"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "pbs", latest["storage"])
	})

	t.Run("no match has no latest", func(t *testing.T) {
		t.Parallel()

		code, result, _ := runCLI(t, append(connectionArgs(server.URL), "list", "--node", "pve1", "--vmid", "999")...)
		require.Equal(t, 0, code, result)

		assert.Empty(t, result["backups"])
		assert.NotContains(t, result, "latest")
	})
}

func TestRestoreCommand(t *testing.T) {
	t.Parallel()

	server := newFakeNode(t, map[string]any{
		"GET /nodes/pve1/lxc/200/status/current": map[string]any{"vmid": 200, "status": "running"},
		"POST /nodes/pve1/lxc":                   testUPID,
	})
	args := append(connectionArgs(server.URL), "restore",
		"--node", "pve1", "--storage", "local-lvm", "--vmid", "200",
		"--archive", "local:backup/vzdump-lxc-200-a.tar.zst", "--force")

	code, result, _ := runCLI(t, args...)
	require.Equal(t, 0, code, result)

	assert.Equal(t, true, result["changed"])
	assert.Equal(t, "lxc", result["kind"])
	assert.Equal(t, testUPID, result["task_id"])
}

func TestMissingCredentials(t *testing.T) {
	t.Parallel()

	for _, key := range []string{config.EnvPassword, config.EnvToken} {
		if os.Getenv(key) != "" {
			t.Skipf("%s is set in the environment", key)
		}
	}

	code, result, _ := runCLI(t, "list", "--node", "pve1", "--api-url", "https://pve1:8006/api2/json", "--api-user", "root@pam")
	assert.Equal(t, 1, code)
	assert.Equal(t, true, result["failed"])
	assert.Contains(t, result["msg"], "invalid provider configuration")
}

//nolint:paralleltest // sets environment variables
func TestConnectionFromEnvironment(t *testing.T) {
	server := newFakeNode(t, map[string]any{"POST /nodes/pve1/vzdump": testUPID})

	t.Setenv(config.EnvAPIURL, server.URL)
	t.Setenv(config.EnvUser, "root@pam!ci")
	t.Setenv(config.EnvToken, "secret")

	code, result, _ := runCLI(t, "backup", "--node", "pve1", "--storage", "local", "--vmid", "100")
	require.Equal(t, 0, code, result)
	assert.Equal(t, testUPID, result["task_id"])
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	code, result, _ := runCLI(t, "--log-level", "loud", "list", "--node", "pve1")
	assert.Equal(t, 1, code)
	assert.Contains(t, result["msg"], "invalid log level")
}
