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

package adapters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRequest captures information about HTTP requests for verification
type mockRequest struct {
	Method      string
	Path        string
	Body        string
	Headers     http.Header
	QueryParams map[string][]string
}

// createMockServer creates a test HTTP server that captures requests and returns mock responses
func createMockServer(
	t *testing.T,
	handler func(w http.ResponseWriter, r *http.Request, captured *mockRequest),
) (*httptest.Server, *mockRequest) {
	t.Helper()
	var captured mockRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Capture request details
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Headers = r.Header.Clone()
		captured.QueryParams = r.URL.Query()

		// Read body
		if r.Body != nil {
			bodyBytes, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			captured.Body = string(bodyBytes)
		}

		// Call handler
		handler(w, r, &captured)
	}))

	return server, &captured
}

// requestLog records every request of a multi-step exchange.
type requestLog struct {
	mu       sync.Mutex
	requests []mockRequest
}

func (rl *requestLog) add(r *http.Request) mockRequest {
	body, _ := io.ReadAll(r.Body)
	req := mockRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Body:        string(body),
		Headers:     r.Header.Clone(),
		QueryParams: r.URL.Query(),
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests = append(rl.requests, req)
	return req
}

func (rl *requestLog) paths() []string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	paths := make([]string, 0, len(rl.requests))
	for _, req := range rl.requests {
		paths = append(paths, req.Method+" "+req.Path)
	}
	return paths
}

// writeData writes a Proxmox response envelope.
func writeData(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

// writeError writes a Proxmox style error reply.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"data": null, "message": "` + message + `"}`))
}

// newTestAdapter returns a connected adapter for the given server.
func newTestAdapter(t *testing.T, serverURL string) *ProxmoxAdapter {
	t.Helper()
	adapter := NewProxmoxAdapter(&config.Config{
		PveURL:   serverURL,
		PveUser:  "test@pam!token",
		PveToken: "test-token",
	})
	require.NoError(t, adapter.Connect(context.Background()))
	return adapter
}

func TestProxmoxAdapterConnect(t *testing.T) {
	t.Parallel()

	t.Run("successful connection", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			PveURL:   "https://test.proxmox.com:8006",
			PveUser:  "test@pam",
			PveToken: "test-token",
		}

		adapter := NewProxmoxAdapter(cfg)
		err := adapter.Connect(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, adapter.client)
	})

	t.Run("password credentials", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			APIHost:     "test.proxmox.com",
			PveUser:     "root@pam",
			PvePassword: "secret",
			VerifySSL:   true,
		}

		adapter := NewProxmoxAdapter(cfg)
		require.NoError(t, adapter.Connect(context.Background()))
		assert.NotNil(t, adapter.client)
		assert.Equal(t, "https://test.proxmox.com:8006/api2/json", adapter.resolved.BaseURL())
	})

	t.Run("connect is idempotent", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			PveURL:   "https://test.proxmox.com:8006",
			PveUser:  "test@pam",
			PveToken: "test-token",
		}

		adapter := NewProxmoxAdapter(cfg)

		// Connect multiple times
		err1 := adapter.Connect(context.Background())
		require.NoError(t, err1)
		client1 := adapter.client

		err2 := adapter.Connect(context.Background())
		require.NoError(t, err2)
		client2 := adapter.client

		// Should be the same client instance
		assert.Same(t, client1, client2)
	})

	t.Run("incomplete configuration fails every request", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			PveURL:  "https://test.proxmox.com:8006",
			PveUser: "test@pam",
		}

		adapter := NewProxmoxAdapter(cfg)
		err := adapter.Connect(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pvePassword or pveToken")

		var result map[string]interface{}
		assert.Error(t, adapter.Get(context.Background(), "/version", &result))
		assert.Error(t, adapter.Post(context.Background(), "/nodes/pve1/vzdump", map[string]string{}, &result))
		assert.Error(t, adapter.Delete(context.Background(), "/nodes/pve1/storage/local/content/x", &result))
		assert.Nil(t, adapter.client)
	})
}

func TestProxmoxAdapterWaitPolicy(t *testing.T) {
	t.Parallel()

	adapter := NewProxmoxAdapter(&config.Config{
		PveURL:           "https://test.proxmox.com:8006",
		PveUser:          "test@pam",
		PveToken:         "test-token",
		TaskPollInterval: 5,
		TaskTimeout:      60,
	})

	policy := adapter.WaitPolicy(context.Background())
	assert.Equal(t, 5*time.Second, policy.Interval)
	assert.Equal(t, time.Minute, policy.Timeout)

	broken := NewProxmoxAdapter(&config.Config{})
	assert.Zero(t, broken.WaitPolicy(context.Background()))
}

func TestProxmoxAdapterGet(t *testing.T) {
	t.Parallel()

	t.Run("successful GET request", func(t *testing.T) {
		t.Parallel()

		// luthermonson/go-proxmox library unwraps the "data" field automatically
		innerData := map[string]interface{}{
			"status":     "stopped",
			"exitstatus": "OK",
		}

		server, captured := createMockServer(t, func(w http.ResponseWriter, r *http.Request, _ *mockRequest) {
			assert.Equal(t, http.MethodGet, r.Method)

			// Verify headers
			assert.Contains(t, r.Header.Get("Authorization"), "PVEAPIToken")
			assert.Equal(t, "application/json", r.Header.Get("Accept"))

			writeData(t, w, innerData)
		})
		defer server.Close()

		adapter := newTestAdapter(t, server.URL)

		var result map[string]interface{}
		err := adapter.Get(context.Background(), "/nodes/pve1/tasks/UPID:pve1:1/status", &result)
		require.NoError(t, err)

		// Verify response was unmarshaled correctly (go-proxmox unwraps "data" field)
		assert.Equal(t, innerData, result)
		assert.Equal(t, http.MethodGet, captured.Method)
		assert.Equal(t, "/nodes/pve1/tasks/UPID:pve1:1/status", captured.Path)
	})

	t.Run("GET request with query parameters", func(t *testing.T) {
		t.Parallel()

		server, captured := createMockServer(t, func(w http.ResponseWriter, r *http.Request, _ *mockRequest) {
			writeData(t, w, []any{})
		})
		defer server.Close()

		adapter := newTestAdapter(t, server.URL)

		var result []map[string]interface{}
		err := adapter.Get(context.Background(), "/nodes/pve1/storage?content=backup", &result)
		require.NoError(t, err)

		// Verify query parameters were sent
		assert.Equal(t, []string{"backup"}, captured.QueryParams["content"])
		assert.Equal(t, "/nodes/pve1/storage", captured.Path)
	})

	t.Run("GET request handles 500 error", func(t *testing.T) {
		t.Parallel()

		server, _ := createMockServer(t, func(w http.ResponseWriter, r *http.Request, _ *mockRequest) {
			writeError(w, http.StatusInternalServerError, "internal error")
		})
		defer server.Close()

		adapter := newTestAdapter(t, server.URL)

		var result map[string]interface{}
		err := adapter.Get(context.Background(), "/test/error", &result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500") // Error should mention 500 status
	})
}

func TestProxmoxAdapterPost(t *testing.T) {
	t.Parallel()

	t.Run("successful POST request", func(t *testing.T) {
		t.Parallel()

		server, captured := createMockServer(t, func(w http.ResponseWriter, r *http.Request, req *mockRequest) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.Header.Get("Authorization"), "PVEAPIToken")

			var receivedBody map[string]interface{}
			err := json.NewDecoder(strings.NewReader(req.Body)).Decode(&receivedBody)
			require.NoError(t, err)
			assert.Equal(t, float64(100), receivedBody["vmid"]) // JSON numbers are float64
			assert.Equal(t, "local", receivedBody["storage"])

			writeData(t, w, "UPID:pve1:00001234:00000000:65000000:vzdump:100:root@pam:")
		})
		defer server.Close()

		adapter := newTestAdapter(t, server.URL)

		var result string
		body := map[string]interface{}{"vmid": 100, "storage": "local"}
		err := adapter.Post(context.Background(), "/nodes/pve1/vzdump", body, &result)
		require.NoError(t, err)

		assert.Equal(t, "UPID:pve1:00001234:00000000:65000000:vzdump:100:root@pam:", result)
		assert.Equal(t, "/nodes/pve1/vzdump", captured.Path)
	})

	t.Run("POST request with nil result", func(t *testing.T) {
		t.Parallel()

		server, _ := createMockServer(t, func(w http.ResponseWriter, r *http.Request, _ *mockRequest) {
			w.WriteHeader(http.StatusNoContent)
		})
		defer server.Close()

		adapter := newTestAdapter(t, server.URL)

		err := adapter.Post(context.Background(), "/test/resources", map[string]string{"key": "value"}, nil)
		require.NoError(t, err)
	})
}

func TestProxmoxAdapterDelete(t *testing.T) {
	t.Parallel()

	server, captured := createMockServer(t, func(w http.ResponseWriter, r *http.Request, _ *mockRequest) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeData(t, w, "deleted")
	})
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	var result string
	err := adapter.Delete(context.Background(), "/nodes/pve1/storage/local/content/volume", &result)
	require.NoError(t, err)

	assert.Equal(t, "deleted", result)
	assert.Equal(t, http.MethodDelete, captured.Method)
	assert.Empty(t, captured.Body) // DELETE should have no body
}

func TestProxmoxAdapterAuthenticationHeaders(t *testing.T) {
	t.Parallel()

	expectedUser := "admin@pam!backup"
	expectedToken := "secret-token-123"

	server, captured := createMockServer(t, func(w http.ResponseWriter, r *http.Request, _ *mockRequest) {
		authHeader := r.Header.Get("Authorization")
		assert.Contains(t, authHeader, "PVEAPIToken")
		assert.Contains(t, authHeader, expectedUser)
		assert.Contains(t, authHeader, expectedToken)

		writeData(t, w, map[string]any{})
	})
	defer server.Close()

	adapter := NewProxmoxAdapter(&config.Config{
		PveURL:   server.URL,
		PveUser:  expectedUser,
		PveToken: expectedToken,
	})

	var result map[string]interface{}
	require.NoError(t, adapter.Get(context.Background(), "/version", &result))
	assert.Contains(t, captured.Headers.Get("Authorization"), "PVEAPIToken")
}

func TestProxmoxAdapterConnectionFailureHandling(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		PveURL:   "http://invalid-url-that-does-not-exist:9999",
		PveUser:  "test@pam",
		PveToken: "test-token",
	}

	adapter := NewProxmoxAdapter(cfg)

	// Connect succeeds (doesn't validate URL)
	err := adapter.Connect(context.Background())
	require.NoError(t, err)

	// But GET request fails
	var result map[string]interface{}
	err = adapter.Get(context.Background(), "/version", &result)
	require.Error(t, err)
}

func TestProxmoxAdapterConfigFromContext(t *testing.T) {
	t.Parallel()

	t.Run("panics when config is nil and context has no Pulumi config", func(t *testing.T) {
		t.Parallel()

		adapter := NewProxmoxAdapter(nil)

		// infer.GetConfig panics when called on a non-Pulumi context
		assert.Panics(t, func() {
			_ = adapter.Connect(context.Background())
		}, "Expected panic when trying to get config from non-Pulumi context")
	})

	t.Run("works with explicit config even without Pulumi context", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			PveURL:   "https://test.proxmox.com:8006",
			PveUser:  "test@pam",
			PveToken: "test-token",
		}
		adapter := NewProxmoxAdapter(cfg)

		err := adapter.Connect(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, adapter.client)
	})
}
