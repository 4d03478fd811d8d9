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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit url wins", Config{PveURL: "https://pve.example.com:8006/api2/json/", APIHost: "ignored"}, "https://pve.example.com:8006/api2/json"},
		{"host with default port", Config{APIHost: "pve1"}, "https://pve1:8006/api2/json"},
		{"host with custom port", Config{APIHost: "pve1", APIPort: 443}, "https://pve1:443/api2/json"},
		{"host already has port", Config{APIHost: "pve1:9000", APIPort: 443}, "https://pve1:9000/api2/json"},
		{"host with scheme", Config{APIHost: "http://10.0.0.5"}, "http://10.0.0.5:8006/api2/json"},
		{"ipv6 host", Config{APIHost: "[fd00::1]"}, "https://[fd00::1]:8006/api2/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.BaseURL())
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{APIHost: "pve1", PveUser: "root@pam", PvePassword: "secret"}
	require.NoError(t, valid.Validate())

	token := Config{PveURL: "https://pve1:8006/api2/json", PveUser: "root@pam!backup", PveToken: "uuid"}
	require.NoError(t, token.Validate())
	assert.True(t, token.UsesToken())
	assert.False(t, valid.UsesToken())

	err := (&Config{APIPort: 70000}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either pveUrl or apiHost is required")
	assert.Contains(t, err.Error(), "pveUser is required")
	assert.Contains(t, err.Error(), "either pvePassword or pveToken is required")
	assert.Contains(t, err.Error(), "apiPort 70000 is out of range")
}

//nolint:paralleltest // mutates the process environment
func TestResolveFromEnvironment(t *testing.T) {
	t.Setenv(EnvHost, "pve-env")
	t.Setenv(EnvPort, "8443")
	t.Setenv(EnvUser, "backup@pve")
	t.Setenv(EnvPassword, "from-env")
	t.Setenv(EnvVerifySSL, "true")

	cfg := Config{PveUser: "root@pam"}
	cfg.Resolve()

	assert.Equal(t, "pve-env", cfg.APIHost)
	assert.Equal(t, 8443, cfg.APIPort)
	assert.Equal(t, "root@pam", cfg.PveUser, "explicit settings are kept")
	assert.Equal(t, "from-env", cfg.PvePassword)
	assert.True(t, cfg.VerifySSL)
	assert.Equal(t, "https://pve-env:8443/api2/json", cfg.BaseURL())
}

//nolint:paralleltest // mutates the process environment
func TestResolveDefaults(t *testing.T) {
	t.Setenv(EnvPort, "not-a-port")
	t.Setenv(EnvVerifySSL, "")

	cfg := Config{APIHost: "pve1"}
	cfg.Resolve()

	assert.Equal(t, DefaultPort, cfg.APIPort)
	assert.False(t, cfg.VerifySSL)
	assert.Equal(t, DefaultTaskPollInterval, cfg.TaskPollInterval)
	assert.Equal(t, DefaultTaskTimeout, cfg.TaskTimeout)

	policy := cfg.WaitPolicy()
	assert.Equal(t, 2*time.Second, policy.Interval)
	assert.Equal(t, 4*time.Hour, policy.Timeout)
}
