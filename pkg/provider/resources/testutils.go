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

package resources

import (
	"testing"
	"time"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/adapters"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/config"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"
	"github.com/vitorsalgado/mocha/v3"
)

// TestPollInterval keeps task waits in tests short.
const TestPollInterval = time.Millisecond

// NewAPIMock starts a mocha mock server and returns it together with a provider
// configuration pointing at it. The server is closed when the test ends.
// Every call owns its server and no global state is touched, so tests may run in parallel.
func NewAPIMock(t *testing.T) (*mocha.Mocha, *config.Config) {
	// helper defined outside *_test.go for cross-package reuse; needs t.Helper for clearer failures
	t.Helper()
	mock := mocha.New(t)
	mock.Start()
	t.Cleanup(func() { _ = mock.Close() })

	return mock, &config.Config{
		PveURL:   mock.URL(),
		PveUser:  "user@pve!token",
		PveToken: "TOKEN",
	}
}

// Operations bundles the adapters a resource needs, all sharing one client.
type Operations struct {
	Client  *adapters.ProxmoxAdapter
	Backup  *adapters.BackupAdapter
	Restore *adapters.RestoreAdapter
	Task    *adapters.TaskAdapter
}

// NewTestOperations wires the adapters for cfg with a fast task poll interval.
func NewTestOperations(cfg *config.Config) Operations {
	client := adapters.NewProxmoxAdapter(cfg)
	return Operations{
		Client:  client,
		Backup:  adapters.NewBackupAdapter(client),
		Restore: adapters.NewRestoreAdapter(client),
		Task: adapters.NewTaskAdapter(client, adapters.FixedPolicy(proxmox.WaitPolicy{
			Interval: TestPollInterval,
			Timeout:  10 * time.Second,
		})),
	}
}
