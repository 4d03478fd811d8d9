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

// Package adapters provides concrete implementations of proxmox interfaces.
package adapters

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/config"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"
	api "github.com/luthermonson/go-proxmox"

	p "github.com/pulumi/pulumi-go-provider"
	"github.com/pulumi/pulumi-go-provider/infer"
)

// Ensure ProxmoxAdapter implements the Client interface
var _ proxmox.Client = (*ProxmoxAdapter)(nil)

// ProxmoxAdapter adapts the go-proxmox client to the proxmox.Client interface.
// It handles lazy initialization of the underlying client
type ProxmoxAdapter struct {
	once      sync.Once
	initErr   error
	PVEConfig *config.Config
	resolved  config.Config
	client    *api.Client
}

// NewProxmoxAdapter creates a new ProxmoxAdapter. A nil configuration is read
// from the Pulumi provider configuration on first use.
func NewProxmoxAdapter(pveConfig *config.Config) *ProxmoxAdapter {
	return &ProxmoxAdapter{
		PVEConfig: pveConfig,
	}
}

// Connect initializes the Proxmox client if it hasn't been initialized yet
func (proxmoxAdapter *ProxmoxAdapter) Connect(ctx context.Context) error {
	proxmoxAdapter.once.Do(func() {
		p.GetLogger(ctx).Debugf("Client is not initialized, initializing now")

		var pveConfig config.Config
		if proxmoxAdapter.PVEConfig == nil {
			// If no config provided, get from context
			pveConfig = infer.GetConfig[config.Config](ctx)
		} else {
			pveConfig = *proxmoxAdapter.PVEConfig
		}

		pveConfig.Resolve()
		proxmoxAdapter.resolved = pveConfig

		if proxmoxAdapter.initErr = pveConfig.Validate(); proxmoxAdapter.initErr != nil {
			return
		}

		proxmoxAdapter.client = newClient(&pveConfig)
		p.GetLogger(ctx).Debugf("Using Proxmox API at %s", pveConfig.BaseURL())
	})

	if proxmoxAdapter.initErr != nil {
		p.GetLogger(ctx).Errorf("Error creating Proxmox client: %v", proxmoxAdapter.initErr)
		return proxmoxAdapter.initErr
	}

	return nil
}

// newClient creates a new Proxmox client
func newClient(pveConfig *config.Config) *api.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !pveConfig.VerifySSL {
		//nolint:gosec // Required for Proxmox API self-signed certificates
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	options := []api.Option{api.WithHTTPClient(&http.Client{Transport: transport})}
	if pveConfig.UsesToken() {
		options = append(options, api.WithAPIToken(pveConfig.PveUser, pveConfig.PveToken))
	} else {
		options = append(options, api.WithCredentials(&api.Credentials{
			Username: pveConfig.PveUser,
			Password: pveConfig.PvePassword,
		}))
	}

	return api.NewClient(pveConfig.BaseURL(), options...)
}

// WaitPolicy returns the task wait policy of the resolved configuration.
func (proxmoxAdapter *ProxmoxAdapter) WaitPolicy(ctx context.Context) proxmox.WaitPolicy {
	if err := proxmoxAdapter.Connect(ctx); err != nil {
		return proxmox.WaitPolicy{}
	}
	return proxmoxAdapter.resolved.WaitPolicy()
}

// Get performs a GET request to the Proxmox API.
func (proxmoxAdapter *ProxmoxAdapter) Get(ctx context.Context, path string, result any) error {
	if err := proxmoxAdapter.Connect(ctx); err != nil {
		return err
	}
	return proxmoxAdapter.client.Get(ctx, path, result)
}

// Post performs a POST request to the Proxmox API.
func (proxmoxAdapter *ProxmoxAdapter) Post(ctx context.Context, path string, body, result any) error {
	if err := proxmoxAdapter.Connect(ctx); err != nil {
		return err
	}
	return proxmoxAdapter.client.Post(ctx, path, body, result)
}

// Delete performs a DELETE request to the Proxmox API.
func (proxmoxAdapter *ProxmoxAdapter) Delete(ctx context.Context, path string, result any) error {
	if err := proxmoxAdapter.Connect(ctx); err != nil {
		return err
	}
	return proxmoxAdapter.client.Delete(ctx, path, result)
}
