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

// Package provider wires the backup resources into a Pulumi provider.
package provider

import (
	"github.com/mcfitz2/pulumi-pve-backup/pkg/adapters"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/config"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/provider/resources/backup"
	p "github.com/pulumi/pulumi-go-provider"
	"github.com/pulumi/pulumi-go-provider/infer"
	"github.com/pulumi/pulumi-go-provider/middleware/schema"
	"github.com/pulumi/pulumi/sdk/v3/go/common/tokens"
)

// Version is initialized by the Go linker to contain the semver of this build.
var Version string

// Name is the Pulumi package name of the provider.
const Name string = "pvebackup"

// NewProvider returns a provider that reads its connection settings from the Pulumi provider configuration.
func NewProvider() p.Provider {
	return NewProviderWithConfig(nil)
}

// NewProviderWithConfig returns a provider using the given connection settings.
// A nil configuration is read from the Pulumi provider configuration on first use.
func NewProviderWithConfig(pveConfig *config.Config) p.Provider {
	proxmoxAdapter := adapters.NewProxmoxAdapter(pveConfig)
	backupOps := adapters.NewBackupAdapter(proxmoxAdapter)
	taskOps := adapters.NewTaskAdapter(proxmoxAdapter, proxmoxAdapter.WaitPolicy)

	// We tell the provider what resources it needs to support.
	return infer.Provider(infer.Options{
		Resources: []infer.InferredResource{
			infer.Resource(&backup.Backup{
				BackupOps: backupOps,
				TaskOps:   taskOps,
			}),
			infer.Resource(&backup.Restore{
				RestoreOps: adapters.NewRestoreAdapter(proxmoxAdapter),
				TaskOps:    taskOps,
			}),
		},
		Functions: []infer.InferredFunction{
			infer.Function(&backup.GetBackups{BackupOps: backupOps}),
		},
		Config: infer.Config(config.Config{}),
		ModuleMap: map[tokens.ModuleName]tokens.ModuleName{
			"provider": "index",
		},
		Metadata: schema.Metadata{
			DisplayName: "pvebackup",
			Description: "Backup and restore of Proxmox VE virtual machines and containers",
			Keywords:    []string{"pulumi", "proxmox", "backup", "category/infrastructure"},
			LanguageMap: map[string]any{
				"csharp": map[string]any{
					"respectSchemaVersion": true,
					"packageReferences": map[string]string{
						"Pulumi": "3.*",
					},
				},
				"go": map[string]any{
					"respectSchemaVersion":           true,
					"generateResourceContainerTypes": true,
					"importBasePath":                 "github.com/mcfitz2/pulumi-pve-backup/sdk/go/pvebackup",
				},
				"nodejs": map[string]any{
					"respectSchemaVersion": true,
				},
				"python": map[string]any{
					"respectSchemaVersion": true,
					"pyproject": map[string]bool{
						"enabled": true,
					},
				},
			},
			Repository: "https://github.com/mcfitz2/pulumi-pve-backup",
		},
	})
}
