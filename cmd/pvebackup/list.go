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
	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var inputs proxmox.ListBackupsInputs
	var vmid int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if vmid != 0 {
				inputs.VMID = &vmid
			}

			ops, err := a.operations()
			if err != nil {
				return err
			}

			archives, err := ops.backup.List(cmd.Context(), inputs.Query())
			if err != nil {
				return err
			}
			a.logger.Debug().Int("count", len(archives)).Str("storage", inputs.Storage).Msg("Listed backups")

			return a.print(listResult{
				ListBackupsOutputs: proxmox.ListBackupsOutputs{
					Backups: archives,
					Latest:  proxmox.Latest(archives),
				},
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inputs.Node, "node", "", "node to query")
	flags.StringVar(&inputs.Storage, "storage", proxmox.AllStorages, "storage to list, or all")
	flags.IntVar(&vmid, "vmid", 0, "only list archives of this guest")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}
