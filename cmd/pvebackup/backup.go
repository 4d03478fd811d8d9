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

func newBackupCmd(a *app) *cobra.Command {
	var inputs proxmox.BackupInputs
	var mode, compress string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up a virtual machine or container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs.Mode = proxmox.BackupMode(mode)
			inputs.Compress = proxmox.Compression(compress)

			ops, err := a.operations()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			upid, err := ops.backup.Create(ctx, inputs)
			if err != nil {
				return err
			}
			a.logger.Info().Str("task", string(upid)).Int("vmid", inputs.VMID).Msg("Backup submitted")

			result := taskResult{Changed: true, TaskID: string(upid)}
			if inputs.Wait {
				if result.Status, err = ops.task.Wait(ctx, inputs.Node, upid); err != nil {
					return err
				}
			}
			return a.print(result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inputs.Node, "node", "", "node that runs the backup job")
	flags.StringVar(&inputs.Storage, "storage", "", "storage the archive is written to")
	flags.IntVar(&inputs.VMID, "vmid", 0, "ID of the guest to back up")
	flags.StringVar(&mode, "mode", "", "backup mode: snapshot, suspend or stop")
	flags.StringVar(&compress, "compress", "", "archive compression: 0, gzip, lzo or zstd")
	flags.StringVar(&inputs.NotesTemplate, "notes-template", "", "template for the archive notes")
	flags.BoolVar(&inputs.Protected, "protected", false, "protect the archive from pruning")
	flags.BoolVar(&inputs.Wait, "wait", false, "wait for the backup task to finish")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("storage")
	_ = cmd.MarkFlagRequired("vmid")

	return cmd
}
