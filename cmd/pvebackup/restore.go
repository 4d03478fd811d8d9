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

func newRestoreCmd(a *app) *cobra.Command {
	var inputs proxmox.RestoreInputs
	var kind string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a virtual machine or container from a backup archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs.Kind = proxmox.GuestKind(kind)

			ops, err := a.operations()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			resolved, err := ops.restore.ResolveKind(ctx, inputs)
			if err != nil {
				return err
			}

			upid, err := ops.restore.Create(ctx, resolved, inputs)
			if err != nil {
				return err
			}
			a.logger.Info().
				Str("task", string(upid)).
				Str("kind", string(resolved)).
				Int("vmid", inputs.VMID).
				Msg("Restore submitted")

			result := taskResult{Changed: true, TaskID: string(upid), Kind: resolved}
			if inputs.Wait {
				if result.Status, err = ops.task.Wait(ctx, inputs.Node, upid); err != nil {
					return err
				}
			}
			return a.print(result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inputs.Node, "node", "", "node the guest is restored on")
	flags.StringVar(&inputs.Storage, "storage", "", "storage for the restored disks")
	flags.IntVar(&inputs.VMID, "vmid", 0, "ID of the restored guest")
	flags.StringVar(&inputs.Archive, "archive", "", "backup archive volume")
	flags.StringVar(&kind, "kind", "", "qemu or lxc; resolved from the node and the archive when empty")
	flags.BoolVar(&inputs.Force, "force", false, "overwrite an existing guest")
	flags.BoolVar(&inputs.Unique, "unique", false, "assign fresh MAC addresses")
	flags.BoolVar(&inputs.Wait, "wait", false, "wait for the restore task to finish")
	for _, name := range []string{"node", "storage", "vmid", "archive"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
