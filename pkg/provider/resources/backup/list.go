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

package backup

import (
	"context"
	"errors"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"

	p "github.com/pulumi/pulumi-go-provider"
	"github.com/pulumi/pulumi-go-provider/infer"
)

// Ensure GetBackups implements the required interfaces
var (
	_ = (infer.Fn[proxmox.ListBackupsInputs, proxmox.ListBackupsOutputs])((*GetBackups)(nil))
	_ = infer.Annotated((*GetBackups)(nil))
)

// GetBackups lists the backup archives of a node
type GetBackups struct {
	BackupOps proxmox.BackupOperations
}

// Invoke lists the matching archives, newest first
func (getBackups *GetBackups) Invoke(
	ctx context.Context,
	request infer.FunctionRequest[proxmox.ListBackupsInputs],
) (response infer.FunctionResponse[proxmox.ListBackupsOutputs], err error) {
	p.GetLogger(ctx).Debugf("Listing backups: %+v", request.Input)

	if getBackups.BackupOps == nil {
		return response, errors.New("BackupOperations not configured")
	}

	archives, err := getBackups.BackupOps.List(ctx, request.Input.Query())
	if err != nil {
		return response, err
	}

	response.Output = proxmox.ListBackupsOutputs{
		Backups: archives,
		Latest:  proxmox.Latest(archives),
	}
	return response, nil
}

// Annotate is used to annotate the getBackups function
func (getBackups *GetBackups) Annotate(a infer.Annotator) {
	a.Describe(getBackups, "Lists the backup archives on one or all backup storages of a node, newest first.")
	a.SetToken("backup", "getBackups")
}
