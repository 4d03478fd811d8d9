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

	"github.com/mcfitz2/pulumi-pve-backup/pkg/provider/resources"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"

	p "github.com/pulumi/pulumi-go-provider"
	"github.com/pulumi/pulumi-go-provider/infer"
)

// Ensure Restore implements the required interfaces
var (
	_ = (infer.CustomResource[proxmox.RestoreInputs, proxmox.RestoreOutputs])((*Restore)(nil))
	_ = (infer.CustomDelete[proxmox.RestoreOutputs])((*Restore)(nil))
	_ = (infer.CustomUpdate[proxmox.RestoreInputs, proxmox.RestoreOutputs])((*Restore)(nil))
	_ = (infer.CustomRead[proxmox.RestoreInputs, proxmox.RestoreOutputs])((*Restore)(nil))
	_ = (infer.CustomDiff[proxmox.RestoreInputs, proxmox.RestoreOutputs])((*Restore)(nil))
	_ = infer.Annotated((*Restore)(nil))
)

var errRestoreNotConfigured = errors.New("RestoreOperations not configured")

// Restore represents the restore of a backup archive into a guest
type Restore struct {
	RestoreOps proxmox.RestoreOperations
	TaskOps    proxmox.TaskOperations
}

// Create resolves the guest kind, submits the restore job and, when requested, waits for it
func (restore *Restore) Create(
	ctx context.Context,
	request infer.CreateRequest[proxmox.RestoreInputs],
) (response infer.CreateResponse[proxmox.RestoreOutputs], err error) {
	inputs := request.Inputs

	logger := p.GetLogger(ctx)
	logger.Debugf("Creating restore resource: %+v", inputs)

	response = infer.CreateResponse[proxmox.RestoreOutputs]{
		ID: request.Name,
		Output: proxmox.RestoreOutputs{RestoreInputs: inputs},
	}

	if request.DryRun {
		return response, nil
	}

	if restore.RestoreOps == nil || restore.TaskOps == nil {
		return response, errRestoreNotConfigured
	}

	kind, err := restore.RestoreOps.ResolveKind(ctx, inputs)
	if err != nil {
		return response, err
	}
	response.Output.ResolvedKind = kind

	upid, err := restore.RestoreOps.Create(ctx, kind, inputs)
	if err != nil {
		return response, err
	}
	response.Output.TaskID = string(upid)

	if !inputs.Wait {
		return response, nil
	}

	status, err := restore.TaskOps.Wait(ctx, inputs.Node, upid)
	if status != nil {
		response.Output.Status = status
	}
	return response, err
}

// Read refreshes the status of the restore task
func (restore *Restore) Read(
	ctx context.Context,
	request infer.ReadRequest[proxmox.RestoreInputs, proxmox.RestoreOutputs],
) (response infer.ReadResponse[proxmox.RestoreInputs, proxmox.RestoreOutputs], err error) {
	logger := p.GetLogger(ctx)
	logger.Debugf(
		"Read called for Restore with ID: %s, Inputs: %+v, State: %+v",
		request.ID,
		request.Inputs,
		request.State,
	)

	response.ID = request.ID
	response.Inputs = request.Inputs
	response.State = request.State

	if restore.RestoreOps == nil || restore.TaskOps == nil {
		return response, errRestoreNotConfigured
	}

	if request.ID == "" {
		logger.Warningf("Missing Restore ID")
		return response, errors.New("missing restore ID")
	}

	if request.State.TaskID == "" {
		return response, nil
	}

	status, err := restore.TaskOps.Status(ctx, request.State.Node, proxmox.UPID(request.State.TaskID))
	if err != nil {
		logger.Warningf("Could not refresh task %s: %v", request.State.TaskID, err)
		return response, nil
	}
	response.State.Status = status

	return response, nil
}

// Update only changes whether the restore task is waited for
func (restore *Restore) Update(
	ctx context.Context,
	request infer.UpdateRequest[proxmox.RestoreInputs, proxmox.RestoreOutputs],
) (response infer.UpdateResponse[proxmox.RestoreOutputs], err error) {
	logger := p.GetLogger(ctx)
	logger.Debugf("Updating restore resource: %v", request.ID)

	response.Output = request.State
	response.Output.Wait = request.Inputs.Wait

	if request.DryRun {
		return response, nil
	}

	if restore.RestoreOps == nil || restore.TaskOps == nil {
		return response, errRestoreNotConfigured
	}

	state := request.State
	if request.Inputs.Wait && !state.Wait && state.TaskID != "" && (state.Status == nil || state.Status.IsRunning()) {
		status, waitErr := restore.TaskOps.Wait(ctx, state.Node, proxmox.UPID(state.TaskID))
		if status != nil {
			response.Output.Status = status
		}
		err = waitErr
	}

	return response, err
}

// Delete forgets the restore. The restored guest is left in place.
func (restore *Restore) Delete(
	ctx context.Context,
	request infer.DeleteRequest[proxmox.RestoreOutputs],
) (response infer.DeleteResponse, err error) {
	p.GetLogger(ctx).Debugf("Deleting restore resource %v, guest %d stays on %s",
		request.ID, request.State.VMID, request.State.Node)
	return response, nil
}

// Diff replaces the restore whenever an input other than wait changes
func (restore *Restore) Diff(
	_ context.Context,
	request infer.DiffRequest[proxmox.RestoreInputs, proxmox.RestoreOutputs],
) (response infer.DiffResponse, err error) {
	inputs, state := request.Inputs, request.State

	diffs := resources.PropertyDiffs{}
	diffs.Replace("node", inputs.Node != state.Node)
	diffs.Replace("storage", inputs.Storage != state.Storage)
	diffs.Replace("vmid", inputs.VMID != state.VMID)
	diffs.Replace("archive", inputs.Archive != state.Archive)
	diffs.Replace("kind", inputs.Kind != state.Kind)
	diffs.Replace("force", inputs.Force != state.Force)
	diffs.Replace("unique", inputs.Unique != state.Unique)
	diffs.Update("wait", inputs.Wait != state.Wait)

	return diffs.Response(false), nil
}

// Annotate is used to annotate the restore resource
func (restore *Restore) Annotate(a infer.Annotator) {
	a.Describe(
		restore,
		"Restores a Proxmox virtual machine or container from a backup archive. "+
			"Deleting the resource leaves the restored guest in place.",
	)
}
