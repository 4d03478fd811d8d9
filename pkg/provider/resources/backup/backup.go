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

// Package backup provides resources for backing up and restoring Proxmox guests.
package backup

import (
	"context"
	"errors"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/provider/resources"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"

	p "github.com/pulumi/pulumi-go-provider"
	"github.com/pulumi/pulumi-go-provider/infer"
)

// Ensure Backup implements the required interfaces
var (
	_ = (infer.CustomResource[proxmox.BackupInputs, proxmox.BackupOutputs])((*Backup)(nil))
	_ = (infer.CustomDelete[proxmox.BackupOutputs])((*Backup)(nil))
	_ = (infer.CustomUpdate[proxmox.BackupInputs, proxmox.BackupOutputs])((*Backup)(nil))
	_ = (infer.CustomRead[proxmox.BackupInputs, proxmox.BackupOutputs])((*Backup)(nil))
	_ = (infer.CustomDiff[proxmox.BackupInputs, proxmox.BackupOutputs])((*Backup)(nil))
	_ = infer.Annotated((*Backup)(nil))
)

var errBackupNotConfigured = errors.New("BackupOperations not configured")

// Backup represents a single vzdump run of a Proxmox guest
type Backup struct {
	BackupOps proxmox.BackupOperations
	TaskOps   proxmox.TaskOperations
}

// Create submits the backup job and, when requested, waits for it to finish
func (backup *Backup) Create(
	ctx context.Context,
	request infer.CreateRequest[proxmox.BackupInputs],
) (response infer.CreateResponse[proxmox.BackupOutputs], err error) {
	inputs := request.Inputs

	logger := p.GetLogger(ctx)
	logger.Debugf("Creating backup resource: %+v", inputs)

	response = infer.CreateResponse[proxmox.BackupOutputs]{
		ID:     request.Name,
		Output: proxmox.BackupOutputs{BackupInputs: inputs},
	}

	if request.DryRun {
		return response, nil
	}

	if backup.BackupOps == nil || backup.TaskOps == nil {
		return response, errBackupNotConfigured
	}

	upid, err := backup.BackupOps.Create(ctx, inputs)
	if err != nil {
		return response, err
	}
	response.Output.TaskID = string(upid)

	if !inputs.Wait {
		return response, nil
	}

	err = backup.wait(ctx, &response.Output)
	return response, err
}

// wait blocks until the backup task is terminal and records the archive it produced.
func (backup *Backup) wait(ctx context.Context, outputs *proxmox.BackupOutputs) error {
	status, err := backup.TaskOps.Wait(ctx, outputs.Node, proxmox.UPID(outputs.TaskID))
	if status != nil {
		outputs.Status = status
	}
	if err != nil {
		return err
	}

	backup.findArchive(ctx, outputs)
	return nil
}

// findArchive looks up the archive of a finished backup. A failed lookup leaves the archive unset.
func (backup *Backup) findArchive(ctx context.Context, outputs *proxmox.BackupOutputs) {
	if outputs.Status == nil || !outputs.Status.Succeeded() || outputs.Archive != nil {
		return
	}

	vmid := outputs.VMID
	archives, err := backup.BackupOps.List(ctx, proxmox.BackupQuery{
		Node:    outputs.Node,
		Storage: outputs.Storage,
		VMID:    &vmid,
	})
	if err != nil {
		p.GetLogger(ctx).Warningf("Could not look up the archive of task %s: %v", outputs.TaskID, err)
		return
	}

	outputs.Archive = proxmox.ArchiveProducedBy(outputs.Status, outputs.VMID, archives)
}

// Read refreshes the status of the backup task
func (backup *Backup) Read(
	ctx context.Context,
	request infer.ReadRequest[proxmox.BackupInputs, proxmox.BackupOutputs],
) (response infer.ReadResponse[proxmox.BackupInputs, proxmox.BackupOutputs], err error) {
	logger := p.GetLogger(ctx)
	logger.Debugf(
		"Read called for Backup with ID: %s, Inputs: %+v, State: %+v",
		request.ID,
		request.Inputs,
		request.State,
	)

	response.ID = request.ID
	response.Inputs = request.Inputs
	response.State = request.State

	if backup.BackupOps == nil || backup.TaskOps == nil {
		return response, errBackupNotConfigured
	}

	if request.ID == "" {
		logger.Warningf("Missing Backup ID")
		return response, errors.New("missing backup ID")
	}

	if request.State.TaskID == "" {
		return response, nil
	}

	status, err := backup.TaskOps.Status(ctx, request.State.Node, proxmox.UPID(request.State.TaskID))
	if err != nil {
		// Task logs are rotated by the node; an unknown task keeps its last known state.
		logger.Warningf("Could not refresh task %s: %v", request.State.TaskID, err)
		return response, nil
	}

	response.State.Status = status
	backup.findArchive(ctx, &response.State)

	logger.Debugf("Returning updated state: %+v", response.State)
	return response, nil
}

// Update applies the settings that do not define the backup job
func (backup *Backup) Update(
	ctx context.Context,
	request infer.UpdateRequest[proxmox.BackupInputs, proxmox.BackupOutputs],
) (response infer.UpdateResponse[proxmox.BackupOutputs], err error) {
	logger := p.GetLogger(ctx)
	logger.Debugf("Updating backup resource: %v", request.ID)

	response.Output = request.State
	response.Output.Wait = request.Inputs.Wait
	response.Output.DeleteArchive = request.Inputs.DeleteArchive

	if request.DryRun {
		return response, nil
	}

	if backup.BackupOps == nil || backup.TaskOps == nil {
		return response, errBackupNotConfigured
	}

	// Turning on wait for a task that was never observed as terminal waits for it now.
	if request.Inputs.Wait && !request.State.Wait && response.Output.TaskID != "" &&
		(response.Output.Status == nil || response.Output.Status.IsRunning()) {
		err = backup.wait(ctx, &response.Output)
	}

	return response, err
}

// Delete removes the archive when deleteArchive is set and otherwise leaves it in place
func (backup *Backup) Delete(
	ctx context.Context,
	request infer.DeleteRequest[proxmox.BackupOutputs],
) (response infer.DeleteResponse, err error) {
	logger := p.GetLogger(ctx)
	logger.Debugf("Deleting backup resource: %v", request.ID)

	if !request.State.DeleteArchive {
		logger.Debugf("Keeping the archive of backup %v", request.ID)
		return response, nil
	}

	if backup.BackupOps == nil || backup.TaskOps == nil {
		return response, errBackupNotConfigured
	}

	if request.State.Archive == nil {
		logger.Warningf("Backup %v has no known archive, nothing to delete", request.ID)
		return response, nil
	}

	upid, err := backup.BackupOps.DeleteArchive(ctx, request.State.Node, *request.State.Archive)
	if err != nil {
		return response, err
	}
	if upid != "" {
		if _, err = backup.TaskOps.Wait(ctx, request.State.Node, upid); err != nil {
			return response, err
		}
	}

	logger.Debugf("Archive %v deleted", request.State.Archive.Volid)
	return response, nil
}

// Diff replaces the backup whenever an input defining the job changes
func (backup *Backup) Diff(
	_ context.Context,
	request infer.DiffRequest[proxmox.BackupInputs, proxmox.BackupOutputs],
) (response infer.DiffResponse, err error) {
	inputs, state := request.Inputs, request.State

	diffs := resources.PropertyDiffs{}
	diffs.Replace("node", inputs.Node != state.Node)
	diffs.Replace("storage", inputs.Storage != state.Storage)
	diffs.Replace("vmid", inputs.VMID != state.VMID)
	diffs.Replace("mode", inputs.Mode != state.Mode)
	diffs.Replace("compress", inputs.Compress != state.Compress)
	diffs.Replace("notesTemplate", inputs.NotesTemplate != state.NotesTemplate)
	diffs.Replace("protected", inputs.Protected != state.Protected)
	diffs.Update("wait", inputs.Wait != state.Wait)
	diffs.Update("deleteArchive", inputs.DeleteArchive != state.DeleteArchive)

	return diffs.Response(false), nil
}

// Annotate is used to annotate the backup resource
// This is used to provide documentation for the resource in the Pulumi schema
// and to provide default values for the resource properties.
func (backup *Backup) Annotate(a infer.Annotator) {
	a.Describe(
		backup,
		"A backup of a Proxmox virtual machine or container, taken once by a vzdump job on creation.",
	)
}
