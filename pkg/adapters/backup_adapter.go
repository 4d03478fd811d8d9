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

package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"

	p "github.com/pulumi/pulumi-go-provider"
)

const backupContent = "backup"

// Ensure BackupAdapter implements the BackupOperations interface
var _ proxmox.BackupOperations = (*BackupAdapter)(nil)

// BackupAdapter implements proxmox.BackupOperations using a proxmox.Client.
type BackupAdapter struct {
	client proxmox.Client
}

// NewBackupAdapter creates a new BackupAdapter wrapping the given client.
func NewBackupAdapter(client proxmox.Client) *BackupAdapter {
	return &BackupAdapter{client: client}
}

// Create submits a vzdump job for a single guest.
func (backup *BackupAdapter) Create(ctx context.Context, inputs proxmox.BackupInputs) (proxmox.UPID, error) {
	if err := inputs.Validate(); err != nil {
		return "", err
	}

	request := &proxmox.VzdumpRequest{
		VMID:          inputs.VMID,
		Storage:       inputs.Storage,
		Mode:          string(inputs.Mode),
		Compress:      string(inputs.Compress),
		NotesTemplate: inputs.NotesTemplate,
		Protected:     proxmox.BoolToInt(inputs.Protected),
	}

	var upid string
	if err := backup.client.Post(ctx, fmt.Sprintf("/nodes/%s/vzdump", inputs.Node), request, &upid); err != nil {
		return "", fmt.Errorf("failed to submit backup of %d: %w", inputs.VMID, err)
	}
	if upid == "" {
		return "", errors.New("failed to submit backup: no task id returned")
	}

	p.GetLogger(ctx).Infof("Backup of %d to %s submitted as %s", inputs.VMID, inputs.Storage, upid)
	return proxmox.UPID(upid), nil
}

// List returns the matching backup archives of one or all backup storages, newest first.
func (backup *BackupAdapter) List(ctx context.Context, query proxmox.BackupQuery) ([]proxmox.BackupArchive, error) {
	if query.Node == "" {
		return nil, fmt.Errorf("%w: node is required", proxmox.ErrInvalidInput)
	}

	storages := []string{query.Storage}
	if query.AllStorages() {
		var err error
		if storages, err = backup.backupStorages(ctx, query.Node); err != nil {
			return nil, err
		}
	}

	archives := []proxmox.BackupArchive{}
	for _, storage := range storages {
		path := fmt.Sprintf("/nodes/%s/storage/%s/content?content=%s", query.Node, storage, backupContent)

		var contents []proxmox.StorageContentResource
		if err := backup.client.Get(ctx, path, &contents); err != nil {
			return nil, fmt.Errorf("failed to list backups on storage %s: %w", storage, err)
		}

		for _, content := range contents {
			if content.Content != "" && content.Content != backupContent {
				continue
			}
			archive := proxmox.NewBackupArchive(storage, content)
			if query.Matches(archive) {
				archives = append(archives, archive)
			}
		}
	}

	proxmox.SortNewestFirst(archives)
	p.GetLogger(ctx).Debugf("Found %d backups on %d storages of %s", len(archives), len(storages), query.Node)
	return archives, nil
}

// backupStorages returns the storages of the node that can hold backups.
func (backup *BackupAdapter) backupStorages(ctx context.Context, node string) ([]string, error) {
	var resources []proxmox.StorageResource
	path := fmt.Sprintf("/nodes/%s/storage?content=%s", node, backupContent)
	if err := backup.client.Get(ctx, path, &resources); err != nil {
		return nil, fmt.Errorf("failed to list backup storages of %s: %w", node, err)
	}

	storages := make([]string, 0, len(resources))
	for _, resource := range resources {
		storages = append(storages, resource.Storage)
	}
	return storages, nil
}

// DeleteArchive removes a backup archive from its storage. Depending on the
// Proxmox version the deletion runs as a task, in which case its UPID is returned.
func (backup *BackupAdapter) DeleteArchive(
	ctx context.Context,
	node string,
	archive proxmox.BackupArchive,
) (proxmox.UPID, error) {
	if node == "" || archive.Storage == "" || archive.Volid == "" {
		return "", fmt.Errorf("%w: node, storage and volid are required to delete an archive", proxmox.ErrInvalidInput)
	}

	var upid *string
	path := fmt.Sprintf("/nodes/%s/storage/%s/content/%s", node, archive.Storage, url.PathEscape(archive.Volid))
	if err := backup.client.Delete(ctx, path, &upid); err != nil {
		return "", fmt.Errorf("failed to delete archive %s: %w", archive.Volid, err)
	}

	p.GetLogger(ctx).Infof("Deleted archive %s", archive.Volid)
	if upid == nil {
		return "", nil
	}
	return proxmox.UPID(*upid), nil
}
