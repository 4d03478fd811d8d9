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

package proxmox

import (
	"cmp"
	"context"
	"fmt"

	"github.com/pulumi/pulumi-go-provider/infer"
	"golang.org/x/exp/slices"
)

// AllStorages selects every storage of a node that can hold backups.
const AllStorages = "all"

// BackupMode is the vzdump backup mode.
type BackupMode string

const (
	// BackupModeSnapshot backs up a running guest from a snapshot.
	BackupModeSnapshot BackupMode = "snapshot"
	// BackupModeSuspend suspends the guest during the backup.
	BackupModeSuspend BackupMode = "suspend"
	// BackupModeStop stops the guest during the backup.
	BackupModeStop BackupMode = "stop"
)

// Validate validates the backup mode. The empty mode leaves the choice to the node.
func (mode BackupMode) Validate() error {
	switch mode {
	case "", BackupModeSnapshot, BackupModeSuspend, BackupModeStop:
		return nil
	default:
		return fmt.Errorf("%w: backup mode %q", ErrInvalidInput, mode)
	}
}

// Compression is the vzdump archive compression.
type Compression string

// Validate validates the compression. The empty value leaves the choice to the node.
func (compress Compression) Validate() error {
	switch compress {
	case "", "0", "gzip", "lzo", "zstd":
		return nil
	default:
		return fmt.Errorf("%w: compression %q", ErrInvalidInput, compress)
	}
}

// BackupOperations defines the interface for backup operations.
type BackupOperations interface {
	// Create submits a vzdump job and returns its task identifier.
	Create(ctx context.Context, inputs BackupInputs) (UPID, error)

	// List returns the backup archives matching the query, newest first.
	List(ctx context.Context, query BackupQuery) ([]BackupArchive, error)

	// DeleteArchive removes a backup archive from its storage.
	DeleteArchive(ctx context.Context, node string, archive BackupArchive) (UPID, error)
}

// VzdumpRequest is the body of POST /nodes/{node}/vzdump (API level).
type VzdumpRequest struct {
	VMID          int    `json:"vmid"`
	Storage       string `json:"storage"`
	Mode          string `json:"mode,omitempty"`
	Compress      string `json:"compress,omitempty"`
	NotesTemplate string `json:"notes-template,omitempty"`
	Protected     int    `json:"protected,omitempty"`
}

// StorageResource is an entry of GET /nodes/{node}/storage (API level).
type StorageResource struct {
	Storage string `json:"storage"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Active  int    `json:"active"`
	Enabled int    `json:"enabled"`
}

// StorageContentResource is an entry of GET /nodes/{node}/storage/{storage}/content (API level).
type StorageContentResource struct {
	Volid   string `json:"volid"`
	VMID    int    `json:"vmid"`
	CTime   int64  `json:"ctime"`
	Size    int64  `json:"size"`
	Format  string `json:"format"`
	Subtype string `json:"subtype,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Content string `json:"content"`
}

// BackupInputs represents the input properties for the Backup resource.
type BackupInputs struct {
	Node          string      `pulumi:"node"                   provider:"replaceOnChanges"`
	Storage       string      `pulumi:"storage"                provider:"replaceOnChanges"`
	VMID          int         `pulumi:"vmid"                   provider:"replaceOnChanges"`
	Mode          BackupMode  `pulumi:"mode,optional"          provider:"replaceOnChanges"`
	Compress      Compression `pulumi:"compress,optional"      provider:"replaceOnChanges"`
	NotesTemplate string      `pulumi:"notesTemplate,optional" provider:"replaceOnChanges"`
	Protected     bool        `pulumi:"protected,optional"     provider:"replaceOnChanges"`
	Wait          bool        `pulumi:"wait,optional"`
	DeleteArchive bool        `pulumi:"deleteArchive,optional"`
}

// Annotate adds descriptions to the Input properties for documentation and schema generation.
func (inputs *BackupInputs) Annotate(a infer.Annotator) {
	a.Describe(&inputs.Node, "The Proxmox node that runs the backup job.")
	a.Describe(&inputs.Storage, "The storage the archive is written to (e.g. local or pbs).")
	a.Describe(&inputs.VMID, "The ID of the virtual machine or container to back up.")
	a.Describe(&inputs.Mode, "The backup mode: snapshot, suspend or stop.")
	a.Describe(&inputs.Compress, "The archive compression: 0, gzip, lzo or zstd.")
	a.Describe(&inputs.NotesTemplate, "Template for the notes attached to the archive, e.g. {{guestname}}.")
	a.Describe(&inputs.Protected, "Protect the archive from pruning.")
	a.Describe(&inputs.Wait, "Wait for the backup task to finish and fail if it does not succeed.")
	a.SetDefault(&inputs.Wait, false)
	a.Describe(&inputs.DeleteArchive, "Remove the archive from the storage when the resource is deleted.")
	a.SetDefault(&inputs.DeleteArchive, false)
}

// Validate checks the inputs before a job is submitted.
func (inputs BackupInputs) Validate() error {
	if inputs.Node == "" {
		return fmt.Errorf("%w: node is required", ErrInvalidInput)
	}
	if inputs.Storage == "" || inputs.Storage == AllStorages {
		return fmt.Errorf("%w: a single target storage is required", ErrInvalidInput)
	}
	if inputs.VMID <= 0 {
		return fmt.Errorf("%w: vmid must be positive, got %d", ErrInvalidInput, inputs.VMID)
	}
	if err := inputs.Mode.Validate(); err != nil {
		return err
	}
	return inputs.Compress.Validate()
}

// BackupOutputs represents the output properties for the Backup resource.
type BackupOutputs struct {
	BackupInputs
	TaskID  string         `pulumi:"taskId"`
	Status  *TaskStatus    `pulumi:"status,optional"`
	Archive *BackupArchive `pulumi:"archive,optional"`
}

// Annotate adds descriptions to the Output properties.
func (outputs *BackupOutputs) Annotate(a infer.Annotator) {
	a.Describe(&outputs.TaskID, "The UPID of the vzdump task.")
	a.Describe(&outputs.Status, "The last observed status of the vzdump task.")
	a.Describe(&outputs.Archive, "The archive written by the task, known once the task succeeded.")
}

// BackupArchive is a backup archive on a storage.
type BackupArchive struct {
	Volid   string `pulumi:"volid"            json:"volid"`
	Storage string `pulumi:"storage"          json:"storage"`
	VMID    int    `pulumi:"vmid"             json:"vmid"`
	CTime   int    `pulumi:"ctime"            json:"ctime"`
	Size    int    `pulumi:"size"             json:"size"`
	Format  string `pulumi:"format"           json:"format"`
	Subtype string `pulumi:"subtype,optional" json:"subtype,omitempty"`
	Notes   string `pulumi:"notes,optional"   json:"notes,omitempty"`
}

// Annotate adds descriptions to the archive properties.
func (archive *BackupArchive) Annotate(a infer.Annotator) {
	a.Describe(&archive.Volid, "The volume identifier, e.g. local:backup/vzdump-qemu-100-2024_01_01-00_00_00.vma.zst.")
	a.Describe(&archive.Storage, "The storage holding the archive.")
	a.Describe(&archive.VMID, "The ID of the backed up guest.")
	a.Describe(&archive.CTime, "The creation time as a unix timestamp.")
	a.Describe(&archive.Size, "The archive size in bytes.")
	a.Describe(&archive.Subtype, "The guest type of the archive: qemu or lxc.")
}

// NewBackupArchive converts a storage content entry into an archive.
func NewBackupArchive(storage string, content StorageContentResource) BackupArchive {
	return BackupArchive{
		Volid:   content.Volid,
		Storage: storage,
		VMID:    content.VMID,
		CTime:   int(content.CTime),
		Size:    int(content.Size),
		Format:  content.Format,
		Subtype: content.Subtype,
		Notes:   content.Notes,
	}
}

// BackupQuery selects backup archives.
type BackupQuery struct {
	Node    string
	Storage string
	VMID    *int
}

// AllStorages reports whether the query spans every backup storage of the node.
func (query BackupQuery) AllStorages() bool {
	return query.Storage == "" || query.Storage == AllStorages
}

// Matches reports whether the archive belongs to the queried guest.
// A nil or zero VMID matches every archive.
func (query BackupQuery) Matches(archive BackupArchive) bool {
	return query.VMID == nil || *query.VMID == 0 || archive.VMID == *query.VMID
}

// SortNewestFirst orders archives by creation time, newest first. Archives
// created in the same second keep their relative order.
func SortNewestFirst(archives []BackupArchive) {
	slices.SortStableFunc(archives, func(a, b BackupArchive) int {
		return cmp.Compare(b.CTime, a.CTime)
	})
}

// Latest returns the newest archive of a list sorted by SortNewestFirst.
func Latest(archives []BackupArchive) *BackupArchive {
	if len(archives) == 0 {
		return nil
	}
	latest := archives[0]
	return &latest
}

// ArchiveProducedBy picks the newest archive of the task's guest created at or after the task start.
// archives must be sorted newest first.
func ArchiveProducedBy(status *TaskStatus, vmid int, archives []BackupArchive) *BackupArchive {
	for _, archive := range archives {
		if archive.VMID == vmid && archive.CTime >= status.StartTime {
			found := archive
			return &found
		}
	}
	return nil
}

// ListBackupsInputs represents the arguments of the getBackups function.
type ListBackupsInputs struct {
	Node    string `pulumi:"node"`
	Storage string `pulumi:"storage,optional"`
	VMID    *int   `pulumi:"vmid,optional"`
}

// Annotate adds descriptions to the function arguments.
func (inputs *ListBackupsInputs) Annotate(a infer.Annotator) {
	a.Describe(&inputs.Node, "The Proxmox node to query.")
	a.Describe(&inputs.Storage, "The storage to list, or all for every backup storage of the node.")
	a.SetDefault(&inputs.Storage, AllStorages)
	a.Describe(&inputs.VMID, "Only return archives of this virtual machine or container.")
}

// Query converts the function arguments into a BackupQuery.
func (inputs ListBackupsInputs) Query() BackupQuery {
	return BackupQuery{Node: inputs.Node, Storage: inputs.Storage, VMID: inputs.VMID}
}

// ListBackupsOutputs represents the result of the getBackups function.
type ListBackupsOutputs struct {
	Backups []BackupArchive `pulumi:"backups"         json:"backups"`
	Latest  *BackupArchive  `pulumi:"latest,optional" json:"latest,omitempty"`
}

// Annotate adds descriptions to the function result.
func (outputs *ListBackupsOutputs) Annotate(a infer.Annotator) {
	a.Describe(&outputs.Backups, "The matching archives, newest first.")
	a.Describe(&outputs.Latest, "The newest matching archive, unset when nothing matched.")
}
