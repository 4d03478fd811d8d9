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
	"context"
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-go-provider/infer"
)

// GuestKind tells virtual machines and containers apart.
type GuestKind string

const (
	// GuestKindQemu is a QEMU virtual machine.
	GuestKindQemu GuestKind = "qemu"
	// GuestKindLXC is an LXC container.
	GuestKindLXC GuestKind = "lxc"
)

// Validate validates the guest kind. The empty kind asks for resolution.
func (kind GuestKind) Validate() error {
	switch kind {
	case "", GuestKindQemu, GuestKindLXC:
		return nil
	default:
		return fmt.Errorf("%w: guest kind %q", ErrInvalidInput, kind)
	}
}

// KindFromArchive infers the guest kind from a vzdump archive name.
// It returns false when the name does not follow the vzdump naming scheme.
func KindFromArchive(volid string) (GuestKind, bool) {
	name := volid
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	} else if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}

	switch {
	case strings.HasPrefix(name, "vzdump-qemu-"):
		return GuestKindQemu, true
	case strings.HasPrefix(name, "vzdump-lxc-"), strings.HasPrefix(name, "vzdump-openvz-"):
		return GuestKindLXC, true
	}

	// Proxmox Backup Server volumes look like pbs:backup/vm/100/2024-01-01T00:00:00Z
	switch {
	case strings.Contains(volid, ":backup/vm/"):
		return GuestKindQemu, true
	case strings.Contains(volid, ":backup/ct/"):
		return GuestKindLXC, true
	}
	return "", false
}

// ResourceResolutionError is returned when a restore target is neither a virtual machine nor a container.
type ResourceResolutionError struct {
	Node    string
	VMID    int
	Archive string
	Err     error
}

func (e *ResourceResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve guest %d on node %s as qemu or lxc (archive %q): %v",
		e.VMID, e.Node, e.Archive, e.Err)
}

func (e *ResourceResolutionError) Unwrap() error {
	return e.Err
}

// RestoreOperations defines the interface for restore operations.
type RestoreOperations interface {
	// ResolveKind determines whether the target is a virtual machine or a container.
	ResolveKind(ctx context.Context, inputs RestoreInputs) (GuestKind, error)

	// Create submits a restore job for the given guest kind and returns its task identifier.
	Create(ctx context.Context, kind GuestKind, inputs RestoreInputs) (UPID, error)
}

// GuestStatusResource is the reply of GET /nodes/{node}/{qemu|lxc}/{vmid}/status/current (API level).
type GuestStatusResource struct {
	VMID   int    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// QemuRestoreRequest is the body of POST /nodes/{node}/qemu when restoring (API level).
type QemuRestoreRequest struct {
	VMID    int    `json:"vmid"`
	Archive string `json:"archive"`
	Storage string `json:"storage,omitempty"`
	Force   int    `json:"force,omitempty"`
	Unique  int    `json:"unique,omitempty"`
}

// LXCRestoreRequest is the body of POST /nodes/{node}/lxc when restoring (API level).
type LXCRestoreRequest struct {
	VMID       int    `json:"vmid"`
	OSTemplate string `json:"ostemplate"`
	Storage    string `json:"storage,omitempty"`
	Restore    int    `json:"restore"`
	Force      int    `json:"force,omitempty"`
	Unique     int    `json:"unique,omitempty"`
}

// RestoreInputs represents the input properties for the Restore resource.
type RestoreInputs struct {
	Node    string    `pulumi:"node"            provider:"replaceOnChanges"`
	Storage string    `pulumi:"storage"         provider:"replaceOnChanges"`
	VMID    int       `pulumi:"vmid"            provider:"replaceOnChanges"`
	Archive string    `pulumi:"archive"         provider:"replaceOnChanges"`
	Kind    GuestKind `pulumi:"kind,optional"   provider:"replaceOnChanges"`
	Force   bool      `pulumi:"force,optional"  provider:"replaceOnChanges"`
	Unique  bool      `pulumi:"unique,optional" provider:"replaceOnChanges"`
	Wait    bool      `pulumi:"wait,optional"`
}

// Annotate adds descriptions to the Input properties for documentation and schema generation.
func (inputs *RestoreInputs) Annotate(a infer.Annotator) {
	a.Describe(&inputs.Node, "The Proxmox node the guest is restored on.")
	a.Describe(&inputs.Storage, "The storage the restored disks are placed on.")
	a.Describe(&inputs.VMID, "The ID of the restored virtual machine or container.")
	a.Describe(&inputs.Archive, "The backup archive volume, e.g. the volid returned by getBackups.")
	a.Describe(&inputs.Kind, "qemu or lxc. Resolved from the node and the archive name when unset.")
	a.Describe(&inputs.Force, "Overwrite an existing guest with the same ID.")
	a.SetDefault(&inputs.Force, false)
	a.Describe(&inputs.Unique, "Assign fresh MAC addresses to the restored guest.")
	a.SetDefault(&inputs.Unique, false)
	a.Describe(&inputs.Wait, "Wait for the restore task to finish and fail if it does not succeed.")
	a.SetDefault(&inputs.Wait, false)
}

// Validate checks the inputs before a job is submitted.
func (inputs RestoreInputs) Validate() error {
	if inputs.Node == "" {
		return fmt.Errorf("%w: node is required", ErrInvalidInput)
	}
	if inputs.Storage == "" {
		return fmt.Errorf("%w: storage is required", ErrInvalidInput)
	}
	if inputs.VMID <= 0 {
		return fmt.Errorf("%w: vmid must be positive, got %d", ErrInvalidInput, inputs.VMID)
	}
	if inputs.Archive == "" {
		return fmt.Errorf("%w: archive is required", ErrInvalidInput)
	}
	return inputs.Kind.Validate()
}

// RestoreOutputs represents the output properties for the Restore resource.
type RestoreOutputs struct {
	RestoreInputs
	ResolvedKind GuestKind   `pulumi:"resolvedKind"`
	TaskID       string      `pulumi:"taskId"`
	Status       *TaskStatus `pulumi:"status,optional"`
}

// Annotate adds descriptions to the Output properties.
func (outputs *RestoreOutputs) Annotate(a infer.Annotator) {
	a.Describe(&outputs.ResolvedKind, "The guest kind the archive was restored as.")
	a.Describe(&outputs.TaskID, "The UPID of the restore task.")
	a.Describe(&outputs.Status, "The last observed status of the restore task.")
}

// BoolToInt maps a flag to the 0/1 integers the Proxmox API expects.
func BoolToInt(flag bool) int {
	if flag {
		return 1
	}
	return 0
}
