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
	"net"
	"net/url"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"

	api "github.com/luthermonson/go-proxmox"
	p "github.com/pulumi/pulumi-go-provider"
)

// Ensure RestoreAdapter implements the RestoreOperations interface
var _ proxmox.RestoreOperations = (*RestoreAdapter)(nil)

// RestoreAdapter implements proxmox.RestoreOperations using a proxmox.Client.
type RestoreAdapter struct {
	client proxmox.Client
}

// NewRestoreAdapter creates a new RestoreAdapter wrapping the given client.
func NewRestoreAdapter(client proxmox.Client) *RestoreAdapter {
	return &RestoreAdapter{client: client}
}

// ResolveKind determines whether the restore target is a virtual machine or a container.
// An explicit kind is trusted. Otherwise the qemu and lxc status endpoints are probed,
// and for a guest that does not exist yet the archive name decides.
// A probe that never got an answer from the node aborts the resolution.
func (restore *RestoreAdapter) ResolveKind(ctx context.Context, inputs proxmox.RestoreInputs) (proxmox.GuestKind, error) {
	if err := inputs.Validate(); err != nil {
		return "", err
	}
	if inputs.Kind != "" {
		return inputs.Kind, nil
	}

	logger := p.GetLogger(ctx)

	qemuErr := restore.probe(ctx, inputs.Node, proxmox.GuestKindQemu, inputs.VMID)
	if qemuErr == nil {
		return proxmox.GuestKindQemu, nil
	}
	if !guestMissing(qemuErr) {
		return "", qemuErr
	}
	lxcErr := restore.probe(ctx, inputs.Node, proxmox.GuestKindLXC, inputs.VMID)
	if lxcErr == nil {
		return proxmox.GuestKindLXC, nil
	}
	if !guestMissing(lxcErr) {
		return "", lxcErr
	}

	if kind, ok := proxmox.KindFromArchive(inputs.Archive); ok {
		logger.Debugf("Guest %d not found on %s, restoring as %s from the archive name", inputs.VMID, inputs.Node, kind)
		return kind, nil
	}

	return "", &proxmox.ResourceResolutionError{
		Node:    inputs.Node,
		VMID:    inputs.VMID,
		Archive: inputs.Archive,
		Err:     errors.Join(qemuErr, lxcErr),
	}
}

func (restore *RestoreAdapter) probe(ctx context.Context, node string, kind proxmox.GuestKind, vmid int) error {
	var status proxmox.GuestStatusResource
	path := fmt.Sprintf("/nodes/%s/%s/%d/status/current", node, kind, vmid)
	if err := restore.client.Get(ctx, path, &status); err != nil {
		return fmt.Errorf("%s probe: %w", kind, err)
	}
	return nil
}

// guestMissing reports whether a probe failed because the node answered that the guest
// does not exist. Transport, authorization and cancellation errors do not qualify.
func guestMissing(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.Is(err, api.ErrNotAuthorized),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, proxmox.ErrInvalidInput),
		errors.As(err, &urlErr),
		errors.As(err, &netErr):
		return false
	}
	return true
}

// Create submits the restore job and returns its task identifier.
func (restore *RestoreAdapter) Create(
	ctx context.Context,
	kind proxmox.GuestKind,
	inputs proxmox.RestoreInputs,
) (proxmox.UPID, error) {
	if err := inputs.Validate(); err != nil {
		return "", err
	}

	var request any
	switch kind {
	case proxmox.GuestKindQemu:
		request = &proxmox.QemuRestoreRequest{
			VMID:    inputs.VMID,
			Archive: inputs.Archive,
			Storage: inputs.Storage,
			Force:   proxmox.BoolToInt(inputs.Force),
			Unique:  proxmox.BoolToInt(inputs.Unique),
		}
	case proxmox.GuestKindLXC:
		request = &proxmox.LXCRestoreRequest{
			VMID:       inputs.VMID,
			OSTemplate: inputs.Archive,
			Storage:    inputs.Storage,
			Restore:    1,
			Force:      proxmox.BoolToInt(inputs.Force),
			Unique:     proxmox.BoolToInt(inputs.Unique),
		}
	default:
		return "", fmt.Errorf("%w: cannot restore guest kind %q", proxmox.ErrInvalidInput, kind)
	}

	var upid string
	path := fmt.Sprintf("/nodes/%s/%s", inputs.Node, kind)
	if err := restore.client.Post(ctx, path, request, &upid); err != nil {
		return "", fmt.Errorf("failed to submit restore of %d: %w", inputs.VMID, err)
	}
	if upid == "" {
		return "", errors.New("failed to submit restore: no task id returned")
	}

	p.GetLogger(ctx).Infof("Restore of %s as %s %d submitted as %s", inputs.Archive, kind, inputs.VMID, upid)
	return proxmox.UPID(upid), nil
}
