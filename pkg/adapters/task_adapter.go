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
	"fmt"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"

	p "github.com/pulumi/pulumi-go-provider"
)

// Ensure TaskAdapter implements the TaskOperations interface
var _ proxmox.TaskOperations = (*TaskAdapter)(nil)

// PolicyFunc supplies the wait policy at the time a wait starts.
type PolicyFunc func(ctx context.Context) proxmox.WaitPolicy

// FixedPolicy returns a PolicyFunc that always yields policy.
func FixedPolicy(policy proxmox.WaitPolicy) PolicyFunc {
	return func(context.Context) proxmox.WaitPolicy { return policy }
}

// TaskAdapter implements proxmox.TaskOperations using a proxmox.Client.
type TaskAdapter struct {
	client proxmox.Client
	policy PolicyFunc
}

// NewTaskAdapter creates a new TaskAdapter wrapping the given client.
func NewTaskAdapter(client proxmox.Client, policy PolicyFunc) *TaskAdapter {
	if policy == nil {
		policy = FixedPolicy(proxmox.WaitPolicy{})
	}
	return &TaskAdapter{client: client, policy: policy}
}

func taskStatusPath(node string, upid proxmox.UPID) string {
	return fmt.Sprintf("/nodes/%s/tasks/%s/status", node, upid)
}

// Status reads a fresh snapshot of the task. The node is taken from the UPID when empty.
func (task *TaskAdapter) Status(ctx context.Context, node string, upid proxmox.UPID) (*proxmox.TaskStatus, error) {
	if upid == "" {
		return nil, fmt.Errorf("%w: task id is required", proxmox.ErrInvalidInput)
	}
	if node == "" {
		if node = upid.Node(); node == "" {
			return nil, fmt.Errorf("%w: no node given and none in task id %q", proxmox.ErrInvalidInput, upid)
		}
	}

	var resource proxmox.TaskStatusResource
	if err := task.client.Get(ctx, taskStatusPath(node, upid), &resource); err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	if resource.UPID == "" {
		resource.UPID = string(upid)
	}
	return proxmox.NewTaskStatus(resource), nil
}

// Wait blocks until the task leaves the running state.
func (task *TaskAdapter) Wait(ctx context.Context, node string, upid proxmox.UPID) (*proxmox.TaskStatus, error) {
	logger := p.GetLogger(ctx)
	policy := task.policy(ctx)
	logger.Debugf("Waiting for task %s (interval %s, timeout %s)", upid, policy.Interval, policy.Timeout)

	status, err := policy.Wait(ctx, upid, func(ctx context.Context) (*proxmox.TaskStatus, error) {
		status, err := task.Status(ctx, node, upid)
		if err == nil && status.IsRunning() {
			logger.Debugf("Task %s is still running", upid)
		}
		return status, err
	})
	if err != nil {
		logger.Errorf("Task %s did not succeed: %v", upid, err)
		return status, err
	}

	logger.Debugf("Task %s finished with %s", upid, status.ExitStatus)
	return status, nil
}
