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
	"time"

	"github.com/pulumi/pulumi-go-provider/infer"
)

const (
	// TaskStatusRunning is the only non-terminal task status reported by Proxmox.
	TaskStatusRunning = "running"
	// TaskExitStatusOK is the exit status of a successful task.
	TaskExitStatusOK = "OK"

	// DefaultPollInterval is used when a WaitPolicy does not set an interval.
	DefaultPollInterval = 2 * time.Second
)

// UPID is the opaque identifier Proxmox assigns to an asynchronous task.
type UPID string

// Node returns the node encoded in the UPID (UPID:node:pid:...), or "" when it is malformed.
func (upid UPID) Node() string {
	fields := strings.Split(string(upid), ":")
	if len(fields) < 3 || fields[0] != "UPID" {
		return ""
	}
	return fields[1]
}

// TaskOperations defines the interface for tracking asynchronous Proxmox tasks.
type TaskOperations interface {
	// Status reads a single, fresh snapshot of the task.
	Status(ctx context.Context, node string, upid UPID) (*TaskStatus, error)

	// Wait blocks until the task leaves the running state and classifies the outcome.
	Wait(ctx context.Context, node string, upid UPID) (*TaskStatus, error)
}

// TaskStatusResource is the task status as returned by GET /nodes/{node}/tasks/{upid}/status (API level).
type TaskStatusResource struct {
	UPID       string `json:"upid"`
	Node       string `json:"node"`
	Type       string `json:"type"`
	ID         string `json:"id"`
	User       string `json:"user"`
	PID        int    `json:"pid"`
	StartTime  int64  `json:"starttime"`
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus,omitempty"`
}

// TaskStatus is a point-in-time snapshot of an asynchronous task.
type TaskStatus struct {
	UPID       string `pulumi:"upid"                json:"upid"`
	Node       string `pulumi:"node"                json:"node"`
	Type       string `pulumi:"type"                json:"type"`
	ID         string `pulumi:"id"                  json:"id"`
	User       string `pulumi:"user"                json:"user"`
	StartTime  int    `pulumi:"startTime"           json:"starttime"`
	Status     string `pulumi:"status"              json:"status"`
	ExitStatus string `pulumi:"exitStatus,optional" json:"exitstatus,omitempty"`
}

// Annotate adds descriptions to the task status properties.
func (status *TaskStatus) Annotate(a infer.Annotator) {
	a.Describe(&status.UPID, "The Proxmox task identifier (UPID).")
	a.Describe(&status.Node, "The node the task runs on.")
	a.Describe(&status.Type, "The task type, e.g. vzdump or qmrestore.")
	a.Describe(&status.Status, "The task status: running, or stopped once terminal.")
	a.Describe(&status.ExitStatus, "The exit status of a terminal task; OK on success.")
}

// NewTaskStatus converts an API task status into the domain snapshot.
func NewTaskStatus(resource TaskStatusResource) *TaskStatus {
	return &TaskStatus{
		UPID:       resource.UPID,
		Node:       resource.Node,
		Type:       resource.Type,
		ID:         resource.ID,
		User:       resource.User,
		StartTime:  int(resource.StartTime),
		Status:     resource.Status,
		ExitStatus: resource.ExitStatus,
	}
}

// IsRunning reports whether the task has not reached a terminal state yet.
func (status *TaskStatus) IsRunning() bool {
	return status.Status == TaskStatusRunning
}

// Succeeded reports whether a terminal task finished with exit status OK.
func (status *TaskStatus) Succeeded() bool {
	return !status.IsRunning() && status.ExitStatus == TaskExitStatusOK
}

// TaskFailedError is returned when a task reaches a terminal state with a non-OK exit status.
type TaskFailedError struct {
	UPID       UPID
	ExitStatus string
	Status     *TaskStatus
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.UPID, e.ExitStatus)
}

// TaskTimeoutError is returned when a task is still running after the wait policy timeout.
type TaskTimeoutError struct {
	UPID    UPID
	Timeout time.Duration
	Last    *TaskStatus
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("task %s still running after %s", e.UPID, e.Timeout)
}

// WaitPolicy bounds the polling of a task.
type WaitPolicy struct {
	// Interval between two status reads. Zero means DefaultPollInterval.
	Interval time.Duration
	// Timeout for the whole wait. Zero means no deadline besides the caller's context.
	Timeout time.Duration
}

// StatusFunc fetches a fresh task status snapshot.
type StatusFunc func(ctx context.Context) (*TaskStatus, error)

// Wait polls fetch until the task leaves the running state.
// A terminal status with exit status OK is returned as is, any other exit status
// yields a *TaskFailedError. Errors from fetch abort the wait immediately.
func (policy WaitPolicy) Wait(ctx context.Context, upid UPID, fetch StatusFunc) (*TaskStatus, error) {
	interval := policy.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	waitCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	var last *TaskStatus
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return nil, policy.interrupted(ctx, upid, last)
		case <-timer.C:
		}

		status, err := fetch(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, policy.interrupted(ctx, upid, last)
			}
			return nil, fmt.Errorf("failed to get status of task %s: %w", upid, err)
		}
		if status == nil {
			return nil, fmt.Errorf("failed to get status of task %s: empty response", upid)
		}

		if !status.IsRunning() {
			if status.ExitStatus != TaskExitStatusOK {
				return status, &TaskFailedError{UPID: upid, ExitStatus: status.ExitStatus, Status: status}
			}
			return status, nil
		}

		last = status
		timer.Reset(interval)
	}
}

// interrupted tells a caller cancellation apart from the policy deadline.
func (policy WaitPolicy) interrupted(ctx context.Context, upid UPID, last *TaskStatus) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("stopped waiting for task %s: %w", upid, err)
	}
	return &TaskTimeoutError{UPID: upid, Timeout: policy.Timeout, Last: last}
}
