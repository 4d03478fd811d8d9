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

// Package proxmox provides interfaces and domain types for backing up and restoring guests on Proxmox VE.
package proxmox

import (
	"context"
	"errors"
)

// ErrInvalidInput is returned when an operation is called with inputs Proxmox would reject anyway.
var ErrInvalidInput = errors.New("invalid input")

// Client is the HTTP seam used by the backup, restore and task operations.
// Paths are relative to the API root (e.g. /nodes/pve1/vzdump) and results
// are decoded from the "data" member of the Proxmox response envelope.
type Client interface {
	// Get performs a GET request to the Proxmox API.
	Get(ctx context.Context, path string, result any) error

	// Post performs a POST request to the Proxmox API.
	Post(ctx context.Context, path string, body any, result any) error

	// Delete performs a DELETE request to the Proxmox API.
	Delete(ctx context.Context, path string, result any) error
}
