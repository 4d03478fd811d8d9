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

// Command pulumi-resource-pvebackup runs the pvebackup Pulumi provider plugin.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/provider"
	p "github.com/pulumi/pulumi-go-provider"
)

// Serve the provider against Pulumi's Provider protocol
func main() {
	err := p.RunProvider(context.Background(), provider.Name, provider.Version, provider.NewProvider())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s", err.Error())
		os.Exit(1)
	}
}
