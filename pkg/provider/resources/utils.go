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

// Package resources provides helpers shared by the provider resources.
package resources

import (
	p "github.com/pulumi/pulumi-go-provider"
)

// PropertyDiffs collects the detailed diff of a resource, keyed by property name.
type PropertyDiffs map[string]p.PropertyDiff

// Replace records a property whose change requires a new resource.
func (diffs PropertyDiffs) Replace(name string, changed bool) {
	if changed {
		diffs[name] = p.PropertyDiff{Kind: p.UpdateReplace}
	}
}

// Update records a property that can change in place.
func (diffs PropertyDiffs) Update(name string, changed bool) {
	if changed {
		diffs[name] = p.PropertyDiff{Kind: p.Update}
	}
}

// Response converts the collected diffs into a diff response.
func (diffs PropertyDiffs) Response(deleteBeforeReplace bool) p.DiffResponse {
	return p.DiffResponse{
		DeleteBeforeReplace: deleteBeforeReplace,
		HasChanges:          len(diffs) > 0,
		DetailedDiff:        diffs,
	}
}
