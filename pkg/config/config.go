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

// Package config holds the connection settings shared by the provider and the CLI.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"
	"github.com/pulumi/pulumi-go-provider/infer"
)

const (
	// DefaultPort is the port of the Proxmox VE API.
	DefaultPort = 8006
	// DefaultTaskPollInterval is the interval between two task status reads, in seconds.
	DefaultTaskPollInterval = 2
	// DefaultTaskTimeout bounds how long a task is waited for, in seconds.
	DefaultTaskTimeout = 4 * 60 * 60

	apiPath = "/api2/json"
)

// Environment variables consulted when a setting is left empty.
const (
	EnvAPIURL    = "PVE_API_URL"
	EnvHost      = "PROXMOX_HOST"
	EnvPort      = "PROXMOX_PORT"
	EnvUser      = "PROXMOX_USER"
	EnvPassword  = "PROXMOX_PASSWORD"
	EnvToken     = "PROXMOX_TOKEN"
	EnvVerifySSL = "PROXMOX_VERIFY_SSL"
)

// Config defines the provider-level configuration.
type Config struct {
	PveURL           string `pulumi:"pveUrl,optional"           mapstructure:"api-url"`
	APIHost          string `pulumi:"apiHost,optional"          mapstructure:"api-host"`
	APIPort          int    `pulumi:"apiPort,optional"          mapstructure:"api-port"`
	PveUser          string `pulumi:"pveUser,optional"          mapstructure:"api-user"`
	PvePassword      string `pulumi:"pvePassword,optional"      mapstructure:"api-password" provider:"secret"`
	PveToken         string `pulumi:"pveToken,optional"         mapstructure:"api-token"    provider:"secret"`
	VerifySSL        bool   `pulumi:"verifySsl,optional"        mapstructure:"verify-ssl"`
	TaskPollInterval int    `pulumi:"taskPollInterval,optional" mapstructure:"poll-interval"`
	TaskTimeout      int    `pulumi:"taskTimeout,optional"      mapstructure:"task-timeout"`
}

// Annotate describes the configuration for schema generation.
func (c *Config) Annotate(a infer.Annotator) {
	a.Describe(&c.PveURL, "The full API URL, e.g. https://pve1:8006/api2/json. Takes precedence over apiHost.")
	a.Describe(&c.APIHost, "The Proxmox VE host. Uses the PROXMOX_HOST environment variable if not specified.")
	a.Describe(&c.APIPort, "The Proxmox VE API port. Uses the PROXMOX_PORT environment variable if not specified.")
	a.Describe(&c.PveUser, "The user (root@pam) or API token ID (root@pam!backup) to authenticate with.")
	a.Describe(&c.PvePassword, "The password to authenticate with. You can use the PROXMOX_PASSWORD environment variable.")
	a.Describe(&c.PveToken, "The API token secret. Used instead of a password when set.")
	a.Describe(&c.VerifySSL, "If false, SSL certificates will not be validated.")
	a.Describe(&c.TaskPollInterval, "Seconds between two task status reads while waiting.")
	a.Describe(&c.TaskTimeout, "Seconds to wait for a backup or restore task before giving up.")
}

// Resolve fills empty settings from the environment and applies defaults.
func (c *Config) Resolve() {
	setFromEnv(&c.PveURL, EnvAPIURL)
	setFromEnv(&c.APIHost, EnvHost)
	setFromEnv(&c.PveUser, EnvUser)
	setFromEnv(&c.PvePassword, EnvPassword)
	setFromEnv(&c.PveToken, EnvToken)

	if c.APIPort == 0 {
		if port, err := strconv.Atoi(os.Getenv(EnvPort)); err == nil {
			c.APIPort = port
		}
	}
	if c.APIPort == 0 {
		c.APIPort = DefaultPort
	}
	if !c.VerifySSL {
		c.VerifySSL, _ = strconv.ParseBool(os.Getenv(EnvVerifySSL))
	}
	if c.TaskPollInterval <= 0 {
		c.TaskPollInterval = DefaultTaskPollInterval
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
}

func setFromEnv(value *string, key string) {
	if *value == "" {
		*value = os.Getenv(key)
	}
}

// Validate checks that the configuration can reach and authenticate against the API.
func (c *Config) Validate() error {
	var errs []error
	if c.PveURL == "" && c.APIHost == "" {
		errs = append(errs, errors.New("either pveUrl or apiHost is required"))
	}
	if c.PveUser == "" {
		errs = append(errs, errors.New("pveUser is required"))
	}
	if c.PvePassword == "" && c.PveToken == "" {
		errs = append(errs, errors.New("either pvePassword or pveToken is required"))
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("apiPort %d is out of range", c.APIPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid provider configuration: %w", errors.Join(errs...))
	}
	return nil
}

// BaseURL returns the API root the client sends requests to.
// An explicit pveUrl is used verbatim.
func (c *Config) BaseURL() string {
	if c.PveURL != "" {
		return strings.TrimSuffix(c.PveURL, "/")
	}

	host := c.APIHost
	scheme := "https"
	if i := strings.Index(host, "://"); i >= 0 {
		scheme, host = host[:i], host[i+3:]
	}
	host = strings.TrimSuffix(host, "/")

	port := c.APIPort
	if port == 0 {
		port = DefaultPort
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port))
	}

	return scheme + "://" + host + apiPath
}

// UsesToken reports whether API token authentication is configured.
func (c *Config) UsesToken() bool {
	return c.PveToken != ""
}

// WaitPolicy returns the task wait policy derived from the configuration.
func (c *Config) WaitPolicy() proxmox.WaitPolicy {
	return proxmox.WaitPolicy{
		Interval: time.Duration(c.TaskPollInterval) * time.Second,
		Timeout:  time.Duration(c.TaskTimeout) * time.Second,
	}
}
